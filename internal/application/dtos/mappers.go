// Package dtos - Mappers для конвертации domain entities в DTOs.
//
// SOLID Principles:
// - SRP: Mappers отвечают только за конвертацию
// - OCP: Новые мапперы добавляются без изменения существующих
//
// Pattern: Mapper/Converter
// Отделяет domain representation от API representation
package dtos

import (
	"github.com/pixwallet/ledger/internal/domain/entities"
)

// ============================================
// Wallet Mappers
// ============================================

// ToWalletDTO конвертирует domain entity Wallet в DTO.
func ToWalletDTO(wallet *entities.Wallet) WalletDTO {
	return WalletDTO{
		ID:        wallet.ID().String(),
		UserID:    wallet.UserID(),
		Status:    string(wallet.Status()),
		Balance:   wallet.Balance().String(),
		Version:   wallet.Version(),
		CreatedAt: wallet.CreatedAt(),
		UpdatedAt: wallet.UpdatedAt(),
	}
}

// ToWalletDTOList конвертирует список wallets.
func ToWalletDTOList(wallets []*entities.Wallet) []WalletDTO {
	result := make([]WalletDTO, len(wallets))
	for i, wallet := range wallets {
		result[i] = ToWalletDTO(wallet)
	}
	return result
}

// ============================================
// Pix Key Mappers
// ============================================

// ToPixKeyDTO конвертирует domain entity PixKey в DTO.
func ToPixKeyDTO(key *entities.PixKey) PixKeyDTO {
	return PixKeyDTO{
		ID:        key.ID().String(),
		WalletID:  key.WalletID().String(),
		KeyValue:  key.KeyValue(),
		KeyType:   string(key.KeyType()),
		IsActive:  key.IsActive(),
		CreatedAt: key.CreatedAt(),
	}
}

// ============================================
// Pix Transfer Mappers
// ============================================

// ToPixTransferDTO конвертирует domain entity PixTransfer в DTO.
func ToPixTransferDTO(transfer *entities.PixTransfer) PixTransferDTO {
	return PixTransferDTO{
		ID:              transfer.ID().String(),
		EndToEndID:      transfer.EndToEndID(),
		IdempotencyKey:  transfer.IdempotencyKey(),
		FromWalletID:    transfer.FromWalletID().String(),
		ToPixKey:        transfer.ToPixKey(),
		Amount:          transfer.Amount().String(),
		Status:          string(transfer.Status()),
		RejectionReason: transfer.RejectionReason(),
		CreatedAt:       transfer.CreatedAt(),
		ConfirmedAt:     transfer.ConfirmedAt(),
		RejectedAt:      transfer.RejectedAt(),
	}
}
