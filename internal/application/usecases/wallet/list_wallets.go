// Package wallet - ListWallets use case для получения списка кошельков.
package wallet

import (
	"context"
	"fmt"

	"github.com/pixwallet/ledger/internal/application/dtos"
	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/domain/entities"
)

// ListWalletsUseCase - use case для получения списка кошельков с фильтрацией.
type ListWalletsUseCase struct {
	walletRepo ports.WalletRepository
}

// NewListWalletsUseCase создаёт новый use case.
func NewListWalletsUseCase(walletRepo ports.WalletRepository) *ListWalletsUseCase {
	return &ListWalletsUseCase{
		walletRepo: walletRepo,
	}
}

// Execute возвращает список кошельков с фильтрацией и пагинацией.
func (uc *ListWalletsUseCase) Execute(ctx context.Context, query dtos.ListWalletsQuery) (*dtos.WalletListDTO, error) {
	filter := ports.WalletFilter{}

	if query.UserID != nil {
		filter.UserID = query.UserID
	}

	if query.Status != nil {
		status := entities.WalletStatus(*query.Status)
		filter.Status = &status
	}

	wallets, err := uc.walletRepo.List(ctx, filter, query.Offset, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}

	return &dtos.WalletListDTO{
		Wallets:    dtos.ToWalletDTOList(wallets),
		TotalCount: len(wallets),
		Offset:     query.Offset,
		Limit:      query.Limit,
	}, nil
}
