package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/application/dtos"
	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/domain/entities"
	"github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// CreatePixKeyUseCase - use case для привязки Pix-ключа к кошельку.
// POST /wallets/{id}/pix-keys.
//
// Бизнес-правило: значение ключа уникально по всей системе, независимо от
// кошелька (ExistsByValue проверяет это до создания).
type CreatePixKeyUseCase struct {
	walletRepo ports.WalletRepository
	pixKeyRepo ports.PixKeyRepository
	uow        ports.UnitOfWork
}

// NewCreatePixKeyUseCase создаёт новый use case.
func NewCreatePixKeyUseCase(
	walletRepo ports.WalletRepository,
	pixKeyRepo ports.PixKeyRepository,
	uow ports.UnitOfWork,
) *CreatePixKeyUseCase {
	return &CreatePixKeyUseCase{
		walletRepo: walletRepo,
		pixKeyRepo: pixKeyRepo,
		uow:        uow,
	}
}

// Execute привязывает новый Pix-ключ к кошельку.
func (uc *CreatePixKeyUseCase) Execute(ctx context.Context, cmd dtos.RegisterPixKeyCommand) (*dtos.PixKeyDTO, error) {
	var result *dtos.PixKeyDTO

	err := uc.uow.Execute(ctx, func(txCtx context.Context) error {
		walletID, err := uuid.Parse(cmd.WalletID)
		if err != nil {
			return errors.ValidationError{Field: "walletId", Message: "invalid UUID"}
		}

		keyType := valueobjects.PixKeyType(cmd.KeyType)
		if !keyType.IsValid() {
			return errors.ValidationError{Field: "keyType", Message: "invalid Pix key type"}
		}

		if _, err := uc.walletRepo.FindByID(txCtx, walletID); err != nil {
			if errors.IsNotFound(err) {
				return errors.ErrWalletNotFound
			}
			return fmt.Errorf("failed to load wallet: %w", err)
		}

		exists, err := uc.pixKeyRepo.ExistsByValue(txCtx, cmd.KeyValue)
		if err != nil {
			return fmt.Errorf("failed to check Pix key uniqueness: %w", err)
		}
		if exists {
			return errors.ValidationError{Field: "keyValue", Message: "Pix key already registered"}
		}

		pixKey, err := entities.NewPixKey(cmd.KeyValue, keyType, walletID)
		if err != nil {
			return fmt.Errorf("failed to create Pix key entity: %w", err)
		}

		if err := uc.pixKeyRepo.Save(txCtx, pixKey); err != nil {
			return fmt.Errorf("failed to save Pix key: %w", err)
		}

		dto := dtos.ToPixKeyDTO(pixKey)
		result = &dto
		return nil
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}
