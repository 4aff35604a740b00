// Package wallet содержит use cases для работы с кошельками.
package wallet

import (
	"context"
	"fmt"

	"github.com/pixwallet/ledger/internal/application/dtos"
	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/domain/entities"
	"github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/events"
)

// CreateWalletUseCase - use case для создания нового кошелька.
//
// Сценарий:
// 1. Проверить, что у пользователя ещё нет кошелька
// 2. Создать кошелёк через domain entity
// 3. Сохранить в БД
// 4. Опубликовать событие WalletCreated
//
// Бизнес-правило: у пользователя ровно один кошелёк (POST /wallets
// отвечает 400 DUPLICATE_USER, если кошелёк уже существует).
type CreateWalletUseCase struct {
	walletRepo     ports.WalletRepository
	eventPublisher ports.EventPublisher
	uow            ports.UnitOfWork
}

// NewCreateWalletUseCase создаёт новый use case.
func NewCreateWalletUseCase(
	walletRepo ports.WalletRepository,
	eventPublisher ports.EventPublisher,
	uow ports.UnitOfWork,
) *CreateWalletUseCase {
	return &CreateWalletUseCase{
		walletRepo:     walletRepo,
		eventPublisher: eventPublisher,
		uow:            uow,
	}
}

// Execute выполняет создание кошелька.
func (uc *CreateWalletUseCase) Execute(ctx context.Context, cmd dtos.CreateWalletCommand) (*dtos.WalletDTO, error) {
	var result *dtos.WalletDTO

	err := uc.uow.Execute(ctx, func(txCtx context.Context) error {
		if cmd.UserID == "" {
			return errors.ValidationError{Field: "userId", Message: "userId is required"}
		}

		exists, err := uc.walletRepo.ExistsByUserID(txCtx, cmd.UserID)
		if err != nil {
			return fmt.Errorf("failed to check wallet existence: %w", err)
		}
		if exists {
			return errors.ErrDuplicateUser
		}

		wallet, err := entities.NewWallet(cmd.UserID)
		if err != nil {
			return fmt.Errorf("failed to create wallet entity: %w", err)
		}

		if err := uc.walletRepo.Save(txCtx, wallet); err != nil {
			return fmt.Errorf("failed to save wallet: %w", err)
		}

		event := events.NewWalletCreated(wallet.ID(), wallet.UserID())
		if err := uc.eventPublisher.Publish(txCtx, event); err != nil {
			return fmt.Errorf("failed to publish WalletCreated event: %w", err)
		}

		dto := dtos.ToWalletDTO(wallet)
		result = &dto
		return nil
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}
