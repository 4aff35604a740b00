package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/application/dtos"
	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/application/walletengine"
	"github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/events"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// WithdrawUseCase - use case для списания средств с кошелька
// (POST /wallets/{id}/withdraw). Delegates the mutation to the Wallet
// Engine, same as DepositUseCase.
type WithdrawUseCase struct {
	engine         *walletengine.Engine
	eventPublisher ports.EventPublisher
	logger         *slog.Logger
}

// NewWithdrawUseCase создаёт новый use case.
func NewWithdrawUseCase(engine *walletengine.Engine, eventPublisher ports.EventPublisher, logger *slog.Logger) *WithdrawUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &WithdrawUseCase{engine: engine, eventPublisher: eventPublisher, logger: logger}
}

// Execute выполняет списание с кошелька.
func (uc *WithdrawUseCase) Execute(ctx context.Context, cmd dtos.WithdrawCommand) (*dtos.WalletOperationDTO, error) {
	walletID, err := uuid.Parse(cmd.WalletID)
	if err != nil {
		return nil, errors.ValidationError{Field: "walletId", Message: "invalid UUID"}
	}

	amount, err := valueobjects.FromMajorUnitsString(cmd.Amount)
	if err != nil {
		return nil, errors.ValidationError{Field: "amount", Message: fmt.Sprintf("invalid amount: %v", err)}
	}
	if err := valueobjects.ValidatePixAmount(amount); err != nil {
		return nil, errors.ValidationError{Field: "amount", Message: err.Error()}
	}

	txID := uuid.New().String()
	wallet, err := uc.engine.Debit(ctx, walletID, amount, cmd.Description, txID)
	if err != nil {
		return nil, err
	}

	event := events.NewWalletDebited(walletID, amount, txID, wallet.Balance())
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		uc.logger.Warn("failed to publish WalletDebited event", "walletId", walletID, "error", err)
	}

	return &dtos.WalletOperationDTO{
		Wallet:  dtos.ToWalletDTO(wallet),
		Message: fmt.Sprintf("wallet debited with %s", amount.String()),
	}, nil
}
