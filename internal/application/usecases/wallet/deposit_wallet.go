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

// DepositUseCase - use case для пополнения кошелька наличными/внешним вводом
// средств (POST /wallets/{id}/deposit). В отличие от Pix-перевода, здесь нет
// второго кошелька и нет idempotency-key: повторный запрос создаёт новую
// ledger-запись, как любой другой внешний депозит. The mutation itself goes
// through the Wallet Engine, so a deposit gets the same per-wallet lease and
// retry-with-backoff discipline as a Pix transfer leg.
type DepositUseCase struct {
	engine         *walletengine.Engine
	eventPublisher ports.EventPublisher
	logger         *slog.Logger
}

// NewDepositUseCase создаёт новый use case.
func NewDepositUseCase(engine *walletengine.Engine, eventPublisher ports.EventPublisher, logger *slog.Logger) *DepositUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DepositUseCase{engine: engine, eventPublisher: eventPublisher, logger: logger}
}

// Execute выполняет пополнение кошелька.
func (uc *DepositUseCase) Execute(ctx context.Context, cmd dtos.DepositCommand) (*dtos.WalletOperationDTO, error) {
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
	wallet, err := uc.engine.Credit(ctx, walletID, amount, cmd.Description, txID)
	if err != nil {
		return nil, err
	}

	event := events.NewWalletCredited(walletID, amount, txID, wallet.Balance())
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		uc.logger.Warn("failed to publish WalletCredited event", "walletId", walletID, "error", err)
	}

	return &dtos.WalletOperationDTO{
		Wallet:  dtos.ToWalletDTO(wallet),
		Message: fmt.Sprintf("wallet credited with %s", amount.String()),
	}, nil
}
