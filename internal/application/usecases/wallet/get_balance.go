package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/application/dtos"
	"github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// balanceReader narrows walletengine.Engine to the two read paths this use
// case needs, so tests can substitute a stub without constructing a real
// Engine.
type balanceReader interface {
	Balance(ctx context.Context, walletID uuid.UUID) (valueobjects.Money, error)
	BalanceAt(ctx context.Context, walletID uuid.UUID, at time.Time) (valueobjects.Money, error)
}

// GetBalanceUseCase serves GET /wallets/{id}/balance?at=ISO8601?. A nil
// query.At returns the current balance; otherwise it returns the
// deterministic replay of the ledger up to that moment (§4.2 balanceAt).
type GetBalanceUseCase struct {
	engine balanceReader
	clock  ports.Clock
}

// NewGetBalanceUseCase creates a new use case.
func NewGetBalanceUseCase(engine balanceReader, clock ports.Clock) *GetBalanceUseCase {
	return &GetBalanceUseCase{engine: engine, clock: clock}
}

// Execute returns the wallet's current or historical balance.
func (uc *GetBalanceUseCase) Execute(ctx context.Context, query dtos.GetBalanceQuery) (*dtos.BalanceDTO, error) {
	walletID, err := uuid.Parse(query.WalletID)
	if err != nil {
		return nil, errors.ValidationError{Field: "walletId", Message: "invalid UUID"}
	}

	if query.At != nil {
		balance, err := uc.engine.BalanceAt(ctx, walletID, *query.At)
		if err != nil {
			return nil, fmt.Errorf("failed to load historical balance: %w", err)
		}
		return &dtos.BalanceDTO{
			WalletID:  query.WalletID,
			Balance:   balance.String(),
			Timestamp: *query.At,
		}, nil
	}

	balance, err := uc.engine.Balance(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	return &dtos.BalanceDTO{
		WalletID:  query.WalletID,
		Balance:   balance.String(),
		Timestamp: uc.clock.Now(),
	}, nil
}
