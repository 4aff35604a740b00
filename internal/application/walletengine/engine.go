// Package walletengine applies one credit or debit to a wallet
// atomically and appends exactly one ledger entry per operation,
// per the component design's Wallet Engine contract.
package walletengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/domain/entities"
	domainerrors "github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
	"github.com/pixwallet/ledger/internal/pkg/tracing"
)

var tracer = tracing.Tracer("walletengine")

// Config tunes the Wallet Engine's lease discipline and
// retry-with-backoff behavior, per §4.2 and §5. Zero values fall back to
// the spec's defaults (10s/5s lease timeouts, 3 retries, 100ms backoff,
// 1000 wallet locks).
type Config struct {
	LeaseTimeout         time.Duration
	TransferLeaseTimeout time.Duration
	MaxRetries           int
	RetryBackoff         time.Duration
	MaxWalletLocks       int
}

func (c Config) withDefaults() Config {
	if c.LeaseTimeout <= 0 {
		c.LeaseTimeout = 10 * time.Second
	}
	if c.TransferLeaseTimeout <= 0 {
		c.TransferLeaseTimeout = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.MaxWalletLocks <= 0 {
		c.MaxWalletLocks = 1000
	}
	return c
}

// LedgerSummer is the subset of LedgerRepository the engine needs for
// historical balance replay, implemented by the Postgres ledger
// repository's SumBefore helper.
type LedgerSummer interface {
	SumBefore(ctx context.Context, walletID uuid.UUID, at time.Time) (int64, error)
}

// Engine implements the Wallet Engine component: per-wallet exclusion
// lease (in-process) + SERIALIZABLE transaction + pessimistic row lock +
// optimistic version, with retry-with-backoff on serialization failures.
type Engine struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	summer     LedgerSummer
	uowFactory ports.UnitOfWorkFactory
	cfg        Config

	leases *leaseMap
}

// NewEngine creates a new wallet Engine. summer may be nil; if so,
// BalanceAt falls back to loading every ledger entry and summing in
// memory.
func NewEngine(walletRepo ports.WalletRepository, ledgerRepo ports.LedgerRepository, summer LedgerSummer, uowFactory ports.UnitOfWorkFactory, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		summer:     summer,
		uowFactory: uowFactory,
		cfg:        cfg,
		leases:     newLeaseMap(cfg.MaxWalletLocks),
	}
}

// Credit increases walletId's balance by amount and appends a CREDIT
// ledger entry. Fails with WALLET_NOT_FOUND or INVALID_AMOUNT.
func (e *Engine) Credit(ctx context.Context, walletID uuid.UUID, amount valueobjects.Money, description, txID string) (*entities.Wallet, error) {
	return e.creditWithTimeout(ctx, walletID, amount, description, txID, e.cfg.LeaseTimeout)
}

// Debit decreases walletId's balance by amount and appends a DEBIT
// ledger entry whose signedAmount is negative. Additionally fails with
// INSUFFICIENT_FUNDS when current balance < amount.
func (e *Engine) Debit(ctx context.Context, walletID uuid.UUID, amount valueobjects.Money, description, txID string) (*entities.Wallet, error) {
	return e.debitWithTimeout(ctx, walletID, amount, description, txID, e.cfg.LeaseTimeout)
}

// CreditForTransfer and DebitForTransfer are the Atomic Transfer
// Service's entry points into the engine: per §5, lease acquisitions
// made from within a transfer (the initiation debit, the confirm
// credit, and the reject/compensation refund) use the shorter
// transfer-internal lease timeout instead of the wallet-ops one.
func (e *Engine) CreditForTransfer(ctx context.Context, walletID uuid.UUID, amount valueobjects.Money, description, txID string) (*entities.Wallet, error) {
	return e.creditWithTimeout(ctx, walletID, amount, description, txID, e.cfg.TransferLeaseTimeout)
}

func (e *Engine) DebitForTransfer(ctx context.Context, walletID uuid.UUID, amount valueobjects.Money, description, txID string) (*entities.Wallet, error) {
	return e.debitWithTimeout(ctx, walletID, amount, description, txID, e.cfg.TransferLeaseTimeout)
}

func (e *Engine) creditWithTimeout(ctx context.Context, walletID uuid.UUID, amount valueobjects.Money, description, txID string, leaseTimeout time.Duration) (*entities.Wallet, error) {
	return e.mutate(ctx, walletID, func(wallet *entities.Wallet) (entities.LedgerEntryType, valueobjects.Money, error) {
		if err := wallet.Credit(amount); err != nil {
			return "", valueobjects.Money{}, err
		}
		return entities.LedgerEntryCredit, amount, nil
	}, description, txID, leaseTimeout)
}

func (e *Engine) debitWithTimeout(ctx context.Context, walletID uuid.UUID, amount valueobjects.Money, description, txID string, leaseTimeout time.Duration) (*entities.Wallet, error) {
	return e.mutate(ctx, walletID, func(wallet *entities.Wallet) (entities.LedgerEntryType, valueobjects.Money, error) {
		if err := wallet.Debit(amount); err != nil {
			return "", valueobjects.Money{}, err
		}
		return entities.LedgerEntryDebit, amount.Negate(), nil
	}, description, txID, leaseTimeout)
}

// mutate runs the algorithm from §4.2: acquire the per-wallet exclusion
// lease, open a SERIALIZABLE transaction with a pessimistic write lock on
// the wallet row, apply the entity-level change, append the ledger entry,
// persist, and retry on serialization/version conflicts.
func (e *Engine) mutate(
	ctx context.Context,
	walletID uuid.UUID,
	apply func(*entities.Wallet) (entities.LedgerEntryType, valueobjects.Money, error),
	description, txID string,
	leaseTimeout time.Duration,
) (*entities.Wallet, error) {
	ctx, span := tracer.Start(ctx, "walletengine.mutate")
	span.SetAttributes(attribute.String("wallet.id", walletID.String()), attribute.String("transaction.id", txID))
	defer span.End()

	release, err := e.leases.acquire(walletID, leaseTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer release()

	var result *entities.Wallet

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(e.cfg.RetryBackoff)
		}

		uow := e.uowFactory.New()
		err := uow.ExecuteRequiresNew(ctx, func(txCtx context.Context) error {
			wallet, err := e.walletRepo.FindByIDForUpdate(txCtx, walletID)
			if err != nil {
				if domainerrors.IsNotFound(err) {
					return domainerrors.ErrWalletNotFound
				}
				return fmt.Errorf("failed to load wallet for update: %w", err)
			}

			entryType, signedAmount, err := apply(wallet)
			if err != nil {
				return err
			}

			entry, err := entities.NewLedgerEntry(walletID, entryType, signedAmount, description, txID, wallet.Balance())
			if err != nil {
				return fmt.Errorf("failed to build ledger entry: %w", err)
			}

			if err := e.ledgerRepo.Append(txCtx, entry); err != nil {
				return fmt.Errorf("failed to append ledger entry: %w", err)
			}

			if err := e.walletRepo.Save(txCtx, wallet); err != nil {
				return err
			}

			result = wallet
			return nil
		})

		if err == nil {
			return result, nil
		}

		if !isRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		lastErr = err
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "exhausted retries")
	return nil, domainerrors.NewDomainError(domainerrors.CodeTransientConflict, "wallet mutation failed after retries", lastErr)
}

func isRetryable(err error) bool {
	return domainerrors.IsConcurrencyError(err)
}

// Balance returns walletId's current balance.
func (e *Engine) Balance(ctx context.Context, walletID uuid.UUID) (valueobjects.Money, error) {
	wallet, err := e.walletRepo.FindByID(ctx, walletID)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			return valueobjects.Money{}, domainerrors.ErrWalletNotFound
		}
		return valueobjects.Money{}, err
	}
	return wallet.Balance(), nil
}

// BalanceAt returns the sum of signed ledger amounts with createdAt <= at:
// the deterministic replay of the ledger up to t, unaffected by entries
// appended afterward.
func (e *Engine) BalanceAt(ctx context.Context, walletID uuid.UUID, at time.Time) (valueobjects.Money, error) {
	if _, err := e.walletRepo.FindByID(ctx, walletID); err != nil {
		if domainerrors.IsNotFound(err) {
			return valueobjects.Money{}, domainerrors.ErrWalletNotFound
		}
		return valueobjects.Money{}, err
	}

	if e.summer != nil {
		sum, err := e.summer.SumBefore(ctx, walletID, at)
		if err != nil {
			return valueobjects.Money{}, err
		}
		return valueobjects.FromMinorUnits(sum), nil
	}

	var sum int64
	offset := 0
	const pageSize = 500
	for {
		entries, err := e.ledgerRepo.FindByWalletID(ctx, walletID, offset, pageSize)
		if err != nil {
			return valueobjects.Money{}, err
		}
		for _, entry := range entries {
			if !entry.CreatedAt().After(at) {
				sum += entry.SignedAmount().Cents()
			}
		}
		if len(entries) < pageSize {
			break
		}
		offset += pageSize
	}

	return valueobjects.FromMinorUnits(sum), nil
}
