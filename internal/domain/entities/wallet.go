// Package entities - Wallet is the core entity for managing user balances.
// It enforces business rules around balance operations and status.
package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// WalletStatus represents the operational status of a wallet.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "ACTIVE"    // Normal operations allowed
	WalletStatusSuspended WalletStatus = "SUSPENDED" // Temporarily disabled
	WalletStatusLocked    WalletStatus = "LOCKED"    // Locked due to security/compliance
	WalletStatusClosed    WalletStatus = "CLOSED"    // Permanently closed
)

// IsValid checks if the wallet status is valid.
func (s WalletStatus) IsValid() bool {
	switch s {
	case WalletStatusActive, WalletStatusSuspended, WalletStatusLocked, WalletStatusClosed:
		return true
	default:
		return false
	}
}

// Wallet represents one user's balance. There is one wallet per user: the
// reference's one-wallet-per-currency model collapses here since multi-
// currency accounting is out of scope.
//
// Entity Pattern:
// - Has identity (ID)
// - Enforces invariants (balance never negative, status rules)
// - Rich behavior (not just data)
type Wallet struct {
	id     uuid.UUID
	userID string // opaque external user identifier

	balanceCents int64
	version      int64 // optimistic locking version, incremented by Credit/Debit and checked by the repository on save

	status WalletStatus

	createdAt time.Time
	updatedAt time.Time
}

// NewWallet creates a new wallet for a user. New wallets start ACTIVE with a
// zero balance; userID must be non-empty.
func NewWallet(userID string) (*Wallet, error) {
	if userID == "" {
		return nil, errors.ValidationError{
			Field:   "userID",
			Message: "userID is required",
		}
	}

	now := time.Now()
	return &Wallet{
		id:           uuid.New(),
		userID:       userID,
		balanceCents: 0,
		version:      0,
		status:       WalletStatusActive,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructWallet reconstructs a Wallet from stored data. Used by
// repositories to hydrate entities from the database.
func ReconstructWallet(
	id uuid.UUID,
	userID string,
	balanceCents int64,
	version int64,
	status WalletStatus,
	createdAt, updatedAt time.Time,
) *Wallet {
	return &Wallet{
		id:           id,
		userID:       userID,
		balanceCents: balanceCents,
		version:      version,
		status:       status,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// Getters

func (w *Wallet) ID() uuid.UUID { return w.id }

func (w *Wallet) UserID() string { return w.userID }

func (w *Wallet) Balance() valueobjects.Money { return valueobjects.FromMinorUnits(w.balanceCents) }

func (w *Wallet) BalanceCents() int64 { return w.balanceCents }

func (w *Wallet) Version() int64 { return w.version }

func (w *Wallet) Status() WalletStatus { return w.status }

func (w *Wallet) CreatedAt() time.Time { return w.createdAt }

func (w *Wallet) UpdatedAt() time.Time { return w.updatedAt }

// Business methods

// IsActive returns true if the wallet is active and can perform operations.
func (w *Wallet) IsActive() bool {
	return w.status == WalletStatusActive
}

// CanDebit checks if the wallet can be debited.
func (w *Wallet) CanDebit() error {
	if w.status != WalletStatusActive {
		return errors.ErrWalletNotActive
	}
	return nil
}

// CanCredit checks if the wallet can be credited.
// Business rule: active and suspended wallets can still receive credits
// (e.g. a refund); only closed wallets refuse.
func (w *Wallet) CanCredit() error {
	if w.status == WalletStatusClosed {
		return errors.NewBusinessRuleViolation(
			"WALLET_CLOSED",
			"cannot credit a closed wallet",
			map[string]interface{}{"walletID": w.id},
		)
	}
	return nil
}

// HasSufficientBalance checks if the wallet can cover amount.
func (w *Wallet) HasSufficientBalance(amount valueobjects.Money) bool {
	return w.balanceCents >= amount.Cents()
}

// Credit increases the balance by amount and bumps the optimistic version.
// The caller (Wallet Engine) is responsible for appending the corresponding
// LedgerEntry within the same transaction.
func (w *Wallet) Credit(amount valueobjects.Money) error {
	if err := w.CanCredit(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.NewDomainError(errors.CodeInvalidAmount, "credit amount must be positive", nil)
	}

	newBalance, err := valueobjects.FromMinorUnits(w.balanceCents).Add(amount)
	if err != nil {
		return errors.NewDomainError(errors.CodeInternalError, "balance overflow", err)
	}

	w.balanceCents = newBalance.Cents()
	w.version++
	w.updatedAt = time.Now()
	return nil
}

// Debit decreases the balance by amount and bumps the optimistic version.
func (w *Wallet) Debit(amount valueobjects.Money) error {
	if err := w.CanDebit(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.NewDomainError(errors.CodeInvalidAmount, "debit amount must be positive", nil)
	}
	if !w.HasSufficientBalance(amount) {
		return errors.ErrInsufficientFunds
	}

	newBalance, err := valueobjects.FromMinorUnits(w.balanceCents).Subtract(amount)
	if err != nil {
		return errors.NewDomainError(errors.CodeInternalError, "balance overflow", err)
	}

	w.balanceCents = newBalance.Cents()
	w.version++
	w.updatedAt = time.Now()
	return nil
}

// Status management

// Suspend temporarily disables the wallet.
func (w *Wallet) Suspend() error {
	if w.status == WalletStatusClosed {
		return errors.NewBusinessRuleViolation("CANNOT_SUSPEND_CLOSED_WALLET", "cannot suspend a closed wallet", nil)
	}
	w.status = WalletStatusSuspended
	w.updatedAt = time.Now()
	return nil
}

// Activate activates a suspended wallet.
func (w *Wallet) Activate() error {
	if w.status == WalletStatusClosed {
		return errors.NewBusinessRuleViolation("CANNOT_ACTIVATE_CLOSED_WALLET", "cannot activate a closed wallet", nil)
	}
	w.status = WalletStatusActive
	w.updatedAt = time.Now()
	return nil
}

// Lock locks the wallet (security/compliance).
func (w *Wallet) Lock() error {
	w.status = WalletStatusLocked
	w.updatedAt = time.Now()
	return nil
}

// Close permanently closes the wallet. Business rule: balance must be zero.
func (w *Wallet) Close() error {
	if w.balanceCents != 0 {
		return errors.NewBusinessRuleViolation(
			"CANNOT_CLOSE_NON_ZERO_WALLET",
			"cannot close wallet with non-zero balance",
			map[string]interface{}{"balance": w.balanceCents},
		)
	}
	w.status = WalletStatusClosed
	w.updatedAt = time.Now()
	return nil
}
