package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// LedgerEntryType distinguishes a credit from a debit.
type LedgerEntryType string

const (
	LedgerEntryCredit LedgerEntryType = "CREDIT"
	LedgerEntryDebit  LedgerEntryType = "DEBIT"
)

func (t LedgerEntryType) IsValid() bool {
	return t == LedgerEntryCredit || t == LedgerEntryDebit
}

// LedgerEntry is an immutable record of one balance change on one wallet.
// Entries are appended under the wallet's exclusion lease and pessimistic
// row lock; they are never mutated or deleted once committed.
type LedgerEntry struct {
	id                 uuid.UUID
	walletID           uuid.UUID
	signedAmountCents  int64
	entryType          LedgerEntryType
	description        string
	transactionID      string
	balanceAfterCents  int64
	createdAt          time.Time
}

// NewLedgerEntry constructs one ledger entry. entryType CREDIT requires a
// positive signedAmountCents; DEBIT requires a negative one.
func NewLedgerEntry(
	walletID uuid.UUID,
	entryType LedgerEntryType,
	signedAmount valueobjects.Money,
	description, transactionID string,
	balanceAfter valueobjects.Money,
) (*LedgerEntry, error) {
	if !entryType.IsValid() {
		return nil, errors.ValidationError{Field: "entryType", Message: "invalid ledger entry type"}
	}
	if entryType == LedgerEntryCredit && !signedAmount.IsPositive() {
		return nil, errors.ValidationError{Field: "signedAmount", Message: "CREDIT entries must have a positive amount"}
	}
	if entryType == LedgerEntryDebit && !signedAmount.IsNegative() {
		return nil, errors.ValidationError{Field: "signedAmount", Message: "DEBIT entries must have a negative amount"}
	}
	if transactionID == "" {
		return nil, errors.ValidationError{Field: "transactionID", Message: "transactionID is required"}
	}

	return &LedgerEntry{
		id:                uuid.New(),
		walletID:          walletID,
		signedAmountCents: signedAmount.Cents(),
		entryType:         entryType,
		description:       description,
		transactionID:     transactionID,
		balanceAfterCents: balanceAfter.Cents(),
		createdAt:         time.Now(),
	}, nil
}

// ReconstructLedgerEntry hydrates a LedgerEntry from storage.
func ReconstructLedgerEntry(
	id, walletID uuid.UUID,
	signedAmountCents int64,
	entryType LedgerEntryType,
	description, transactionID string,
	balanceAfterCents int64,
	createdAt time.Time,
) *LedgerEntry {
	return &LedgerEntry{
		id:                id,
		walletID:          walletID,
		signedAmountCents: signedAmountCents,
		entryType:         entryType,
		description:       description,
		transactionID:     transactionID,
		balanceAfterCents: balanceAfterCents,
		createdAt:         createdAt,
	}
}

func (e *LedgerEntry) ID() uuid.UUID              { return e.id }
func (e *LedgerEntry) WalletID() uuid.UUID        { return e.walletID }
func (e *LedgerEntry) SignedAmount() valueobjects.Money {
	return valueobjects.FromMinorUnits(e.signedAmountCents)
}
func (e *LedgerEntry) Type() LedgerEntryType          { return e.entryType }
func (e *LedgerEntry) Description() string            { return e.description }
func (e *LedgerEntry) TransactionID() string          { return e.transactionID }
func (e *LedgerEntry) BalanceAfter() valueobjects.Money {
	return valueobjects.FromMinorUnits(e.balanceAfterCents)
}
func (e *LedgerEntry) CreatedAt() time.Time { return e.createdAt }
