package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// PixTransferStatus is the terminal-or-not state of a transfer attempt.
type PixTransferStatus string

const (
	PixTransferPending   PixTransferStatus = "PENDING"
	PixTransferConfirmed PixTransferStatus = "CONFIRMED"
	PixTransferRejected  PixTransferStatus = "REJECTED"
)

func (s PixTransferStatus) IsValid() bool {
	switch s {
	case PixTransferPending, PixTransferConfirmed, PixTransferRejected:
		return true
	default:
		return false
	}
}

func (s PixTransferStatus) IsTerminal() bool {
	return s == PixTransferConfirmed || s == PixTransferRejected
}

// PixTransfer is the state-machine record of one end-to-end transfer
// attempt. PENDING is the only non-terminal state; CONFIRMED and REJECTED
// are terminal and, once reached, never change (generalized from the
// reference's richer multi-state Transaction machine down to the two
// transitions this domain needs).
type PixTransfer struct {
	id              uuid.UUID
	endToEndID      string
	idempotencyKey  string
	fromWalletID    uuid.UUID
	toPixKey        string
	amountCents     int64
	status          PixTransferStatus
	rejectionReason string
	version         int64
	createdAt       time.Time
	confirmedAt     *time.Time
	rejectedAt      *time.Time
}

// NewPixTransfer creates a new PENDING transfer. amount must already satisfy
// Pix range validation (the caller validates via valueobjects.ValidatePixAmount).
func NewPixTransfer(endToEndID, idempotencyKey string, fromWalletID uuid.UUID, toPixKey string, amount valueobjects.Money) (*PixTransfer, error) {
	if endToEndID == "" {
		return nil, errors.ValidationError{Field: "endToEndID", Message: "endToEndID is required"}
	}
	if idempotencyKey == "" {
		return nil, errors.ValidationError{Field: "idempotencyKey", Message: "idempotencyKey is required"}
	}
	if toPixKey == "" {
		return nil, errors.ValidationError{Field: "toPixKey", Message: "toPixKey is required"}
	}
	if err := valueobjects.ValidatePixAmount(amount); err != nil {
		return nil, err
	}

	return &PixTransfer{
		id:             uuid.New(),
		endToEndID:     endToEndID,
		idempotencyKey: idempotencyKey,
		fromWalletID:   fromWalletID,
		toPixKey:       toPixKey,
		amountCents:    amount.Cents(),
		status:         PixTransferPending,
		version:        0,
		createdAt:      time.Now(),
	}, nil
}

// ReconstructPixTransfer hydrates a PixTransfer from storage.
func ReconstructPixTransfer(
	id uuid.UUID,
	endToEndID, idempotencyKey string,
	fromWalletID uuid.UUID,
	toPixKey string,
	amountCents int64,
	status PixTransferStatus,
	rejectionReason string,
	version int64,
	createdAt time.Time,
	confirmedAt, rejectedAt *time.Time,
) *PixTransfer {
	return &PixTransfer{
		id:              id,
		endToEndID:      endToEndID,
		idempotencyKey:  idempotencyKey,
		fromWalletID:    fromWalletID,
		toPixKey:        toPixKey,
		amountCents:     amountCents,
		status:          status,
		rejectionReason: rejectionReason,
		version:         version,
		createdAt:       createdAt,
		confirmedAt:     confirmedAt,
		rejectedAt:      rejectedAt,
	}
}

func (t *PixTransfer) ID() uuid.UUID              { return t.id }
func (t *PixTransfer) EndToEndID() string         { return t.endToEndID }
func (t *PixTransfer) IdempotencyKey() string     { return t.idempotencyKey }
func (t *PixTransfer) FromWalletID() uuid.UUID    { return t.fromWalletID }
func (t *PixTransfer) ToPixKey() string           { return t.toPixKey }
func (t *PixTransfer) Amount() valueobjects.Money { return valueobjects.FromMinorUnits(t.amountCents) }
func (t *PixTransfer) Status() PixTransferStatus  { return t.status }
func (t *PixTransfer) RejectionReason() string    { return t.rejectionReason }
func (t *PixTransfer) Version() int64             { return t.version }
func (t *PixTransfer) CreatedAt() time.Time       { return t.createdAt }
func (t *PixTransfer) ConfirmedAt() *time.Time    { return t.confirmedAt }
func (t *PixTransfer) RejectedAt() *time.Time     { return t.rejectedAt }

// Confirm transitions PENDING -> CONFIRMED. Any other starting state fails
// with ILLEGAL_STATE.
func (t *PixTransfer) Confirm() error {
	if t.status != PixTransferPending {
		return errors.NewDomainError(errors.CodeIllegalState, "cannot confirm a non-PENDING transfer", nil)
	}
	now := time.Now()
	t.status = PixTransferConfirmed
	t.confirmedAt = &now
	t.version++
	return nil
}

// Reject transitions PENDING -> REJECTED. Any other starting state fails
// with ILLEGAL_STATE.
func (t *PixTransfer) Reject(reason string) error {
	if t.status != PixTransferPending {
		return errors.NewDomainError(errors.CodeIllegalState, "cannot reject a non-PENDING transfer", nil)
	}
	now := time.Now()
	t.status = PixTransferRejected
	t.rejectedAt = &now
	t.rejectionReason = reason
	t.version++
	return nil
}
