package pixtransfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pixwallet/ledger/internal/application/idempotency"
	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/domain/entities"
	domainerrors "github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

const (
	maxInitiateRetries = 3
	initiateBackoff    = 100 * time.Millisecond
	endToEndIDLength   = 18
)

// Orchestrator is the entry point for transfer initiation and inbound Pix
// network webhooks; it resolves the destination, derives a deterministic
// end-to-end id, and delegates the financial work to the Atomic Transfer
// Service.
type Orchestrator struct {
	idempotency *idempotency.Service
	pixKeyRepo  ports.PixKeyRepository
	atomic      *AtomicService
	clock       ports.Clock
	logger      *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(idempotencySvc *idempotency.Service, pixKeyRepo ports.PixKeyRepository, atomic *AtomicService, clock ports.Clock, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		idempotency: idempotencySvc,
		pixKeyRepo:  pixKeyRepo,
		atomic:      atomic,
		clock:       clock,
		logger:      logger,
	}
}

// deriveEndToEndID computes "E" + 13-digit millisecond timestamp + first 18
// hex characters of SHA-256(idempotencyKey). Deterministic in the
// idempotency key so retries of the same logical request always address
// the same transfer, per the open-question resolution adopted in place of
// a random identifier.
func deriveEndToEndID(idempotencyKey string, now time.Time) string {
	sum := sha256.Sum256([]byte(idempotencyKey))
	return fmt.Sprintf("E%013d%s", now.UnixMilli(), hex.EncodeToString(sum[:])[:endToEndIDLength])
}

// Initiate implements the initiation algorithm: short-circuit on a
// duplicate idempotency key, resolve the destination Pix key, derive the
// end-to-end id, and create the transfer, retrying a bounded number of
// times if a concurrent attempt wins the unique constraint first.
func (o *Orchestrator) Initiate(ctx context.Context, idempotencyKey string, fromWalletID uuid.UUID, toPixKey string, amount valueobjects.Money) (*entities.PixTransfer, error) {
	if rec, found, err := o.idempotency.Find(ctx, idempotency.ScopeTransfer, idempotencyKey); err != nil {
		return nil, err
	} else if found {
		return o.replayTransfer(ctx, rec)
	}

	destKey, err := o.pixKeyRepo.FindByValue(ctx, toPixKey)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			return nil, domainerrors.ErrDestinationNotFound
		}
		return nil, err
	}
	if !destKey.IsActive() {
		return nil, domainerrors.ErrDestinationNotFound
	}

	if err := valueobjects.ValidatePixAmount(amount); err != nil {
		return nil, err
	}

	endToEndID := deriveEndToEndID(idempotencyKey, o.clock.Now())

	var transfer *entities.PixTransfer
	var lastErr error
	for attempt := 0; attempt <= maxInitiateRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(initiateBackoff)
		}

		transfer, lastErr = o.atomic.CreateTransfer(ctx, endToEndID, idempotencyKey, fromWalletID, toPixKey, amount)
		if lastErr == nil {
			break
		}
		if !isDataIntegrityViolation(lastErr) {
			return nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if _, err := o.idempotency.SaveFirst(ctx, idempotency.ScopeTransfer, idempotencyKey, []byte(toPixKey), []byte(transfer.EndToEndID()), 201); err != nil {
		o.logger.Warn("failed to record transfer idempotency entry", "endToEndId", transfer.EndToEndID(), "error", err)
	}

	return transfer, nil
}

// replayTransfer re-reads the transfer recorded by a prior SaveFirst so a
// retried initiate request observes the same result without re-running
// the financial steps.
func (o *Orchestrator) replayTransfer(ctx context.Context, rec *idempotency.Record) (*entities.PixTransfer, error) {
	endToEndID := string(rec.ResponseBody)
	return o.atomic.transferRepo.FindByEndToEndID(ctx, endToEndID)
}

// HandleWebhook applies an inbound Pix network status event. Per §4.6, it
// is idempotent on eventId: a previously seen event is a no-op, an
// unrecognized eventType is logged and dropped with a 200-equivalent
// success, and an already-terminal or unknown transfer absorbs a false
// result from transitionTo as success (the desired end state is already
// reached).
func (o *Orchestrator) HandleWebhook(ctx context.Context, endToEndID, eventID, eventType string) error {
	if _, found, err := o.idempotency.Find(ctx, idempotency.ScopeWebhook, eventID); err != nil {
		return err
	} else if found {
		return nil
	}

	var target entities.PixTransferStatus
	switch eventType {
	case "CONFIRMED":
		target = entities.PixTransferConfirmed
	case "REJECTED":
		target = entities.PixTransferRejected
	default:
		o.logger.Warn("dropping webhook with unrecognized event type", "eventId", eventID, "eventType", eventType)
		target = ""
	}

	if target != "" {
		reason := "confirmed by Pix network webhook " + eventID
		if target == entities.PixTransferRejected {
			reason = "rejected by Pix network webhook " + eventID
		}
		if _, err := o.atomic.TransitionTo(ctx, endToEndID, target, reason); err != nil && !domainerrors.IsNotFound(err) {
			return err
		}
	}

	if _, err := o.idempotency.SaveFirst(ctx, idempotency.ScopeWebhook, eventID, []byte(endToEndID+":"+eventType), []byte("ok"), 200); err != nil {
		o.logger.Warn("failed to record webhook idempotency entry", "eventId", eventID, "error", err)
	}

	return nil
}
