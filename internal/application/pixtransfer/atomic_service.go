// Package pixtransfer implements the Atomic Transfer Service: transfer
// initiation and state transitions with their full financial effect, per
// the component design's §4.5.
package pixtransfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/application/walletengine"
	"github.com/pixwallet/ledger/internal/domain/entities"
	domainerrors "github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/events"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
	"github.com/pixwallet/ledger/internal/pkg/tracing"
)

var tracer = tracing.Tracer("pixtransfer")

const refundSuffix = "-REFUND"

// AtomicService initiates transfers and applies state transitions with
// the full financial effect, coordinating the Wallet Engine, the Pix
// transfer state machine, and the process-wide transfer-state map.
type AtomicService struct {
	transferRepo   ports.PixTransferRepository
	pixKeyRepo     ports.PixKeyRepository
	eventPublisher ports.EventPublisher
	uowFactory     ports.UnitOfWorkFactory
	engine         *walletengine.Engine

	states *stateMap
}

// NewAtomicService creates a new Atomic Transfer Service. cfg tunes the
// in-memory transfer-state map (§4.5's "In-memory bookkeeping"); a zero
// value falls back to the spec's defaults.
func NewAtomicService(
	transferRepo ports.PixTransferRepository,
	pixKeyRepo ports.PixKeyRepository,
	eventPublisher ports.EventPublisher,
	uowFactory ports.UnitOfWorkFactory,
	engine *walletengine.Engine,
	cfg StateConfig,
) *AtomicService {
	return &AtomicService{
		transferRepo:   transferRepo,
		pixKeyRepo:     pixKeyRepo,
		eventPublisher: eventPublisher,
		uowFactory:     uowFactory,
		engine:         engine,
		states:         newStateMap(cfg),
	}
}

// CreateTransfer implements §4.5's initiation algorithm. Preconditions
// (amount within Pix limits, toPixKey resolves to an active key) are the
// caller's (the Transfer Orchestrator's) responsibility.
func (s *AtomicService) CreateTransfer(ctx context.Context, endToEndID, idempotencyKey string, fromWalletID uuid.UUID, toPixKey string, amount valueobjects.Money) (*entities.PixTransfer, error) {
	ctx, span := tracer.Start(ctx, "pixtransfer.create_transfer")
	span.SetAttributes(attribute.String("pix.end_to_end_id", endToEndID), attribute.String("wallet.from_id", fromWalletID.String()))
	defer span.End()

	if existing, err := s.transferRepo.FindByIdempotencyKey(ctx, idempotencyKey); err == nil {
		return existing, nil
	} else if !domainerrors.IsNotFound(err) {
		return nil, err
	}

	if s.states.reserve(endToEndID) {
		existing, err := s.transferRepo.FindByEndToEndID(ctx, endToEndID)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}

	if _, err := s.engine.DebitForTransfer(ctx, fromWalletID, amount, "Pix transfer to "+toPixKey, endToEndID); err != nil {
		s.forgetReservation(endToEndID)
		return nil, err
	}

	transfer, err := entities.NewPixTransfer(endToEndID, idempotencyKey, fromWalletID, toPixKey, amount)
	if err != nil {
		s.compensate(ctx, fromWalletID, amount, endToEndID)
		return nil, err
	}

	uow := s.uowFactory.New()
	saveErr := uow.ExecuteRequiresNew(ctx, func(txCtx context.Context) error {
		if err := s.transferRepo.Save(txCtx, transfer); err != nil {
			return err
		}
		event := events.NewPixTransferInitiated(transfer.ID(), endToEndID, idempotencyKey, fromWalletID, toPixKey, amount)
		return s.eventPublisher.Publish(txCtx, event)
	})

	if saveErr != nil {
		if isDataIntegrityViolation(saveErr) {
			s.compensate(ctx, fromWalletID, amount, endToEndID)
			if existing, findErr := s.transferRepo.FindByIdempotencyKey(ctx, idempotencyKey); findErr == nil {
				return existing, nil
			}
			if existing, findErr := s.transferRepo.FindByEndToEndID(ctx, endToEndID); findErr == nil {
				return existing, nil
			}
		}
		return nil, saveErr
	}

	return transfer, nil
}

// forgetReservation removes the in-memory reservation after a failed
// debit so a later retry with the same endToEndId is not rejected
// spuriously.
func (s *AtomicService) forgetReservation(endToEndID string) {
	s.states.mu.Lock()
	delete(s.states.entries, endToEndID)
	s.states.mu.Unlock()
}

// compensate refunds fromWalletID after a lost race on the unique
// constraint, under the same per-wallet lease the original debit used.
func (s *AtomicService) compensate(ctx context.Context, fromWalletID uuid.UUID, amount valueobjects.Money, endToEndID string) {
	_, _ = s.engine.CreditForTransfer(ctx, fromWalletID, amount, "compensation refund for "+endToEndID, endToEndID+refundSuffix)
}

func isDataIntegrityViolation(err error) bool {
	domainErr, ok := asDomainError(err)
	return ok && domainErr.Code == domainerrors.CodeDataIntegrityViolation
}

func asDomainError(err error) (*domainerrors.DomainError, bool) {
	de, ok := err.(*domainerrors.DomainError)
	return de, ok
}

// TransitionTo implements §4.5's state-transition algorithm: CAS the
// in-memory status, then re-read+lock+persist in the database, then
// apply the post-commit financial effect exactly once.
func (s *AtomicService) TransitionTo(ctx context.Context, endToEndID string, target entities.PixTransferStatus, reason string) (bool, error) {
	ctx, span := tracer.Start(ctx, "pixtransfer.transition_to")
	span.SetAttributes(attribute.String("pix.end_to_end_id", endToEndID), attribute.String("pix.target_status", string(target)))
	defer span.End()

	if target != entities.PixTransferConfirmed && target != entities.PixTransferRejected {
		return false, domainerrors.NewDomainError(domainerrors.CodeIllegalState, "target status must be CONFIRMED or REJECTED", nil)
	}

	ok, err := s.states.casTo(endToEndID, entities.PixTransferPending, target, func() (entities.PixTransferStatus, time.Time, error) {
		transfer, err := s.transferRepo.FindByEndToEndID(ctx, endToEndID)
		if err != nil {
			return "", time.Time{}, err
		}
		return transfer.Status(), transfer.CreatedAt(), nil
	})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	var persisted *entities.PixTransfer
	uow := s.uowFactory.New()
	err = uow.ExecuteRequiresNew(ctx, func(txCtx context.Context) error {
		pgRepo, ok := s.transferRepo.(pixTransferForUpdateRepository)
		var transfer *entities.PixTransfer
		var loadErr error
		if ok {
			transfer, loadErr = pgRepo.FindByEndToEndIDForUpdate(txCtx, endToEndID)
		} else {
			transfer, loadErr = s.transferRepo.FindByEndToEndID(txCtx, endToEndID)
		}
		if loadErr != nil {
			return loadErr
		}

		if target == entities.PixTransferConfirmed {
			if err := transfer.Confirm(); err != nil {
				return err
			}
		} else {
			if err := transfer.Reject(reason); err != nil {
				return err
			}
		}

		if err := s.transferRepo.Save(txCtx, transfer); err != nil {
			return err
		}
		persisted = transfer
		return nil
	})

	if err != nil {
		// The in-memory CAS optimistically flipped; the database is
		// authoritative, so on failure here the transition did not
		// happen and no financial effect follows.
		return false, err
	}

	if err := s.applyFinancialEffect(ctx, persisted); err != nil {
		return false, err
	}

	return true, nil
}

// pixTransferForUpdateRepository is implemented by the Postgres
// PixTransferRepository; kept as a local interface so AtomicService does
// not depend on the infrastructure package directly.
type pixTransferForUpdateRepository interface {
	FindByEndToEndIDForUpdate(ctx context.Context, endToEndID string) (*entities.PixTransfer, error)
}

func (s *AtomicService) applyFinancialEffect(ctx context.Context, transfer *entities.PixTransfer) error {
	switch transfer.Status() {
	case entities.PixTransferConfirmed:
		destKey, err := s.pixKeyRepo.FindByValue(ctx, transfer.ToPixKey())
		if err != nil {
			return fmt.Errorf("failed to resolve destination pix key: %w", err)
		}

		if _, err := s.engine.CreditForTransfer(ctx, destKey.WalletID(), transfer.Amount(), "Pix transfer received", transfer.EndToEndID()); err != nil {
			return err
		}

		event := events.NewPixTransferConfirmed(transfer.ID(), transfer.EndToEndID(), transfer.FromWalletID(), destKey.WalletID(), transfer.Amount())
		return s.eventPublisher.Publish(ctx, event)

	case entities.PixTransferRejected:
		if _, err := s.engine.CreditForTransfer(ctx, transfer.FromWalletID(), transfer.Amount(), "Pix transfer rejected, refund", transfer.EndToEndID()+refundSuffix); err != nil {
			return err
		}

		event := events.NewPixTransferRejected(transfer.ID(), transfer.EndToEndID(), transfer.FromWalletID(), transfer.Amount(), transfer.RejectionReason())
		return s.eventPublisher.Publish(ctx, event)
	}

	return nil
}
