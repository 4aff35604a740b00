package pixtransfer

import (
	"context"
	"testing"

	"github.com/pixwallet/ledger/internal/domain/entities"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

func newTestAtomicService(
	transferRepo *mockPixTransferRepo,
	pixKeyRepo *mockPixKeyRepo,
	walletRepo *mockWalletRepo,
	ledgerRepo *mockLedgerRepo,
	eventPublisher *mockEventPublisher,
) *AtomicService {
	engine := newTestEngine(walletRepo, ledgerRepo)
	return NewAtomicService(transferRepo, pixKeyRepo, eventPublisher, passthroughUoWFactory{}, engine, StateConfig{})
}

// TestAtomicService_TransitionTo_ConfirmedCreditsDestinationExactlyOnce
// verifies §4.5/§4.6's exactly-once guarantee: a CONFIRMED transition
// credits the destination wallet exactly one ledger entry, even though
// TransitionTo is invoked twice for the same end-to-end id (e.g. a
// retried webhook delivery).
func TestAtomicService_TransitionTo_ConfirmedCreditsDestinationExactlyOnce(t *testing.T) {
	ctx := context.Background()

	fromWallet, _ := entities.NewWallet("sender")
	toWallet, _ := entities.NewWallet("receiver")
	destKey, _ := entities.NewPixKey("receiver@example.com", valueobjects.PixKeyEmail, toWallet.ID())

	walletRepo := newMockWalletRepo(fromWallet, toWallet)
	ledgerRepo := &mockLedgerRepo{}
	pixKeyRepo := newMockPixKeyRepo(destKey)
	transferRepo := newMockPixTransferRepo()
	eventPublisher := &mockEventPublisher{}

	amount := newMoneyForTest(1000)
	transfer, err := entities.NewPixTransfer("E001", "idem-1", fromWallet.ID(), destKey.KeyValue(), amount)
	if err != nil {
		t.Fatalf("failed to build transfer fixture: %v", err)
	}
	if err := transferRepo.Save(ctx, transfer); err != nil {
		t.Fatalf("failed to seed transfer: %v", err)
	}

	svc := newTestAtomicService(transferRepo, pixKeyRepo, walletRepo, ledgerRepo, eventPublisher)

	ok, err := svc.TransitionTo(ctx, "E001", entities.PixTransferConfirmed, "")
	if err != nil {
		t.Fatalf("expected no error on first transition, got: %v", err)
	}
	if !ok {
		t.Fatal("expected first transition to succeed")
	}

	// A second attempt at the same transition must not apply the
	// financial effect again: the in-memory CAS has already moved past
	// PENDING.
	ok, err = svc.TransitionTo(ctx, "E001", entities.PixTransferConfirmed, "")
	if err != nil {
		t.Fatalf("expected no error on repeated transition, got: %v", err)
	}
	if ok {
		t.Error("expected the repeated transition to report no-op (ok=false)")
	}

	if got := ledgerRepo.countByType(toWallet.ID(), entities.LedgerEntryCredit); got != 1 {
		t.Errorf("expected exactly 1 CREDIT ledger entry on destination wallet, got %d", got)
	}
	if eventPublisher.count() != 1 {
		t.Errorf("expected exactly 1 published event, got %d", eventPublisher.count())
	}
}

// TestAtomicService_TransitionTo_RejectedRefundsSourceExactlyOnce mirrors
// the CONFIRMED case for the REJECTED path: exactly one refund credit
// lands on the source wallet.
func TestAtomicService_TransitionTo_RejectedRefundsSourceExactlyOnce(t *testing.T) {
	ctx := context.Background()

	fromWallet, _ := entities.NewWallet("sender-2")
	toWallet, _ := entities.NewWallet("receiver-2")
	destKey, _ := entities.NewPixKey("receiver2@example.com", valueobjects.PixKeyEmail, toWallet.ID())

	walletRepo := newMockWalletRepo(fromWallet, toWallet)
	ledgerRepo := &mockLedgerRepo{}
	pixKeyRepo := newMockPixKeyRepo(destKey)
	transferRepo := newMockPixTransferRepo()
	eventPublisher := &mockEventPublisher{}

	amount := newMoneyForTest(2500)
	transfer, err := entities.NewPixTransfer("E002", "idem-2", fromWallet.ID(), destKey.KeyValue(), amount)
	if err != nil {
		t.Fatalf("failed to build transfer fixture: %v", err)
	}
	if err := transferRepo.Save(ctx, transfer); err != nil {
		t.Fatalf("failed to seed transfer: %v", err)
	}

	svc := newTestAtomicService(transferRepo, pixKeyRepo, walletRepo, ledgerRepo, eventPublisher)

	ok, err := svc.TransitionTo(ctx, "E002", entities.PixTransferRejected, "destination inactive")
	if err != nil {
		t.Fatalf("expected no error on first transition, got: %v", err)
	}
	if !ok {
		t.Fatal("expected first transition to succeed")
	}

	ok, err = svc.TransitionTo(ctx, "E002", entities.PixTransferRejected, "destination inactive")
	if err != nil {
		t.Fatalf("expected no error on repeated transition, got: %v", err)
	}
	if ok {
		t.Error("expected the repeated transition to report no-op (ok=false)")
	}

	if got := ledgerRepo.countByType(fromWallet.ID(), entities.LedgerEntryCredit); got != 1 {
		t.Errorf("expected exactly 1 refund CREDIT entry on source wallet, got %d", got)
	}
	if eventPublisher.count() != 1 {
		t.Errorf("expected exactly 1 published event, got %d", eventPublisher.count())
	}
}

func TestAtomicService_TransitionTo_RejectsInvalidTargetStatus(t *testing.T) {
	ctx := context.Background()
	walletRepo := newMockWalletRepo()
	ledgerRepo := &mockLedgerRepo{}
	pixKeyRepo := newMockPixKeyRepo()
	transferRepo := newMockPixTransferRepo()
	eventPublisher := &mockEventPublisher{}

	svc := newTestAtomicService(transferRepo, pixKeyRepo, walletRepo, ledgerRepo, eventPublisher)

	_, err := svc.TransitionTo(ctx, "E003", entities.PixTransferPending, "")
	if err == nil {
		t.Fatal("expected an error for a non-terminal target status")
	}
}

func TestAtomicService_CreateTransfer_DuplicateIdempotencyKeyReplaysExisting(t *testing.T) {
	ctx := context.Background()

	fromWallet, _ := entities.NewWallet("sender-3")
	walletRepo := newMockWalletRepo(fromWallet)
	ledgerRepo := &mockLedgerRepo{}
	pixKeyRepo := newMockPixKeyRepo()
	transferRepo := newMockPixTransferRepo()
	eventPublisher := &mockEventPublisher{}

	amount := newMoneyForTest(500)
	existing, _ := entities.NewPixTransfer("E004", "idem-4", fromWallet.ID(), "dest@example.com", amount)
	if err := transferRepo.Save(ctx, existing); err != nil {
		t.Fatalf("failed to seed transfer: %v", err)
	}

	svc := newTestAtomicService(transferRepo, pixKeyRepo, walletRepo, ledgerRepo, eventPublisher)

	result, err := svc.CreateTransfer(ctx, "E999", "idem-4", fromWallet.ID(), "dest@example.com", amount)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.EndToEndID() != "E004" {
		t.Errorf("expected the existing transfer to be replayed, got end-to-end id %s", result.EndToEndID())
	}
	if ledgerRepo.countByType(fromWallet.ID(), entities.LedgerEntryDebit) != 0 {
		t.Error("expected no new debit for a duplicate idempotency key")
	}
}
