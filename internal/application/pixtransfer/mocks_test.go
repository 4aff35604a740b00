package pixtransfer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/application/walletengine"
	"github.com/pixwallet/ledger/internal/domain/entities"
	domainErrors "github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/events"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// mockWalletRepo and mockLedgerRepo back a real *walletengine.Engine so
// TransitionTo's financial effect runs through the actual mutate
// algorithm instead of a stubbed-out engine.
type mockWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*entities.Wallet
}

func newMockWalletRepo(wallets ...*entities.Wallet) *mockWalletRepo {
	r := &mockWalletRepo{wallets: make(map[uuid.UUID]*entities.Wallet)}
	for _, w := range wallets {
		r.wallets[w.ID()] = w
	}
	return r
}

func (m *mockWalletRepo) Save(ctx context.Context, wallet *entities.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[wallet.ID()] = wallet
	return nil
}

func (m *mockWalletRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	return m.FindByIDForUpdate(ctx, id)
}

func (m *mockWalletRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, domainErrors.ErrEntityNotFound
	}
	return w, nil
}

func (m *mockWalletRepo) FindByUserID(ctx context.Context, userID string) (*entities.Wallet, error) {
	return nil, domainErrors.ErrEntityNotFound
}

func (m *mockWalletRepo) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

func (m *mockWalletRepo) List(ctx context.Context, filter ports.WalletFilter, offset, limit int) ([]*entities.Wallet, error) {
	return nil, nil
}

type mockLedgerRepo struct {
	mu      sync.Mutex
	entries []*entities.LedgerEntry
}

func (m *mockLedgerRepo) Append(ctx context.Context, entry *entities.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockLedgerRepo) FindByWalletID(ctx context.Context, walletID uuid.UUID, offset, limit int) ([]*entities.LedgerEntry, error) {
	return nil, nil
}

func (m *mockLedgerRepo) FindByTransactionID(ctx context.Context, transactionID string) ([]*entities.LedgerEntry, error) {
	return nil, nil
}

func (m *mockLedgerRepo) countByType(walletID uuid.UUID, t entities.LedgerEntryType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.WalletID() == walletID && e.Type() == t {
			n++
		}
	}
	return n
}

type passthroughUoW struct{}

func (passthroughUoW) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (passthroughUoW) ExecuteWithResult(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	return fn(ctx)
}

func (passthroughUoW) ExecuteRequiresNew(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type passthroughUoWFactory struct{}

func (passthroughUoWFactory) New() ports.UnitOfWork { return passthroughUoW{} }

func newTestEngine(walletRepo ports.WalletRepository, ledgerRepo ports.LedgerRepository) *walletengine.Engine {
	return walletengine.NewEngine(walletRepo, ledgerRepo, nil, passthroughUoWFactory{}, walletengine.Config{
		RetryBackoff: time.Millisecond,
	})
}

type mockPixTransferRepo struct {
	mu            sync.Mutex
	byEndToEndID  map[string]*entities.PixTransfer
	byIdemKey     map[string]*entities.PixTransfer
	findByE2EFunc func(ctx context.Context, endToEndID string) (*entities.PixTransfer, error)
}

func newMockPixTransferRepo() *mockPixTransferRepo {
	return &mockPixTransferRepo{
		byEndToEndID: make(map[string]*entities.PixTransfer),
		byIdemKey:    make(map[string]*entities.PixTransfer),
	}
}

func (m *mockPixTransferRepo) Save(ctx context.Context, transfer *entities.PixTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEndToEndID[transfer.EndToEndID()] = transfer
	m.byIdemKey[transfer.IdempotencyKey()] = transfer
	return nil
}

func (m *mockPixTransferRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.PixTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byEndToEndID {
		if t.ID() == id {
			return t, nil
		}
	}
	return nil, domainErrors.ErrEntityNotFound
}

func (m *mockPixTransferRepo) FindByEndToEndID(ctx context.Context, endToEndID string) (*entities.PixTransfer, error) {
	if m.findByE2EFunc != nil {
		return m.findByE2EFunc(ctx, endToEndID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byEndToEndID[endToEndID]
	if !ok {
		return nil, domainErrors.ErrEntityNotFound
	}
	return t, nil
}

func (m *mockPixTransferRepo) FindByIdempotencyKey(ctx context.Context, key string) (*entities.PixTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byIdemKey[key]
	if !ok {
		return nil, domainErrors.ErrEntityNotFound
	}
	return t, nil
}

func (m *mockPixTransferRepo) FindPendingOlderThan(ctx context.Context, cutoffSeconds int, limit int) ([]*entities.PixTransfer, error) {
	return nil, nil
}

type mockPixKeyRepo struct {
	mu   sync.Mutex
	keys map[string]*entities.PixKey
}

func newMockPixKeyRepo(keys ...*entities.PixKey) *mockPixKeyRepo {
	r := &mockPixKeyRepo{keys: make(map[string]*entities.PixKey)}
	for _, k := range keys {
		r.keys[k.KeyValue()] = k
	}
	return r
}

func (m *mockPixKeyRepo) Save(ctx context.Context, key *entities.PixKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key.KeyValue()] = key
	return nil
}

func (m *mockPixKeyRepo) FindByValue(ctx context.Context, keyValue string) (*entities.PixKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[keyValue]
	if !ok {
		return nil, domainErrors.ErrEntityNotFound
	}
	return k, nil
}

func (m *mockPixKeyRepo) FindByWalletID(ctx context.Context, walletID uuid.UUID) ([]*entities.PixKey, error) {
	return nil, nil
}

func (m *mockPixKeyRepo) ExistsByValue(ctx context.Context, keyValue string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[keyValue]
	return ok, nil
}

type mockEventPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (m *mockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evts...)
	return nil
}

func (m *mockEventPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func newMoneyForTest(cents int64) valueobjects.Money {
	return valueobjects.FromMinorUnits(cents)
}
