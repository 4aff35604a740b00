package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pixwallet/ledger/internal/application/ports"
	domainErrors "github.com/pixwallet/ledger/internal/domain/errors"
)

// fixedClock is a ports.Clock with a value the test controls explicitly,
// so record expiry and cache TTL can be exercised deterministically.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockIdempotencyRepo struct {
	mu          sync.Mutex
	records     map[string]ports.IdempotencyRecord
	insertFunc  func(ctx context.Context, record ports.IdempotencyRecord) error
	insertCalls int
}

func newMockIdempotencyRepo() *mockIdempotencyRepo {
	return &mockIdempotencyRepo{records: make(map[string]ports.IdempotencyRecord)}
}

func (m *mockIdempotencyRepo) Insert(ctx context.Context, record ports.IdempotencyRecord) error {
	m.mu.Lock()
	m.insertCalls++
	m.mu.Unlock()

	if m.insertFunc != nil {
		return m.insertFunc(ctx, record)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.Key]; exists {
		return domainErrors.ErrEntityAlreadyExists
	}
	m.records[record.Key] = record
	return nil
}

func (m *mockIdempotencyRepo) FindByKey(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, domainErrors.ErrEntityNotFound
	}
	return &rec, nil
}

func (m *mockIdempotencyRepo) DeleteOlderThan(ctx context.Context, cutoffSeconds int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for k, rec := range m.records {
		if rec.CreatedAt < cutoffSeconds {
			delete(m.records, k)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockIdempotencyRepo) seed(key string, rec ports.IdempotencyRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = rec
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

func TestService_SaveFirst_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	repo := newMockIdempotencyRepo()
	clock := newFixedClock(time.Now())
	svc := NewService(repo, passthroughUoWFactory{}, clock, Config{})

	rec, err := svc.SaveFirst(ctx, ScopeTransfer, "key-1", []byte("req"), []byte("resp"), 201)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if rec.ResponseStatus != 201 {
		t.Errorf("expected status 201, got %d", rec.ResponseStatus)
	}
	if string(rec.ResponseBody) != "resp" {
		t.Errorf("expected response body %q, got %q", "resp", rec.ResponseBody)
	}
	if repo.insertCalls != 1 {
		t.Errorf("expected exactly 1 Insert call, got %d", repo.insertCalls)
	}
}

// TestService_SaveFirst_ConcurrentWinnerResolution verifies that when the
// database Insert loses a race (a concurrent attempt already won and
// inserted the row), SaveFirst resolves by re-reading and returning the
// winner's record rather than propagating the AlreadyExists error.
func TestService_SaveFirst_ConcurrentWinnerResolution(t *testing.T) {
	ctx := context.Background()
	repo := newMockIdempotencyRepo()
	clock := newFixedClock(time.Now())

	winnerKey := ScopeTransfer + ":key-2"

	// Insert stores the winner's row and reports that the row already
	// exists, simulating a concurrent attempt that committed first between
	// our cache/store check and our own insert.
	repo.insertFunc = func(ctx context.Context, record ports.IdempotencyRecord) error {
		repo.seed(winnerKey, ports.IdempotencyRecord{
			Key:            winnerKey,
			RequestHash:    Fingerprint([]byte("winner-req")),
			ResponseStatus: 201,
			ResponseBody:   []byte("winner-resp"),
			CreatedAt:      clock.Now().Unix(),
		})
		return domainErrors.ErrEntityAlreadyExists
	}

	svc := NewService(repo, passthroughUoWFactory{}, clock, Config{})

	rec, err := svc.SaveFirst(ctx, ScopeTransfer, "key-2", []byte("loser-req"), []byte("loser-resp"), 201)
	if err != nil {
		t.Fatalf("expected the losing call to resolve to the winner, got error: %v", err)
	}
	if string(rec.ResponseBody) != "winner-resp" {
		t.Errorf("expected winner's response body %q, got %q", "winner-resp", rec.ResponseBody)
	}
}

// TestService_SaveFirst_CacheShortCircuitsSecondCall verifies the
// double-checked cache: a second SaveFirst for the same key does not
// reach the repository again.
func TestService_SaveFirst_CacheShortCircuitsSecondCall(t *testing.T) {
	ctx := context.Background()
	repo := newMockIdempotencyRepo()
	clock := newFixedClock(time.Now())
	svc := NewService(repo, passthroughUoWFactory{}, clock, Config{})

	if _, err := svc.SaveFirst(ctx, ScopeTransfer, "key-3", []byte("req"), []byte("resp"), 201); err != nil {
		t.Fatalf("first SaveFirst failed: %v", err)
	}
	if _, err := svc.SaveFirst(ctx, ScopeTransfer, "key-3", []byte("req"), []byte("resp"), 201); err != nil {
		t.Fatalf("second SaveFirst failed: %v", err)
	}

	if repo.insertCalls != 1 {
		t.Errorf("expected only 1 Insert call across both SaveFirst calls, got %d", repo.insertCalls)
	}
}

func TestService_Find_MissingRecord(t *testing.T) {
	ctx := context.Background()
	repo := newMockIdempotencyRepo()
	clock := newFixedClock(time.Now())
	svc := NewService(repo, passthroughUoWFactory{}, clock, Config{})

	_, found, err := svc.Find(ctx, ScopeTransfer, "absent")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if found {
		t.Error("expected found=false for a missing record")
	}
}

func TestService_Find_ExpiredRecordIsTreatedAsMissing(t *testing.T) {
	ctx := context.Background()
	repo := newMockIdempotencyRepo()
	clock := newFixedClock(time.Now())

	key := ScopeTransfer + ":stale"
	repo.seed(key, ports.IdempotencyRecord{
		Key:            key,
		RequestHash:    Fingerprint([]byte("req")),
		ResponseStatus: 200,
		ResponseBody:   []byte("resp"),
		CreatedAt:      clock.Now().Add(-48 * time.Hour).Unix(),
	})

	svc := NewService(repo, passthroughUoWFactory{}, clock, Config{RecordTTL: 24 * time.Hour})

	_, found, err := svc.Find(ctx, ScopeTransfer, "stale")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if found {
		t.Error("expected an expired record to be treated as not found")
	}
}

func TestValidateMatches(t *testing.T) {
	rec := Record{RequestHash: Fingerprint([]byte("body-a"))}
	if !ValidateMatches(rec, []byte("body-a")) {
		t.Error("expected matching request body to validate")
	}
	if ValidateMatches(rec, []byte("body-b")) {
		t.Error("expected mismatched request body to fail validation")
	}
}
