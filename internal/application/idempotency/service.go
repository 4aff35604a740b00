// Package idempotency implements the idempotency store described in the
// core component design: at most one "first processing" per (scope, key),
// with later attempts replaying the same stored response.
//
// Grounded on the teacher's rate-limit middleware idiom (mutex-guarded
// map + background cleanup goroutine): here the map caches idempotency
// records and leases a per-key mutex instead of request counters, and
// stale entries are evicted eagerly when a map reaches capacity rather
// than by a background goroutine.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pixwallet/ledger/internal/application/ports"
	domainerrors "github.com/pixwallet/ledger/internal/domain/errors"
)

const (
	// ScopeTransfer is used for Pix transfer initiation requests.
	ScopeTransfer = "transfer"
	// ScopeWebhook is used for inbound Pix network webhook events.
	ScopeWebhook = "webhook"
)

// Config tunes the Idempotency Service's cache, lease map, and record
// retention, per §4.3. Zero values fall back to the spec's defaults
// (24h record lifetime, 30m cache TTL, 5000 cache entries, 1000 leases).
type Config struct {
	RecordTTL    time.Duration
	CacheTTL     time.Duration
	CacheMaxSize int
	LockMaxSize  int
}

func (c Config) withDefaults() Config {
	if c.RecordTTL <= 0 {
		c.RecordTTL = 24 * time.Hour
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Minute
	}
	if c.CacheMaxSize <= 0 {
		c.CacheMaxSize = 5000
	}
	if c.LockMaxSize <= 0 {
		c.LockMaxSize = 1000
	}
	return c
}

// Record is a saved idempotent result, keyed by scope+key.
type Record struct {
	Scope          string
	Key            string
	RequestHash    string
	ResponseStatus int
	ResponseBody   []byte
	CreatedAt      time.Time
}

// IsExpired reports whether the record is past ttl since creation.
func (r Record) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.CreatedAt) > ttl
}

type cacheEntry struct {
	record    Record
	expiresAt time.Time
}

type keyLease struct {
	mu       sync.Mutex
	lastUsed time.Time
}

// Service implements the double-checked idempotency algorithm from the
// component design: an in-process cache and a bounded per-key lease map
// accelerate the common case, but the database's unique constraint on
// (scope, key) is the only thing that can ever be relied on for
// correctness.
type Service struct {
	repo       ports.IdempotencyRepository
	uowFactory ports.UnitOfWorkFactory
	clock      ports.Clock
	cfg        Config

	mu    sync.Mutex
	cache map[string]*cacheEntry

	leaseMu sync.Mutex
	leases  map[string]*keyLease
}

// NewService creates a new idempotency Service. cfg's zero value falls
// back to the spec's defaults.
func NewService(repo ports.IdempotencyRepository, uowFactory ports.UnitOfWorkFactory, clock ports.Clock, cfg Config) *Service {
	return &Service{
		repo:       repo,
		uowFactory: uowFactory,
		clock:      clock,
		cfg:        cfg.withDefaults(),
		cache:      make(map[string]*cacheEntry),
		leases:     make(map[string]*keyLease),
	}
}

// Fingerprint computes the SHA-256 hex digest of a request body. This is
// the "key fingerprint" compared by ValidateMatches.
func Fingerprint(requestBody []byte) string {
	sum := sha256.Sum256(requestBody)
	return hex.EncodeToString(sum[:])
}

func cacheKey(scope, key string) string {
	return scope + ":" + key
}

// Find returns a non-expired record if one exists, for the read-only
// short-circuit path (e.g. initiate() checking for an existing transfer).
func (s *Service) Find(ctx context.Context, scope, key string) (*Record, bool, error) {
	ck := cacheKey(scope, key)
	now := s.clock.Now()

	if rec, ok := s.getFromCache(ck, now); ok {
		return rec, true, nil
	}

	stored, err := s.repo.FindByKey(ctx, ck)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	rec := recordFromStorage(scope, key, stored)
	if rec.IsExpired(now, s.cfg.RecordTTL) {
		return nil, false, nil
	}

	s.putInCache(ck, rec, now)
	return &rec, true, nil
}

// SaveFirst implements the double-checked write algorithm from §4.3:
// acquire a per-key lease, check the cache, check the store, and finally
// insert inside a REQUIRES_NEW SERIALIZABLE transaction. If a concurrent
// winner already inserted the row, the unique-constraint violation is
// resolved by re-reading the winning record.
func (s *Service) SaveFirst(ctx context.Context, scope, key string, requestBody, responseBody []byte, responseStatus int) (Record, error) {
	ck := cacheKey(scope, key)
	lease := s.acquireLease(ck)
	defer s.releaseLease(ck, lease)

	lease.mu.Lock()
	defer lease.mu.Unlock()

	now := s.clock.Now()

	if rec, ok := s.getFromCache(ck, now); ok {
		return *rec, nil
	}

	if stored, err := s.repo.FindByKey(ctx, ck); err == nil {
		rec := recordFromStorage(scope, key, stored)
		if !rec.IsExpired(now, s.cfg.RecordTTL) {
			s.putInCache(ck, &rec, now)
			return rec, nil
		}
	} else if !domainerrors.IsNotFound(err) {
		return Record{}, err
	}

	rec := Record{
		Scope:          scope,
		Key:            key,
		RequestHash:    Fingerprint(requestBody),
		ResponseStatus: responseStatus,
		ResponseBody:   responseBody,
		CreatedAt:      now,
	}

	uow := s.uowFactory.New()
	err := uow.ExecuteRequiresNew(ctx, func(txCtx context.Context) error {
		return s.repo.Insert(txCtx, ports.IdempotencyRecord{
			Key:            ck,
			RequestHash:    rec.RequestHash,
			ResponseStatus: rec.ResponseStatus,
			ResponseBody:   rec.ResponseBody,
			CreatedAt:      rec.CreatedAt.Unix(),
		})
	})

	if err != nil {
		if domainerrors.IsAlreadyExists(err) {
			stored, findErr := s.repo.FindByKey(ctx, ck)
			if findErr != nil {
				return Record{}, findErr
			}
			winner := recordFromStorage(scope, key, stored)
			s.putInCache(ck, &winner, now)
			return winner, nil
		}
		return Record{}, err
	}

	s.putInCache(ck, &rec, now)
	return rec, nil
}

// ValidateMatches compares the SHA-256 of requestBody against the
// record's stored RequestHash.
func ValidateMatches(record Record, requestBody []byte) bool {
	return record.RequestHash == Fingerprint(requestBody)
}

// CleanupExpired removes cache entries and database rows whose
// expiresAt (createdAt + 24h) is past. Intended to run on a schedule.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.clock.Now()

	s.mu.Lock()
	for k, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	return s.repo.DeleteOlderThan(ctx, now.Add(-s.cfg.RecordTTL).Unix())
}

func (s *Service) getFromCache(ck string, now time.Time) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[ck]
	if !ok {
		return nil, false
	}
	if now.After(entry.expiresAt) {
		delete(s.cache, ck)
		return nil, false
	}
	rec := entry.record
	return &rec, true
}

func (s *Service) putInCache(ck string, rec *Record, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cache) >= s.cfg.CacheMaxSize {
		s.evictExpiredLocked(now)
	}

	s.cache[ck] = &cacheEntry{record: *rec, expiresAt: now.Add(s.cfg.CacheTTL)}
}

// evictExpiredLocked drops expired entries; caller holds s.mu.
func (s *Service) evictExpiredLocked(now time.Time) {
	for k, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.cache, k)
		}
	}
}

func (s *Service) acquireLease(ck string) *keyLease {
	s.leaseMu.Lock()
	defer s.leaseMu.Unlock()

	if len(s.leases) >= s.cfg.LockMaxSize {
		s.evictOldestLeaseLocked()
	}

	lease, ok := s.leases[ck]
	if !ok {
		lease = &keyLease{}
		s.leases[ck] = lease
	}
	lease.lastUsed = s.clock.Now()
	return lease
}

func (s *Service) releaseLease(ck string, lease *keyLease) {
	s.leaseMu.Lock()
	defer s.leaseMu.Unlock()
	lease.lastUsed = s.clock.Now()
}

// evictOldestLeaseLocked drops the least-recently-used lease; caller
// holds s.leaseMu. Mirrors the bounded-map eviction the rate limiter's
// cleanup goroutine performs on a timer, done here eagerly at capacity.
func (s *Service) evictOldestLeaseLocked() {
	var oldestKey string
	var oldestTime time.Time
	for k, lease := range s.leases {
		if oldestKey == "" || lease.lastUsed.Before(oldestTime) {
			oldestKey = k
			oldestTime = lease.lastUsed
		}
	}
	if oldestKey != "" {
		delete(s.leases, oldestKey)
	}
}

func recordFromStorage(scope, key string, stored *ports.IdempotencyRecord) Record {
	return Record{
		Scope:          scope,
		Key:            key,
		RequestHash:    stored.RequestHash,
		ResponseStatus: stored.ResponseStatus,
		ResponseBody:   stored.ResponseBody,
		CreatedAt:      time.Unix(stored.CreatedAt, 0),
	}
}
