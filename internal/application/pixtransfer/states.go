package pixtransfer

import (
	"sync"
	"time"

	"github.com/pixwallet/ledger/internal/domain/entities"
)

// StateConfig tunes the in-memory transfer-state map's TTL, cleanup
// cadence, and soft cap, per §4.5's "In-memory bookkeeping" and
// MAX_TRANSFER_STATES. Zero values fall back to the spec's defaults.
type StateConfig struct {
	StateTTL          time.Duration
	CleanupInterval   time.Duration
	MaxTransferStates int
}

func (c StateConfig) withDefaults() StateConfig {
	if c.StateTTL <= 0 {
		c.StateTTL = 60 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 15 * time.Minute
	}
	if c.MaxTransferStates <= 0 {
		c.MaxTransferStates = 10000
	}
	return c
}

// transferState is the process-wide bookkeeping entry the component
// design calls endToEndId -> (statusRef, createdAt, lastAccess). The
// database row is always authoritative; this is an accelerator for the
// compare-and-set in transitionTo, rebuilt from storage on miss.
type transferState struct {
	mu         sync.Mutex
	status     entities.PixTransferStatus
	createdAt  time.Time
	lastAccess time.Time
}

// stateMap implements the in-memory transfer-state map from §4.5,
// grounded on the same bucket-map-plus-cleanup-goroutine idiom as the
// teacher's rate limiter and the wallet engine's lease map.
type stateMap struct {
	mu      sync.Mutex
	entries map[string]*transferState
	cfg     StateConfig
}

func newStateMap(cfg StateConfig) *stateMap {
	cfg = cfg.withDefaults()
	sm := &stateMap{entries: make(map[string]*transferState), cfg: cfg}
	go sm.cleanup()
	return sm
}

// reserve creates a PENDING entry for endToEndId if none exists, and
// reports whether it already existed (a concurrent initiator won the
// race).
func (sm *stateMap) reserve(endToEndID string) (existed bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.entries) >= sm.cfg.MaxTransferStates {
		sm.evictOldestLocked()
	}

	if _, ok := sm.entries[endToEndID]; ok {
		return true
	}

	now := time.Now()
	sm.entries[endToEndID] = &transferState{
		status:     entities.PixTransferPending,
		createdAt:  now,
		lastAccess: now,
	}
	return false
}

// casTo compares the in-memory status against from and swaps to to,
// loading from loader (the database) if the entry is missing or expired.
// Returns false if the CAS fails: concurrent terminal transition, or the
// entry was not in the "from" state.
func (sm *stateMap) casTo(endToEndID string, from, to entities.PixTransferStatus, loader func() (entities.PixTransferStatus, time.Time, error)) (bool, error) {
	entry, err := sm.getOrLoad(endToEndID, loader)
	if err != nil {
		return false, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.status != from {
		return false, nil
	}
	entry.status = to
	entry.lastAccess = time.Now()
	return true, nil
}

func (sm *stateMap) getOrLoad(endToEndID string, loader func() (entities.PixTransferStatus, time.Time, error)) (*transferState, error) {
	sm.mu.Lock()
	entry, ok := sm.entries[endToEndID]
	expired := ok && time.Since(entry.lastAccess) > sm.cfg.StateTTL
	sm.mu.Unlock()

	if ok && !expired {
		sm.touch(endToEndID)
		return entry, nil
	}

	status, createdAt, err := loader()
	if err != nil {
		return nil, err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.entries) >= sm.cfg.MaxTransferStates {
		sm.evictOldestLocked()
	}
	entry = &transferState{status: status, createdAt: createdAt, lastAccess: time.Now()}
	sm.entries[endToEndID] = entry
	return entry, nil
}

func (sm *stateMap) touch(endToEndID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if entry, ok := sm.entries[endToEndID]; ok {
		entry.lastAccess = time.Now()
	}
}

// evictOldestLocked drops the least-recently-accessed entry; caller
// holds sm.mu.
func (sm *stateMap) evictOldestLocked() {
	var oldestID string
	var oldestTime time.Time
	found := false
	for id, entry := range sm.entries {
		if !found || entry.lastAccess.Before(oldestTime) {
			oldestID, oldestTime, found = id, entry.lastAccess, true
		}
	}
	if found {
		delete(sm.entries, oldestID)
	}
}

func (sm *stateMap) cleanup() {
	ticker := time.NewTicker(sm.cfg.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		sm.mu.Lock()
		now := time.Now()
		for id, entry := range sm.entries {
			entry.mu.Lock()
			terminal := entry.status != entities.PixTransferPending
			idle := now.Sub(entry.lastAccess)
			evict := idle > sm.cfg.StateTTL || (terminal && idle > sm.cfg.CleanupInterval)
			entry.mu.Unlock()
			if evict {
				delete(sm.entries, id)
			}
		}
		sm.mu.Unlock()
	}
}
