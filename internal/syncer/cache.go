package syncer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
)

// View identifies one of the three read projections.
type View string

const (
	ViewList      View = "list"
	ViewCalendar  View = "calendar"
	ViewDashboard View = "dashboard"
)

// QuerySignature is the full cache key for a projection read: the view plus
// every filter and pagination parameter. Two reads with different filters
// hold independent cache entries even when they overlap.
type QuerySignature struct {
	View       View
	Status     models.SessionStatus
	DateFilter string
	WorkoutID  uuid.UUID
	Page       int
	Limit      int
}

// Key returns the canonical map key for the signature.
func (q QuerySignature) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d", q.View, q.Status, q.DateFilter, q.WorkoutID, q.Page, q.Limit)
}

// Snapshot is the exact pre-mutation value of one cache entry, captured
// before an optimistic apply and restored verbatim on rollback.
type Snapshot struct {
	Signature QuerySignature
	Previous  any
	Existed   bool
}

type cacheEntry struct {
	sig       QuerySignature
	value     any
	fetchedAt time.Time
	stale     bool
}

// CacheStore holds the client's projection caches. It is an explicit value
// passed by reference so synchronization logic stays independently testable;
// there is no package-level instance.
type CacheStore struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCacheStore creates a CacheStore whose entries expire after ttl.
func NewCacheStore(ttl time.Duration) *CacheStore {
	return &CacheStore{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for sig, or (nil, false) when the entry is
// absent, stale or past its TTL.
func (c *CacheStore) Get(sig QuerySignature) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sig.Key()]
	if !ok || e.stale || c.now().Sub(e.fetchedAt) > c.ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores a fresh value for sig.
func (c *CacheStore) Set(sig QuerySignature, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sig.Key()] = &cacheEntry{sig: sig, value: value, fetchedAt: c.now()}
}

// Invalidate marks a single entry stale.
func (c *CacheStore) Invalidate(sig QuerySignature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[sig.Key()]; ok {
		e.stale = true
	}
}

// MarkStale marks every entry matching pred stale, so the next read
// refetches from the canonical source.
func (c *CacheStore) MarkStale(pred func(QuerySignature) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if pred(e.sig) {
			e.stale = true
		}
	}
}

// SnapshotMatching captures the current value of every entry matching pred.
// The returned snapshots restore together or not at all.
func (c *CacheStore) SnapshotMatching(pred func(QuerySignature) bool) []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var snaps []Snapshot
	for _, e := range c.entries {
		if pred(e.sig) {
			snaps = append(snaps, Snapshot{Signature: e.sig, Previous: e.value, Existed: true})
		}
	}
	return snaps
}

// Restore puts every captured snapshot back verbatim. Entries created after
// the capture for the same signatures are overwritten; fetchedAt is reset so
// the restored value stays readable.
func (c *CacheStore) Restore(snaps []Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range snaps {
		if !s.Existed {
			delete(c.entries, s.Signature.Key())
			continue
		}
		c.entries[s.Signature.Key()] = &cacheEntry{
			sig:       s.Signature,
			value:     s.Previous,
			fetchedAt: c.now(),
		}
	}
}

// Apply replaces the value of an existing entry in place, keeping its
// fetchedAt. Used for optimistic updates so TTL expiry still dates from the
// last authoritative fetch.
func (c *CacheStore) Apply(sig QuerySignature, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[sig.Key()]; ok {
		e.value = value
	}
}
