package attempts

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

const shardCount = 32

// Observer receives tracker events. It is called outside of any shard lock.
type Observer interface {
	FailureRecorded()
	LockoutStarted()
	Swept(removed int, took time.Duration)
}

// Snapshot is the read-only view handed to the admin and health surfaces.
type Snapshot struct {
	Enabled                bool `json:"enabled"`
	MaxAttempts            int  `json:"maxAttempts"`
	LockoutDurationMinutes int  `json:"lockoutDurationMinutes"`
	TrackedIdentifiers     int  `json:"currentTrackedIdentifiers"`
}

type shard struct {
	lock    sync.RWMutex
	records map[string]Record
}

// Tracker counts consecutive authentication failures per identifier and decides whether an identifier is currently
// locked out. Records live in a fixed set of shards so unrelated identifiers never contend on the same lock. Stale
// records are swept opportunistically from RecordFailure and IsBlocked, at most once per cleanup interval.
type Tracker struct {
	config Config
	now    func() time.Time

	shards [shardCount]*shard

	// unix nanos of the last sweep
	lastCleanup atomic.Int64

	observer Observer
}

type Option func(t *Tracker)

// WithClock replaces time.Now. Tests use this to move time around without sleeping.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		t.observer = o
	}
}

func NewTracker(config Config, opts ...Option) *Tracker {
	t := &Tracker{
		config: config,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	for i := range t.shards {
		t.shards[i] = &shard{records: make(map[string]Record)}
	}

	t.lastCleanup.Store(t.now().UnixNano())

	return t
}

func (t *Tracker) shardFor(identifier string) *shard {
	return t.shards[xxhash.Sum64String(identifier)%shardCount]
}

// RecordFailure counts one failed attempt for identifier. The read-modify-write happens under the shard lock so
// concurrent failures for the same identifier are never lost.
func (t *Tracker) RecordFailure(identifier string) {
	if !t.config.Enabled {
		return
	}

	t.maybeSweep()

	lockout := t.config.lockoutDuration()
	s := t.shardFor(identifier)

	s.lock.Lock()
	now := t.now()
	updated := s.records[identifier].next(now, lockout)
	s.records[identifier] = updated
	s.lock.Unlock()

	log.Debug().Str("identifier", identifier).Int("failure_count", updated.FailureCount).Msg("recorded authentication failure")

	if t.observer != nil {
		t.observer.FailureRecorded()
		if updated.FailureCount == t.config.MaxAttempts {
			t.observer.LockoutStarted()
		}
	}

	if updated.FailureCount == t.config.MaxAttempts {
		log.Warn().Str("identifier", identifier).Int("lockout_duration_minutes", t.config.LockoutDurationMinutes).Msg("identifier locked out after repeated failures")
	}
}

// RecordSuccess forgets every failure for identifier.
func (t *Tracker) RecordSuccess(identifier string) {
	if !t.config.Enabled {
		return
	}

	t.remove(identifier)
}

func (t *Tracker) IsBlocked(identifier string) bool {
	blocked, _ := t.BlockedFor(identifier)
	return blocked
}

// BlockedFor reports whether identifier is locked out and for how many more seconds, both read from the same record
// under one lock. A blocked identifier always has a positive retry time.
func (t *Tracker) BlockedFor(identifier string) (bool, int64) {
	if !t.config.Enabled {
		return false, 0
	}

	t.maybeSweep()

	s := t.shardFor(identifier)

	s.lock.Lock()
	defer s.lock.Unlock()

	r, found := s.records[identifier]
	if !found {
		return false, 0
	}

	now := t.now()
	if r.expired(now, t.config.lockoutDuration()) {
		delete(s.records, identifier)
		return false, 0
	}

	if r.FailureCount < t.config.MaxAttempts {
		return false, 0
	}

	remaining := r.remainingLockout(now, t.config.LockoutDurationMinutes, t.config.MaxAttempts)
	return true, int64(remaining / time.Second)
}

// RemainingLockoutSeconds is zero until the identifier has reached the failure threshold. There is no partial
// backoff below it.
func (t *Tracker) RemainingLockoutSeconds(identifier string) int64 {
	if !t.config.Enabled {
		return 0
	}

	r, found := t.get(identifier)
	if !found {
		return 0
	}

	remaining := r.remainingLockout(t.now(), t.config.LockoutDurationMinutes, t.config.MaxAttempts)

	return int64(remaining / time.Second)
}

func (t *Tracker) AttemptCount(identifier string) int {
	if !t.config.Enabled {
		return 0
	}

	r, _ := t.get(identifier)
	return r.FailureCount
}

// Clear drops the history for identifier regardless of whether rate limiting is enabled.
func (t *Tracker) Clear(identifier string) {
	t.remove(identifier)
	log.Info().Str("identifier", identifier).Msg("cleared authentication attempts")
}

// ClearAll drops every record regardless of whether rate limiting is enabled.
func (t *Tracker) ClearAll() {
	cleared := 0
	for _, s := range t.shards {
		s.lock.Lock()
		cleared += len(s.records)
		s.records = make(map[string]Record)
		s.lock.Unlock()
	}

	log.Info().Int("cleared", cleared).Msg("cleared all authentication attempts")
}

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Enabled:                t.config.Enabled,
		MaxAttempts:            t.config.MaxAttempts,
		LockoutDurationMinutes: t.config.LockoutDurationMinutes,
		TrackedIdentifiers:     t.TrackedIdentifiers(),
	}
}

func (t *Tracker) TrackedIdentifiers() int {
	total := 0
	for _, s := range t.shards {
		s.lock.RLock()
		total += len(s.records)
		s.lock.RUnlock()
	}
	return total
}

func (t *Tracker) get(identifier string) (Record, bool) {
	s := t.shardFor(identifier)

	s.lock.RLock()
	defer s.lock.RUnlock()

	r, found := s.records[identifier]
	return r, found
}

func (t *Tracker) remove(identifier string) {
	s := t.shardFor(identifier)

	s.lock.Lock()
	delete(s.records, identifier)
	s.lock.Unlock()
}

// maybeSweep runs a sweep if the cleanup interval has passed since the last one. Only the caller that wins the CAS
// on lastCleanup does the work; everyone else returns immediately.
func (t *Tracker) maybeSweep() {
	now := t.now()
	last := t.lastCleanup.Load()

	if now.Sub(time.Unix(0, last)) < t.config.cleanupInterval() {
		return
	}

	if !t.lastCleanup.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	t.sweep(now)
}

func (t *Tracker) sweep(now time.Time) int {
	start := time.Now()
	lockout := t.config.lockoutDuration()
	removed := 0

	for _, s := range t.shards {
		s.lock.Lock()
		for identifier, r := range s.records {
			if r.expired(now, lockout) {
				delete(s.records, identifier)
				removed++
			}
		}
		s.lock.Unlock()
	}

	took := time.Since(start)
	log.Debug().Int("removed", removed).Dur("took", took).Msg("swept expired authentication attempts")

	if t.observer != nil {
		t.observer.Swept(removed, took)
	}

	return removed
}
