package fetchkit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultOptimisticExpiry is how long an unconfirmed optimistic update stays
// tracked before being discarded.
const DefaultOptimisticExpiry = 30 * time.Second

// Update is a speculative state change applied before server confirmation.
type Update struct {
	ID        string
	Data      any
	Timestamp time.Time

	rollback func()
	timer    clockwork.Timer
}

// TrackerConfig configures a Tracker. Zero values select defaults.
type TrackerConfig struct {
	// Expiry bounds how long an unconfirmed update stays tracked.
	Expiry time.Duration
	// Clock drives expiry timers; defaults to the real clock.
	Clock clockwork.Clock
	// OnExpire is called when an update expires unconfirmed. Expiry discards
	// rollback tracking WITHOUT invoking the rollback closure, so a slow
	// request that eventually fails can no longer be reverted. That race is
	// inherited behavior; this hook makes it observable.
	OnExpire func(Update)
	// Metrics receives optimistic lifecycle counters; may be nil.
	Metrics *Collector
}

// Tracker records in-flight optimistic updates with their rollback closures.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	updates map[string]*Update

	expiry   time.Duration
	clock    clockwork.Clock
	onExpire func(Update)
	metrics  *Collector
}

// NewTracker creates a tracker.
func NewTracker(config TrackerConfig) *Tracker {
	if config.Expiry <= 0 {
		config.Expiry = DefaultOptimisticExpiry
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &Tracker{
		updates:  make(map[string]*Update),
		expiry:   config.Expiry,
		clock:    config.Clock,
		onExpire: config.OnExpire,
		metrics:  config.Metrics,
	}
}

// Add records an optimistic update and returns its id. rollback restores the
// pre-update state and is invoked by Rollback, never by expiry.
func (t *Tracker) Add(data any, rollback func()) string {
	id := uuid.NewString()

	t.mu.Lock()
	update := &Update{
		ID:        id,
		Data:      data,
		Timestamp: t.clock.Now(),
		rollback:  rollback,
	}
	update.timer = t.clock.AfterFunc(t.expiry, func() {
		t.expire(id)
	})
	t.updates[id] = update
	t.mu.Unlock()

	return id
}

// Confirm removes a tracked update after the real request succeeded.
// It reports whether the update was still tracked.
func (t *Tracker) Confirm(id string) bool {
	t.mu.Lock()
	update, exists := t.updates[id]
	if exists {
		delete(t.updates, id)
		update.timer.Stop()
	}
	t.mu.Unlock()
	return exists
}

// Rollback invokes the stored rollback closure and removes the update.
// It reports whether the update was still tracked; once an update has
// expired or been confirmed, Rollback is a no-op.
func (t *Tracker) Rollback(id string) bool {
	t.mu.Lock()
	update, exists := t.updates[id]
	if exists {
		delete(t.updates, id)
		update.timer.Stop()
	}
	t.mu.Unlock()

	if !exists {
		return false
	}
	if update.rollback != nil {
		update.rollback()
	}
	return true
}

func (t *Tracker) expire(id string) {
	t.mu.Lock()
	update, exists := t.updates[id]
	if exists {
		delete(t.updates, id)
	}
	t.mu.Unlock()

	if !exists {
		return
	}
	t.metrics.RecordOptimisticExpired()
	if t.onExpire != nil {
		t.onExpire(*update)
	}
}

// Updates returns a snapshot of the currently tracked updates.
func (t *Tracker) Updates() []Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Update, 0, len(t.updates))
	for _, u := range t.updates {
		out = append(out, *u)
	}
	return out
}

// Len reports the number of tracked updates.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.updates)
}
