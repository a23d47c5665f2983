package fetchkit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mokwathedeveloper/fetchkit/internal/backoff"
)

// Fetcher executes a typed request with retries, caching, deduplication and
// optimistic updates layered around it. It is safe for concurrent use; a new
// Execute call aborts the previous in-flight one for the same instance, so
// only the newest call's result commits to state.
type Fetcher[T any] struct {
	fn       RequestFunc[T]
	cfg      settings
	strategy backoff.Strategy

	validationError error

	onSuccess            func(T)
	onError              func(error)
	onOptimisticUpdate   func(T)
	onOptimisticRollback func(prev T, cause error)

	mu     sync.Mutex
	snap   Snapshot[T]
	cancel context.CancelFunc
	gen    uint64
}

// NewFetcher constructs a Fetcher around fn using the provided options.
// Validation is best effort; call IsValid / ValidationError for errors, or
// let the first Execute surface them.
func NewFetcher[T any](fn RequestFunc[T], options ...Option) *Fetcher[T] {
	cfg := defaultSettings()
	for _, option := range options {
		option(&cfg)
	}

	f := &Fetcher[T]{
		fn:  fn,
		cfg: cfg,
	}
	f.snap.State = StateIdle

	switch cfg.strategy {
	case DecorrelatedJitter:
		f.strategy = backoff.Decorrelated{}
	default:
		f.strategy = backoff.Exponential{}
	}

	if err := cfg.validate(); err != nil {
		f.validationError = err
	}

	if f.cfg.tracker == nil && f.validationError == nil {
		f.cfg.tracker = NewTracker(TrackerConfig{
			Expiry:  f.cfg.optimisticExpiry,
			Clock:   f.cfg.clock,
			Metrics: f.cfg.metrics,
		})
	}

	return f
}

// OnSuccess registers a callback fired after a fetch commits successfully.
func (f *Fetcher[T]) OnSuccess(fn func(T)) *Fetcher[T] {
	f.onSuccess = fn
	return f
}

// OnError registers a callback fired with the final error once the retry
// budget is exhausted. Intermediate failures and aborts never reach it.
func (f *Fetcher[T]) OnError(fn func(error)) *Fetcher[T] {
	f.onError = fn
	return f
}

// OnOptimisticUpdate registers a callback fired when speculative data is
// applied by ExecuteOptimistic.
func (f *Fetcher[T]) OnOptimisticUpdate(fn func(T)) *Fetcher[T] {
	f.onOptimisticUpdate = fn
	return f
}

// OnOptimisticRollback registers a callback fired after a failed optimistic
// request reverts state. It receives the restored data and the cause.
func (f *Fetcher[T]) OnOptimisticRollback(fn func(prev T, cause error)) *Fetcher[T] {
	f.onOptimisticRollback = fn
	return f
}

// IsValid reports whether configuration validation passed at construction.
func (f *Fetcher[T]) IsValid() bool {
	return f.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (f *Fetcher[T]) ValidationError() error {
	return f.validationError
}

// Snapshot returns a copy of the current state.
func (f *Fetcher[T]) Snapshot() Snapshot[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// State returns the current lifecycle state.
func (f *Fetcher[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.State
}

// Tracker exposes the optimistic update tracker for inspection.
func (f *Fetcher[T]) Tracker() *Tracker {
	return f.cfg.tracker
}

// Invalidate drops the cached entry for this Fetcher's key, forcing the next
// Execute to hit the network.
func (f *Fetcher[T]) Invalidate() {
	if f.cfg.cache != nil {
		f.cfg.cache.Delete(f.cfg.key)
	}
}

// begin supersedes any in-flight execute: the previous context is canceled
// and a new generation opened. Only the newest generation may commit state.
func (f *Fetcher[T]) begin(ctx context.Context) (context.Context, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	cctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.gen++
	return cctx, f.gen
}

// commit applies a state mutation if gen is still current.
func (f *Fetcher[T]) commit(gen uint64, mutate func(*Snapshot[T])) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.gen {
		return false
	}
	mutate(&f.snap)
	f.snap.UpdatedAt = f.cfg.clock.Now()
	return true
}

// Execute runs the request applying cache, deduplication and retry layers.
// If a fresh cache entry exists and stale-while-revalidate is disabled the
// cached payload is returned without touching the network. A superseded call
// returns ErrAborted and commits nothing.
func (f *Fetcher[T]) Execute(ctx context.Context) (T, error) {
	var zero T
	if f.validationError != nil {
		return zero, f.validationError
	}

	ctx, gen := f.begin(ctx)
	start := f.cfg.clock.Now()
	f.cfg.metrics.RecordFetchStart(f.cfg.key)
	defer f.cfg.metrics.RecordFetchEnd(f.cfg.key)

	if f.cfg.cache != nil {
		if entry, found := f.cfg.cache.Get(f.cfg.key); found {
			var cached T
			if err := json.Unmarshal(entry.Data, &cached); err == nil {
				f.cfg.metrics.RecordCacheHit(f.cfg.key)
				if !f.cfg.swr {
					f.debugLog("cache hit", "ttl", entry.TTL)
					f.commit(gen, func(s *Snapshot[T]) {
						s.State = StateSuccess
						s.Data = cached
						s.Err = nil
						s.IsStale = false
					})
					f.cfg.metrics.RecordFetch(f.cfg.key, "cached", f.cfg.clock.Since(start))
					return cached, nil
				}

				f.debugLog("serving stale, revalidating")
				f.cfg.metrics.RecordStaleServe(f.cfg.key)
				f.commit(gen, func(s *Snapshot[T]) {
					s.State = StateSuccess
					s.Data = cached
					s.Err = nil
					s.IsStale = true
				})
				go f.revalidate(ctx, gen)
				return cached, nil
			}
			// Undecodable entry; drop it and fetch.
			f.cfg.cache.Delete(f.cfg.key)
		}
		f.cfg.metrics.RecordCacheMiss(f.cfg.key)
	}

	f.commit(gen, func(s *Snapshot[T]) {
		s.State = StateLoading
		s.Err = nil
	})

	value, err := f.fetch(ctx, gen)
	if err != nil {
		if f.aborted(ctx, err) {
			f.debugLog("execute aborted")
			return zero, ErrAborted
		}
		f.fail(gen, err)
		f.cfg.metrics.RecordFetch(f.cfg.key, "error", f.cfg.clock.Since(start))
		return zero, err
	}

	f.succeed(gen, value)
	f.cfg.metrics.RecordFetch(f.cfg.key, "success", f.cfg.clock.Since(start))
	return value, nil
}

// ExecuteOptimistic applies optimistic data to state immediately and
// dispatches the real request. On failure the previous data is restored via
// the tracked rollback closure and OnOptimisticRollback fires exactly once.
// On success or failure the tracked entry is removed; an entry unconfirmed
// after the expiry window is discarded without rollback.
func (f *Fetcher[T]) ExecuteOptimistic(ctx context.Context, optimistic T) (T, error) {
	var zero T
	if f.validationError != nil {
		return zero, f.validationError
	}

	ctx, gen := f.begin(ctx)
	start := f.cfg.clock.Now()
	f.cfg.metrics.RecordFetchStart(f.cfg.key)
	defer f.cfg.metrics.RecordFetchEnd(f.cfg.key)

	f.mu.Lock()
	prev := f.snap.Data
	f.snap.Data = optimistic
	f.snap.State = StateLoading
	f.snap.Err = nil
	f.snap.UpdatedAt = f.cfg.clock.Now()
	f.mu.Unlock()

	id := f.cfg.tracker.Add(optimistic, func() {
		f.commit(gen, func(s *Snapshot[T]) {
			s.Data = prev
		})
	})
	f.cfg.metrics.RecordOptimisticApplied(f.cfg.key)
	f.debugLog("optimistic update applied", "updateID", id)
	if f.onOptimisticUpdate != nil {
		f.onOptimisticUpdate(optimistic)
	}

	// Mutations bypass deduplication: coalescing a write onto a concurrent
	// read for the same key would drop the write.
	value, err := f.fetchWithRetry(ctx, gen)
	if err != nil {
		if f.aborted(ctx, err) {
			// Superseded; leave the entry for the expiry window to discard.
			return zero, ErrAborted
		}
		if f.cfg.tracker.Rollback(id) {
			f.cfg.metrics.RecordOptimisticRollback(f.cfg.key)
			f.debugLog("optimistic update rolled back", "updateID", id)
			if f.onOptimisticRollback != nil {
				f.onOptimisticRollback(prev, err)
			}
		}
		f.fail(gen, err)
		f.cfg.metrics.RecordFetch(f.cfg.key, "error", f.cfg.clock.Since(start))
		return zero, err
	}

	f.cfg.tracker.Confirm(id)
	f.succeed(gen, value)
	f.cfg.metrics.RecordFetch(f.cfg.key, "success", f.cfg.clock.Since(start))
	return value, nil
}

// revalidate refreshes a stale entry in the background. A failed refresh
// keeps serving the stale data; the error is still committed and surfaced
// through OnError.
func (f *Fetcher[T]) revalidate(ctx context.Context, gen uint64) {
	start := f.cfg.clock.Now()
	value, err := f.fetch(ctx, gen)
	if err != nil {
		if f.aborted(ctx, err) {
			return
		}
		f.fail(gen, err)
		f.cfg.metrics.RecordFetch(f.cfg.key, "error", f.cfg.clock.Since(start))
		return
	}
	f.succeed(gen, value)
	f.cfg.metrics.RecordFetch(f.cfg.key, "refresh", f.cfg.clock.Since(start))
}

// fetch coalesces onto an in-flight call when a Deduplicator is configured,
// otherwise fetches directly.
func (f *Fetcher[T]) fetch(ctx context.Context, gen uint64) (T, error) {
	var zero T
	if f.cfg.dedup == nil {
		return f.fetchWithRetry(ctx, gen)
	}

	for {
		entry, owner := f.cfg.dedup.GetOrCreateEntry(f.cfg.key)
		if owner {
			value, err := f.fetchWithRetry(ctx, gen)
			f.cfg.dedup.Complete(f.cfg.key, value, err)
			return value, err
		}

		f.cfg.metrics.RecordDedupHit(f.cfg.key)
		f.debugLog("coalesced onto in-flight request")
		value, err := entry.Wait(ctx)
		if err != nil {
			// The owner was aborted but this caller is live: the key is free
			// again, so contend for ownership instead of inheriting the abort.
			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				continue
			}
			return zero, err
		}
		typed, ok := value.(T)
		if !ok {
			return zero, &FetchError{
				Type:    ErrorTypeDecode,
				Message: "deduplicated value has unexpected type",
				Key:     f.cfg.key,
			}
		}
		return typed, nil
	}
}

// fetchWithRetry invokes the request function up to retryAttempts+1 times.
// The context is checked after every attempt and during backoff waits so a
// superseded execute stops promptly. Only the final error is returned;
// intermediate failures are retried transparently.
func (f *Fetcher[T]) fetchWithRetry(ctx context.Context, gen uint64) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		value, err := f.fn(ctx)
		if err == nil {
			return value, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt >= f.cfg.retryAttempts || !f.cfg.retryCondition(err) {
			return zero, f.finalError(err, attempt)
		}

		f.commit(gen, func(s *Snapshot[T]) {
			s.State = StateRetrying
		})
		f.cfg.metrics.RecordRetry(f.cfg.key, attempt+1)

		delay := f.strategy.Delay(attempt, f.cfg.retryDelay, f.cfg.maxDelay, f.cfg.backoffMultiplier, f.cfg.jitter)
		f.debugLog("scheduling retry", "attempt", attempt+1, "backoff", delay, "cause", err)

		select {
		case <-f.cfg.clock.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		f.commit(gen, func(s *Snapshot[T]) {
			s.State = StateLoading
		})
	}
}

func (f *Fetcher[T]) succeed(gen uint64, value T) {
	committed := f.commit(gen, func(s *Snapshot[T]) {
		s.State = StateSuccess
		s.Data = value
		s.Err = nil
		s.IsStale = false
	})
	if !committed {
		return
	}
	if f.cfg.cache != nil {
		if raw, err := json.Marshal(value); err == nil {
			f.cfg.cache.Set(f.cfg.key, &Entry{Data: raw}, f.cfg.cacheTTL)
		}
	}
	if f.onSuccess != nil {
		f.onSuccess(value)
	}
}

func (f *Fetcher[T]) fail(gen uint64, err error) {
	committed := f.commit(gen, func(s *Snapshot[T]) {
		s.State = StateError
		s.Err = err
	})
	if !committed {
		return
	}
	f.cfg.metrics.RecordError(errorType(err), f.cfg.key)
	if f.cfg.debug && f.cfg.logger != nil {
		f.cfg.logger.Error("fetch failed", "key", f.cfg.key, "error", err)
	}
	if f.onError != nil {
		f.onError(err)
	}
}

// aborted reports whether err is the silent settle of a canceled execute.
func (f *Fetcher[T]) aborted(ctx context.Context, err error) bool {
	if errors.Is(err, ErrAborted) {
		return true
	}
	return errors.Is(err, context.Canceled) && ctx.Err() != nil
}

func (f *Fetcher[T]) finalError(err error, attempt int) error {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return err
	}
	return &FetchError{
		Type:        ErrorTypeNetwork,
		Message:     "request failed",
		Cause:       err,
		Key:         f.cfg.key,
		Attempt:     attempt,
		MaxAttempts: f.cfg.retryAttempts,
		Timestamp:   f.cfg.clock.Now(),
	}
}

func (f *Fetcher[T]) debugLog(msg string, keysAndValues ...any) {
	if f.cfg.debug && f.cfg.logger != nil {
		kv := append([]any{"key", f.cfg.key}, keysAndValues...)
		f.cfg.logger.Debug(msg, kv...)
	}
}

func errorType(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Type
	}
	return ErrorTypeNetwork
}
