package fetchkit

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type settings struct {
	key string

	retryAttempts     int
	retryDelay        time.Duration
	maxDelay          time.Duration
	backoffMultiplier float64
	jitter            float64
	strategy          BackoffStrategy
	retryCondition    RetryCondition

	cache    Cache
	cacheTTL time.Duration
	swr      bool

	dedup *Deduplicator

	tracker          *Tracker
	optimisticExpiry time.Duration

	clock   clockwork.Clock
	metrics *Collector
	logger  Logger
	debug   bool
}

func defaultSettings() settings {
	return settings{
		key:               "default",
		retryAttempts:     3,
		retryDelay:        time.Second,
		maxDelay:          30 * time.Second,
		backoffMultiplier: 2.0,
		jitter:            0,
		strategy:          ExponentialJitter,
		retryCondition:    DefaultRetryCondition,
		cacheTTL:          5 * time.Minute,
		optimisticExpiry:  DefaultOptimisticExpiry,
		clock:             clockwork.NewRealClock(),
	}
}

// WithKey sets the identifier used for the cache entry, the deduplication
// key and metric labels. Distinct logical requests need distinct keys.
func WithKey(key string) Option {
	return func(s *settings) {
		s.key = key
	}
}

// WithRetryAttempts sets how many retries follow a failed first attempt.
// Zero disables retrying.
func WithRetryAttempts(n int) Option {
	return func(s *settings) {
		s.retryAttempts = n
	}
}

// WithRetryDelay sets the base delay before the first retry. Subsequent
// delays grow per the backoff strategy.
func WithRetryDelay(d time.Duration) Option {
	return func(s *settings) {
		s.retryDelay = d
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(s *settings) {
		s.maxDelay = d
	}
}

// WithBackoffMultiplier sets the exponential growth factor.
func WithBackoffMultiplier(f float64) Option {
	return func(s *settings) {
		s.backoffMultiplier = f
	}
}

// WithJitter sets the jitter factor for backoff (clamped to [0, 1]).
func WithJitter(f float64) Option {
	return func(s *settings) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		s.jitter = f
	}
}

// WithBackoffStrategy selects the delay schedule between retries.
func WithBackoffStrategy(strategy BackoffStrategy) Option {
	return func(s *settings) {
		s.strategy = strategy
	}
}

// WithRetryCondition sets a custom retry eligibility check.
func WithRetryCondition(fn RetryCondition) Option {
	return func(s *settings) {
		s.retryCondition = fn
	}
}

// WithCache enables caching of successful payloads under the Fetcher's key.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *settings) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithStaleWhileRevalidate serves cached data immediately on Execute, marks
// it stale, and refreshes it with a background fetch.
func WithStaleWhileRevalidate() Option {
	return func(s *settings) {
		s.swr = true
	}
}

// WithDeduplicator coalesces concurrent executes sharing this registry and
// key onto a single underlying request.
func WithDeduplicator(d *Deduplicator) Option {
	return func(s *settings) {
		s.dedup = d
	}
}

// WithTracker shares an optimistic update tracker across fetchers. Without
// this option each Fetcher owns a private tracker.
func WithTracker(t *Tracker) Option {
	return func(s *settings) {
		s.tracker = t
	}
}

// WithOptimisticExpiry bounds how long an unconfirmed optimistic update
// stays tracked. Ignored when WithTracker supplies a tracker.
func WithOptimisticExpiry(d time.Duration) Option {
	return func(s *settings) {
		s.optimisticExpiry = d
	}
}

// WithClock injects a clock for TTLs, backoff waits and expiry timers.
func WithClock(clock clockwork.Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(collector *Collector) Option {
	return func(s *settings) {
		s.metrics = collector
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(logger Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithDebug enables debug logging. A logger must also be configured, either
// via WithLogger or WithSimpleLogger.
func WithDebug() Option {
	return func(s *settings) {
		s.debug = true
	}
}

// WithSimpleLogger enables debug logging with a console logger.
func WithSimpleLogger() Option {
	return func(s *settings) {
		s.debug = true
		s.logger = NewSimpleLogger()
	}
}

func (s *settings) validate() error {
	var problems []string

	if s.key == "" {
		problems = append(problems, "key must not be empty")
	}
	if s.retryAttempts < 0 {
		problems = append(problems, "retryAttempts must be non-negative")
	}
	if s.retryAttempts > 100 {
		problems = append(problems, "retryAttempts > 100 may cause excessive resource usage")
	}
	if s.retryDelay <= 0 {
		problems = append(problems, "retryDelay must be positive")
	}
	if s.maxDelay < s.retryDelay {
		problems = append(problems, "maxDelay must be greater than or equal to retryDelay")
	}
	if s.backoffMultiplier <= 0 {
		problems = append(problems, "backoffMultiplier must be positive")
	}
	if s.jitter < 0 || s.jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if s.cache != nil && s.cacheTTL <= 0 {
		problems = append(problems, "cacheTTL must be positive when cache is enabled")
	}
	if s.swr && s.cache == nil {
		problems = append(problems, "stale-while-revalidate requires a cache")
	}
	if s.optimisticExpiry <= 0 {
		problems = append(problems, "optimisticExpiry must be positive")
	}
	if s.debug && s.logger == nil {
		problems = append(problems, "logger must be set when debug is enabled")
	}
	if s.retryCondition == nil {
		problems = append(problems, "retryCondition must not be nil")
	}
	if s.clock == nil {
		problems = append(problems, "clock must not be nil")
	}

	if len(problems) > 0 {
		return &FetchError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}
	return nil
}
