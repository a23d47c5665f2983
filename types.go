package fetchkit

import (
	"context"
	"time"
)

// RequestFunc performs one attempt of a request and returns its payload.
// Implementations must honor ctx cancellation; fetchkit cancels the context
// of a superseded execute and checks it between retry attempts.
type RequestFunc[T any] func(ctx context.Context) (T, error)

// State is the lifecycle state of a Fetcher.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateRetrying
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRetrying:
		return "retrying"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of a Fetcher's state.
// IsStale is true while cached data is being served ahead of a
// background refresh (stale-while-revalidate).
type Snapshot[T any] struct {
	State     State
	Data      T
	Err       error
	IsStale   bool
	UpdatedAt time.Time
}

// RetryCondition reports whether a failed attempt should be retried.
type RetryCondition func(err error) bool

// DefaultRetryCondition retries transient failures only.
func DefaultRetryCondition(err error) bool {
	return IsTransient(err)
}

// BackoffStrategy selects the delay schedule between retry attempts.
type BackoffStrategy int

const (
	// ExponentialJitter grows delays as retryDelay * multiplier^attempt with
	// uniform jitter applied on top. With the default multiplier 2 and
	// jitter 0 the schedule is retryDelay, 2*retryDelay, 4*retryDelay, ...
	ExponentialJitter BackoffStrategy = iota
	// DecorrelatedJitter uses AWS-style decorrelated jitter for smoother
	// tail latencies under contention.
	DecorrelatedJitter
)

// Option configures a Fetcher.
type Option func(*settings)
