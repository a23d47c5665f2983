package fetchkit

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Parallel runs independently-keyed requests concurrently. One request's
// failure never aborts the others; results and errors are partitioned by key
// into separate maps. limit caps concurrency; non-positive means unlimited.
func Parallel[T any](ctx context.Context, requests map[string]RequestFunc[T], limit int) (map[string]T, map[string]error) {
	results := make(map[string]T, len(requests))
	failures := make(map[string]error)

	var mu sync.Mutex
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for key, fn := range requests {
		key, fn := key, fn
		g.Go(func() error {
			value, err := fn(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[key] = err
			} else {
				results[key] = value
			}
			// Never propagate: a failure must not cancel sibling requests.
			return nil
		})
	}

	_ = g.Wait()
	return results, failures
}

// BatchRequest is one keyed request in a heterogeneous batch. The payload
// stays raw JSON so callers can decode each key into its own type.
type BatchRequest struct {
	Key string
	Fn  RequestFunc[json.RawMessage]
}

// BatchResult holds a batch's outcomes partitioned by key.
type BatchResult struct {
	Results map[string]json.RawMessage
	Errors  map[string]error
}

// Decode unmarshals the payload for key into v. It returns ErrCacheMiss
// semantics for absent keys: the key's own error when it failed, or a
// Decode-typed error when the key was never requested.
func (r BatchResult) Decode(key string, v any) error {
	if err, failed := r.Errors[key]; failed {
		return err
	}
	raw, found := r.Results[key]
	if !found {
		return &FetchError{
			Type:    ErrorTypeDecode,
			Message: "no result for key",
			Key:     key,
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &FetchError{
			Type:    ErrorTypeDecode,
			Message: "decoding batch result failed",
			Cause:   err,
			Key:     key,
		}
	}
	return nil
}

// Batch runs a heterogeneous set of keyed requests concurrently with the
// same partitioning guarantees as Parallel.
func Batch(ctx context.Context, requests []BatchRequest, limit int) BatchResult {
	keyed := make(map[string]RequestFunc[json.RawMessage], len(requests))
	for _, req := range requests {
		keyed[req.Key] = req.Fn
	}
	results, failures := Parallel(ctx, keyed, limit)
	return BatchResult{Results: results, Errors: failures}
}
