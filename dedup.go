package fetchkit

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"
)

// DedupEntry is the state shared between the owner of an in-flight request and its
// waiters. The owner runs the request; waiters block on done.
type DedupEntry struct {
	mu      sync.Mutex
	value   any
	err     error
	done    chan struct{}
	waiters int
}

// Deduplicator coalesces concurrent identical requests so that at most one
// invocation per key is in flight. It is an explicit registry: construct one
// and pass it to every Fetcher (or caller) that should share it. Key
// collisions across unrelated requests are the caller's responsibility.
type Deduplicator struct {
	mu      sync.Mutex
	entries map[string]*DedupEntry
}

// NewDeduplicator returns an empty in-memory registry.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		entries: make(map[string]*DedupEntry),
	}
}

// GetOrCreateEntry returns an existing in-flight entry (owner=false) or
// creates a new one (owner=true). The owner must call Complete when the
// request settles, success or failure.
func (d *Deduplicator) GetOrCreateEntry(key string) (*DedupEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, exists := d.entries[key]; exists {
		entry.mu.Lock()
		entry.waiters++
		entry.mu.Unlock()
		return entry, false
	}

	entry := &DedupEntry{
		done:    make(chan struct{}),
		waiters: 1,
	}
	d.entries[key] = entry
	return entry, true
}

// Complete finalizes an entry, releases waiters and removes the key. Removal
// is unconditional: the key is free for a new owner the moment the previous
// call settles, regardless of outcome.
func (d *Deduplicator) Complete(key string, value any, err error) {
	d.mu.Lock()
	entry, exists := d.entries[key]
	delete(d.entries, key)
	d.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	entry.value = value
	entry.err = err
	close(entry.done)
	entry.mu.Unlock()
}

// Len reports the number of in-flight keys.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Wait blocks until the owning request completes or ctx cancels. Every
// waiter receives the same value and error the owner settled with.
func (e *DedupEntry) Wait(ctx context.Context) (any, error) {
	select {
	case <-e.done:
		e.mu.Lock()
		value := e.value
		err := e.err
		e.mu.Unlock()
		return value, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deduplicate runs fn under d for the given key. The first concurrent caller
// invokes fn; the rest wait and receive the owner's result. fn is invoked
// exactly once per settled key no matter how many callers arrive while it is
// in flight.
func Deduplicate[T any](ctx context.Context, d *Deduplicator, key string, fn RequestFunc[T]) (T, error) {
	entry, owner := d.GetOrCreateEntry(key)
	if !owner {
		value, err := entry.Wait(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		typed, ok := value.(T)
		if !ok {
			var zero T
			return zero, &FetchError{
				Type:    ErrorTypeDecode,
				Message: "deduplicated value has unexpected type",
				Key:     key,
			}
		}
		return typed, nil
	}

	value, err := fn(ctx)
	d.Complete(key, value, err)
	return value, err
}

// RequestKey builds a deduplication key from a method, URL and optional body
// reader factory. Bodies are hashed so distinct payloads to the same URL do
// not coalesce.
func RequestKey(method, url string, body func() (io.Reader, error)) string {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte(url))

	if body != nil {
		bodyHash := sha256.New()
		if r, err := body(); err == nil && r != nil {
			_, _ = io.Copy(bodyHash, r)
		}
		h.Write(bodyHash.Sum(nil))
	}

	return fmt.Sprintf("%x", h.Sum64())
}
