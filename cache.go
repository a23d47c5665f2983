package fetchkit

import (
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// Entry is a cached payload with its write time and time-to-live.
// All payloads are JSON; typed access goes through the Fetcher.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	TTL       time.Duration   `json:"ttl"`
}

// Expired reports whether the entry is older than its TTL at the given
// instant. An entry aged exactly TTL is still fresh.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// Cache stores last-known-good payloads keyed by a cache identifier.
// Implementations must stamp Timestamp to the current time on Set so a
// rewrite always resets the entry's age.
type Cache interface {
	Get(key string) (*Entry, bool)
	Set(key string, entry *Entry, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

const defaultMemoryCacheSize = 1024

// MemoryCache is an LRU-bounded in-memory Cache. Expired entries are
// removed lazily on read.
type MemoryCache struct {
	store *lru.Cache[string, *Entry]
	clock clockwork.Clock
}

// NewMemoryCache creates a memory cache holding at most size entries.
// A non-positive size falls back to the default bound.
func NewMemoryCache(size int) *MemoryCache {
	return NewMemoryCacheWithClock(size, clockwork.NewRealClock())
}

// NewMemoryCacheWithClock creates a memory cache using the supplied clock.
func NewMemoryCacheWithClock(size int, clock clockwork.Clock) *MemoryCache {
	if size <= 0 {
		size = defaultMemoryCacheSize
	}
	store, err := lru.New[string, *Entry](size)
	if err != nil {
		// lru.New only fails on non-positive sizes, which are clamped above.
		panic(err)
	}
	return &MemoryCache{
		store: store,
		clock: clock,
	}
}

// Get retrieves a fresh entry. Expired entries are dropped and reported as
// misses.
func (c *MemoryCache) Get(key string) (*Entry, bool) {
	entry, exists := c.store.Get(key)
	if !exists {
		return nil, false
	}

	if entry.Expired(c.clock.Now()) {
		c.store.Remove(key)
		return nil, false
	}

	return entry, true
}

// Set stores an entry, stamping its Timestamp to now and its TTL to ttl.
func (c *MemoryCache) Set(key string, entry *Entry, ttl time.Duration) {
	entry.Timestamp = c.clock.Now()
	entry.TTL = ttl
	c.store.Add(key, entry)
}

// Delete removes an entry.
func (c *MemoryCache) Delete(key string) {
	c.store.Remove(key)
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.store.Purge()
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	return c.store.Len()
}
