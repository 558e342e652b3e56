package bus

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dedupe cache defaults (spec §4.3).
const (
	DefaultDedupeTTL     = 60 * time.Second
	DefaultDedupeMaxSize = 10_000
)

// DedupeCache is a TTL + insertion-order-eviction set of message
// fingerprints. It is the single serialization point for duplicate
// detection across reconnects and webhook retries (spec Invariant 4).
//
// hashicorp/golang-lru's Cache evicts the least-recently-*added* entry
// once capacity is exceeded, as long as reads use Peek (which, unlike
// Get, does not promote an entry) — exactly the "evict in insertion
// order" rule spec §4.3 calls for.
type DedupeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries *lru.Cache[string, time.Time]
	now     func() time.Time
}

// NewDedupeCache builds a cache with the real wall clock.
func NewDedupeCache(ttl time.Duration, maxSize int) *DedupeCache {
	return NewDedupeCacheWithClock(ttl, maxSize, time.Now)
}

// NewDedupeCacheWithClock builds a cache with an injectable time
// source, per spec §4.3 ("time source must be injectable for testing").
func NewDedupeCacheWithClock(ttl time.Duration, maxSize int, now func() time.Time) *DedupeCache {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultDedupeMaxSize
	}
	c, _ := lru.New[string, time.Time](maxSize)
	return &DedupeCache{ttl: ttl, entries: c, now: now}
}

// Has reports whether k is present and unexpired. An expired entry is
// evicted as a side effect of the check.
func (c *DedupeCache) Has(k string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasLocked(k)
}

func (c *DedupeCache) hasLocked(k string) bool {
	ts, ok := c.entries.Peek(k)
	if !ok {
		return false
	}
	if c.now().Sub(ts) > c.ttl {
		c.entries.Remove(k)
		return false
	}
	return true
}

// Add inserts k if it is not already present (and unexpired), evicting
// the oldest entry if this insertion pushes the cache over capacity.
// Returns false when k was a live duplicate.
func (c *DedupeCache) Add(k string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasLocked(k) {
		return false
	}
	c.entries.Add(k, c.now())
	return true
}

// Size returns the number of entries currently tracked, including
// expired ones that no Has or Add call has removed yet.
func (c *DedupeCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
