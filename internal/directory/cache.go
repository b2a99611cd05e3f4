package directory

import (
	"context"
	"sync"
	"time"
)

// IsStale is the staleness policy for cached directory rows: a fetch older
// than ttl must be refreshed. Kept as a standalone function so the policy
// is testable without a cache instance.
func IsStale(now, fetchedAt time.Time, ttl time.Duration) bool {
	return fetchedAt.IsZero() || now.Sub(fetchedAt) >= ttl
}

// Cache is a read-through cache for directory rows with a fixed staleness
// bound. It replaces the process-global cache the directory lookup grew up
// with: the value and its fetch time live in the cache object, and the
// clock is injectable.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	rows      [][]string
	fetchedAt time.Time
}

// NewCache creates a cache with the given staleness bound.
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithClock(ttl, time.Now)
}

// NewCacheWithClock is for tests that need deterministic staleness.
func NewCacheWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return &Cache{ttl: ttl, now: now}
}

// Rows returns the cached rows, refreshing through fetch when stale. A
// failed refresh is returned to the caller; the previous value is kept so
// a later call may retry.
func (c *Cache) Rows(ctx context.Context, fetch func(context.Context) ([][]string, error)) ([][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !IsStale(c.now(), c.fetchedAt, c.ttl) {
		return c.rows, nil
	}
	rows, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.rows = rows
	c.fetchedAt = c.now()
	return rows, nil
}
