package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LocalCache is the process-local tier: a thread-safe LRU with a hard TTL.
//
// Every entry expires at most ttl after it was written, whatever the caller
// asks for. That ceiling is the staleness bound when an invalidation
// broadcast is lost.
type LocalCache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[string]*list.Element
	// front is most recently used
	order *list.List

	hits, misses, evictions uint64
}

type localEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// NewLocalCache creates a cache holding at most capacity entries for at most ttl.
// now defaults to time.Now.
func NewLocalCache[V any](capacity int, ttl time.Duration, now func() time.Time) *LocalCache[V] {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &LocalCache[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// TTL returns the configured ceiling.
func (c *LocalCache[V]) TTL() time.Duration { return c.ttl }

// Get returns the value for key if present and not expired.
func (c *LocalCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*localEntry[V])
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores value for the full TTL.
func (c *LocalCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value for min(ttl, configured TTL). A non-positive ttl
// is a no-op.
func (c *LocalCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if ttl > c.ttl {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*localEntry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&localEntry[V]{key: key, value: value, expiresAt: expiresAt})
	for len(c.items) > c.capacity {
		c.removeElement(c.order.Back())
		c.evictions++
	}
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *LocalCache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Len returns the number of entries, expired ones included until swept.
func (c *LocalCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (c *LocalCache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*localEntry[V]).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Stats returns hit/miss/eviction counters and the current size.
func (c *LocalCache[V]) Stats() (hits, misses, evictions uint64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions, len(c.items)
}

// must be called with the lock held
func (c *LocalCache[V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*localEntry[V]).key)
}

// Janitor sweeps expired entries from a LocalCache on an interval.
// It implements suture.Service.
type Janitor[V any] struct {
	cache    *LocalCache[V]
	interval time.Duration
	onSweep  func(removed, size int)
}

// NewJanitor sweeps every interval; onSweep may be nil.
func NewJanitor[V any](c *LocalCache[V], interval time.Duration, onSweep func(removed, size int)) *Janitor[V] {
	if interval <= 0 {
		interval = c.ttl
	}
	return &Janitor[V]{cache: c, interval: interval, onSweep: onSweep}
}

// Serve runs until ctx is cancelled.
func (j *Janitor[V]) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := j.cache.CleanupExpired()
			if j.onSweep != nil {
				j.onSweep(removed, j.cache.Len())
			}
		}
	}
}

func (j *Janitor[V]) String() string { return "local-cache-janitor" }
