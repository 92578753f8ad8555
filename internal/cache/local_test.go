package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock shared by tests in this package.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestLocalCache_ExpiresAtTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewLocalCache[int](10, time.Minute, clock.Now)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry must be gone exactly at TTL")
	assert.Equal(t, 0, c.Len())
}

func TestLocalCache_TTLIsACeiling(t *testing.T) {
	clock := newFakeClock()
	c := NewLocalCache[string](10, time.Minute, clock.Now)

	c.SetWithTTL("long", "x", time.Hour)
	c.SetWithTTL("short", "y", 10*time.Second)
	c.SetWithTTL("never", "z", 0)

	clock.Advance(11 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("never")
	assert.False(t, ok)

	clock.Advance(49 * time.Second)
	_, ok = c.Get("long")
	assert.False(t, ok, "a caller TTL cannot exceed the configured TTL")
}

func TestLocalCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLocalCache[int](2, time.Minute, nil)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // a is now most recent
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	_, _, evictions, size := c.Stats()
	assert.Equal(t, uint64(1), evictions)
	assert.Equal(t, 2, size)
}

func TestLocalCache_DeleteIsIdempotent(t *testing.T) {
	c := NewLocalCache[int](2, time.Minute, nil)
	c.Set("a", 1)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.False(t, c.Delete("never-set"))
}

func TestLocalCache_OverwriteRefreshesExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewLocalCache[int](10, time.Minute, clock.Now)

	c.Set("a", 1)
	clock.Advance(50 * time.Second)
	c.Set("a", 2)
	clock.Advance(50 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestLocalCache_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewLocalCache[int](10, time.Minute, clock.Now)

	c.Set("a", 1)
	c.SetWithTTL("b", 2, 10*time.Second)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 1, c.Len())
}

func TestJanitor_SweepsUntilCancelled(t *testing.T) {
	clock := newFakeClock()
	c := NewLocalCache[int](10, time.Minute, clock.Now)
	c.Set("a", 1)
	clock.Advance(2 * time.Minute)

	swept := make(chan int, 1)
	j := NewJanitor(c, 5*time.Millisecond, func(removed, _ int) {
		select {
		case swept <- removed:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Serve(ctx) }()

	select {
	case n := <-swept:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never swept")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, "local-cache-janitor", j.String())
}
