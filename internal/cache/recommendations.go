package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/oggyb/pupmatch/internal/metrics"
	"github.com/oggyb/pupmatch/internal/recommend"
)

// SharedStore is the Tier-2 surface the recommendation cache needs.
// *RedisCache implements it.
type SharedStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetPair(ctx context.Context, k1 string, v1 any, ttl1 time.Duration, k2 string, v2 any, ttl2 time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Source says where a recommendation list came from.
type Source string

const (
	SourceLocal    Source = "local"
	SourceShared   Source = "shared"
	SourceComputed Source = "computed"
	// SourcePartial is a computed list that was not cached.
	SourcePartial Source = "partial"
)

// RecsKey is the Tier-1/Tier-2 key of a user's current list.
func RecsKey(userID uint64) string { return fmt.Sprintf("recs:%d", userID) }

// LastKnownKey holds the last published list; it outlives the shared TTL
// and only serves as a fallback when generation fails.
func LastKnownKey(userID uint64) string { return fmt.Sprintf("recs:last:%d", userID) }

// Options configures a RecommendationCache.
type Options struct {
	LocalTTL      time.Duration
	SharedTTL     time.Duration
	LastKnownTTL  time.Duration
	LocalCapacity int
	// FillTimeout bounds a shared fill once it is detached from the caller
	// that started it; 0 leaves it to the compute function.
	FillTimeout time.Duration
	// Now drives Tier-1 expiry; defaults to time.Now.
	Now func() time.Time
}

// RecommendationCache serves recommendation lists through a process-local
// tier backed by a shared tier.
//
// Tier-1 entries never outlive LocalTTL and are only ever filled from a
// value that was also written to (or read from) Tier-2. Tier-2 failures are
// logged and treated as misses: the read path degrades to computing.
type RecommendationCache struct {
	local  *LocalCache[[]recommend.Entry]
	shared SharedStore
	bus    Broadcaster
	opts   Options
	log    *slog.Logger

	group singleflight.Group

	// versions is bumped on every local invalidation so a fill that started
	// before it does not write its now-stale result back.
	vmu      sync.Mutex
	versions map[string]uint64
}

// NewRecommendationCache builds the cache. shared and bus may be nil for a
// Tier-1 only deployment.
func NewRecommendationCache(opts Options, shared SharedStore, bus Broadcaster, log *slog.Logger) (*RecommendationCache, error) {
	if opts.LocalTTL <= 0 || opts.SharedTTL <= 0 {
		return nil, fmt.Errorf("cache TTLs must be positive")
	}
	if opts.LocalTTL >= opts.SharedTTL {
		return nil, fmt.Errorf("local TTL %s must be shorter than shared TTL %s", opts.LocalTTL, opts.SharedTTL)
	}
	if opts.LastKnownTTL < opts.SharedTTL {
		opts.LastKnownTTL = opts.SharedTTL
	}
	return &RecommendationCache{
		local:    NewLocalCache[[]recommend.Entry](opts.LocalCapacity, opts.LocalTTL, opts.Now),
		shared:   shared,
		bus:      bus,
		opts:     opts,
		log:      log.With("component", "cache.recommendations"),
		versions: make(map[string]uint64),
	}, nil
}

// Local exposes the Tier-1 cache for the janitor and metrics.
func (c *RecommendationCache) Local() *LocalCache[[]recommend.Entry] { return c.local }

// Get looks up Tier-1 then Tier-2. A Tier-2 hit refills Tier-1.
func (c *RecommendationCache) Get(ctx context.Context, userID uint64) ([]recommend.Entry, Source, bool) {
	key := RecsKey(userID)

	if entries, ok := c.local.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("local", "hit").Inc()
		return entries, SourceLocal, true
	}
	metrics.CacheLookups.WithLabelValues("local", "miss").Inc()

	if c.shared == nil {
		return nil, "", false
	}

	version := c.version(key)
	entries, ok := c.readShared(ctx, "shared", key)
	if !ok {
		return nil, "", false
	}
	c.fillLocal(key, version, entries)
	return entries, SourceShared, true
}

// Put writes both tiers plus the last-known copy.
func (c *RecommendationCache) Put(ctx context.Context, userID uint64, entries []recommend.Entry) {
	key := RecsKey(userID)
	version := c.version(key)
	c.writeShared(ctx, userID, entries)
	c.fillLocal(key, version, entries)
}

// Invalidate drops the user's list from Tier-2 and the local Tier-1, then
// broadcasts so other processes drop theirs. A lost broadcast is bounded by
// LocalTTL.
func (c *RecommendationCache) Invalidate(ctx context.Context, userID uint64) {
	key := RecsKey(userID)
	c.dropLocal(key)
	metrics.CacheInvalidations.WithLabelValues("local").Inc()

	if c.shared != nil {
		if err := c.shared.Del(ctx, key); err != nil {
			c.log.Warn("tier-2 delete failed", "key", key, "err", err)
		}
	}
	c.broadcast(ctx, key)
}

// Publish replaces the user's list in Tier-2 and tells every process to drop
// its Tier-1 copy so the next read picks up the new list. It is the write
// path of the background refresh.
func (c *RecommendationCache) Publish(ctx context.Context, userID uint64, entries []recommend.Entry) error {
	key := RecsKey(userID)
	c.dropLocal(key)
	if c.shared != nil {
		if err := c.writeShared(ctx, userID, entries); err != nil {
			return err
		}
	}
	c.broadcast(ctx, key)
	return nil
}

// LastKnown returns the last published list regardless of freshness.
func (c *RecommendationCache) LastKnown(ctx context.Context, userID uint64) ([]recommend.Entry, bool) {
	if c.shared == nil {
		return nil, false
	}
	return c.readShared(ctx, "last_known", LastKnownKey(userID))
}

// ComputeFunc produces a fresh list. cacheable=false keeps the result out of
// both tiers (e.g. a partial result after a timeout).
type ComputeFunc func(ctx context.Context) (entries []recommend.Entry, cacheable bool, err error)

type computed struct {
	entries   []recommend.Entry
	cacheable bool
}

// GetOrCompute returns the cached list or computes it once per key across
// concurrent callers in this process.
//
// The fill runs detached from ctx so one caller going away does not fail
// the others sharing it; each caller stops waiting when its own ctx ends.
// A list the compute function marks uncacheable comes back as SourcePartial
// to every caller.
func (c *RecommendationCache) GetOrCompute(ctx context.Context, userID uint64, compute ComputeFunc) ([]recommend.Entry, Source, error) {
	if entries, src, ok := c.Get(ctx, userID); ok {
		return entries, src, nil
	}

	key := RecsKey(userID)
	version := c.version(key)
	ch := c.group.DoChan(key, func() (any, error) {
		fillCtx := context.WithoutCancel(ctx)
		if c.opts.FillTimeout > 0 {
			var cancel context.CancelFunc
			fillCtx, cancel = context.WithTimeout(fillCtx, c.opts.FillTimeout)
			defer cancel()
		}
		entries, cacheable, err := compute(fillCtx)
		if err != nil {
			return nil, err
		}
		if cacheable && c.version(key) == version {
			c.Put(fillCtx, userID, entries)
		}
		return computed{entries: entries, cacheable: cacheable}, nil
	})

	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, "", res.Err
		}
		out := res.Val.(computed)
		if !out.cacheable {
			return out.entries, SourcePartial, nil
		}
		return out.entries, SourceComputed, nil
	}
}

// HandleInvalidation applies a broadcast invalidation to Tier-1.
// Duplicate or unknown keys are no-ops.
func (c *RecommendationCache) HandleInvalidation(inv Invalidation) {
	c.dropLocal(inv.Key)
	metrics.CacheInvalidations.WithLabelValues("broadcast").Inc()
}

func (c *RecommendationCache) broadcast(ctx context.Context, key string) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, key); err != nil {
		c.log.Warn("invalidation broadcast failed, relying on local TTL", "key", key, "err", err)
	}
}

func (c *RecommendationCache) readShared(ctx context.Context, tier, key string) ([]recommend.Entry, bool) {
	raw, err := c.shared.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		metrics.CacheLookups.WithLabelValues(tier, "miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues(tier, "error").Inc()
		c.log.Warn("tier-2 read failed, degrading", "key", key, "err", err)
		return nil, false
	}

	var entries []recommend.Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		metrics.CacheLookups.WithLabelValues(tier, "error").Inc()
		c.log.Warn("corrupt tier-2 payload", "key", key, "err", err)
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues(tier, "hit").Inc()
	return entries, true
}

func (c *RecommendationCache) writeShared(ctx context.Context, userID uint64, entries []recommend.Entry) error {
	if c.shared == nil {
		return nil
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	err = c.shared.SetPair(ctx,
		RecsKey(userID), raw, c.opts.SharedTTL,
		LastKnownKey(userID), raw, c.opts.LastKnownTTL,
	)
	if err != nil {
		c.log.Warn("tier-2 write failed", "user_id", userID, "err", err)
	}
	return err
}

func (c *RecommendationCache) version(key string) uint64 {
	c.vmu.Lock()
	defer c.vmu.Unlock()
	return c.versions[key]
}

// fillLocal writes Tier-1 unless key was invalidated after version was read.
func (c *RecommendationCache) fillLocal(key string, version uint64, entries []recommend.Entry) {
	c.vmu.Lock()
	defer c.vmu.Unlock()
	if c.versions[key] != version {
		return
	}
	c.local.Set(key, entries)
	metrics.LocalCacheEntries.Set(float64(c.local.Len()))
}

func (c *RecommendationCache) dropLocal(key string) {
	c.vmu.Lock()
	c.versions[key]++
	c.vmu.Unlock()
	c.local.Delete(key)
}
