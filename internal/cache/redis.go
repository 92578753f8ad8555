package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/oggyb/pupmatch/internal/config"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
	"github.com/oggyb/pupmatch/internal/metrics"
)

// ErrMiss is returned by RedisCache.Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

const breakerName = "redis-tier2"

// likeCountTTL is how long a cached liked-you counter lives.
const likeCountTTL = time.Hour

// RedisCache is the shared tier. Every call goes through a circuit breaker
// so an unreachable Redis fails fast instead of stalling each request on
// dial timeouts. Failures come back wrapped as ErrDependencyUnavailable.
type RedisCache struct {
	Client  *redis.Client
	breaker *gobreaker.CircuitBreaker[any]
	log     *slog.Logger
}

// BreakerConfig tunes the Tier-2 circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config, log *slog.Logger) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return NewRedisCacheFromClient(redis.NewClient(opts), BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout,
	}, log)
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, bc BreakerConfig, log *slog.Logger) *RedisCache {
	if bc.FailureThreshold == 0 {
		bc.FailureThreshold = 5
	}
	if bc.OpenTimeout <= 0 {
		bc.OpenTimeout = 30 * time.Second
	}
	log = log.With("component", "cache.redis")

	metrics.BreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		// a missing key is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &RedisCache{Client: client, breaker: cb, log: log}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// BreakerState reports the current breaker state.
func (c *RedisCache) BreakerState() gobreaker.State { return c.breaker.State() }

// do runs fn through the breaker and normalises the error.
func (c *RedisCache) do(fn func() (any, error)) (any, error) {
	v, err := c.breaker.Execute(fn)
	switch {
	case err == nil:
		metrics.BreakerRequests.WithLabelValues(breakerName, "success").Inc()
		return v, nil
	case errors.Is(err, redis.Nil):
		metrics.BreakerRequests.WithLabelValues(breakerName, "success").Inc()
		return nil, ErrMiss
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.BreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
	default:
		metrics.BreakerRequests.WithLabelValues(breakerName, "failure").Inc()
	}
	return nil, svcErr.Unavailable("redis", err)
}

func (c *RedisCache) Ping(ctx context.Context) error {
	_, err := c.do(func() (any, error) { return nil, c.Client.Ping(ctx).Err() })
	return err
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	_, err := c.do(func() (any, error) { return nil, c.Client.Set(ctx, key, value, ttl).Err() })
	return err
}

// Get returns ErrMiss when the key is absent.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.do(func() (any, error) { return c.Client.Get(ctx, key).Result() })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	_, err := c.do(func() (any, error) { return nil, c.Client.Del(ctx, keys...).Err() })
	return err
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := c.do(func() (any, error) { return nil, c.Client.Expire(ctx, key, ttl).Err() })
	return err
}

// SetPair writes two keys in one round trip.
func (c *RedisCache) SetPair(ctx context.Context, k1 string, v1 any, ttl1 time.Duration, k2 string, v2 any, ttl2 time.Duration) error {
	_, err := c.do(func() (any, error) {
		_, err := c.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k1, v1, ttl1)
			p.Set(ctx, k2, v2, ttl2)
			return nil
		})
		return nil, err
	})
	return err
}

// Publish sends payload on channel.
func (c *RedisCache) Publish(ctx context.Context, channel string, payload any) error {
	_, err := c.do(func() (any, error) { return nil, c.Client.Publish(ctx, channel, payload).Err() })
	return err
}

// KeyForLikeCount generates Redis key for a user's like count
func (c *RedisCache) KeyForLikeCount(userID uint64) string {
	return fmt.Sprintf("likes:count:%d", userID)
}

// GetLikeCount returns the cached counter; found is false on a miss.
// The TTL is refreshed on access.
func (c *RedisCache) GetLikeCount(ctx context.Context, userID uint64) (count int64, found bool, err error) {
	key := c.KeyForLikeCount(userID)
	val, err := c.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// corrupt entry: drop it and treat as a miss
		_ = c.Del(ctx, key)
		return 0, false, nil
	}
	_ = c.Expire(ctx, key, likeCountTTL)
	return n, true, nil
}

func (c *RedisCache) UpdateLikeCount(ctx context.Context, userID uint64, count int64) error {
	// Always refresh TTL when updating
	return c.Set(ctx, c.KeyForLikeCount(userID), count, likeCountTTL)
}

// InvalidateLikeCount drops the cached counter so the next read recounts.
func (c *RedisCache) InvalidateLikeCount(ctx context.Context, userID uint64) error {
	return c.Del(ctx, c.KeyForLikeCount(userID))
}

// Close closes the underlying client.
func (c *RedisCache) Close() error { return c.Client.Close() }
