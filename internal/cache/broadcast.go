package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Invalidation tells every process to drop its local copy of Key.
// Delivery is at-least-once and unordered; handling must be idempotent.
type Invalidation struct {
	Key    string    `json:"key"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Broadcaster fans invalidations out to every process.
type Broadcaster interface {
	Publish(ctx context.Context, key string) error
	// Subscribe delivers invalidations to handler until ctx is done or the
	// subscription fails. It blocks.
	Subscribe(ctx context.Context, handler func(Invalidation)) error
}

// RedisBroadcaster implements Broadcaster over a Redis pub/sub channel.
type RedisBroadcaster struct {
	rc      *RedisCache
	channel string
	origin  string
	log     *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRedisBroadcaster publishes on channel; origin identifies this process.
func NewRedisBroadcaster(rc *RedisCache, channel, origin string, log *slog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		rc:      rc,
		channel: channel,
		origin:  origin,
		log:     log.With("component", "cache.broadcast", "channel", channel),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the first subscription is confirmed by Redis.
func (b *RedisBroadcaster) Ready() <-chan struct{} { return b.ready }

func (b *RedisBroadcaster) Publish(ctx context.Context, key string) error {
	raw, err := json.Marshal(Invalidation{Key: key, Origin: b.origin, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return b.rc.Publish(ctx, b.channel, raw)
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, handler func(Invalidation)) error {
	sub := b.rc.Client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.log.Info("subscribed to invalidations")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok || m == nil {
				return fmt.Errorf("redis subscription %s closed", b.channel)
			}
			handler(b.decode(m))
		}
	}
}

func (b *RedisBroadcaster) decode(m *redis.Message) Invalidation {
	var inv Invalidation
	if err := json.Unmarshal([]byte(m.Payload), &inv); err != nil || inv.Key == "" {
		// tolerate bare keys from older publishers
		b.log.Debug("non-JSON invalidation payload", "payload", m.Payload)
		return Invalidation{Key: m.Payload}
	}
	return inv
}

// Subscriber runs a Broadcaster subscription as a supervised service.
type Subscriber struct {
	bus     Broadcaster
	handler func(Invalidation)
}

func NewSubscriber(bus Broadcaster, handler func(Invalidation)) *Subscriber {
	return &Subscriber{bus: bus, handler: handler}
}

// Serve blocks on the subscription; a failed subscription returns an error
// so the supervisor restarts it.
func (s *Subscriber) Serve(ctx context.Context) error {
	return s.bus.Subscribe(ctx, s.handler)
}

func (s *Subscriber) String() string { return "invalidation-subscriber" }
