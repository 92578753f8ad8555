// Package notify publishes match lifecycle events to the notification
// collaborator. Delivery mechanics past the channel are out of scope.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/oggyb/pupmatch/internal/cache"
	"github.com/oggyb/pupmatch/internal/metrics"
)

// EventType names a match lifecycle transition.
type EventType string

const (
	MatchCreated EventType = "match_created"
	MatchRemoved EventType = "match_removed"
)

// Event is the payload sent on the events channel.
type Event struct {
	Type    EventType `json:"type"`
	MatchID string    `json:"match_id"`
	UserIDs [2]uint64 `json:"user_ids"`
	At      time.Time `json:"at"`
}

// Notifier receives match events after the backing transaction committed.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// RedisNotifier publishes events as JSON on a Redis channel.
type RedisNotifier struct {
	rc      *cache.RedisCache
	channel string
	log     *slog.Logger
}

func NewRedisNotifier(rc *cache.RedisCache, channel string, log *slog.Logger) *RedisNotifier {
	return &RedisNotifier{rc: rc, channel: channel, log: log.With("component", "notify.redis")}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := n.rc.Publish(ctx, n.channel, raw); err != nil {
		metrics.NotifyErrors.Inc()
		n.log.Warn("match event not published", "type", ev.Type, "match_id", ev.MatchID, "err", err)
		return err
	}
	n.log.Debug("match event published", "type", ev.Type, "match_id", ev.MatchID)
	return nil
}

// LogNotifier only logs; used when no Redis is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "notify.log")}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.log.Info("match event", "type", ev.Type, "match_id", ev.MatchID, "users", ev.UserIDs)
	return nil
}
