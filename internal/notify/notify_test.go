package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/pupmatch/internal/cache"
	"github.com/oggyb/pupmatch/internal/logger"
)

func TestRedisNotifier_PublishesJSON(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	rc := cache.NewRedisCacheFromClient(client, cache.BreakerConfig{}, logger.Discard())

	sub := client.Subscribe(ctx, "matches:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(rc, "matches:events", logger.Discard())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, n.Notify(ctx, Event{Type: MatchCreated, MatchID: "m-1", UserIDs: [2]uint64{1, 2}, At: at}))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, MatchCreated, got.Type)
		assert.Equal(t, "m-1", got.MatchID)
		assert.Equal(t, [2]uint64{1, 2}, got.UserIDs)
		assert.True(t, at.Equal(got.At))
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestRedisNotifier_OutageReturnsError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	rc := cache.NewRedisCacheFromClient(client, cache.BreakerConfig{}, logger.Discard())
	mr.Close()

	n := NewRedisNotifier(rc, "matches:events", logger.Discard())
	assert.Error(t, n.Notify(context.Background(), Event{Type: MatchRemoved}))
}

func TestLogNotifier_NeverFails(t *testing.T) {
	assert.NoError(t, NewLogNotifier(logger.Discard()).Notify(context.Background(), Event{Type: MatchCreated}))
}
