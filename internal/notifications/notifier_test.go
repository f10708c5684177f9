package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishUser(context.Background(), 1, "payload"))
	assert.NoError(t, n.PublishBroadcast(context.Background(), "payload"))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {
		t.Fatal("no messages expected")
	}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
		id, ok := ParseUserChannel(tt.expected)
		assert.True(t, ok)
		assert.Equal(t, tt.userID, id)
	}
}

func TestParseUserChannel_Rejects(t *testing.T) {
	t.Parallel()
	for _, ch := range []string{"", BroadcastChannel, "notifications:user:", "notifications:user:abc", "notifications:user:0", "chat:conv:4"} {
		_, ok := ParseUserChannel(ch)
		assert.False(t, ok, ch)
	}
}

func TestEncodeEvent(t *testing.T) {
	t.Parallel()
	out, err := EncodeEvent("post_liked", map[string]any{"postId": 3, "likes": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"post_liked","payload":{"postId":3,"likes":1}}`, out)
}

func TestNotifier_SubscriberReceivesUserAndBroadcast(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type msg struct{ channel, payload string }
	got := make(chan msg, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		got <- msg{channel, payload}
	}))

	require.NoError(t, n.PublishUser(context.Background(), 7, "for-seven"))
	require.NoError(t, n.PublishBroadcast(context.Background(), "for-all"))

	seen := map[string]string{}
	for len(seen) < 2 {
		select {
		case m := <-got:
			seen[m.channel] = m.payload
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", seen)
		}
	}
	assert.Equal(t, "for-seven", seen["notifications:user:7"])
	assert.Equal(t, "for-all", seen[BroadcastChannel])
}

func TestNotifier_SubscriberSurvivesPanic(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 2)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_, payload string) {
		if payload == "boom" {
			panic("handler failure")
		}
		got <- payload
	}))

	require.NoError(t, n.PublishUser(context.Background(), 1, "boom"))
	require.NoError(t, n.PublishUser(context.Background(), 1, "after"))

	select {
	case p := <-got:
		assert.Equal(t, "after", p)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber stopped after panic")
	}
}
