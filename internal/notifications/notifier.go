// Package notifications fans realtime events out to websocket clients through Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"tutorx/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	// BroadcastChannel carries events for every connected client.
	BroadcastChannel = "notifications:broadcast"
)

// Event is the envelope written to websocket clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// EncodeEvent renders an event envelope as a JSON string.
func EncodeEvent(eventType string, payload any) (string, error) {
	b, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return string(b), nil
}

// Notifier publishes events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier. A nil client makes every publish a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether events travel through Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishUser sends a payload to one user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends a payload to every connected user.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// StartPatternSubscriber subscribes to the user and broadcast channels and calls
// onMessage for each message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", BroadcastChannel)
	// Wait for the subscription confirmation so publishes right after start are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user ID from a channel built by UserChannel.
func ParseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
