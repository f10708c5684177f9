package notifications

import (
	"context"
	"errors"
	"sync"

	"tutorx/internal/middleware"
	"tutorx/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit   = errors.New("user connection limit reached")
)

// Hub maps user IDs to their open event-stream clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
	presence   *Presence
}

// NewHub creates a Hub. When a Redis client is given, presence is mirrored there.
func NewHub(redisClients ...*redis.Client) *Hub {
	var rdb *redis.Client
	if len(redisClients) > 0 {
		rdb = redisClients[0]
	}
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		presence: NewPresence(rdb),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "event hub" }

// Register adds a connection for userID, enforcing per-user and global limits.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed || h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerConnLimit
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID)
	client.OnActivity = func(uid uint) {
		h.presence.Seen(context.Background(), uid)
	}
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.presence.Join(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes the client. Calling it twice is safe.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if removed {
		observability.WebSocketConnectionsTotal.Dec()
		h.presence.Leave(client.UserID)
	}
}

// SetPresenceCallbacks installs hooks fired on online/offline transitions.
func (h *Hub) SetPresenceCallbacks(onOnline, onOffline func(userID uint)) {
	h.presence.SetHooks(onOnline, onOffline)
}

// Broadcast sends message to every connection of userID.
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.conns[userID]; ok {
		data := []byte(message)
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// BroadcastAll sends message to every connected client.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// IsOnline reports whether the user has a live connection here or, with Redis, on any instance.
func (h *Hub) IsOnline(userID uint) bool {
	return h.presence.Online(context.Background(), userID)
}

// ConnectionCount returns the number of open connections on this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring forwards messages from the Notifier's Redis subscription to local clients.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == BroadcastChannel {
			h.BroadcastAll(payload)
			return
		}
		userID, ok := ParseUserChannel(channel)
		if !ok {
			middleware.Logger.Warn("invalid notification channel", "channel", channel)
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Shutdown sends a going-away close frame to every client and drops them.
func (h *Hub) Shutdown(_ context.Context) error {
	h.presence.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for userID, userConns := range h.conns {
		for client := range userConns {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				middleware.Logger.Debug("write close frame failed", "user_id", userID, "error", err)
			}
			if err := client.Conn.Close(); err != nil {
				middleware.Logger.Debug("close websocket failed", "user_id", userID, "error", err)
			}
		}
		observability.WebSocketConnectionsTotal.Sub(float64(len(userConns)))
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
