package notifications

import (
	"time"

	"tutorx/internal/middleware"
	"tutorx/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// Must be less than pongWait.
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var dropNotice = []byte(`{"type":"events_dropped","payload":{"reason":"buffer_full"}}`)

// WSHub is the part of a hub a Client talks back to.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client sits between one websocket connection and the hub.
type Client struct {
	Hub    WSHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint

	// OnActivity runs on every inbound frame and pong.
	OnActivity func(userID uint)
}

// NewClient creates a Client with a buffered outbound queue.
func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) touch() {
	if c.OnActivity != nil {
		c.OnActivity(c.UserID)
	}
}

// ReadPump drains inbound frames until the connection fails. The stream is
// server-to-client, so frame contents are ignored beyond keeping presence fresh.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Debug("websocket read failed", "user_id", c.UserID, "error", err)
			}
			return
		}
		c.touch()
	}
}

// WritePump writes queued events and keepalive pings until Send is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a message without blocking. When the queue is full the message
// is dropped and the client is told so it can refetch.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
		middleware.Logger.Warn("websocket buffer full, dropped event", "user_id", c.UserID)
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}
