package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"tutorx/internal/cache"
	"tutorx/internal/config"
	"tutorx/internal/notifications"
	"tutorx/internal/testutil"

	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueTicket(t *testing.T, env *testEnv, token string) string {
	t.Helper()
	status, res := env.do(t, http.MethodPost, "/api/ws/ticket", nil, token)
	require.Equal(t, fiber.StatusOK, status, res.Message)
	ticket := decodeData[map[string]string](t, res)["ticket"]
	require.NotEmpty(t, ticket)
	return ticket
}

func TestWSTicketIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Sam Learner")
	ticket := issueTicket(t, env, env.tokenFor(t, user))

	ctx := context.Background()
	got, err := env.srv.tokenStore.ConsumeTicket(ctx, ticket)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got)

	_, err = env.srv.tokenStore.ConsumeTicket(ctx, ticket)
	assert.ErrorIs(t, err, cache.ErrTicketInvalid)
}

func TestWSTicketExpires(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Sam Learner")
	ticket := issueTicket(t, env, env.tokenFor(t, user))

	env.mr.FastForward(cache.WSTicketTTL + time.Second)

	_, err := env.srv.tokenStore.ConsumeTicket(context.Background(), ticket)
	assert.ErrorIs(t, err, cache.ErrTicketInvalid)
}

func TestWSTicketRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.do(t, http.MethodPost, "/api/ws/ticket", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestWebSocketRejectsPlainHTTP(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Sam Learner")
	ticket := issueTicket(t, env, env.tokenFor(t, user))

	status, res := env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, nil, "")
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
	assert.False(t, res.Success)

	// The rejected request must not have spent the ticket.
	got, err := env.srv.tokenStore.ConsumeTicket(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got)
}

func TestRealtimeDisabledHidesEndpoints(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.FeatureFlags = "realtime=off" })
	user := testutil.CreateUser(t, env.db, "Sam Learner")

	status, res := env.do(t, http.MethodPost, "/api/ws/ticket", nil, env.tokenFor(t, user))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Feature not found", res.Message)
}

// listen serves env.app on a loopback port until the test ends.
func listen(t *testing.T, env *testEnv) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.Shutdown() })
	return ln.Addr().String()
}

func readEvent(t *testing.T, conn *gws.Conn) notifications.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev notifications.Event
	require.NoError(t, json.Unmarshal(raw, &ev), string(raw))
	return ev
}

func TestWebSocketDeliversUserEvents(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateTutor(t, env.db, "Ada Tutor", 40)
	fan := testutil.CreateUser(t, env.db, "Sam Learner")
	post := testutil.CreatePost(t, env.db, owner.ID, "Live lesson")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, env.srv.hub.StartWiring(ctx, env.srv.notifier))

	addr := listen(t, env)
	ticket := issueTicket(t, env, env.tokenFor(t, owner))

	conn, resp, err := gws.DefaultDialer.Dial(fmt.Sprintf("ws://%s/api/ws?ticket=%s", addr, ticket), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	hello := readEvent(t, conn)
	assert.Equal(t, "connected", hello.Type)

	status, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", post.ID), nil, env.tokenFor(t, fan))
	require.Equal(t, fiber.StatusOK, status)

	ev := readEvent(t, conn)
	assert.Equal(t, EventPostLiked, ev.Type)
	payload, ok := ev.Payload.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, post.ID, payload["postId"])
}

func TestWebSocketRejectsReusedTicket(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Sam Learner")
	addr := listen(t, env)
	ticket := issueTicket(t, env, env.tokenFor(t, user))
	url := fmt.Sprintf("ws://%s/api/ws?ticket=%s", addr, ticket)

	conn, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	_, resp, err = gws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}
