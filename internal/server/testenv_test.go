package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tutorx/internal/config"
	"tutorx/internal/models"
	"tutorx/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testJWTSecret   = "test-secret-that-is-long-enough-for-hs256"
	testJWTIssuer   = "tutorX-test"
	testJWTAudience = "tutorX-test-client"
)

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWTSecret:            testJWTSecret,
		JWTIssuer:            testJWTIssuer,
		JWTAudience:          testJWTAudience,
		JWTExpire:            time.Hour,
		UploadDir:            t.TempDir(),
		ImageMaxUploadSizeMB: 2,
	}
}

// newTestEnv wires a full server over in-memory SQLite and miniredis.
func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.NewApp(), db: db, mr: mr}
}

func (e *testEnv) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := e.srv.tokens.Issue(user.ID)
	require.NoError(t, err)
	return token
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	User    json.RawMessage `json:"user"`
	Token   string          `json:"token"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

// do sends a JSON request and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, apiResponse) {
	t.Helper()

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out apiResponse
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func decodeData[T any](t *testing.T, res apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(res.Data, &v), string(res.Data))
	return v
}

func newRequest(method, path, authorization string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}
