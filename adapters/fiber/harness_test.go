package fiber

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lborres/warden/adapters/memory"
	"github.com/lborres/warden/core"
	"github.com/lborres/warden/internal/metrics"
	"github.com/lborres/warden/pkg/cache"
	"github.com/lborres/warden/pkg/crypto"
	"github.com/lborres/warden/pkg/token"
	"github.com/lborres/warden/services"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type apiHarness struct {
	app     *fiber.App
	store   *memory.Store
	clock   *testClock
	metrics *metrics.Metrics
	logs    *bytes.Buffer
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()

	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	store := memory.New().WithClock(clock.Now)

	issuer, err := token.NewIssuer(token.Config{
		Secret:    []byte("test-secret-test-secret-test-secret"),
		AccessTTL: time.Hour,
		Now:       clock.Now,
	})
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	sessionCache := cache.NewInMemoryCache(core.CacheConfig{})
	sessions := services.NewSessionManager(services.SessionConfig{}, store, sessionCache, issuer).WithClock(clock.Now)
	auth := services.NewAuthService(store, crypto.NewBcrypt(bcrypt.MinCost), sessions, issuer, logger).WithClock(clock.Now)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	app := fiber.New()
	adapter := New(app, WithLogger(logger), WithMetrics(m))

	err = adapter.RegisterRoutes(core.Handlers{
		Auth:      auth,
		Users:     services.NewUserService(store),
		Verifier:  issuer,
		Endpoints: services.NewEndpointRegistry().Endpoints(),
		BasePath:  "/api",
	})
	require.NoError(t, err)

	return &apiHarness{app: app, store: store, clock: clock, metrics: m, logs: logs}
}

// do sends a JSON request and decodes the JSON response body.
func (h *apiHarness) do(t *testing.T, method, path string, body any, bearer string) (int, map[string]any) {
	t.Helper()
	return doRequest(t, h.app, method, path, body, bearer)
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any, bearer string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	req.Header.Set(fiber.HeaderUserAgent, "warden-test/1.0")
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

// registerUser registers through the API and returns (access, refresh, user id).
func (h *apiHarness) registerUser(t *testing.T, username, email, password string) (string, string, string) {
	t.Helper()

	status, body := h.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"username": username,
		"email":    email,
		"password": password,
	}, "")
	require.Equal(t, http.StatusCreated, status, "register: %v", body)

	user := body["user"].(map[string]any)
	return body["token"].(string), body["refreshToken"].(string), user["id"].(string)
}

// stubAuth fails every call with err.
type stubAuth struct {
	err error
}

func (s stubAuth) Register(context.Context, core.RegisterInput, core.SessionMeta) (*core.AuthResult, error) {
	return nil, s.err
}

func (s stubAuth) Login(context.Context, core.LoginInput, core.SessionMeta) (*core.AuthResult, error) {
	return nil, s.err
}

func (s stubAuth) Refresh(context.Context, string) (*core.RefreshResult, error) {
	return nil, s.err
}

func (s stubAuth) Logout(context.Context, string, string) error { return s.err }

func (s stubAuth) ChangePassword(context.Context, string, core.ChangePasswordInput) error {
	return s.err
}

func decodeJSON(resp *http.Response, out any) error {
	return json.NewDecoder(resp.Body).Decode(out)
}
