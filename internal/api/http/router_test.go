package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
)

type testServer struct {
	app   *fiber.App
	creds repository.CredentialRepository
	redis *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{
		App: config.AppConfig{Name: "auth-service", Version: "test", RequestTimeoutSeconds: 5},
		Auth: config.AuthConfig{
			AccessTokenSecret:       "access-secret",
			RefreshTokenSecret:      "refresh-secret",
			EmailVerificationSecret: "email-secret",
		},
		CORS: config.CORSConfig{AllowOrigins: "http://localhost"},
	}
	creds := repository.NewMemoryCredentialRepository()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	svc, err := service.NewAuthService(cfg, service.AuthDependencies{
		Credentials: creds,
		Sessions:    repository.NewSessionRepository(client),
		Metrics:     metrics,
		Logger:      logger,
		Hasher:      auth.NewHasher(auth.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
	})
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, cfg)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"redis": &persistence.Redis{Client: client},
		}),
		Auth:    handlers.NewAuthHandler(svc),
		Admin:   handlers.NewAdminHandler(svc),
		Guard:   svc.Guard(),
		Metrics: metrics,
	})
	return &testServer{app: app, creds: creds, redis: mr}
}

func (s *testServer) do(t *testing.T, method, path string, body any, bearer string) (int, map[string]any, *nethttp.Response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out, resp
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func signupBody(email, username string) map[string]any {
	return map[string]any{"email": email, "username": username, "password": "hunter22", "role": "USER"}
}

func (s *testServer) login(t *testing.T, identifier string) (string, string) {
	t.Helper()
	status, body, _ := s.do(t, "POST", "/auth/login", map[string]any{"identifier": identifier, "password": "hunter22"}, "")
	require.Equal(t, nethttp.StatusOK, status, body)
	return body["accessToken"].(string), body["refreshToken"].(string)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, body, resp := s.do(t, "POST", "/auth/signup", signupBody("alice@x.com", "alice"), "")
	require.Equal(t, nethttp.StatusCreated, status)
	assert.Equal(t, service.MessageAccountCreated, body["message"])
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	access, refresh := s.login(t, "alice@x.com")

	status, _, _ = s.do(t, "GET", "/auth/verify", nil, access)
	assert.Equal(t, nethttp.StatusNoContent, status)

	status, body, _ = s.do(t, "GET", "/auth/verify?require=role:admin", nil, access)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body, _ = s.do(t, "POST", "/auth/refresh-token", map[string]any{"refreshToken": refresh}, "")
	require.Equal(t, nethttp.StatusOK, status)
	rotated := body["refreshToken"].(string)
	assert.NotEqual(t, refresh, rotated)

	status, body, _ = s.do(t, "POST", "/auth/refresh-token", map[string]any{"refreshToken": refresh}, "")
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "ACCESS_DENIED", errorCode(body))

	status, body, _ = s.do(t, "POST", "/auth/logout", nil, access)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, service.MessageLoggedOut, body["message"])

	status, _, _ = s.do(t, "POST", "/auth/refresh-token", map[string]any{"refreshToken": rotated}, "")
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, body, _ = s.do(t, "POST", "/auth/logout", nil, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestSignupErrors(t *testing.T) {
	s := newTestServer(t)
	status, _, _ := s.do(t, "POST", "/auth/signup", signupBody("alice@x.com", "alice"), "")
	require.Equal(t, nethttp.StatusCreated, status)

	cases := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"duplicate email", signupBody("alice@x.com", "other"), nethttp.StatusConflict, "DUPLICATE_EMAIL"},
		{"duplicate username", signupBody("other@x.com", "alice"), nethttp.StatusConflict, "DUPLICATE_USERNAME"},
		{"admin role", map[string]any{"email": "root@x.com", "username": "root", "password": "hunter22", "role": "ADMIN"}, nethttp.StatusForbidden, "FORBIDDEN"},
		{"invalid fields", map[string]any{"email": "nope", "username": "ab", "password": "1", "role": "USER"}, nethttp.StatusBadRequest, "VALIDATION_FAILED"},
		{"admin role with invalid fields", map[string]any{"email": "nope", "username": "ab", "password": "1", "role": "ADMIN"}, nethttp.StatusForbidden, "FORBIDDEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body, _ := s.do(t, "POST", "/auth/signup", tc.body, "")
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, errorCode(body))
		})
	}
}

func TestLoginErrorsAreUniform(t *testing.T) {
	s := newTestServer(t)
	status, _, _ := s.do(t, "POST", "/auth/signup", signupBody("alice@x.com", "alice"), "")
	require.Equal(t, nethttp.StatusCreated, status)

	_, wrong, _ := s.do(t, "POST", "/auth/login", map[string]any{"identifier": "alice", "password": "nope"}, "")
	status, unknown, _ := s.do(t, "POST", "/auth/login", map[string]any{"identifier": "mallory", "password": "nope"}, "")

	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(unknown))
	assert.Equal(t, wrong, unknown)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{"alice", "rootadmin"} {
		status, _, _ := s.do(t, "POST", "/auth/signup", signupBody(name+"@x.com", name), "")
		require.Equal(t, nethttp.StatusCreated, status)
	}
	root, err := s.creds.GetByUsername(context.Background(), "rootadmin")
	require.NoError(t, err)
	root.Role = domain.RoleAdmin
	require.NoError(t, s.creds.Update(context.Background(), root))
	alice, err := s.creds.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)

	userAccess, _ := s.login(t, "alice")
	adminAccess, _ := s.login(t, "rootadmin")

	status, _, _ := s.do(t, "GET", "/auth/admin", nil, userAccess)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _, _ = s.do(t, "GET", "/auth/admin", nil, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, body, _ := s.do(t, "GET", "/auth/admin", nil, adminAccess)
	require.Equal(t, nethttp.StatusOK, status)
	list := body["data"].([]any)
	assert.Len(t, list, 2)
	for _, item := range list {
		assert.NotContains(t, item.(map[string]any), "passwordHash")
	}

	status, body, _ = s.do(t, "GET", "/auth/admin/"+alice.ID, nil, adminAccess)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alice", body["data"].(map[string]any)["username"])

	status, body, _ = s.do(t, "GET", "/auth/admin/missing", nil, adminAccess)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body, _ = s.do(t, "PUT", "/auth/admin/"+alice.ID, map[string]any{"email": "rootadmin@x.com"}, adminAccess)
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "DUPLICATE_EMAIL", errorCode(body))

	status, body, _ = s.do(t, "PUT", "/auth/admin/"+alice.ID, map[string]any{"isBanned": true}, adminAccess)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]any)["isBanned"])
	assert.False(t, s.redis.Exists(repository.SessionKey(alice.ID)))

	status, _, _ = s.do(t, "GET", "/auth/verify", nil, userAccess)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestVerifyEmailRoute(t *testing.T) {
	s := newTestServer(t)
	status, body, _ := s.do(t, "GET", "/auth/verify-email?token=garbage", nil, "")
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	status, body, _ := s.do(t, "GET", "/nope", nil, "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, body, _ := s.do(t, "GET", "/health/live", nil, "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body, _ = s.do(t, "GET", "/health/ready", nil, "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	s.redis.Close()
	status, body, _ = s.do(t, "GET", "/health/ready", nil, "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))

	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `auth_http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}
