package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/api"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testInternalKey = "gateway-key"

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
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixture struct {
	router http.Handler
	clock  *testClock
	health error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: &testClock{t: time.Now().Truncate(time.Second)}}

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(
		[]byte(strings.Repeat("A", 32)),
		[]byte(strings.Repeat("R", 32)),
		15*time.Minute, 7*24*time.Hour,
		auth.WithClock(f.clock.Now),
	)
	require.NoError(t, err)

	u := users.NewMemoryRepository()
	s := sessions.NewMemoryRepository(sessions.WithClock(f.clock.Now))
	log := logging.Nop()

	h := NewHandler(
		services.NewAuthService(u, s, hasher, issuer, log),
		services.NewUserService(u, log),
		pingerFunc(func(context.Context) error { return f.health }),
		log,
		testInternalKey,
	)
	f.router = NewRouter(h, []string{"http://localhost:3000"}, log)
	return f
}

type response struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Timestamp time.Time       `json:"timestamp"`
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) (int, response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

func (f *fixture) register(t *testing.T) api.TokenResponse {
	t.Helper()
	code, resp := f.do(t, http.MethodPost, "/auth/register", api.RegisterRequest{
		Email: "alice@example.com", Password: "correct horse", FirstName: "Alice",
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)

	var tokens api.TokenResponse
	require.NoError(t, json.Unmarshal(resp.Data, &tokens))
	return tokens
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	tokens := f.register(t)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.EqualValues(t, 900, tokens.ExpiresIn)

	code, resp := f.do(t, http.MethodPost, "/auth/register", api.RegisterRequest{Email: "alice@example.com", Password: "another pass"})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, resp.Success)
	assert.Equal(t, services.ErrAccountAlreadyExists.Error(), resp.Error)
	assert.False(t, resp.Timestamp.IsZero())

	code, _ = f.do(t, http.MethodPost, "/auth/register", api.RegisterRequest{Email: "bob", Password: "another pass"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRegister_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	code, resp := f.do(t, http.MethodPost, "/auth/login", api.LoginRequest{Email: "ALICE@example.com", Password: "correct horse"})
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	code, resp = f.do(t, http.MethodPost, "/auth/login", api.LoginRequest{Email: "alice@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, services.ErrInvalidCredentials.Error(), resp.Error)
}

func TestRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	tokens := f.register(t)

	code, resp := f.do(t, http.MethodPost, "/auth/refresh", api.RefreshRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	var next api.TokenResponse
	require.NoError(t, json.Unmarshal(resp.Data, &next))

	code, resp = f.do(t, http.MethodPost, "/auth/refresh", api.RefreshRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, services.SessionNotFound.Message(), resp.Error)

	code, _ = f.do(t, http.MethodPost, "/auth/logout", api.LogoutRequest{RefreshToken: next.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = f.do(t, http.MethodPost, "/auth/logout", api.LogoutRequest{RefreshToken: next.RefreshToken}, bearer(next.AccessToken)...)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodPost, "/auth/refresh", api.RefreshRequest{RefreshToken: next.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestOAuthCallback(t *testing.T) {
	f := newFixture(t)
	body := api.OAuthCallbackRequest{Provider: "google", ProviderID: "g-1", Email: "carol@example.com", EmailVerified: true}

	code, _ := f.do(t, http.MethodPost, "/auth/oauth/callback", body)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(t, http.MethodPost, "/auth/oauth/callback", body, common.InternalKeyHTTPHeader, "wrong")
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := f.do(t, http.MethodPost, "/auth/oauth/callback", body, common.InternalKeyHTTPHeader, testInternalKey)
	require.Equal(t, http.StatusOK, code, resp.Error)

	code, resp = f.do(t, http.MethodPost, "/auth/oauth/callback",
		api.OAuthCallbackRequest{Provider: "github", ProviderID: "7"},
		common.InternalKeyHTTPHeader, testInternalKey)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, services.ErrMissingOAuthEmail.Error(), resp.Error)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	tokens := f.register(t)

	code, resp := f.do(t, http.MethodGet, "/users/me", nil, bearer(tokens.AccessToken)...)
	require.Equal(t, http.StatusOK, code)
	var me api.UserResponse
	require.NoError(t, json.Unmarshal(resp.Data, &me))
	assert.Equal(t, "alice@example.com", me.Email)

	code, resp = f.do(t, http.MethodPatch, "/users/me", map[string]string{"last_name": "Liddell"}, bearer(tokens.AccessToken)...)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &me))
	assert.Equal(t, "Alice", me.FirstName)
	assert.Equal(t, "Liddell", me.LastName)

	code, resp = f.do(t, http.MethodGet, "/users?page=1&limit=500", nil, bearer(tokens.AccessToken)...)
	require.Equal(t, http.StatusOK, code)
	var list api.UserListResponse
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, services.MaxPageLimit, list.Limit)
}

func TestRequireAuth(t *testing.T) {
	f := newFixture(t)
	tokens := f.register(t)

	code, resp := f.do(t, http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing authentication", resp.Error)

	code, _ = f.do(t, http.MethodGet, "/users/me", nil, "Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp = f.do(t, http.MethodGet, "/users/me", nil, bearer("garbage")...)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, common.ErrInvalidToken.Error(), resp.Error)

	// refresh tokens are not access tokens
	code, _ = f.do(t, http.MethodGet, "/users/me", nil, bearer(tokens.RefreshToken)...)
	assert.Equal(t, http.StatusUnauthorized, code)

	f.clock.Advance(16 * time.Minute)
	code, resp = f.do(t, http.MethodGet, "/users/me", nil, bearer(tokens.AccessToken)...)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, common.ErrTokenExpired.Error(), resp.Error)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	code, resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	f.health = errors.New("connection refused")
	code, resp = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, resp.Success)
}

func TestSecurityHeadersAndNotFound(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(services.StorageUnavailable))
	assert.Equal(t, http.StatusNotFound, statusFor(services.NotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(services.Internal))
}
