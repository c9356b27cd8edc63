package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marketai/marketai-admin/internal/access"
	"github.com/marketai/marketai-admin/internal/app"
	"github.com/marketai/marketai-admin/internal/auth"
	"github.com/marketai/marketai-admin/internal/observability"
	"github.com/marketai/marketai-admin/internal/platform/httpx"
	"github.com/marketai/marketai-admin/internal/shared"
	"github.com/marketai/marketai-admin/internal/users"
	"github.com/marketai/marketai-admin/jobs"
	_ "github.com/marketai/marketai-admin/testing"
)

const password = "correct-horse"

type accountStore struct {
	byID map[int64]users.User
}

func (s *accountStore) GetUser(ctx context.Context, id int64) (users.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return users.User{}, httpx.ErrNotFound
	}
	return u, nil
}

func (s *accountStore) FindByEmail(ctx context.Context, email string) (users.User, error) {
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return users.User{}, httpx.ErrNotFound
}

func (s *accountStore) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *accountStore) DeleteSession(ctx context.Context, id string) error {
	return nil
}

type server struct {
	handler http.Handler
	tokens  *auth.TokenVerifier
	metrics *observability.Metrics
}

func newServer(t *testing.T) *server {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	store := &accountStore{byID: map[int64]users.User{
		1: {ID: 1, Email: "company@marketai.test", Role: access.RoleCompany, PasswordHash: string(hash), IsActive: true},
	}}

	cfg := &app.Config{AppEnv: "test", RateLimitPerMinute: 1000, AppRequestTimeout: 5 * time.Second}
	sessions := shared.NewSessionManager(client, "marketai_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	tokens := auth.NewTokenVerifier("token-secret", "marketai")
	metrics := observability.NewMetrics()
	guards := access.Middleware{Recorder: metrics}

	authHandler := auth.NewHandler(auth.HandlerParams{
		Service:  auth.NewService(store),
		Sessions: sessions,
		CSRF:     csrf,
		Tokens:   tokens,
		Guards:   guards,
	})

	handler := app.NewRouter(app.RouterParams{
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		Authenticator:  auth.NewAuthenticator(tokens, store, nil),
		Guards:         guards,
		AuthHandler:    authHandler,
		AccessHandler:  access.NewHandler(nil, nil, guards),
		JobHandler:     jobs.NewHandler(nil, nil),
		Metrics:        metrics,
	})
	return &server{handler: handler, tokens: tokens, metrics: metrics}
}

func (s *server) bearer(t *testing.T, role access.Role) string {
	t.Helper()
	raw, err := s.tokens.Issue(access.Principal{Subject: "idp|" + string(role), Role: role}, time.Minute)
	require.NoError(t, err)
	return "Bearer " + raw
}

func (s *server) do(req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec.Result()
}

func decode(t *testing.T, res *http.Response, v any) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

func TestBinariesSkipStartupUnderTest(t *testing.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.SessionSecret)
}

func TestHealthzSetsSecurityHeaders(t *testing.T) {
	s := newServer(t)
	res := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, res.Header.Get("X-Request-Id"))
}

func TestAccessRoutesRequirePrincipal(t *testing.T) {
	s := newServer(t)
	res := s.do(httptest.NewRequest(http.MethodGet, "/access/roles", nil))
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))

	req := httptest.NewRequest(http.MethodGet, "/access/roles", nil)
	req.Header.Set("Authorization", s.bearer(t, access.RoleEmployee))
	res = s.do(req)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Roles []struct {
			Role  string `json:"role"`
			Level int    `json:"level"`
		} `json:"roles"`
	}
	decode(t, res, &body)
	require.Len(t, body.Roles, 4)
	assert.Equal(t, "platform_owner", body.Roles[0].Role)
	assert.Equal(t, 4, body.Roles[0].Level)
}

func TestCheckWithBearerSkipsCSRF(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/access/check", strings.NewReader(`{"permission":"edit_data","target_role":"executor"}`))
	req.Header.Set("Authorization", s.bearer(t, access.RoleEmployee))
	res := s.do(req)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body access.CheckResponse
	decode(t, res, &body)
	require.NotNil(t, body.HasPermission)
	assert.True(t, *body.HasPermission)
	require.NotNil(t, body.CanManage)
	assert.True(t, *body.CanManage)
}

func TestCookieWritesRequireCSRF(t *testing.T) {
	s := newServer(t)
	res := s.do(httptest.NewRequest(http.MethodPost, "/access/check", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestJobsHealthRequiresPlatformOwner(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	req.Header.Set("Authorization", s.bearer(t, access.RoleCompany))
	assert.Equal(t, http.StatusForbidden, s.do(req).StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	req.Header.Set("Authorization", s.bearer(t, access.RolePlatformOwner))
	assert.Equal(t, http.StatusOK, s.do(req).StatusCode)

	metrics := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	defer metrics.Body.Close()
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `marketai_access_decisions_total{check="require_any",result="denied"} 1`)
}

func TestSessionLoginFlow(t *testing.T) {
	s := newServer(t)

	res := s.do(httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))
	require.Equal(t, http.StatusOK, res.StatusCode)
	cookies := res.Cookies()
	require.NotEmpty(t, cookies)
	var csrf map[string]string
	decode(t, res, &csrf)
	require.NotEmpty(t, csrf["csrf_token"])

	login := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"company@marketai.test","password":"`+password+`"}`))
	for _, c := range cookies {
		login.AddCookie(c)
	}
	res = s.do(login)
	require.Equal(t, http.StatusOK, res.StatusCode)
	sessionCookie := findCookie(res.Cookies(), "marketai_session")
	require.NotNil(t, sessionCookie)
	assert.NotEqual(t, cookies[0].Value, sessionCookie.Value, "login must rotate the session id")
	var me auth.MeResponse
	decode(t, res, &me)
	assert.Equal(t, "company", me.Role)
	csrfToken := me.CSRFToken
	require.NotEmpty(t, csrfToken)

	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.AddCookie(sessionCookie)
	res = s.do(meReq)
	require.Equal(t, http.StatusOK, res.StatusCode)
	me = auth.MeResponse{}
	decode(t, res, &me)
	assert.Equal(t, int64(1), me.ID)
	assert.Contains(t, me.Permissions, "manage_company_users")

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.AddCookie(sessionCookie)
	assert.Equal(t, http.StatusForbidden, s.do(logout).StatusCode)

	logout = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.AddCookie(sessionCookie)
	logout.Header.Set(shared.CSRFHeader, csrfToken)
	assert.Equal(t, http.StatusNoContent, s.do(logout).StatusCode)

	meReq = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.AddCookie(sessionCookie)
	assert.Equal(t, http.StatusUnauthorized, s.do(meReq).StatusCode)
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
