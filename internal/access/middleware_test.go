package access_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marketai/marketai-admin/internal/access"
)

type recordedDecision struct {
	check   string
	allowed bool
}

type stubRecorder struct {
	mu        sync.Mutex
	decisions []recordedDecision
}

func (s *stubRecorder) ObserveDecision(check string, allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, recordedDecision{check: check, allowed: allowed})
}

func serve(t *testing.T, guard func(http.Handler) http.Handler, principal *access.Principal) int {
	t.Helper()
	handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/finance", nil)
	if principal != nil {
		req = req.WithContext(access.ContextWithPrincipal(req.Context(), *principal))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr.Code
}

func TestMiddlewareWithoutPrincipal(t *testing.T) {
	recorder := &stubRecorder{}
	mw := access.Middleware{Recorder: recorder}

	assert.Equal(t, http.StatusUnauthorized, serve(t, mw.RequireAuthenticated(), nil))
	assert.Equal(t, http.StatusUnauthorized, serve(t, mw.RequireAny(), nil))
	assert.Equal(t, []recordedDecision{{"authenticated", false}, {"require_any", false}}, recorder.decisions)
}

func TestMiddlewareRequireAny(t *testing.T) {
	mw := access.Middleware{}
	executor := &access.Principal{Subject: "u-1", Role: access.RoleExecutor}

	assert.Equal(t, http.StatusNoContent, serve(t, mw.RequireAny(access.PermViewData, access.PermManageAllData), executor))
	assert.Equal(t, http.StatusForbidden, serve(t, mw.RequireAny(access.PermViewFinance), executor))
	assert.Equal(t, http.StatusNoContent, serve(t, mw.RequireAny(), executor))
}

func TestMiddlewareRequireAll(t *testing.T) {
	mw := access.Middleware{}
	company := &access.Principal{Subject: "u-2", Role: access.RoleCompany}

	assert.Equal(t, http.StatusNoContent, serve(t, mw.RequireAll(access.PermViewFinance, access.PermManageFinance), company))
	assert.Equal(t, http.StatusForbidden, serve(t, mw.RequireAll(access.PermViewFinance, access.PermManagePlatform), company))
}

func TestMiddlewareHonoursExplicitPermissions(t *testing.T) {
	mw := access.Middleware{}
	// An explicit list replaces the role defaults entirely.
	owner := &access.Principal{Role: access.RolePlatformOwner, Permissions: []access.Permission{access.PermViewData}}

	assert.Equal(t, http.StatusForbidden, serve(t, mw.RequireAny(access.PermManagePlatform), owner))
	assert.Equal(t, http.StatusNoContent, serve(t, mw.RequireAll(access.PermViewData), owner))
}

func TestMiddlewareUsesInjectedTable(t *testing.T) {
	cfg := access.DefaultConfig()
	cfg[access.RoleExecutor] = []access.Permission{access.PermViewFinance}
	table := access.MustNewTable(cfg)
	mw := access.Middleware{Table: table}

	executor := &access.Principal{Role: access.RoleExecutor}
	assert.Equal(t, http.StatusNoContent, serve(t, mw.RequireAny(access.PermViewFinance), executor))
	assert.Equal(t, http.StatusForbidden, serve(t, mw.RequireAny(access.PermViewData), executor))
}

func TestMiddlewareRequireRole(t *testing.T) {
	recorder := &stubRecorder{}
	mw := access.Middleware{Recorder: recorder}

	assert.Equal(t, http.StatusNoContent, serve(t, mw.RequireRole(access.RoleEmployee), &access.Principal{Role: access.RoleCompany}))
	assert.Equal(t, http.StatusNoContent, serve(t, mw.RequireRole(access.RoleEmployee), &access.Principal{Role: access.RoleEmployee}))
	assert.Equal(t, http.StatusForbidden, serve(t, mw.RequireRole(access.RoleEmployee), &access.Principal{Role: access.RoleExecutor}))
	assert.Equal(t, http.StatusForbidden, serve(t, mw.RequireRole(access.Role("ghost")), &access.Principal{Role: access.Role("ghost")}))

	assert.Len(t, recorder.decisions, 4)
	assert.True(t, recorder.decisions[0].allowed)
	assert.False(t, recorder.decisions[3].allowed)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := access.PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := access.ContextWithPrincipal(context.Background(), access.Principal{Subject: "a", Role: access.RoleEmployee})
	p, ok := access.PrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "a", p.Subject)
	assert.Equal(t, access.LevelEmployee, p.Level())
	assert.True(t, p.Outranks(access.RoleExecutor))
	assert.False(t, p.Outranks(access.RoleEmployee))
}
