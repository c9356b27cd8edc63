package access

import (
	"log/slog"
	"net/http"

	"github.com/marketai/marketai-admin/internal/platform/httpx"
)

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	ObserveDecision(check string, allowed bool)
}

// Middleware wires access guards for HTTP handlers. The principal must have
// been placed in the request context by an authentication middleware.
type Middleware struct {
	Table    *Table
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// RequireAuthenticated rejects requests without a principal.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.guard("authenticated", func(Principal) bool { return true })
}

// RequireAny ensures the principal holds at least one of perms. An empty list
// lets any authenticated principal through.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return m.guard("require_any", func(p Principal) bool {
		if len(perms) == 0 {
			return true
		}
		return HasAnyPermission(p.Effective(m.Table), perms...)
	})
}

// RequireAll ensures the principal holds every one of perms.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return m.guard("require_all", func(p Principal) bool {
		return HasAllPermissions(p.Effective(m.Table), perms...)
	})
}

// RequireRole ensures the principal's role ranks at least as high as role.
func (m Middleware) RequireRole(role Role) func(http.Handler) http.Handler {
	return m.guard("require_role", func(p Principal) bool {
		// An unknown required role would admit unknown principals at level zero.
		if !role.Valid() {
			return false
		}
		return HasRoleOrHigher(p.Role, role)
	})
}

func (m Middleware) guard(check string, allow func(Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				m.observe(check, false)
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !allow(principal) {
				m.observe(check, false)
				if m.Logger != nil {
					m.Logger.Warn("access denied",
						slog.String("check", check),
						slog.String("subject", principal.Subject),
						slog.String("role", string(principal.Role)),
						slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "access denied")
				return
			}
			m.observe(check, true)
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) observe(check string, allowed bool) {
	if m.Recorder != nil {
		m.Recorder.ObserveDecision(check, allowed)
	}
}
