package access

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketai/marketai-admin/internal/platform/httpx"
)

// Handler exposes the role table and the evaluator to the dashboard so route
// guards and form controls can ask the same questions the API enforces.
type Handler struct {
	logger *slog.Logger
	table  *Table
	guards Middleware
}

// NewHandler builds a Handler. A nil table selects the default table.
func NewHandler(logger *slog.Logger, table *Table, guards Middleware) *Handler {
	if table == nil {
		table = DefaultTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, table: table, guards: guards}
}

// MountRoutes registers access routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequireAuthenticated())
		r.Get("/roles", h.listRoles)
		r.Get("/permissions", h.listPermissions)
		r.Get("/assignable-roles", h.assignableRoles)
		r.Post("/check", h.check)
	})
}

type roleView struct {
	Role        string   `json:"role"`
	Label       string   `json:"label"`
	Level       int      `json:"level"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) roleView(role Role) roleView {
	return roleView{
		Role:        string(role),
		Label:       role.Label(),
		Level:       int(HierarchyLevel(role)),
		Permissions: h.table.Defaults(role).Strings(),
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles := Roles()
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, h.roleView(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms := Permissions()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *Handler) assignableRoles(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	roles := AssignableRoles(principal.Role)
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, h.roleView(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

// CheckRequest describes a batch of evaluations. When Role is nil the current
// principal's role and explicit permissions are used.
type CheckRequest struct {
	Role         *string  `json:"role,omitempty"`
	Permissions  []string `json:"permissions,omitempty"`
	Permission   string   `json:"permission,omitempty"`
	Any          []string `json:"any,omitempty"`
	All          []string `json:"all,omitempty"`
	RequiredRole string   `json:"required_role,omitempty"`
	TargetRole   string   `json:"target_role,omitempty"`
}

// CheckResponse carries the outcome of each requested evaluation.
type CheckResponse struct {
	Role            string   `json:"role"`
	Level           int      `json:"level"`
	Effective       []string `json:"effective"`
	HasPermission   *bool    `json:"has_permission,omitempty"`
	HasAny          *bool    `json:"has_any,omitempty"`
	HasAll          *bool    `json:"has_all,omitempty"`
	HasRoleOrHigher *bool    `json:"has_role_or_higher,omitempty"`
	CanManage       *bool    `json:"can_manage,omitempty"`
}

// Evaluate answers req against the table for the given principal. Unknown
// tokens are evaluated as-is and therefore never grant anything.
func (h *Handler) Evaluate(principal Principal, req CheckRequest) CheckResponse {
	role := principal.Role
	explicit := principal.Permissions
	if req.Role != nil {
		role, _ = ParseRole(*req.Role)
		explicit = parsePermissions(req.Permissions)
	}
	effective := h.table.EffectivePermissions(role, explicit...)

	resp := CheckResponse{
		Role:      string(role),
		Level:     int(HierarchyLevel(role)),
		Effective: effective.Strings(),
	}
	if req.Permission != "" {
		p, _ := ParsePermission(req.Permission)
		resp.HasPermission = boolPtr(HasPermission(effective, p))
	}
	if req.Any != nil {
		resp.HasAny = boolPtr(HasAnyPermission(effective, parsePermissions(req.Any)...))
	}
	if req.All != nil {
		resp.HasAll = boolPtr(HasAllPermissions(effective, parsePermissions(req.All)...))
	}
	if req.RequiredRole != "" {
		required, _ := ParseRole(req.RequiredRole)
		resp.HasRoleOrHigher = boolPtr(HasRoleOrHigher(role, required))
	}
	if req.TargetRole != "" {
		target, _ := ParseRole(req.TargetRole)
		resp.CanManage = boolPtr(CanManageUser(role, target))
	}
	return resp
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.logger.Debug("decode access check", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, h.Evaluate(principal, req))
}

func parsePermissions(raw []string) []Permission {
	out := make([]Permission, 0, len(raw))
	for _, token := range raw {
		p, _ := ParsePermission(token)
		out = append(out, p)
	}
	return out
}

func boolPtr(v bool) *bool {
	return &v
}
