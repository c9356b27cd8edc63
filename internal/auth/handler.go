package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/marketai/marketai-admin/internal/access"
	"github.com/marketai/marketai-admin/internal/platform/httpx"
	"github.com/marketai/marketai-admin/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	tokens         *TokenVerifier
	table          *access.Table
	guards         access.Middleware
	validator      *validator.Validate
}

// HandlerParams groups Handler dependencies.
type HandlerParams struct {
	Logger   *slog.Logger
	Service  *Service
	Sessions *shared.SessionManager
	CSRF     *shared.CSRFManager
	Tokens   *TokenVerifier
	Table    *access.Table
	Guards   access.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(p HandlerParams) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	table := p.Table
	if table == nil {
		table = access.DefaultTable()
	}
	return &Handler{
		logger:         logger,
		service:        p.Service,
		sessionManager: p.Sessions,
		csrfManager:    p.CSRF,
		tokens:         p.Tokens,
		table:          table,
		guards:         p.Guards,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.csrfToken)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.With(h.guards.RequireAuthenticated()).Get("/me", h.me)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// MeResponse describes the current principal to the dashboard.
type MeResponse struct {
	ID          int64    `json:"id,omitempty"`
	Subject     string   `json:"subject"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role"`
	RoleLabel   string   `json:"role_label"`
	Level       int      `json:"level"`
	Explicit    []string `json:"explicit_permissions"`
	Permissions []string `json:"permissions"`
	CSRFToken   string   `json:"csrf_token,omitempty"`
	Token       string   `json:"token,omitempty"`
}

func (h *Handler) meResponse(p access.Principal) MeResponse {
	explicit := make([]string, len(p.Permissions))
	for i, perm := range p.Permissions {
		explicit[i] = string(perm)
	}
	return MeResponse{
		ID:          p.UserID,
		Subject:     p.Subject,
		Email:       p.Email,
		Role:        string(p.Role),
		RoleLabel:   p.Role.Label(),
		Level:       int(p.Level()),
		Explicit:    explicit,
		Permissions: p.Effective(h.table).Strings(),
	}
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfManager.EnsureToken(shared.SessionFromContext(r.Context()))
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fieldErrs[0].Field()+" failed on "+fieldErrs[0].Tag())
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.sessionManager.Renew(sess)
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.Delete(shared.CSRFSessionKey)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	resp := h.meResponse(user.Principal())
	if resp.CSRFToken, err = h.csrfManager.EnsureToken(sess); err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
	}
	if h.tokens != nil {
		if resp.Token, err = h.tokens.Issue(user.Principal(), h.sessionManager.TTL()); err != nil {
			h.logger.Error("issue token", slog.Any("error", err))
		}
	}
	h.logger.Info("user logged in", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, _ := access.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, h.meResponse(principal))
}
