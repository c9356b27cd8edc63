package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/marketai/marketai-admin/internal/access"
	"github.com/marketai/marketai-admin/internal/platform/httpx"
	"github.com/marketai/marketai-admin/internal/shared"
	"github.com/marketai/marketai-admin/internal/users"
)

// UserLookup loads accounts referenced by sessions.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// Authenticator resolves the request principal from a bearer token or the
// session and stores it in the request context. It never rejects a request:
// guards decide what an anonymous caller may reach.
type Authenticator struct {
	tokens *TokenVerifier
	users  UserLookup
	logger *slog.Logger
	group  singleflight.Group
}

// NewAuthenticator builds an Authenticator. tokens may be nil.
func NewAuthenticator(tokens *TokenVerifier, lookup UserLookup, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{tokens: tokens, users: lookup, logger: logger}
}

// Middleware attaches the resolved principal, if any.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := a.Resolve(r); ok {
			r = r.WithContext(access.ContextWithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

// Resolve determines the principal for r. A bearer token takes precedence
// over the session; an invalid token does not fall back to the session.
func (a *Authenticator) Resolve(r *http.Request) (access.Principal, bool) {
	if raw, ok := BearerToken(r); ok {
		principal, err := a.tokens.Verify(raw)
		if err != nil {
			a.logger.Debug("bearer token rejected", slog.Any("error", err))
			return access.Principal{}, false
		}
		return principal, true
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" || a.users == nil {
		return access.Principal{}, false
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		a.logger.Error("parse session user id", slog.String("value", sess.User()))
		return access.Principal{}, false
	}
	user, err := a.lookup(r.Context(), id)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			a.logger.Error("load session user", slog.Int64("user_id", id), slog.Any("error", err))
		}
		return access.Principal{}, false
	}
	if !user.IsActive {
		return access.Principal{}, false
	}
	return user.Principal(), true
}

func (a *Authenticator) lookup(ctx context.Context, id int64) (users.User, error) {
	key := strconv.FormatInt(id, 10)
	ch := a.group.DoChan(key, func() (any, error) {
		return a.users.GetUser(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return users.User{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return users.User{}, res.Err
		}
		return res.Val.(users.User), nil
	}
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
