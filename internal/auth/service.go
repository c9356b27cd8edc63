package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/marketai/marketai-admin/internal/platform/httpx"
	"github.com/marketai/marketai-admin/internal/users"
)

// ErrInvalidCredentials covers unknown emails, inactive accounts and wrong
// passwords alike.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// decoyHash is compared against when the email is unknown so both paths pay
// for a bcrypt comparison.
var decoyHash, _ = bcrypt.GenerateFromPassword([]byte("marketai-decoy-password"), bcrypt.DefaultCost)

// Service checks credentials and tracks login sessions.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate resolves the account behind email and verifies password.
// Lookup failures other than a missing row are returned wrapped.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case errors.Is(err, httpx.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(password))
		return users.User{}, ErrInvalidCredentials
	case err != nil:
		return users.User{}, fmt.Errorf("auth: find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil || !user.IsActive {
		return users.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession records a login so it can be listed and purged later.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if err := s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua); err != nil {
		return fmt.Errorf("auth: register session: %w", err)
	}
	return nil
}

// RemoveSession forgets a login session.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("auth: remove session: %w", err)
	}
	return nil
}
