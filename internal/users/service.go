package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/marketai/marketai-admin/internal/access"
	"github.com/marketai/marketai-admin/internal/platform/httpx"
	"github.com/marketai/marketai-admin/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, params CreateParams) (User, error)
	UpdateRole(ctx context.Context, id int64, role access.Role) (User, error)
	SetPermissions(ctx context.Context, id int64, perms []access.Permission) (User, error)
}

// AuditPublisher receives access management events.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, log shared.AuditLog) error
}

// Service handles user management rules. Every mutation is checked against
// the acting principal's rank and effective permissions.
type Service struct {
	repo   RepositoryPort
	table  *access.Table
	audit  AuditPublisher
	logger *slog.Logger
}

// NewService builds Service instance. A nil table selects the default table;
// audit may be nil.
func NewService(repo RepositoryPort, table *access.Table, audit AuditPublisher, logger *slog.Logger) *Service {
	if table == nil {
		table = access.DefaultTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, table: table, audit: audit, logger: logger}
}

// CreateInput describes a user to create.
type CreateInput struct {
	Email       string
	Name        string
	Password    string
	Role        string
	Permissions []string
}

// ListUsers returns one page of users.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	users, total, err := s.repo.ListUsers(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser creates an account with a role the actor outranks.
func (s *Service) CreateUser(ctx context.Context, actor access.Principal, in CreateInput) (User, error) {
	role, ok := access.ParseRole(in.Role)
	if !ok {
		return User{}, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, in.Role)
	}
	if !actor.Outranks(role) {
		return User{}, fmt.Errorf("%w: %s cannot create %s accounts", httpx.ErrForbidden, actor.Role, role)
	}
	perms, err := s.grantable(actor, in.Permissions)
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, CreateParams{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         role,
		Permissions:  perms,
	})
	if err != nil {
		return User{}, err
	}
	s.publish(ctx, actor, shared.AuditUserCreated, user.ID, map[string]any{
		"role":        string(role),
		"permissions": permissionStrings(perms),
	})
	return user, nil
}

// ChangeRole moves a user to another role. The actor must outrank both the
// current and the requested role.
func (s *Service) ChangeRole(ctx context.Context, actor access.Principal, id int64, rawRole string) (User, error) {
	role, ok := access.ParseRole(rawRole)
	if !ok {
		return User{}, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, rawRole)
	}
	target, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !actor.Outranks(target.Role) {
		return User{}, fmt.Errorf("%w: %s cannot manage %s accounts", httpx.ErrForbidden, actor.Role, target.Role)
	}
	if !actor.Outranks(role) {
		return User{}, fmt.Errorf("%w: %s cannot assign role %s", httpx.ErrForbidden, actor.Role, role)
	}
	if target.Role == role {
		return target, nil
	}
	updated, err := s.repo.UpdateRole(ctx, id, role)
	if err != nil {
		return User{}, err
	}
	s.publish(ctx, actor, shared.AuditUserRoleChanged, id, map[string]any{
		"from": string(target.Role),
		"to":   string(role),
	})
	return updated, nil
}

// SetPermissions replaces the explicit permission override of a user. An
// empty list restores the role defaults.
func (s *Service) SetPermissions(ctx context.Context, actor access.Principal, id int64, raw []string) (User, error) {
	target, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !actor.Outranks(target.Role) {
		return User{}, fmt.Errorf("%w: %s cannot manage %s accounts", httpx.ErrForbidden, actor.Role, target.Role)
	}
	perms, err := s.grantable(actor, raw)
	if err != nil {
		return User{}, err
	}
	updated, err := s.repo.SetPermissions(ctx, id, perms)
	if err != nil {
		return User{}, err
	}
	s.publish(ctx, actor, shared.AuditUserPermissionsSet, id, map[string]any{
		"from": permissionStrings(target.Permissions),
		"to":   permissionStrings(perms),
	})
	return updated, nil
}

// EffectivePermissions resolves the permissions applied to u.
func (s *Service) EffectivePermissions(u User) access.PermissionSet {
	return s.table.EffectivePermissions(u.Role, u.Permissions...)
}

// grantable parses raw tokens, rejecting unknown ones and anything the actor
// does not hold itself. Duplicates are dropped. An empty list is always
// grantable: the target falls back to its role defaults, which are governed
// by the rank check alone.
func (s *Service) grantable(actor access.Principal, raw []string) ([]access.Permission, error) {
	perms := make([]access.Permission, 0, len(raw))
	seen := make(map[access.Permission]struct{}, len(raw))
	for _, token := range raw {
		p, ok := access.ParsePermission(token)
		if !ok {
			return nil, fmt.Errorf("%w: unknown permission %q", httpx.ErrValidation, token)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	if !access.CanGrant(actor.Effective(s.table), perms...) {
		return nil, fmt.Errorf("%w: cannot grant permissions you do not hold", httpx.ErrForbidden)
	}
	return perms, nil
}

func (s *Service) publish(ctx context.Context, actor access.Principal, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.PublishAudit(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("publish audit", slog.String("action", action), slog.Any("error", err))
	}
}
