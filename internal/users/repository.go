package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketai/marketai-admin/internal/access"
	"github.com/marketai/marketai-admin/internal/platform/httpx"
)

const uniqueViolation = "23505"

const userColumns = `id, email, name, role, permissions, password_hash, is_active, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns one page of users ordered by ID and the total count.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	users := make([]User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	return users, total, nil
}

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// CreateUser inserts a new active user.
func (r *Repository) CreateUser(ctx context.Context, params CreateParams) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, role, permissions, password_hash, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
RETURNING `+userColumns,
		params.Email, params.Name, string(params.Role), permissionStrings(params.Permissions), params.PasswordHash)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, fmt.Errorf("%w: email %s already registered", httpx.ErrDuplicate, params.Email)
		}
		return User{}, err
	}
	return user, nil
}

// UpdateRole stores a new role for the user.
func (r *Repository) UpdateRole(ctx context.Context, id int64, role access.Role) (User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, string(role))
	return scanUser(row)
}

// SetPermissions replaces the explicit permission override. An empty list
// returns the user to the role defaults.
func (r *Repository) SetPermissions(ctx context.Context, id int64, perms []access.Permission) (User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users SET permissions = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, permissionStrings(perms))
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user  User
		role  string
		perms []string
	)
	err := row.Scan(&user.ID, &user.Email, &user.Name, &role, &perms, &user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("users: %w", httpx.ErrNotFound)
		}
		return User{}, err
	}
	// Stored tokens are passed through untouched; unknown ones grant nothing.
	user.Role = access.Role(role)
	user.Permissions = make([]access.Permission, 0, len(perms))
	for _, p := range perms {
		user.Permissions = append(user.Permissions, access.Permission(p))
	}
	return user, nil
}

func permissionStrings(perms []access.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
