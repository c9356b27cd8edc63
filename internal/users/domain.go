package users

import (
	"strconv"
	"time"

	"github.com/marketai/marketai-admin/internal/access"
)

// User represents a dashboard account.
type User struct {
	ID           int64               `json:"id"`
	Email        string              `json:"email"`
	Name         string              `json:"name"`
	Role         access.Role         `json:"role"`
	Permissions  []access.Permission `json:"permissions"`
	PasswordHash string              `json:"-"`
	IsActive     bool                `json:"is_active"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Principal converts the account into the actor used for access checks.
func (u User) Principal() access.Principal {
	return access.Principal{
		Subject:     strconv.FormatInt(u.ID, 10),
		UserID:      u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: u.Permissions,
	}
}

// CreateParams carries the fields stored for a new user.
type CreateParams struct {
	Email        string
	Name         string
	PasswordHash string
	Role         access.Role
	Permissions  []access.Permission
}
