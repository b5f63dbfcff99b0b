package users

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/recruitdesk/recruitdesk/internal/authz"
)

var (
	// ErrNotFound indicates that the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrEmailTaken indicates another account already uses the address.
	ErrEmailTaken = errors.New("users: email already exists")
	// ErrRoleNotAssignable indicates the actor may not create users with the requested role.
	ErrRoleNotAssignable = errors.New("users: role not assignable")
	// ErrSelfDelete indicates an attempt to delete the acting account.
	ErrSelfDelete = errors.New("users: cannot delete own account")
	// ErrInvalidRole indicates a role outside the catalog.
	ErrInvalidRole = errors.New("users: invalid role")
	// ErrInUse indicates the user is still referenced by jobs or applications.
	ErrInUse = errors.New("users: still referenced by jobs or applications")
)

// User represents a panel account.
type User struct {
	ID              int64        `json:"id"`
	UUID            uuid.UUID    `json:"uuid"`
	Name            string       `json:"name"`
	LastName        string       `json:"last_name"`
	Email           string       `json:"email"`
	PasswordHash    string       `json:"-"`
	Avatar          string       `json:"avatar,omitempty"`
	CreatedBy       *int64       `json:"created_by,omitempty"`
	EmailVerifiedAt *time.Time   `json:"email_verified_at,omitempty"`
	Roles           []authz.Role `json:"roles"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Principal derives the acting identity. It fails unless exactly one role is
// assigned.
func (u User) Principal() (authz.Principal, error) {
	return authz.NewPrincipal(u.ID, u.Roles)
}

// HasRole reports whether role is among the assigned roles.
func (u User) HasRole(role authz.Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Field exposes columns for in-memory query evaluation.
func (u User) Field(column string) any {
	switch column {
	case "id":
		return u.ID
	case "name":
		return u.Name
	case "last_name":
		return u.LastName
	case "email":
		return u.Email
	case authz.UsersOwnerColumn:
		if u.CreatedBy == nil {
			return nil
		}
		return *u.CreatedBy
	case "created_at":
		return u.CreatedAt
	case "updated_at":
		return u.UpdatedAt
	default:
		return nil
	}
}

// SearchColumns are matched by the listing search box.
var SearchColumns = []string{"name", "last_name", "email"}

// ListRequest filters the users listing.
type ListRequest struct {
	Search  string
	Page    int
	PerPage int
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Name     string     `json:"name" validate:"required,max=255"`
	LastName string     `json:"last_name" validate:"omitempty,max=255"`
	Email    string     `json:"email" validate:"required,email,max=255"`
	Role     authz.Role `json:"role" validate:"required"`
	Avatar   string     `json:"avatar" validate:"omitempty,url"`
}

// UpdateInput carries optional changes to an account.
type UpdateInput struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	LastName *string `json:"last_name" validate:"omitempty,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}
