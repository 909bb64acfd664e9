// Package users manages staff accounts and resolves them into access
// principals for the session layer.
package users

import (
	"time"

	"github.com/tailorhub/tailorhub/internal/access"
)

// User is a staff account. ADMIN users carry no branch; STAFF and VIEWER
// users belong to exactly one.
type User struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	FullName     string      `json:"full_name"`
	Role         access.Role `json:"role"`
	BranchID     *string     `json:"branch_id"`
	BranchName   string      `json:"branch_name,omitempty"`
	IsActive     bool        `json:"is_active"`
	PasswordHash string      `json:"-"`
	LastLoginAt  *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Scope returns the user's branch scope.
func (u User) Scope() access.Scope {
	return access.ScopeFromNullable(u.BranchID)
}

// Principal converts the account into the actor used by access checks.
func (u User) Principal() access.Principal {
	return access.Principal{
		ID:         u.ID,
		Name:       u.FullName,
		Role:       u.Role,
		Branch:     u.Scope(),
		BranchName: u.BranchName,
	}
}

// ListQuery filters user listings.
type ListQuery struct {
	BranchID string
	Role     access.Role
	Page     int
	PerPage  int
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Email    string      `json:"email" validate:"required,email,max=200"`
	FullName string      `json:"full_name" validate:"required,max=200"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Role     access.Role `json:"role" validate:"required,oneof=ADMIN STAFF VIEWER"`
	BranchID string      `json:"branch_id,omitempty"`
}

// UpdateUserRequest is the body of PUT /users/{id}. An empty branch_id
// clears the assignment, which is what an ADMIN needs.
type UpdateUserRequest struct {
	FullName *string      `json:"full_name,omitempty" validate:"omitempty,min=1,max=200"`
	Password *string      `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
	Role     *access.Role `json:"role,omitempty" validate:"omitempty,oneof=ADMIN STAFF VIEWER"`
	BranchID *string      `json:"branch_id,omitempty"`
	IsActive *bool        `json:"is_active,omitempty"`
}
