// Package auth signs users in and out and turns the session cookie into an
// access principal for every request.
package auth

import (
	"context"
	"time"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/users"
)

// Accounts looks up credentials.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// PrincipalLoader resolves a session's user id into a principal.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID string) (access.Principal, error)
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	User      access.Principal `json:"user"`
	CSRFToken string           `json:"csrf_token"`
}
