package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tailorhub/tailorhub/internal/shared"
	"github.com/tailorhub/tailorhub/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	accounts Accounts
	repo     Repository
	now      func() time.Time
}

// NewService constructs a new Service.
func NewService(accounts Accounts, repo Repository) *Service {
	return &Service{accounts: accounts, repo: repo, now: time.Now}
}

// Authenticate validates email/password credentials. Unknown, disabled and
// wrong-password accounts all fail the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := s.accounts.TouchLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return users.User{}, err
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
