package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/shared"
)

var (
	// ErrNotFound is returned for missing users.
	ErrNotFound = fmt.Errorf("%w: user", shared.ErrNotFound)
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = fmt.Errorf("%w: a user with this email already exists", shared.ErrConflict)
	// ErrUnknownBranch is returned when the branch does not exist.
	ErrUnknownBranch = fmt.Errorf("%w: unknown branch", shared.ErrValidation)
	// ErrSelfLockout is returned when an admin tries to deactivate or demote themselves.
	ErrSelfLockout = fmt.Errorf("%w: you cannot deactivate or demote your own account", shared.ErrValidation)
	// ErrInactive is returned when resolving a disabled account.
	ErrInactive = fmt.Errorf("%w: account disabled", shared.ErrUnauthorized)
)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Service handles user administration.
type Service struct {
	repo     Repository
	activity *activity.Logger
	now      func() time.Time
}

// NewService builds the service.
func NewService(repo Repository, audit *activity.Logger) *Service {
	return &Service{repo: repo, activity: audit, now: time.Now}
}

// List returns user accounts.
func (s *Service) List(ctx context.Context, p access.Principal, q ListQuery) (shared.Page[User], error) {
	if err := access.RequireAdmin(p); err != nil {
		return shared.Page[User]{}, err
	}
	q.Page, q.PerPage = shared.NormalizePage(q.Page, q.PerPage)
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return shared.Page[User]{}, fmt.Errorf("list users: %w", err)
	}
	return shared.NewPage(items, q.Page, q.PerPage, total), nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, p access.Principal, id string) (User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create registers a new account after checking role and branch agree.
func (s *Service) Create(ctx context.Context, p access.Principal, req CreateUserRequest) (User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return User{}, err
	}
	branchID := strings.TrimSpace(req.BranchID)
	scope := access.Unrestricted()
	if branchID != "" {
		scope = access.Scoped(branchID)
	}
	if err := access.ValidateRoleBranch(req.Role, scope); err != nil {
		return User{}, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return User{}, err
	}
	now := s.now().UTC()
	u := User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		BranchID:     scope.Nullable(),
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	s.log(ctx, p, activity.ActionCreate, u, "Created user "+u.Email)
	return u, nil
}

// Update edits an account. The merged role and branch must still agree.
func (s *Service) Update(ctx context.Context, p access.Principal, id string, req UpdateUserRequest) (User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return User{}, err
	}
	var updated User
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		u, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if req.FullName != nil {
			u.FullName = strings.TrimSpace(*req.FullName)
		}
		if req.Role != nil {
			u.Role = *req.Role
		}
		if req.BranchID != nil {
			u.BranchID = access.Scoped(strings.TrimSpace(*req.BranchID)).Nullable()
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if u.ID == p.ID && (!u.IsActive || u.Role != access.RoleAdmin) {
			return ErrSelfLockout
		}
		if err := access.ValidateRoleBranch(u.Role, u.Scope()); err != nil {
			return err
		}
		if req.Password != nil {
			hash, err := HashPassword(*req.Password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
		}
		u.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return User{}, err
	}
	s.log(ctx, p, activity.ActionUpdate, updated, "Updated user "+updated.Email)
	return updated, nil
}

// LoadPrincipal resolves a session's user id into an access principal.
// Disabled accounts are rejected so their sessions stop working at once.
func (s *Service) LoadPrincipal(ctx context.Context, id string) (access.Principal, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return access.Principal{}, err
	}
	if !u.IsActive {
		return access.Principal{}, ErrInactive
	}
	return u.Principal(), nil
}

func (s *Service) log(ctx context.Context, p access.Principal, action activity.Action, u User, description string) {
	branchID := ""
	if u.BranchID != nil {
		branchID = *u.BranchID
	}
	s.activity.Log(ctx, activity.NewEntry(p, action, activity.EntityUser, u.ID, branchID, description).
		WithMeta(map[string]any{"role": string(u.Role)}))
}
