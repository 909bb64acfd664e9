package branches

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/shared"
)

var (
	// ErrNotFound is returned for missing or invisible branches.
	ErrNotFound = fmt.Errorf("%w: branch", shared.ErrNotFound)
	// ErrDuplicateName is returned when another branch already uses the name.
	ErrDuplicateName = fmt.Errorf("%w: a branch with this name already exists", shared.ErrConflict)
	// ErrAlreadyInactive is returned when deactivating an inactive branch.
	ErrAlreadyInactive = fmt.Errorf("%w: branch is already inactive", shared.ErrValidation)
)

// Service manages branches. Reads follow the branch policy; writes are
// reserved for admins.
type Service struct {
	repo     Repository
	activity *activity.Logger
	now      func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, audit *activity.Logger) *Service {
	return &Service{repo: repo, activity: audit, now: time.Now}
}

// List returns every branch for admins and the caller's own branch otherwise.
func (s *Service) List(ctx context.Context, p access.Principal, q ListQuery) ([]Branch, error) {
	filter, err := access.BuildBranchFilter(p)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, filter, q)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	if items == nil {
		items = []Branch{}
	}
	return items, nil
}

// Get returns one branch if p may see it.
func (s *Service) Get(ctx context.Context, p access.Principal, id string) (Branch, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return Branch{}, err
	}
	if err := access.Guard(p, b.ID, ErrNotFound); err != nil {
		return Branch{}, err
	}
	return b, nil
}

// Create opens a new branch.
func (s *Service) Create(ctx context.Context, p access.Principal, req CreateBranchRequest) (Branch, error) {
	if err := access.RequireAdmin(p); err != nil {
		return Branch{}, err
	}
	now := s.now().UTC()
	b := Branch{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		Phone:     strings.TrimSpace(req.Phone),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if b.Name == "" {
		return Branch{}, fmt.Errorf("%w: branch name is required", shared.ErrValidation)
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return Branch{}, fmt.Errorf("create branch: %w", err)
	}
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionCreate, activity.EntityBranch, b.ID, b.ID,
		"Created branch "+b.Name))
	return b, nil
}

// Update edits a branch.
func (s *Service) Update(ctx context.Context, p access.Principal, id string, req UpdateBranchRequest) (Branch, error) {
	if err := access.RequireAdmin(p); err != nil {
		return Branch{}, err
	}
	return s.mutate(ctx, p, id, "Updated branch ", func(b *Branch) error {
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return fmt.Errorf("%w: branch name is required", shared.ErrValidation)
			}
			b.Name = name
		}
		if req.Address != nil {
			b.Address = strings.TrimSpace(*req.Address)
		}
		if req.Phone != nil {
			b.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.IsActive != nil {
			b.IsActive = *req.IsActive
		}
		return nil
	})
}

// Deactivate closes a branch. Its records stay readable.
func (s *Service) Deactivate(ctx context.Context, p access.Principal, id string) (Branch, error) {
	if err := access.RequireAdmin(p); err != nil {
		return Branch{}, err
	}
	return s.mutate(ctx, p, id, "Deactivated branch ", func(b *Branch) error {
		if !b.IsActive {
			return ErrAlreadyInactive
		}
		b.IsActive = false
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, p access.Principal, id, verb string, apply func(*Branch) error) (Branch, error) {
	var updated Branch
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		b, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(&b); err != nil {
			return err
		}
		b.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return Branch{}, err
	}
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionUpdate, activity.EntityBranch, updated.ID, updated.ID,
		verb+updated.Name))
	return updated, nil
}
