package customers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/shared"
)

var (
	// ErrNotFound is returned for missing or invisible customers.
	ErrNotFound = fmt.Errorf("%w: customer", shared.ErrNotFound)
	// ErrDuplicatePhone is returned when the phone number is taken in the branch.
	ErrDuplicatePhone = fmt.Errorf("%w: a customer with this phone number already exists in the branch", shared.ErrConflict)
	// ErrUnknownBranch is returned when the target branch does not exist.
	ErrUnknownBranch = fmt.Errorf("%w: unknown branch", shared.ErrValidation)
)

// Invalidator drops cached report data. Deleting a customer cascades to
// orders and payments, so cached totals must be rebuilt.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service manages customers.
type Service struct {
	repo     Repository
	activity *activity.Logger
	cache    Invalidator
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, audit *activity.Logger) *Service {
	return &Service{repo: repo, activity: audit, now: time.Now}
}

// WithReportCache drops cached reports after deletes.
func (s *Service) WithReportCache(cache Invalidator, logger *slog.Logger) *Service {
	s.cache = cache
	s.logger = logger
	return s
}

// List returns the customers visible to p.
func (s *Service) List(ctx context.Context, p access.Principal, q ListQuery) (shared.Page[Customer], error) {
	q.Page, q.PerPage = shared.NormalizePage(q.Page, q.PerPage)
	filter, err := access.BuildBranchFilter(p)
	if err != nil {
		return shared.Page[Customer]{}, err
	}
	filter, ok := filter.Narrow(q.BranchID)
	if !ok {
		return shared.NewPage[Customer](nil, q.Page, q.PerPage, 0), nil
	}
	q.Search = strings.TrimSpace(q.Search)
	items, total, err := s.repo.List(ctx, filter, q)
	if err != nil {
		return shared.Page[Customer]{}, fmt.Errorf("list customers: %w", err)
	}
	return shared.NewPage(items, q.Page, q.PerPage, total), nil
}

// Get returns one customer if p may see it.
func (s *Service) Get(ctx context.Context, p access.Principal, id string) (Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := access.Guard(p, c.BranchID, ErrNotFound); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// Create adds a customer to the caller's branch, or to the requested branch
// for admins.
func (s *Service) Create(ctx context.Context, p access.Principal, req CreateCustomerRequest) (Customer, error) {
	if err := access.CanWrite(p); err != nil {
		return Customer{}, err
	}
	branchID, err := access.RequireBranch(p, req.BranchID)
	if err != nil {
		return Customer{}, err
	}
	now := s.now().UTC()
	c := Customer{
		ID:          uuid.NewString(),
		FullName:    strings.TrimSpace(req.FullName),
		PhoneNumber: normalizePhone(req.PhoneNumber),
		Email:       strings.TrimSpace(req.Email),
		BranchID:    branchID,
		CreatedBy:   p.ID,
		UpdatedBy:   p.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionCreate, activity.EntityCustomer, c.ID, c.BranchID,
		"Created customer "+c.FullName))
	return c, nil
}

// Update edits a customer. Moving a customer to another branch is an
// administrative exception reserved for admins.
func (s *Service) Update(ctx context.Context, p access.Principal, id string, req UpdateCustomerRequest) (Customer, error) {
	if err := access.CanWrite(p); err != nil {
		return Customer{}, err
	}
	var updated Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		c, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Guard(p, c.BranchID, ErrNotFound); err != nil {
			return err
		}
		if req.FullName != nil {
			c.FullName = strings.TrimSpace(*req.FullName)
		}
		if req.PhoneNumber != nil {
			c.PhoneNumber = normalizePhone(*req.PhoneNumber)
		}
		if req.Email != nil {
			c.Email = strings.TrimSpace(*req.Email)
		}
		if req.BranchID != nil && *req.BranchID != c.BranchID {
			if err := access.RequireAdmin(p); err != nil {
				return err
			}
			c.BranchID = *req.BranchID
		}
		c.UpdatedBy = p.ID
		c.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return Customer{}, err
	}
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionUpdate, activity.EntityCustomer, updated.ID, updated.BranchID,
		"Updated customer "+updated.FullName))
	return updated, nil
}

// Delete hard-deletes a customer together with its orders and payments.
// Admin only.
func (s *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	var deleted Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		c, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		deleted = c
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil && s.logger != nil {
			s.logger.Warn("report cache invalidation failed", slog.Any("error", err))
		}
	}
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionDelete, activity.EntityCustomer, deleted.ID, deleted.BranchID,
		"Deleted customer "+deleted.FullName).WithMeta(map[string]any{"orders_removed": deleted.OrderCount}))
	return nil
}

func normalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}
