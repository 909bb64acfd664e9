package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/ordernum"
	"github.com/tailorhub/tailorhub/internal/payments"
	"github.com/tailorhub/tailorhub/internal/shared"
	"github.com/tailorhub/tailorhub/internal/tracking"
)

var (
	// ErrNotFound is returned for missing or invisible orders.
	ErrNotFound = fmt.Errorf("%w: order", shared.ErrNotFound)
	// ErrCustomerNotFound is returned when the customer is missing or invisible.
	ErrCustomerNotFound = fmt.Errorf("%w: customer", shared.ErrNotFound)
	// ErrInvalidStatus is returned for disallowed status transitions.
	ErrInvalidStatus = fmt.Errorf("%w: invalid status transition", shared.ErrValidation)
	// ErrImmutable is returned when editing a collected or cancelled order.
	ErrImmutable = fmt.Errorf("%w: order is closed and can no longer be changed", shared.ErrValidation)
	// ErrNegativeTotal is returned for totals below zero.
	ErrNegativeTotal = fmt.Errorf("%w: total amount must not be negative", shared.ErrValidation)
	// ErrTotalBelowPaid is returned when a new total is less than what was paid.
	ErrTotalBelowPaid = fmt.Errorf("%w: total amount is below the amount already paid", shared.ErrValidation)
	// ErrDueBeforeOrder is returned when the due date precedes the order date.
	ErrDueBeforeOrder = fmt.Errorf("%w: due date is before the order date", shared.ErrValidation)
	// ErrInvalidTier is returned for unknown urgency filters.
	ErrInvalidTier = fmt.Errorf("%w: unknown urgency", shared.ErrValidation)
	// ErrNumberTaken is returned when an order number collides on insert.
	ErrNumberTaken = fmt.Errorf("%w: order number already issued", shared.ErrConflict)
)

// PaymentSource loads payments for enrichment.
type PaymentSource interface {
	ListByOrders(ctx context.Context, orderIDs []string) (map[string][]payments.Payment, error)
}

// Invalidator drops cached report data. Deleting an order cascades to its
// payments, so cached totals must be rebuilt.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service manages orders.
type Service struct {
	repo     Repository
	payments PaymentSource
	activity *activity.Logger
	cache    Invalidator
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewService constructs the service. Calendar dates are interpreted in loc.
func NewService(repo Repository, payments PaymentSource, audit *activity.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, payments: payments, activity: audit, loc: loc, now: time.Now}
}

// WithReportCache drops cached reports after deletes.
func (s *Service) WithReportCache(cache Invalidator, logger *slog.Logger) *Service {
	s.cache = cache
	s.logger = logger
	return s
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil && s.logger != nil {
		s.logger.Warn("report cache invalidation failed", slog.Any("error", err))
	}
}

// Location returns the zone used for calendar dates.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) today() time.Time {
	return tracking.StartOfDay(s.now(), s.loc)
}

func (s *Service) enrich(ctx context.Context, list []Order) ([]View, error) {
	ids := make([]string, len(list))
	for i, o := range list {
		ids[i] = o.ID
	}
	byOrder, err := s.payments.ListByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	today := s.now()
	views := make([]View, len(list))
	for i, o := range list {
		views[i] = Enrich(o, byOrder[o.ID], today, s.loc)
	}
	return views, nil
}

// DueWindow converts an urgency tier into the due-date range that produces
// it as of today. A nil bound is open.
func DueWindow(tier tracking.Tier, today time.Time) (from, to *time.Time) {
	day := func(n int) *time.Time {
		t := today.AddDate(0, 0, n)
		return &t
	}
	switch tier {
	case tracking.TierOverdue:
		return nil, day(0)
	case tracking.TierWarning1:
		return day(1), day(1)
	case tracking.TierWarning3:
		return day(2), day(3)
	case tracking.TierWarning5:
		return day(4), day(5)
	case tracking.TierSafe:
		return day(6), nil
	}
	return nil, nil
}

// List returns enriched orders visible to p.
func (s *Service) List(ctx context.Context, p access.Principal, q ListQuery) (shared.Page[View], error) {
	q.Page, q.PerPage = shared.NormalizePage(q.Page, q.PerPage)
	if q.Status != "" && !q.Status.Valid() {
		return shared.Page[View]{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, q.Status)
	}
	filter, err := access.BuildBranchFilter(p)
	if err != nil {
		return shared.Page[View]{}, err
	}
	filter, ok := filter.Narrow(q.BranchID)
	if !ok {
		return shared.NewPage[View](nil, q.Page, q.PerPage, 0), nil
	}
	c := Criteria{
		Status:     q.Status,
		CustomerID: q.CustomerID,
		Search:     strings.TrimSpace(q.Search),
		OpenOnly:   q.OpenOnly,
		Page:       q.Page,
		PerPage:    q.PerPage,
	}
	if q.Urgency != "" {
		if !q.Urgency.Valid() {
			return shared.Page[View]{}, ErrInvalidTier
		}
		c.DueFrom, c.DueTo = DueWindow(q.Urgency, s.today())
	}
	list, total, err := s.repo.List(ctx, filter, c)
	if err != nil {
		return shared.Page[View]{}, fmt.Errorf("list orders: %w", err)
	}
	views, err := s.enrich(ctx, list)
	if err != nil {
		return shared.Page[View]{}, err
	}
	return shared.NewPage(views, q.Page, q.PerPage, total), nil
}

// Get returns one enriched order with its payments.
func (s *Service) Get(ctx context.Context, p access.Principal, id string) (View, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := access.Guard(p, o.BranchID, ErrNotFound); err != nil {
		return View{}, err
	}
	views, err := s.enrich(ctx, []Order{o})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// Create opens an order for a customer. The order inherits the customer's
// branch and receives the next number for the order year.
func (s *Service) Create(ctx context.Context, p access.Principal, req CreateOrderRequest) (View, error) {
	if err := access.CanWrite(p); err != nil {
		return View{}, err
	}
	if req.TotalAmount.IsNegative() {
		return View{}, ErrNegativeTotal
	}
	now := s.now()
	orderDate := s.today()
	if req.OrderDate != nil {
		orderDate = tracking.StartOfDay(*req.OrderDate, s.loc)
	}
	dueDate := tracking.StartOfDay(req.DueDate, s.loc)
	if dueDate.Before(orderDate) {
		return View{}, ErrDueBeforeOrder
	}

	o := Order{
		ID:          uuid.NewString(),
		CustomerID:  req.CustomerID,
		Description: strings.TrimSpace(req.Description),
		Images:      req.Images,
		Total:       req.TotalAmount.Round(2),
		Status:      StatusPending,
		OrderDate:   orderDate,
		DueDate:     dueDate,
		CreatedBy:   p.ID,
		UpdatedBy:   p.ID,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		customer, err := repo.Customer(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if err := access.Guard(p, customer.BranchID, ErrCustomerNotFound); err != nil {
			return err
		}
		o.Customer = customer
		o.BranchID = customer.BranchID

		year := s.today().Year()
		if err := repo.LockNumbering(ctx, year); err != nil {
			return fmt.Errorf("lock order numbering: %w", err)
		}
		last, err := repo.LastNumber(ctx, year)
		if err != nil {
			return fmt.Errorf("load last order number: %w", err)
		}
		o.OrderNumber, err = ordernum.Next(last, year)
		if err != nil {
			return err
		}
		return repo.Create(ctx, o)
	})
	if err != nil {
		return View{}, err
	}
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionCreate, activity.EntityOrder, o.ID, o.BranchID,
		fmt.Sprintf("Created order %s for %s", o.OrderNumber, o.Customer.FullName)).
		WithMeta(map[string]any{"order_number": o.OrderNumber, "total_amount": o.Total.StringFixed(2)}))
	return Enrich(o, nil, now, s.loc), nil
}

// Update edits an open order. The total may not drop below what was paid.
func (s *Service) Update(ctx context.Context, p access.Principal, id string, req UpdateOrderRequest) (View, error) {
	if err := access.CanWrite(p); err != nil {
		return View{}, err
	}
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		o, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Guard(p, o.BranchID, ErrNotFound); err != nil {
			return err
		}
		if o.Status.Terminal() {
			return ErrImmutable
		}
		if req.Description != nil {
			o.Description = strings.TrimSpace(*req.Description)
		}
		if req.Images != nil {
			o.Images = *req.Images
		}
		if req.DueDate != nil {
			due := tracking.StartOfDay(*req.DueDate, s.loc)
			if tracking.CivilDays(due, s.loc) < tracking.CivilDays(tracking.DateIn(o.OrderDate, s.loc), s.loc) {
				return ErrDueBeforeOrder
			}
			o.DueDate = due
		}
		if req.TotalAmount != nil {
			total := req.TotalAmount.Round(2)
			if total.IsNegative() {
				return ErrNegativeTotal
			}
			byOrder, err := s.payments.ListByOrders(ctx, []string{o.ID})
			if err != nil {
				return fmt.Errorf("load payments: %w", err)
			}
			if total.LessThan(tracking.AmountPaid(payments.Amounts(byOrder[o.ID]))) {
				return ErrTotalBelowPaid
			}
			o.Total = total
		}
		o.UpdatedBy = p.ID
		o.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return View{}, err
	}
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionUpdate, activity.EntityOrder, updated.ID, updated.BranchID,
		"Updated order "+updated.OrderNumber))
	return s.Get(ctx, p, id)
}

// ChangeStatus moves an order along its workflow.
func (s *Service) ChangeStatus(ctx context.Context, p access.Principal, id string, next Status) (View, error) {
	if err := access.CanWrite(p); err != nil {
		return View{}, err
	}
	var (
		previous Status
		changed  Order
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		o, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Guard(p, o.BranchID, ErrNotFound); err != nil {
			return err
		}
		if !o.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, o.Status, next)
		}
		previous = o.Status
		o.Status = next
		o.UpdatedBy = p.ID
		o.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, o); err != nil {
			return err
		}
		changed = o
		return nil
	})
	if err != nil {
		return View{}, err
	}
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionUpdate, activity.EntityOrder, changed.ID, changed.BranchID,
		fmt.Sprintf("Order %s moved from %s to %s", changed.OrderNumber, previous, next)).
		WithMeta(map[string]any{"from": string(previous), "to": string(next)}))
	return s.Get(ctx, p, id)
}

// Delete hard-deletes an order and its payments. Admin only.
func (s *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	var deleted Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		o, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		deleted = o
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidateReports(ctx)
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionDelete, activity.EntityOrder, deleted.ID, deleted.BranchID,
		"Deleted order "+deleted.OrderNumber))
	return nil
}

// UrgencyCounts counts the caller's open orders per tier. Admins may narrow
// to one branch.
func (s *Service) UrgencyCounts(ctx context.Context, p access.Principal, requestedBranch string) (map[tracking.Tier]int, error) {
	filter, err := access.BuildBranchFilter(p)
	if err != nil {
		return nil, err
	}
	if p.IsAdmin() {
		filter, _ = filter.Narrow(requestedBranch)
	}
	counts, err := s.repo.OpenDueCounts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count open orders: %w", err)
	}
	out := make(map[tracking.Tier]int, len(tracking.Tiers()))
	for _, tier := range tracking.Tiers() {
		out[tier] = 0
	}
	today := s.now()
	for _, dc := range counts {
		days := tracking.DaysToDue(tracking.DateIn(dc.Date, s.loc), today, s.loc)
		out[tracking.Classify(days)] += dc.Count
	}
	return out, nil
}

// DueForReminder returns open orders across all branches whose urgency calls
// for a reminder as of now. Used by the reminder scan, not by users.
func (s *Service) DueForReminder(ctx context.Context) ([]View, error) {
	_, horizon := DueWindow(tracking.TierWarning5, s.today())
	list, err := s.repo.OpenDueBy(ctx, *horizon)
	if err != nil {
		return nil, fmt.Errorf("load due orders: %w", err)
	}
	views, err := s.enrich(ctx, list)
	if err != nil {
		return nil, err
	}
	out := views[:0]
	for _, v := range views {
		if v.Urgency.NeedsReminder() {
			out = append(out, v)
		}
	}
	return out, nil
}
