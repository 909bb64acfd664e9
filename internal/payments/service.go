package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/notify"
	"github.com/tailorhub/tailorhub/internal/platform/db"
	"github.com/tailorhub/tailorhub/internal/tracking"
)

// Notifier queues customer notifications.
type Notifier interface {
	PaymentReceived(ctx context.Context, p notify.Payload)
}

// Invalidator drops cached report data after new payments.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Recorder observes recorded payments.
type Recorder interface {
	PaymentRecorded(method string, amount decimal.Decimal)
	PaymentRejected(reason string)
}

// Deps are the collaborators notified after a payment commits. All are optional.
type Deps struct {
	Activity *activity.Logger
	Notifier Notifier
	Cache    Invalidator
	Metrics  Recorder
	Logger   *slog.Logger
	Location *time.Location
}

// Service records payments.
type Service struct {
	repo     Repository
	activity *activity.Logger
	notifier Notifier
	cache    Invalidator
	metrics  Recorder
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Service{
		repo:     repo,
		activity: deps.Activity,
		notifier: deps.Notifier,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		loc:      deps.Location,
		now:      time.Now,
	}
}

// Record validates and stores a payment against orderID. The balance check
// and the insert run under a row lock on the order so two concurrent payments
// cannot jointly overpay it.
func (s *Service) Record(ctx context.Context, p access.Principal, orderID string, in RecordInput) (Receipt, error) {
	if err := access.CanWrite(p); err != nil {
		return Receipt{}, err
	}
	if !in.Method.Valid() {
		return Receipt{}, fmt.Errorf("%w: %q", ErrInvalidMethod, in.Method)
	}
	now := s.now()
	payment := Payment{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Amount:    in.Amount,
		PaidAt:    in.PaidAt,
		Method:    in.Method,
		Note:      in.Note,
		CreatedBy: p.ID,
		CreatedAt: now.UTC(),
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}

	var (
		snapshot OrderSnapshot
		balance  decimal.Decimal
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		snapshot, err = repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := access.Guard(p, snapshot.BranchID, ErrOrderNotFound); err != nil {
			return err
		}
		if snapshot.Cancelled {
			return ErrOrderCancelled
		}
		existing, err := repo.Amounts(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load payments: %w", err)
		}
		balance, err = Validate(snapshot.Total, existing, in.Amount)
		if err != nil {
			return err
		}
		if err := repo.Insert(ctx, payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return repo.TouchOrder(ctx, orderID, now.UTC())
	})
	if db.IsConflict(err) {
		err = fmt.Errorf("%w: %v", ErrConcurrentPayment, err)
	}
	if err != nil {
		s.rejected(err)
		return Receipt{}, err
	}

	payment.OrderNumber = snapshot.OrderNumber
	payment.BranchID = snapshot.BranchID
	payment.CustomerName = snapshot.CustomerName
	s.afterCommit(ctx, p, snapshot, payment, balance)
	return Receipt{Payment: payment, Balance: balance}, nil
}

func (s *Service) afterCommit(ctx context.Context, p access.Principal, o OrderSnapshot, pay Payment, balance decimal.Decimal) {
	s.activity.Log(ctx, activity.NewEntry(p, activity.ActionCreate, activity.EntityPayment, pay.ID, o.BranchID,
		fmt.Sprintf("Recorded %s payment of %s for order %s", pay.Method, pay.Amount.StringFixed(2), o.OrderNumber)).
		WithMeta(map[string]any{
			"order_id":     o.ID,
			"order_number": o.OrderNumber,
			"amount":       pay.Amount.StringFixed(2),
			"balance":      balance.StringFixed(2),
		}))

	if s.notifier != nil {
		s.notifier.PaymentReceived(ctx, notify.Payload{
			Customer: notify.Customer{
				FullName:    o.CustomerName,
				PhoneNumber: o.CustomerPhone,
				Email:       o.CustomerEmail,
			},
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Description: o.Description,
			DueDate:     tracking.DateIn(o.DueDate, s.loc),
			Balance:     balance,
			Amount:      pay.Amount,
			BranchID:    o.BranchID,
		})
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("report cache invalidation failed", slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		s.metrics.PaymentRecorded(string(pay.Method), pay.Amount)
	}
}

func (s *Service) rejected(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, ErrConcurrentPayment):
		s.metrics.PaymentRejected("concurrent")
	case errors.Is(err, ErrExceedsBalance):
		s.metrics.PaymentRejected("exceeds_balance")
	case errors.Is(err, ErrInvalidAmount):
		s.metrics.PaymentRejected("invalid_amount")
	}
}

// ListByOrder returns an order's payments, oldest first.
func (s *Service) ListByOrder(ctx context.Context, p access.Principal, orderID string) ([]Payment, error) {
	branchID, err := s.repo.OrderBranch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := access.Guard(p, branchID, ErrOrderNotFound); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order payments: %w", err)
	}
	return payments, nil
}

// ListRange returns visible payments made within [from, to]. Admins may narrow
// to one branch; other callers always see their own branch.
func (s *Service) ListRange(ctx context.Context, p access.Principal, requestedBranch string, from, to time.Time) ([]Payment, error) {
	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	filter, err := access.BuildBranchFilter(p)
	if err != nil {
		return nil, err
	}
	if p.IsAdmin() {
		filter, _ = filter.Narrow(requestedBranch)
	}
	payments, err := s.repo.ListRange(ctx, filter, from, to)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
