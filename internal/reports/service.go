package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/payments"
	"github.com/tailorhub/tailorhub/internal/shared"
	"github.com/tailorhub/tailorhub/internal/tracking"
)

// MaxRangeDays bounds ad-hoc range reports.
const MaxRangeDays = 366

var (
	// ErrInvalidRange is returned for empty, reversed or oversized ranges.
	ErrInvalidRange = fmt.Errorf("%w: invalid report range", shared.ErrValidation)
	// ErrInvalidWeek is returned for an unknown week selector.
	ErrInvalidWeek = fmt.Errorf("%w: week must be current or last", shared.ErrValidation)
)

// Week selects a reporting week.
type Week string

const (
	WeekCurrent Week = "current"
	WeekLast    Week = "last"
)

// PaymentSource lists payments visible to a principal.
type PaymentSource interface {
	ListRange(ctx context.Context, p access.Principal, requestedBranch string, from, to time.Time) ([]payments.Payment, error)
}

// OrderSource counts open orders per urgency tier.
type OrderSource interface {
	UrgencyCounts(ctx context.Context, p access.Principal, requestedBranch string) (map[tracking.Tier]int, error)
}

// ActivitySource summarises recent activity in a branch.
type ActivitySource interface {
	BranchSummary(ctx context.Context, p access.Principal, requested string, window time.Duration, topN int) (activity.BranchSummary, error)
}

// Dashboard is the landing overview for a branch, or every branch for admins.
type Dashboard struct {
	Urgency     map[tracking.Tier]int  `json:"urgency"`
	Week        Summary                `json:"week"`
	Activity    activity.BranchSummary `json:"activity"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// Service builds payment summaries and the dashboard.
type Service struct {
	payments PaymentSource
	orders   OrderSource
	activity ActivitySource
	cache    *Cache
	loc      *time.Location
	now      func() time.Time
}

// NewService wires the report service. orders and activity are only needed
// by Dashboard.
func NewService(ps PaymentSource, orders OrderSource, act ActivitySource, cache *Cache, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	if cache == nil {
		cache = NewCache(nil, 0)
	}
	return &Service{payments: ps, orders: orders, activity: act, cache: cache, loc: loc, now: time.Now}
}

// Location returns the reporting time zone.
func (s *Service) Location() *time.Location { return s.loc }

// Invalidate drops cached summaries after a payment is recorded.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

// WeekBounds resolves a week selector relative to now.
func (s *Service) WeekBounds(week Week) (time.Time, time.Time, error) {
	switch week {
	case WeekCurrent, "":
		start, end := CurrentWeek(s.now(), s.loc)
		return start, end, nil
	case WeekLast:
		start, end := LastWeek(s.now(), s.loc)
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, ErrInvalidWeek
	}
}

// Weekly summarises the selected Monday-to-Sunday week.
func (s *Service) Weekly(ctx context.Context, p access.Principal, requestedBranch string, week Week) (Summary, error) {
	start, end, err := s.WeekBounds(week)
	if err != nil {
		return Summary{}, err
	}
	return s.Range(ctx, p, requestedBranch, start, end)
}

// Range summarises every calendar day from start to end inclusive.
func (s *Service) Range(ctx context.Context, p access.Principal, requestedBranch string, start, end time.Time) (Summary, error) {
	first := tracking.StartOfDay(start, s.loc)
	last := tracking.StartOfDay(end, s.loc)
	if last.Before(first) {
		return Summary{}, ErrInvalidRange
	}
	if tracking.CivilDays(last, s.loc)-tracking.CivilDays(first, s.loc) >= MaxRangeDays {
		return Summary{}, fmt.Errorf("%w: at most %d days", ErrInvalidRange, MaxRangeDays)
	}
	scope, err := access.ResolveBranchID(p, requestedBranch)
	if err != nil {
		return Summary{}, err
	}
	key, err := s.cache.BuildKey(ctx, "summary", scope.String(), first.Format(DateLayout), last.Format(DateLayout))
	if err != nil {
		return Summary{}, fmt.Errorf("report cache key: %w", err)
	}

	var summary Summary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		through := last.AddDate(0, 0, 1).Add(-time.Nanosecond)
		list, err := s.payments.ListRange(ctx, p, requestedBranch, first, through)
		if err != nil {
			return nil, err
		}
		return Aggregate(list, first, last, s.loc), nil
	})
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// Dashboard gathers urgency counts, this week's takings and recent activity
// concurrently.
func (s *Service) Dashboard(ctx context.Context, p access.Principal, requestedBranch string) (Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.orders.UrgencyCounts(ctx, p, requestedBranch)
		if err != nil {
			return fmt.Errorf("urgency counts: %w", err)
		}
		d.Urgency = counts
		return nil
	})
	g.Go(func() error {
		week, err := s.Weekly(ctx, p, requestedBranch, WeekCurrent)
		if err != nil {
			return fmt.Errorf("weekly summary: %w", err)
		}
		d.Week = week
		return nil
	})
	g.Go(func() error {
		summary, err := s.activity.BranchSummary(ctx, p, requestedBranch, activity.DefaultWindow, activity.DefaultTopN)
		if err != nil {
			return fmt.Errorf("activity summary: %w", err)
		}
		d.Activity = summary
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	d.GeneratedAt = s.now().In(s.loc)
	return d, nil
}
