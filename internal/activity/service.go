package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/shared"
)

const (
	// DefaultWindow is the trailing window used by summaries.
	DefaultWindow = 30 * 24 * time.Hour
	// DefaultTopN is how many users a branch summary ranks.
	DefaultTopN = 5
)

// ErrNotFound is returned for activity the caller may not see.
var ErrNotFound = fmt.Errorf("%w: activity", shared.ErrNotFound)

// Service serves activity listings and summaries.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the caller's visible activity, newest first.
func (s *Service) List(ctx context.Context, p access.Principal, q ListQuery) (shared.Page[Entry], error) {
	q.Page, q.PerPage = shared.NormalizePage(q.Page, q.PerPage)
	filter, err := access.BuildBranchFilter(p)
	if err != nil {
		return shared.Page[Entry]{}, err
	}
	filter, ok := filter.Narrow(q.BranchID)
	if !ok {
		return shared.NewPage[Entry](nil, q.Page, q.PerPage, 0), nil
	}
	entries, total, err := s.repo.List(ctx, filter, q)
	if err != nil {
		return shared.Page[Entry]{}, fmt.Errorf("list activity: %w", err)
	}
	return shared.NewPage(entries, q.Page, q.PerPage, total), nil
}

// UserSummary aggregates userID's activity. Non-admins may only summarise
// themselves; an empty userID means the caller.
func (s *Service) UserSummary(ctx context.Context, p access.Principal, userID string, window time.Duration) (UserSummary, error) {
	if userID == "" {
		userID = p.ID
	}
	if userID != p.ID && !p.IsAdmin() {
		return UserSummary{}, ErrNotFound
	}
	if window <= 0 {
		window = DefaultWindow
	}
	filter, err := access.BuildBranchFilter(p)
	if err != nil {
		return UserSummary{}, err
	}
	c := Criteria{Filter: filter, UserID: userID}

	since := s.now().Add(-window)
	byEntity, err := s.repo.CountByEntity(ctx, c)
	if err != nil {
		return UserSummary{}, fmt.Errorf("count user activity: %w", err)
	}
	recent, err := s.repo.CountSince(ctx, c, since)
	if err != nil {
		return UserSummary{}, fmt.Errorf("count recent user activity: %w", err)
	}
	return UserSummary{
		UserID:   userID,
		Total:    total(byEntity),
		ByEntity: fill(byEntity),
		Recent:   recent,
		Since:    since,
	}, nil
}

// BranchSummary aggregates activity for the requested branch, or for every
// branch when an admin requests none. TopUsers ranks authors in the window.
func (s *Service) BranchSummary(ctx context.Context, p access.Principal, requested string, window time.Duration, topN int) (BranchSummary, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	scope, err := access.ResolveBranchID(p, requested)
	if err != nil {
		return BranchSummary{}, err
	}
	filter, err := access.BuildBranchFilter(p)
	if err != nil {
		return BranchSummary{}, err
	}
	branchID, _ := scope.BranchID()
	filter, ok := filter.Narrow(branchID)
	if !ok {
		return BranchSummary{}, ErrNotFound
	}
	c := Criteria{Filter: filter}

	since := s.now().Add(-window)
	byEntity, err := s.repo.CountByEntity(ctx, c)
	if err != nil {
		return BranchSummary{}, fmt.Errorf("count branch activity: %w", err)
	}
	recent, err := s.repo.CountSince(ctx, c, since)
	if err != nil {
		return BranchSummary{}, fmt.Errorf("count recent branch activity: %w", err)
	}
	users, err := s.repo.UserCounts(ctx, c, since)
	if err != nil {
		return BranchSummary{}, fmt.Errorf("rank branch users: %w", err)
	}
	return BranchSummary{
		BranchID: branchID,
		Total:    total(byEntity),
		ByEntity: fill(byEntity),
		Recent:   recent,
		Since:    since,
		TopUsers: TopUsers(users, topN),
	}, nil
}

// TopUsers sorts by count descending, then name, and keeps the first n.
func TopUsers(counts []UserCount, n int) []UserCount {
	out := append([]UserCount(nil), counts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].UserName != out[j].UserName {
			return out[i].UserName < out[j].UserName
		}
		return out[i].UserID < out[j].UserID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []UserCount{}
	}
	return out
}

func total(byEntity map[Entity]int) int {
	n := 0
	for _, c := range byEntity {
		n += c
	}
	return n
}

// fill reports zero for entities with no entries.
func fill(byEntity map[Entity]int) map[Entity]int {
	out := make(map[Entity]int, len(Entities()))
	for _, e := range Entities() {
		out[e] = byEntity[e]
	}
	for e, c := range byEntity {
		out[e] = c
	}
	return out
}
