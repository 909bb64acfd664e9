package activity

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tailorhub/tailorhub/internal/access"
)

type memoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	failErr error
}

func (m *memoryRepo) Insert(ctx context.Context, e Entry) error {
	if m.failErr != nil {
		return m.failErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryRepo) snapshot() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

func (m *memoryRepo) match(c Criteria, e Entry) bool {
	branch := ""
	if e.BranchID != nil {
		branch = *e.BranchID
	}
	if id, ok := c.Filter.BranchID(); ok && id != branch {
		return false
	}
	return c.UserID == "" || c.UserID == e.UserID
}

func (m *memoryRepo) List(_ context.Context, filter access.Filter, q ListQuery) ([]Entry, int, error) {
	var out []Entry
	for _, e := range m.snapshot() {
		if !m.match(Criteria{Filter: filter, UserID: q.UserID}, e) {
			continue
		}
		if q.Entity != "" && e.Entity != q.Entity {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, len(out), nil
}

func (m *memoryRepo) CountByEntity(_ context.Context, c Criteria) (map[Entity]int, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	out := map[Entity]int{}
	for _, e := range m.snapshot() {
		if m.match(c, e) {
			out[e.Entity]++
		}
	}
	return out, nil
}

func (m *memoryRepo) CountSince(_ context.Context, c Criteria, since time.Time) (int, error) {
	n := 0
	for _, e := range m.snapshot() {
		if m.match(c, e) && !e.At.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) UserCounts(_ context.Context, c Criteria, since time.Time) ([]UserCount, error) {
	byUser := map[string]*UserCount{}
	for _, e := range m.snapshot() {
		if !m.match(c, e) || e.At.Before(since) {
			continue
		}
		uc, ok := byUser[e.UserID]
		if !ok {
			uc = &UserCount{UserID: e.UserID, UserName: e.UserName}
			byUser[e.UserID] = uc
		}
		uc.Count++
	}
	var out []UserCount
	for _, uc := range byUser {
		out = append(out, *uc)
	}
	return out, nil
}

var errStorageDown = errors.New("storage unavailable")
