package customers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	customers map[string]Customer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{customers: map[string]Customer{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) List(_ context.Context, filter access.Filter, q ListQuery) ([]Customer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Customer
	for _, c := range m.customers {
		if !filter.Allows(c.BranchID) {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(c.FullName), strings.ToLower(q.Search)) && !strings.Contains(c.PhoneNumber, q.Search) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) Create(_ context.Context, c Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.customers {
		if existing.BranchID == c.BranchID && existing.PhoneNumber == c.PhoneNumber {
			return ErrDuplicatePhone
		}
	}
	m.customers[c.ID] = c
	return nil
}

func (m *memoryRepo) Update(_ context.Context, c Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[c.ID]; !ok {
		return ErrNotFound
	}
	m.customers[c.ID] = c
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[id]; !ok {
		return ErrNotFound
	}
	delete(m.customers, id)
	return nil
}

type auditSink struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (a *auditSink) Insert(_ context.Context, e activity.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *auditSink) find(action activity.Action, entity activity.Entity, entityID string) (activity.Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.Action == action && e.Entity == entity && e.EntityID == entityID {
			return e, true
		}
	}
	return activity.Entry{}, false
}

var (
	admin   = access.Principal{ID: "a1", Name: "Root", Role: access.RoleAdmin, Branch: access.Unrestricted()}
	staffB1 = access.Principal{ID: "s1", Name: "Ama", Role: access.RoleStaff, Branch: access.Scoped("b1")}
	staffB2 = access.Principal{ID: "s2", Name: "Kofi", Role: access.RoleStaff, Branch: access.Scoped("b2")}
	viewer  = access.Principal{ID: "v1", Name: "Yaa", Role: access.RoleViewer, Branch: access.Scoped("b1")}
)

func newTestService() (*Service, *memoryRepo, *auditSink, *activity.Logger) {
	repo := newMemoryRepo()
	sink := &auditSink{}
	logger := activity.NewLogger(sink, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	return NewService(repo, logger), repo, sink, logger
}

func TestCreateInheritsCallerBranch(t *testing.T) {
	svc, _, sink, logger := newTestService()
	ctx := context.Background()

	c, err := svc.Create(ctx, staffB1, CreateCustomerRequest{FullName: " Efua Mensah ", PhoneNumber: "020 000 0000", BranchID: "b2"})
	require.NoError(t, err)
	assert.Equal(t, "b1", c.BranchID)
	assert.Equal(t, "Efua Mensah", c.FullName)
	assert.Equal(t, "0200000000", c.PhoneNumber)

	logger.Wait()
	require.Len(t, sink.entries, 1)
	_, ok := sink.find(activity.ActionCreate, activity.EntityCustomer, c.ID)
	assert.True(t, ok)
}

func TestCreateRules(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, viewer, CreateCustomerRequest{FullName: "X", PhoneNumber: "1"})
	assert.ErrorIs(t, err, access.ErrReadOnly)

	_, err = svc.Create(ctx, admin, CreateCustomerRequest{FullName: "X", PhoneNumber: "1"})
	assert.ErrorIs(t, err, access.ErrNoBranch)

	c, err := svc.Create(ctx, admin, CreateCustomerRequest{FullName: "X", PhoneNumber: "1", BranchID: "b2"})
	require.NoError(t, err)
	assert.Equal(t, "b2", c.BranchID)

	_, err = svc.Create(ctx, staffB2, CreateCustomerRequest{FullName: "Y", PhoneNumber: "1"})
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Create(ctx, staffB1, CreateCustomerRequest{FullName: "Y", PhoneNumber: "1"})
	assert.NoError(t, err, "same phone is allowed in another branch")
}

func TestCrossBranchReadsAreNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, staffB1, CreateCustomerRequest{FullName: "Efua", PhoneNumber: "1"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, staffB2, c.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Update(ctx, staffB2, c.ID, UpdateCustomerRequest{FullName: ptr("Hijack")})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	got, err := svc.Get(ctx, admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Efua", got.FullName)

	page, err := svc.List(ctx, staffB2, ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = svc.List(ctx, staffB2, ListQuery{BranchID: "b1"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = svc.List(ctx, admin, ListQuery{Search: "efu"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestUpdateBranchMoveIsAdminOnly(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, staffB1, CreateCustomerRequest{FullName: "Efua", PhoneNumber: "1"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, staffB1, c.ID, UpdateCustomerRequest{BranchID: ptr("b2")})
	assert.ErrorIs(t, err, access.ErrAdminOnly)

	updated, err := svc.Update(ctx, staffB1, c.ID, UpdateCustomerRequest{BranchID: ptr("b1"), Email: ptr("efua@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "efua@example.com", updated.Email)

	moved, err := svc.Update(ctx, admin, c.ID, UpdateCustomerRequest{BranchID: ptr("b2")})
	require.NoError(t, err)
	assert.Equal(t, "b2", moved.BranchID)
	assert.Equal(t, "a1", moved.UpdatedBy)
}

func TestDeleteIsAdminOnly(t *testing.T) {
	svc, repo, sink, logger := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, staffB1, CreateCustomerRequest{FullName: "Efua", PhoneNumber: "1"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, staffB1, c.ID), access.ErrAdminOnly)
	require.NoError(t, svc.Delete(ctx, admin, c.ID))
	assert.Empty(t, repo.customers)
	assert.ErrorIs(t, svc.Delete(ctx, admin, c.ID), shared.ErrNotFound)

	logger.Wait()
	entry, ok := sink.find(activity.ActionDelete, activity.EntityCustomer, c.ID)
	require.True(t, ok)
	require.NotNil(t, entry.BranchID)
	assert.Equal(t, "b1", *entry.BranchID)
}

type countingCache struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func TestDeleteInvalidatesReports(t *testing.T) {
	svc, _, _, _ := newTestService()
	cache := &countingCache{}
	svc.WithReportCache(cache, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	ctx := context.Background()
	c, err := svc.Create(ctx, staffB1, CreateCustomerRequest{FullName: "Efua", PhoneNumber: "1"})
	require.NoError(t, err)
	assert.Zero(t, cache.calls)

	assert.ErrorIs(t, svc.Delete(ctx, staffB1, c.ID), access.ErrAdminOnly)
	assert.Zero(t, cache.calls)

	require.NoError(t, svc.Delete(ctx, admin, c.ID))
	assert.Equal(t, 1, cache.calls)

	assert.ErrorIs(t, svc.Delete(ctx, admin, c.ID), shared.ErrNotFound)
	assert.Equal(t, 1, cache.calls)
}

func TestHandlerRoutes(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), svc)
	as := func(p access.Principal) http.Handler {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(access.WithPrincipal(req.Context(), p)))
			})
		})
		h.MountRoutes(r)
		return r
	}

	rec := httptest.NewRecorder()
	as(staffB1).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{"full_name":"Efua","phone_number":"0200000000"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	as(staffB1).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{"full_name":"","phone_number":"1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FullName")

	rec = httptest.NewRecorder()
	as(viewer).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{"full_name":"A","phone_number":"2"}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	as(staffB1).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/customers/x", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	as(admin).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/customers/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	as(staffB2).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)
}

func ptr[T any](v T) *T { return &v }
