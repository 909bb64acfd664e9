package branches

import (
	"bytes"
	"context"
	"encoding/json"
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
	mu       sync.Mutex
	branches map[string]Branch
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) List(_ context.Context, filter access.Filter, q ListQuery) ([]Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Branch
	for _, b := range m.branches {
		if filter.Allows(b.ID) && (b.IsActive || q.IncludeInactive) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[id]
	if !ok {
		return Branch{}, ErrNotFound
	}
	return b, nil
}

func (m *memoryRepo) Create(_ context.Context, b Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.branches {
		if strings.EqualFold(existing.Name, b.Name) {
			return ErrDuplicateName
		}
	}
	m.branches[b.ID] = b
	return nil
}

func (m *memoryRepo) Update(_ context.Context, b Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.branches[b.ID]; !ok {
		return ErrNotFound
	}
	m.branches[b.ID] = b
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

var admin = access.Principal{ID: "a1", Name: "Root", Role: access.RoleAdmin, Branch: access.Unrestricted()}

func newTestService() (*Service, *memoryRepo, *auditSink, *activity.Logger) {
	repo := &memoryRepo{branches: map[string]Branch{}}
	sink := &auditSink{}
	logger := activity.NewLogger(sink, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	return NewService(repo, logger), repo, sink, logger
}

func TestCreateAndListScopedByBranch(t *testing.T) {
	svc, _, sink, logger := newTestService()
	ctx := context.Background()

	accra, err := svc.Create(ctx, admin, CreateBranchRequest{Name: " Accra Central "})
	require.NoError(t, err)
	assert.Equal(t, "Accra Central", accra.Name)
	assert.True(t, accra.IsActive)
	_, err = svc.Create(ctx, admin, CreateBranchRequest{Name: "Kumasi"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, CreateBranchRequest{Name: "kumasi"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.ErrorIs(t, err, shared.ErrConflict)

	all, err := svc.List(ctx, admin, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	staff := access.Principal{ID: "s1", Role: access.RoleStaff, Branch: access.Scoped(accra.ID)}
	own, err := svc.List(ctx, staff, ListQuery{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, accra.ID, own[0].ID)

	logger.Wait()
	require.Len(t, sink.entries, 2)
	entry, ok := sink.find(activity.ActionCreate, activity.EntityBranch, accra.ID)
	require.True(t, ok)
	require.NotNil(t, entry.BranchID)
	assert.Equal(t, accra.ID, *entry.BranchID)
}

func TestGetMasksOtherBranches(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	a, _ := svc.Create(ctx, admin, CreateBranchRequest{Name: "A"})
	b, _ := svc.Create(ctx, admin, CreateBranchRequest{Name: "B"})

	viewer := access.Principal{ID: "v1", Role: access.RoleViewer, Branch: access.Scoped(a.ID)}
	got, err := svc.Get(ctx, viewer, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	_, err = svc.Get(ctx, viewer, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWritesAreAdminOnly(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	a, _ := svc.Create(ctx, admin, CreateBranchRequest{Name: "A"})
	staff := access.Principal{ID: "s1", Role: access.RoleStaff, Branch: access.Scoped(a.ID)}

	_, err := svc.Create(ctx, staff, CreateBranchRequest{Name: "B"})
	assert.ErrorIs(t, err, access.ErrAdminOnly)
	name := "Renamed"
	_, err = svc.Update(ctx, staff, a.ID, UpdateBranchRequest{Name: &name})
	assert.ErrorIs(t, err, access.ErrAdminOnly)
	_, err = svc.Deactivate(ctx, staff, a.ID)
	assert.ErrorIs(t, err, access.ErrAdminOnly)
}

func TestDeactivate(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	a, _ := svc.Create(ctx, admin, CreateBranchRequest{Name: "A"})

	closed, err := svc.Deactivate(ctx, admin, a.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)

	_, err = svc.Deactivate(ctx, admin, a.ID)
	assert.ErrorIs(t, err, ErrAlreadyInactive)

	active, err := svc.List(ctx, admin, ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.NotNil(t, active)

	everything, err := svc.List(ctx, admin, ListQuery{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, everything, 1)

	_, err = svc.Deactivate(ctx, admin, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRejectsBlankName(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	a, _ := svc.Create(ctx, admin, CreateBranchRequest{Name: "A"})

	blank := "  "
	_, err := svc.Update(ctx, admin, a.ID, UpdateBranchRequest{Name: &blank})
	assert.ErrorIs(t, err, shared.ErrValidation)

	phone := "0302 000 000"
	updated, err := svc.Update(ctx, admin, a.ID, UpdateBranchRequest{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "A", updated.Name)
	assert.Equal(t, "0302 000 000", updated.Phone)
}

func serve(h *Handler, p *access.Principal, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	if p != nil {
		principal := *p
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(access.WithPrincipal(req.Context(), principal)))
			})
		})
	}
	h.MountRoutes(r)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRoutes(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), svc)

	rec := serve(h, &admin, http.MethodPost, "/branches", `{"name":"Osu"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Branch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = serve(h, &admin, http.MethodPost, "/branches", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	staff := access.Principal{ID: "s1", Role: access.RoleStaff, Branch: access.Scoped(created.ID)}
	rec = serve(h, &staff, http.MethodPost, "/branches", `{"name":"Tema"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, &staff, http.MethodGet, "/branches/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, nil, http.MethodGet, "/branches", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, &admin, http.MethodPost, "/branches/"+created.ID+"/deactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_active":false`)
}
