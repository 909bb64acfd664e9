package users

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[string]User
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) List(_ context.Context, q ListQuery) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) FindByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memoryRepo) Create(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memoryRepo) Update(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *memoryRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.LastLoginAt = &at
	m.users[id] = u
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

func ptr[T any](v T) *T { return &v }

func newTestService() (*Service, *memoryRepo, *auditSink, *activity.Logger) {
	repo := &memoryRepo{users: map[string]User{
		"a1": {ID: "a1", Email: "root@example.com", FullName: "Root", Role: access.RoleAdmin, IsActive: true},
	}}
	sink := &auditSink{}
	logger := activity.NewLogger(sink, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	return NewService(repo, logger), repo, sink, logger
}

func TestCreateHashesPasswordAndChecksRoleBranch(t *testing.T) {
	svc, _, sink, logger := newTestService()
	ctx := context.Background()

	u, err := svc.Create(ctx, admin, CreateUserRequest{
		Email: " Ama@Example.com ", FullName: "Ama", Password: "s3cret-pass", Role: access.RoleStaff, BranchID: "b1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ama@example.com", u.Email)
	require.NotNil(t, u.BranchID)
	assert.Equal(t, "b1", *u.BranchID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))

	_, err = svc.Create(ctx, admin, CreateUserRequest{Email: "x@example.com", FullName: "X", Password: "longenough", Role: access.RoleViewer})
	assert.ErrorIs(t, err, access.ErrRoleBranch)

	_, err = svc.Create(ctx, admin, CreateUserRequest{Email: "y@example.com", FullName: "Y", Password: "longenough", Role: access.RoleAdmin, BranchID: "b1"})
	assert.ErrorIs(t, err, access.ErrRoleBranch)

	_, err = svc.Create(ctx, admin, CreateUserRequest{Email: "ama@example.com", FullName: "Dup", Password: "longenough", Role: access.RoleStaff, BranchID: "b2"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	logger.Wait()
	require.Len(t, sink.entries, 1)
	entry, ok := sink.find(activity.ActionCreate, activity.EntityUser, u.ID)
	require.True(t, ok)
	assert.Equal(t, "STAFF", entry.Metadata["role"])
}

func TestAdminOnly(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	staff := access.Principal{ID: "s1", Role: access.RoleStaff, Branch: access.Scoped("b1")}

	_, err := svc.List(ctx, staff, ListQuery{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Get(ctx, staff, "a1")
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Create(ctx, staff, CreateUserRequest{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Update(ctx, staff, "a1", UpdateUserRequest{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdatePromotionMustClearBranch(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Create(ctx, admin, CreateUserRequest{Email: "k@example.com", FullName: "Kofi", Password: "longenough", Role: access.RoleStaff, BranchID: "b1"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, admin, u.ID, UpdateUserRequest{Role: ptr(access.RoleAdmin)})
	assert.ErrorIs(t, err, access.ErrRoleBranch)

	promoted, err := svc.Update(ctx, admin, u.ID, UpdateUserRequest{Role: ptr(access.RoleAdmin), BranchID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, promoted.BranchID)
	assert.True(t, promoted.Principal().Branch.IsUnrestricted())

	moved, err := svc.Update(ctx, admin, u.ID, UpdateUserRequest{Role: ptr(access.RoleViewer), BranchID: ptr("b2"), Password: ptr("another-pass")})
	require.NoError(t, err)
	assert.Equal(t, "b2", *moved.BranchID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(moved.PasswordHash), []byte("another-pass")))
}

func TestUpdateSelfLockout(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Update(ctx, admin, "a1", UpdateUserRequest{IsActive: ptr(false)})
	assert.ErrorIs(t, err, ErrSelfLockout)
	_, err = svc.Update(ctx, admin, "a1", UpdateUserRequest{Role: ptr(access.RoleStaff), BranchID: ptr("b1")})
	assert.ErrorIs(t, err, ErrSelfLockout)
	_, err = svc.Update(ctx, admin, "missing", UpdateUserRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadPrincipal(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	repo.users["s1"] = User{ID: "s1", FullName: "Ama", Role: access.RoleStaff, BranchID: ptr("b1"), BranchName: "Osu", IsActive: true}
	repo.users["s2"] = User{ID: "s2", FullName: "Old", Role: access.RoleStaff, BranchID: ptr("b1"), IsActive: false}

	p, err := svc.LoadPrincipal(ctx, "s1")
	require.NoError(t, err)
	id, ok := p.Branch.BranchID()
	require.True(t, ok)
	assert.Equal(t, "b1", id)
	assert.Equal(t, "Osu", p.BranchName)
	assert.Equal(t, access.RoleStaff, p.Role)

	_, err = svc.LoadPrincipal(ctx, "s2")
	assert.ErrorIs(t, err, ErrInactive)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.LoadPrincipal(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandlerCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(access.WithPrincipal(req.Context(), admin)))
		})
	})
	h.MountRoutes(r)

	body := `{"email":"not-an-email","full_name":"A","password":"short","role":"OWNER"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Email":"email"`)
	assert.Contains(t, rec.Body.String(), `"Password":"min=8"`)
	assert.Contains(t, rec.Body.String(), `"Role":"oneof=ADMIN STAFF VIEWER"`)

	body = `{"email":"esi@example.com","full_name":"Esi","password":"long-enough","role":"VIEWER","branch_id":"b3"}`
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password_hash")
}
