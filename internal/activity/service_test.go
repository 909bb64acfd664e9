package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/shared"
)

var (
	admin  = access.Principal{ID: "admin", Name: "Root", Role: access.RoleAdmin, Branch: access.Unrestricted()}
	staff1 = access.Principal{ID: "s1", Name: "Ama", Role: access.RoleStaff, Branch: access.Scoped("b1")}
	staff2 = access.Principal{ID: "s2", Name: "Kofi", Role: access.RoleStaff, Branch: access.Scoped("b2")}
)

func seededService(t *testing.T, now time.Time) (*Service, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{}
	add := func(p access.Principal, branch string, entity Entity, age time.Duration) {
		e := NewEntry(p, ActionCreate, entity, "", branch, "x")
		e.ID = p.ID + string(entity) + age.String()
		e.At = now.Add(-age)
		require.NoError(t, repo.Insert(context.Background(), e))
	}
	add(staff1, "b1", EntityOrder, time.Hour)
	add(staff1, "b1", EntityPayment, 2*time.Hour)
	add(staff1, "b1", EntityCustomer, 60*24*time.Hour)
	add(access.Principal{ID: "s3", Name: "Abena"}, "b1", EntityOrder, 3*time.Hour)
	add(access.Principal{ID: "s3", Name: "Abena"}, "b1", EntityOrder, 4*time.Hour)
	add(access.Principal{ID: "s4", Name: "Yaw"}, "b1", EntityOrder, 5*time.Hour)
	add(access.Principal{ID: "s4", Name: "Yaw"}, "b1", EntityOrder, 6*time.Hour)
	add(staff2, "b2", EntityOrder, time.Hour)
	add(admin, "", EntityBranch, time.Hour)

	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc, repo
}

func TestTopUsersSortsAndTruncates(t *testing.T) {
	counts := []UserCount{
		{UserID: "1", UserName: "Yaw", Count: 2},
		{UserID: "2", UserName: "Ama", Count: 5},
		{UserID: "3", UserName: "Abena", Count: 2},
		{UserID: "4", UserName: "Kojo", Count: 1},
	}
	top := TopUsers(counts, 3)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"Ama", "Abena", "Yaw"}, []string{top[0].UserName, top[1].UserName, top[2].UserName})
	assert.Equal(t, "Yaw", counts[0].UserName, "input must not be reordered")

	assert.Empty(t, TopUsers(nil, 5))
	assert.NotNil(t, TopUsers(nil, 5))
	assert.Len(t, TopUsers(counts, 10), 4)
}

func TestListScopesNonAdminToOwnBranch(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(t, now)

	page, err := svc.List(context.Background(), staff2, ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "s2", page.Items[0].UserID)

	page, err = svc.List(context.Background(), staff2, ListQuery{BranchID: "b1"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Pagination.Total)

	page, err = svc.List(context.Background(), admin, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 9)

	page, err = svc.List(context.Background(), admin, ListQuery{BranchID: "b2"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestListRejectsUnassignedStaff(t *testing.T) {
	svc, _ := seededService(t, time.Now())
	_, err := svc.List(context.Background(), access.Principal{ID: "x", Role: access.RoleViewer}, ListQuery{})
	assert.ErrorIs(t, err, access.ErrUnassigned)
}

func TestUserSummary(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(t, now)

	summary, err := svc.UserSummary(context.Background(), staff1, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "s1", summary.UserID)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Recent)
	assert.Equal(t, 1, summary.ByEntity[EntityCustomer])
	assert.Equal(t, 0, summary.ByEntity[EntityUser])
	assert.Equal(t, now.Add(-DefaultWindow), summary.Since)

	_, err = svc.UserSummary(context.Background(), staff2, "s1", 0)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	summary, err = svc.UserSummary(context.Background(), admin, "s1", time.Hour+time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Recent)
}

func TestBranchSummaryStaffIgnoresRequestedBranch(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(t, now)

	summary, err := svc.BranchSummary(context.Background(), staff1, "b2", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, "b1", summary.BranchID)
	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 6, summary.Recent)
	require.Len(t, summary.TopUsers, 2)
	assert.Equal(t, "Abena", summary.TopUsers[0].UserName)
	assert.Equal(t, "Ama", summary.TopUsers[1].UserName)
}

func TestBranchSummaryAdmin(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(t, now)

	all, err := svc.BranchSummary(context.Background(), admin, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, all.BranchID)
	assert.Equal(t, 9, all.Total)
	assert.Equal(t, 1, all.ByEntity[EntityBranch])

	b2, err := svc.BranchSummary(context.Background(), admin, "b2", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "b2", b2.BranchID)
	assert.Equal(t, 1, b2.Total)
}

func TestSummaryPropagatesStorageErrors(t *testing.T) {
	svc, repo := seededService(t, time.Now())
	repo.failErr = errStorageDown
	_, err := svc.BranchSummary(context.Background(), admin, "", 0, 0)
	assert.ErrorIs(t, err, errStorageDown)
}
