package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/identica-edu/portal-api/internal/models"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type fakeSubRepo struct {
	subs        map[string]*models.Subscription
	listed      []models.SubscriptionDetail
	websiteIDs  []string
	createErr   error
	created     []*models.Subscription
	decisions   []string
	decided     bool
	expired     int64
	deleted     bool
	replaceErr  error
	replaceKeep []string
	replaceNew  []*models.Subscription
	removed     int64
}

func (f *fakeSubRepo) FindByID(_ context.Context, id string) (*models.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return sub, nil
}

func (f *fakeSubRepo) ListByProfile(context.Context, string, models.SubscriptionStatus) ([]models.SubscriptionDetail, error) {
	return f.listed, nil
}

func (f *fakeSubRepo) ListWebsiteIDsByProfile(context.Context, string) ([]string, error) {
	return f.websiteIDs, nil
}

func (f *fakeSubRepo) ListPending(context.Context) ([]models.SubscriptionDetail, error) {
	return f.listed, nil
}

func (f *fakeSubRepo) Create(_ context.Context, sub *models.Subscription) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, sub)
	return nil
}

func (f *fakeSubRepo) SetDecision(_ context.Context, id string, status models.SubscriptionStatus, approvedBy string, approvedAt time.Time, expiresAt *time.Time) (bool, error) {
	if !f.decided {
		return false, nil
	}
	sub := f.subs[id]
	sub.Status = status
	sub.ApprovedBy = &approvedBy
	sub.ApprovedAt = &approvedAt
	if sub.ExpiresAt == nil {
		sub.ExpiresAt = expiresAt
	}
	f.decisions = append(f.decisions, id)
	return true, nil
}

func (f *fakeSubRepo) BulkDecide(_ context.Context, ids []string, _ models.SubscriptionStatus, _ string, _ time.Time) (int64, error) {
	f.decisions = append(f.decisions, ids...)
	var affected int64
	for _, id := range ids {
		if sub, ok := f.subs[id]; ok && sub.Status == models.SubscriptionPending {
			affected++
		}
	}
	return affected, nil
}

func (f *fakeSubRepo) ExpireOverdue(context.Context, string, time.Time) (int64, error) {
	return f.expired, nil
}

func (f *fakeSubRepo) DeleteOwned(context.Context, string, string) (bool, error) {
	return f.deleted, nil
}

func (f *fakeSubRepo) ReplaceAll(_ context.Context, _ string, keep []string, creates []*models.Subscription) (int64, error) {
	if f.replaceErr != nil {
		return 0, f.replaceErr
	}
	f.replaceKeep = keep
	f.replaceNew = creates
	return f.removed, nil
}

type fakeWebsiteFinder struct {
	websites map[string]*models.Website
}

func (f *fakeWebsiteFinder) FindByID(_ context.Context, id string) (*models.Website, error) {
	website, ok := f.websites[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return website, nil
}

type denyAllPolicy struct{}

func (denyAllPolicy) CanAccess(*models.Profile, *models.Website) bool { return false }

func completeProfile(role models.Role) *models.Profile {
	studentID := "ST001"
	faculty := models.FacultyComputerScience
	course := 2
	group := "CS-201"
	return &models.Profile{
		ID:        "profile-1",
		UserID:    "user-1",
		StudentID: &studentID,
		Faculty:   &faculty,
		Course:    &course,
		Group:     &group,
		Role:      role,
	}
}

func autoWebsite(id string, days int) *models.Website {
	return &models.Website{
		ID:               id,
		Name:             "Site " + id,
		Active:           true,
		SubscriptionType: models.SubscriptionAuto,
		DurationDays:     days,
		AccessLevel:      models.AccessAll,
	}
}

func manualWebsite(id string) *models.Website {
	return &models.Website{
		ID:               id,
		Name:             "Site " + id,
		Active:           true,
		SubscriptionType: models.SubscriptionManual,
		RequiresApproval: true,
		DurationDays:     365,
		AccessLevel:      models.AccessAll,
	}
}

func newSubService(subs *fakeSubRepo, websites *fakeWebsiteFinder, policy subscriptionDecider) *SubscriptionService {
	svc := NewSubscriptionService(subs, websites, policy, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestSubscribeAutoActivatesWithExpiry(t *testing.T) {
	subs := &fakeSubRepo{}
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{"w1": autoWebsite("w1", 90)}}
	svc := newSubService(subs, websites, NewRoleAccessPolicy())

	sub, err := svc.Subscribe(context.Background(), completeProfile(models.RoleStudent), "w1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, time.Date(2026, 5, 30, 12, 0, 0, 0, time.UTC), *sub.ExpiresAt)
}

func TestSubscribeAutoWithoutDurationNeverExpires(t *testing.T) {
	subs := &fakeSubRepo{}
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{"w1": autoWebsite("w1", 0)}}
	svc := newSubService(subs, websites, NewRoleAccessPolicy())

	sub, err := svc.Subscribe(context.Background(), completeProfile(models.RoleStudent), "w1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Nil(t, sub.ExpiresAt)
}

func TestSubscribeManualStartsPending(t *testing.T) {
	subs := &fakeSubRepo{}
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{"w1": manualWebsite("w1")}}
	svc := newSubService(subs, websites, NewRoleAccessPolicy())

	sub, err := svc.Subscribe(context.Background(), completeProfile(models.RoleStudent), "w1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPending, sub.Status)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, time.Date(2027, 3, 1, 12, 0, 0, 0, time.UTC), *sub.ExpiresAt)
	assert.Nil(t, sub.ApprovedBy)
}

func TestSubscribeManualWithoutApprovalActivates(t *testing.T) {
	website := manualWebsite("w1")
	website.RequiresApproval = false
	subs := &fakeSubRepo{}
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{"w1": website}}
	svc := newSubService(subs, websites, NewRoleAccessPolicy())

	sub, err := svc.Subscribe(context.Background(), completeProfile(models.RoleStudent), "w1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, time.Date(2027, 3, 1, 12, 0, 0, 0, time.UTC), *sub.ExpiresAt)
}

func TestSubscribeIncompleteProfileRefused(t *testing.T) {
	svc := newSubService(&fakeSubRepo{}, &fakeWebsiteFinder{}, NewRoleAccessPolicy())

	profile := &models.Profile{ID: "profile-1", Role: models.RoleStudent}
	_, err := svc.Subscribe(context.Background(), profile, "w1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrProfileIncomplete.Code, apiErr.Code)
}

func TestSubscribeRoleDenied(t *testing.T) {
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{"w1": autoWebsite("w1", 30)}}
	svc := newSubService(&fakeSubRepo{}, websites, denyAllPolicy{})

	_, err := svc.Subscribe(context.Background(), completeProfile(models.RoleStudent), "w1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}

func TestSubscribeDuplicateReturnsExisting(t *testing.T) {
	existing := models.SubscriptionDetail{
		Subscription: models.Subscription{ID: "sub-1", ProfileID: "profile-1", WebsiteID: "w1", Status: models.SubscriptionActive},
	}
	subs := &fakeSubRepo{
		createErr: &pq.Error{Code: "23505"},
		listed:    []models.SubscriptionDetail{existing},
	}
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{"w1": autoWebsite("w1", 30)}}
	svc := newSubService(subs, websites, NewRoleAccessPolicy())

	sub, err := svc.Subscribe(context.Background(), completeProfile(models.RoleStudent), "w1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
}

func TestApproveStampsApproverAndExpiry(t *testing.T) {
	pending := &models.Subscription{ID: "sub-1", WebsiteID: "w1", Status: models.SubscriptionPending}
	subs := &fakeSubRepo{subs: map[string]*models.Subscription{"sub-1": pending}, decided: true}
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{"w1": manualWebsite("w1")}}
	svc := newSubService(subs, websites, NewRoleAccessPolicy())

	sub, err := svc.Approve(context.Background(), "approver-1", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	require.NotNil(t, sub.ApprovedBy)
	assert.Equal(t, "approver-1", *sub.ApprovedBy)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, time.Date(2027, 3, 1, 12, 0, 0, 0, time.UTC), *sub.ExpiresAt)
}

func TestApproveKeepsCreationExpiry(t *testing.T) {
	stamped := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	pending := &models.Subscription{ID: "sub-1", WebsiteID: "w1", Status: models.SubscriptionPending, ExpiresAt: &stamped}
	subs := &fakeSubRepo{subs: map[string]*models.Subscription{"sub-1": pending}, decided: true}
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{"w1": manualWebsite("w1")}}
	svc := newSubService(subs, websites, NewRoleAccessPolicy())

	sub, err := svc.Approve(context.Background(), "approver-1", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, stamped, *sub.ExpiresAt)
}

func TestApproveNonPendingRefused(t *testing.T) {
	active := &models.Subscription{ID: "sub-1", WebsiteID: "w1", Status: models.SubscriptionActive}
	subs := &fakeSubRepo{subs: map[string]*models.Subscription{"sub-1": active}}
	svc := newSubService(subs, &fakeWebsiteFinder{}, NewRoleAccessPolicy())

	_, err := svc.Approve(context.Background(), "approver-1", "sub-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrAlreadyProcessed.Code, apiErr.Code)
}

func TestRejectIsTerminal(t *testing.T) {
	pending := &models.Subscription{ID: "sub-1", WebsiteID: "w1", Status: models.SubscriptionPending}
	subs := &fakeSubRepo{subs: map[string]*models.Subscription{"sub-1": pending}, decided: true}
	svc := newSubService(subs, &fakeWebsiteFinder{}, NewRoleAccessPolicy())

	sub, err := svc.Reject(context.Background(), "approver-1", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionRejected, sub.Status)

	_, err = svc.Approve(context.Background(), "approver-1", "sub-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrAlreadyProcessed.Code, apiErr.Code)
}

func TestBulkApproveSkipsDecidedRows(t *testing.T) {
	subs := &fakeSubRepo{subs: map[string]*models.Subscription{
		"3f0e8c1a-0000-0000-0000-000000000001": {Status: models.SubscriptionPending},
		"3f0e8c1a-0000-0000-0000-000000000002": {Status: models.SubscriptionRejected},
	}}
	svc := newSubService(subs, &fakeWebsiteFinder{}, NewRoleAccessPolicy())

	applied, err := svc.BulkApprove(context.Background(), "approver-1", BulkDecisionRequest{
		SubscriptionIDs: []string{
			"3f0e8c1a-0000-0000-0000-000000000001",
			"3f0e8c1a-0000-0000-0000-000000000002",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), applied)
}

func TestReplaceSkipsDeniedAndCounts(t *testing.T) {
	subs := &fakeSubRepo{websiteIDs: []string{"11111111-1111-1111-1111-111111111111"}, removed: 2}
	auto := autoWebsite("11111111-1111-1111-1111-111111111111", 90)
	manual := manualWebsite("22222222-2222-2222-2222-222222222222")
	restricted := autoWebsite("33333333-3333-3333-3333-333333333333", 30)
	restricted.AccessLevel = models.AccessTeachers
	restricted.Name = "Teacher Portal"
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{
		auto.ID: auto, manual.ID: manual, restricted.ID: restricted,
	}}
	svc := newSubService(subs, websites, NewRoleAccessPolicy())

	result, err := svc.Replace(context.Background(), completeProfile(models.RoleStudent), BulkSubscribeRequest{
		WebsiteIDs: []string{auto.ID, manual.ID, restricted.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added) // auto site already subscribed
	assert.Equal(t, 1, result.Pending)
	assert.Equal(t, 2, result.Removed)
	assert.Equal(t, []string{"Teacher Portal"}, result.Denied)
	assert.ElementsMatch(t, []string{auto.ID, manual.ID}, subs.replaceKeep)
	require.Len(t, subs.replaceNew, 1)
	assert.Equal(t, models.SubscriptionPending, subs.replaceNew[0].Status)
}

func TestReplaceFailureLeavesNothingApplied(t *testing.T) {
	subs := &fakeSubRepo{replaceErr: errors.New("tx aborted")}
	auto := autoWebsite("11111111-1111-1111-1111-111111111111", 90)
	websites := &fakeWebsiteFinder{websites: map[string]*models.Website{auto.ID: auto}}
	svc := newSubService(subs, websites, NewRoleAccessPolicy())

	_, err := svc.Replace(context.Background(), completeProfile(models.RoleStudent), BulkSubscribeRequest{
		WebsiteIDs: []string{auto.ID},
	})
	require.Error(t, err)
	assert.Empty(t, subs.created)
}

func TestReplaceIncompleteProfileRefused(t *testing.T) {
	svc := newSubService(&fakeSubRepo{}, &fakeWebsiteFinder{}, NewRoleAccessPolicy())

	profile := &models.Profile{ID: "profile-1", Role: models.RoleStudent}
	_, err := svc.Replace(context.Background(), profile, BulkSubscribeRequest{
		WebsiteIDs: []string{"11111111-1111-1111-1111-111111111111"},
	})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrProfileIncomplete.Code, apiErr.Code)
}

func TestListOwnFillsDerivedFields(t *testing.T) {
	expiresSoon := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	expiredAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	subs := &fakeSubRepo{listed: []models.SubscriptionDetail{
		{Subscription: models.Subscription{ID: "a", Status: models.SubscriptionActive, ExpiresAt: &expiresSoon}},
		{Subscription: models.Subscription{ID: "b", Status: models.SubscriptionExpired, ExpiresAt: &expiredAt}},
	}}
	svc := newSubService(subs, &fakeWebsiteFinder{}, NewRoleAccessPolicy())

	listed, err := svc.ListOwn(context.Background(), "profile-1", "")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, 10, listed[0].DaysRemaining)
	assert.False(t, listed[0].Expired)
	assert.Equal(t, 0, listed[1].DaysRemaining)
	assert.True(t, listed[1].Expired)
}

func TestCancelNotFound(t *testing.T) {
	svc := newSubService(&fakeSubRepo{deleted: false}, &fakeWebsiteFinder{}, NewRoleAccessPolicy())

	err := svc.Cancel(context.Background(), "profile-1", "missing")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)
}
