package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identica-edu/portal-api/internal/models"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type fakeAnnouncementRepo struct {
	created      []*models.Announcement
	feed         []models.Announcement
	lastAudience models.AnnouncementTarget
	lastGroup    string
	lastCourse   int
}

func (f *fakeAnnouncementRepo) Create(_ context.Context, a *models.Announcement) error {
	a.ID = "ann-1"
	f.created = append(f.created, a)
	return nil
}

func (f *fakeAnnouncementRepo) ListForAudience(_ context.Context, roleTarget models.AnnouncementTarget, group string, course int, _ int) ([]models.Announcement, error) {
	f.lastAudience = roleTarget
	f.lastGroup = group
	f.lastCourse = course
	return f.feed, nil
}

func (f *fakeAnnouncementRepo) ListByAuthor(context.Context, string) ([]models.Announcement, error) {
	return f.feed, nil
}

func groupAnnouncement(group string) CreateAnnouncementRequest {
	return CreateAnnouncementRequest{
		Title:       "Room change",
		Content:     "Lecture moved to room 405.",
		Priority:    "medium",
		Target:      "group",
		TargetGroup: &group,
	}
}

func TestPublishMonitorOwnGroupOnly(t *testing.T) {
	repo := &fakeAnnouncementRepo{}
	svc := NewAnnouncementService(repo, nil, nil)

	group := "CS-201"
	monitor := &models.Profile{ID: "p-1", Role: models.RoleMonitor, Group: &group}

	announcement, err := svc.Publish(context.Background(), monitor, groupAnnouncement("CS-201"))
	require.NoError(t, err)
	assert.Equal(t, models.TargetGroup, announcement.Target)
	assert.True(t, announcement.Active)
	assert.Equal(t, "p-1", announcement.CreatedBy)

	_, err = svc.Publish(context.Background(), monitor, groupAnnouncement("CS-202"))
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}

func TestPublishMonitorCannotAddressEveryone(t *testing.T) {
	svc := NewAnnouncementService(&fakeAnnouncementRepo{}, nil, nil)

	group := "CS-201"
	monitor := &models.Profile{ID: "p-1", Role: models.RoleMonitor, Group: &group}
	_, err := svc.Publish(context.Background(), monitor, CreateAnnouncementRequest{
		Title:    "Holiday",
		Content:  "No classes tomorrow.",
		Priority: "high",
		Target:   "all",
	})

	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}

func TestPublishCuratorOwnCourseOnly(t *testing.T) {
	repo := &fakeAnnouncementRepo{}
	svc := NewAnnouncementService(repo, nil, nil)

	course := 2
	curator := &models.Profile{ID: "p-2", Role: models.RoleCurator, Course: &course}

	own := 2
	_, err := svc.Publish(context.Background(), curator, CreateAnnouncementRequest{
		Title:        "Midterm schedule",
		Content:      "Published on the portal.",
		Priority:     "medium",
		Target:       "course",
		TargetCourse: &own,
	})
	require.NoError(t, err)

	other := 3
	_, err = svc.Publish(context.Background(), curator, CreateAnnouncementRequest{
		Title:        "Midterm schedule",
		Content:      "Published on the portal.",
		Priority:     "medium",
		Target:       "course",
		TargetCourse: &other,
	})
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}

func TestPublishTeacherAddressesAnyone(t *testing.T) {
	repo := &fakeAnnouncementRepo{}
	svc := NewAnnouncementService(repo, nil, nil)

	teacher := &models.Profile{ID: "p-3", Role: models.RoleTeacher}
	announcement, err := svc.Publish(context.Background(), teacher, CreateAnnouncementRequest{
		Title:    "Exam week",
		Content:  "Starts Monday.",
		Priority: "high",
		Target:   "all",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TargetAll, announcement.Target)
}

func TestPublishStudentForbidden(t *testing.T) {
	svc := NewAnnouncementService(&fakeAnnouncementRepo{}, nil, nil)

	student := &models.Profile{ID: "p-4", Role: models.RoleStudent}
	_, err := svc.Publish(context.Background(), student, groupAnnouncement("CS-201"))

	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}

func TestPublishValidatesTargetFields(t *testing.T) {
	svc := NewAnnouncementService(&fakeAnnouncementRepo{}, nil, nil)

	teacher := &models.Profile{ID: "p-3", Role: models.RoleTeacher}
	_, err := svc.Publish(context.Background(), teacher, CreateAnnouncementRequest{
		Title:    "Broken",
		Content:  "Missing group.",
		Priority: "low",
		Target:   "group",
	})

	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestFeedResolvesRoleAudience(t *testing.T) {
	repo := &fakeAnnouncementRepo{feed: []models.Announcement{{ID: "ann-1"}}}
	svc := NewAnnouncementService(repo, nil, nil)

	group := "CS-201"
	course := 2
	monitor := &models.Profile{ID: "p-1", Role: models.RoleMonitor, Group: &group, Course: &course}

	feed, err := svc.Feed(context.Background(), monitor, 20)
	require.NoError(t, err)
	assert.Len(t, feed, 1)
	assert.Equal(t, models.TargetMonitors, repo.lastAudience)
	assert.Equal(t, "CS-201", repo.lastGroup)
	assert.Equal(t, 2, repo.lastCourse)
}
