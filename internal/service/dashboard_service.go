package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/identica-edu/portal-api/internal/models"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type dashboardSubscriptionService interface {
	ListOwn(ctx context.Context, profileID string, status models.SubscriptionStatus) ([]models.SubscriptionDetail, error)
}

type dashboardProfileService interface {
	StudentsInGroup(ctx context.Context, caller *models.Profile) ([]models.ProfileDetail, error)
	StudentsInCourse(ctx context.Context, caller *models.Profile) ([]models.ProfileDetail, error)
	AllStudents(ctx context.Context, caller *models.Profile) ([]models.ProfileDetail, error)
}

type dashboardSubscriptionRepository interface {
	CountByProfiles(ctx context.Context, profileIDs []string, status models.SubscriptionStatus) (int, error)
	PopularWebsites(ctx context.Context, profileIDs []string, limit int) ([]models.WebsitePopularity, error)
}

// DashboardService assembles the role-dependent landing payload. Loading
// a dashboard runs the expiry sweep for the caller, so stale active
// subscriptions never reach the page.
type DashboardService struct {
	subscriptions dashboardSubscriptionService
	profiles      dashboardProfileService
	subRepo       dashboardSubscriptionRepository
	logger        *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(subscriptions dashboardSubscriptionService, profiles dashboardProfileService, subRepo dashboardSubscriptionRepository, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		subscriptions: subscriptions,
		profiles:      profiles,
		subRepo:       subRepo,
		logger:        logger,
	}
}

// Load builds the dashboard for the given profile.
func (s *DashboardService) Load(ctx context.Context, profile *models.Profile) (*models.Dashboard, error) {
	subs, err := s.subscriptions.ListOwn(ctx, profile.ID, "")
	if err != nil {
		return nil, err
	}

	dashboard := &models.Dashboard{
		Profile:         profile,
		ProfileComplete: profile.Complete(),
		Subscriptions:   subs,
		Stats:           countByStatus(subs),
	}

	students, scope, err := s.scopedStudents(ctx, profile)
	if err != nil {
		return nil, err
	}
	if scope == "" {
		return dashboard, nil
	}

	if err := s.attachScope(ctx, dashboard, scope, students); err != nil {
		return nil, err
	}
	return dashboard, nil
}

// ScopedView serves the role-gated dashboard pages. The scope names the
// page, not the caller: a teacher opening the monitor page gets an empty
// list because the group query only answers for monitors.
func (s *DashboardService) ScopedView(ctx context.Context, profile *models.Profile, scope string) (*models.Dashboard, error) {
	var (
		students []models.ProfileDetail
		err      error
	)
	switch scope {
	case models.ScopeGroup:
		students, err = s.profiles.StudentsInGroup(ctx, profile)
	case models.ScopeCourse:
		students, err = s.profiles.StudentsInCourse(ctx, profile)
	case models.ScopeAll:
		students, err = s.profiles.AllStudents(ctx, profile)
	default:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown dashboard scope")
	}
	if err != nil {
		return nil, err
	}

	dashboard := &models.Dashboard{
		Profile:         profile,
		ProfileComplete: profile.Complete(),
	}
	if err := s.attachScope(ctx, dashboard, scope, students); err != nil {
		return nil, err
	}
	return dashboard, nil
}

func (s *DashboardService) attachScope(ctx context.Context, dashboard *models.Dashboard, scope string, students []models.ProfileDetail) error {
	dashboard.Scope = scope
	dashboard.Students = students

	ids := make([]string, 0, len(students))
	for i := range students {
		ids = append(ids, students[i].Profile.ID)
	}

	stats, err := s.studentStats(ctx, ids)
	if err != nil {
		return err
	}
	dashboard.StudentStats = stats

	popular, err := s.subRepo.PopularWebsites(ctx, ids, 5)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load popular websites")
	}
	dashboard.PopularWebsites = popular
	return nil
}

func (s *DashboardService) scopedStudents(ctx context.Context, profile *models.Profile) ([]models.ProfileDetail, string, error) {
	switch profile.Role {
	case models.RoleMonitor:
		students, err := s.profiles.StudentsInGroup(ctx, profile)
		return students, models.ScopeGroup, err
	case models.RoleCurator:
		students, err := s.profiles.StudentsInCourse(ctx, profile)
		return students, models.ScopeCourse, err
	case models.RoleTeacher, models.RoleAdmin:
		students, err := s.profiles.AllStudents(ctx, profile)
		return students, models.ScopeAll, err
	default:
		return nil, "", nil
	}
}

func (s *DashboardService) studentStats(ctx context.Context, profileIDs []string) (*models.SubscriptionStats, error) {
	stats := &models.SubscriptionStats{}
	for status, target := range map[models.SubscriptionStatus]*int{
		models.SubscriptionActive:  &stats.Active,
		models.SubscriptionPending: &stats.Pending,
		models.SubscriptionExpired: &stats.Expired,
	} {
		count, err := s.subRepo.CountByProfiles(ctx, profileIDs, status)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count subscriptions")
		}
		*target = count
	}
	return stats, nil
}

func countByStatus(subs []models.SubscriptionDetail) models.SubscriptionStats {
	var stats models.SubscriptionStats
	for i := range subs {
		switch subs[i].Status {
		case models.SubscriptionActive:
			stats.Active++
		case models.SubscriptionPending:
			stats.Pending++
		case models.SubscriptionExpired:
			stats.Expired++
		}
	}
	return stats
}
