package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/identica-edu/portal-api/internal/models"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type announcementRepository interface {
	Create(ctx context.Context, a *models.Announcement) error
	ListForAudience(ctx context.Context, roleTarget models.AnnouncementTarget, group string, course int, limit int) ([]models.Announcement, error)
	ListByAuthor(ctx context.Context, profileID string) ([]models.Announcement, error)
}

// CreateAnnouncementRequest carries a new announcement.
type CreateAnnouncementRequest struct {
	Title        string  `json:"title" validate:"required,max=200"`
	Content      string  `json:"content" validate:"required"`
	Priority     string  `json:"priority" validate:"required,oneof=low medium high"`
	Target       string  `json:"target" validate:"required,oneof=all students monitors curators teachers group course"`
	TargetGroup  *string `json:"target_group" validate:"required_if=Target group"`
	TargetCourse *int    `json:"target_course" validate:"required_if=Target course,omitempty,min=1,max=6"`
}

// AnnouncementService publishes targeted notices and assembles each
// profile's feed.
type AnnouncementService struct {
	announcements announcementRepository
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAnnouncementService constructs an AnnouncementService.
func NewAnnouncementService(announcements announcementRepository, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{announcements: announcements, validator: validate, logger: logger}
}

// Publish creates an announcement. Monitors may only address their own
// group; curators their own course; teachers and admins anything.
func (s *AnnouncementService) Publish(ctx context.Context, author *models.Profile, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	target := models.AnnouncementTarget(req.Target)
	if err := s.authorizeTarget(author, target, req); err != nil {
		return nil, err
	}

	announcement := &models.Announcement{
		Title:        req.Title,
		Content:      req.Content,
		CreatedBy:    author.ID,
		Priority:     models.AnnouncementPriority(req.Priority),
		Target:       target,
		TargetGroup:  req.TargetGroup,
		TargetCourse: req.TargetCourse,
		Active:       true,
	}
	if err := s.announcements.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.logger.Info("announcement published",
		zap.String("announcement_id", announcement.ID),
		zap.String("author_id", author.ID),
		zap.String("target", string(target)))
	return announcement, nil
}

func (s *AnnouncementService) authorizeTarget(author *models.Profile, target models.AnnouncementTarget, req CreateAnnouncementRequest) error {
	if author.Role.AtLeast(models.RoleTeacher) {
		return nil
	}
	switch author.Role {
	case models.RoleMonitor:
		if target != models.TargetGroup || author.Group == nil || req.TargetGroup == nil || *req.TargetGroup != *author.Group {
			return appErrors.Clone(appErrors.ErrForbidden, "monitors may only address their own group")
		}
	case models.RoleCurator:
		if target != models.TargetGroup && target != models.TargetCourse {
			return appErrors.Clone(appErrors.ErrForbidden, "curators may only address a group or a course")
		}
		if target == models.TargetCourse && (author.Course == nil || req.TargetCourse == nil || *req.TargetCourse != *author.Course) {
			return appErrors.Clone(appErrors.ErrForbidden, "curators may only address their own course")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient role to publish announcements")
	}
	return nil
}

// Feed returns the active announcements visible to the profile.
func (s *AnnouncementService) Feed(ctx context.Context, profile *models.Profile, limit int) ([]models.Announcement, error) {
	group := ""
	if profile.Group != nil {
		group = *profile.Group
	}
	course := 0
	if profile.Course != nil {
		course = *profile.Course
	}

	announcements, err := s.announcements.ListForAudience(ctx, roleAudience(profile.Role), group, course, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcements")
	}
	return announcements, nil
}

// Mine returns the announcements authored by the profile.
func (s *AnnouncementService) Mine(ctx context.Context, profileID string) ([]models.Announcement, error) {
	announcements, err := s.announcements.ListByAuthor(ctx, profileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcements")
	}
	return announcements, nil
}

func roleAudience(role models.Role) models.AnnouncementTarget {
	switch role {
	case models.RoleMonitor:
		return models.TargetMonitors
	case models.RoleCurator:
		return models.TargetCurators
	case models.RoleTeacher, models.RoleAdmin:
		return models.TargetTeachers
	default:
		return models.TargetStudents
	}
}
