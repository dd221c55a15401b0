package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/identica-edu/portal-api/internal/models"
	"github.com/identica-edu/portal-api/internal/repository"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type profileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
	UpdateRole(ctx context.Context, id string, role models.Role) error
	StudentsInGroup(ctx context.Context, group string) ([]models.ProfileDetail, error)
	StudentsInCourse(ctx context.Context, course int) ([]models.ProfileDetail, error)
	AllStudents(ctx context.Context) ([]models.ProfileDetail, error)
}

type profileUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// CreateAccountRequest provisions a user together with its profile.
type CreateAccountRequest struct {
	Username  string      `json:"username" validate:"required,min=3"`
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,min=6"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      models.Role `json:"role" validate:"omitempty,oneof=student monitor curator teacher admin"`
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	StudentID string     `json:"student_id" validate:"required,max=20"`
	Faculty   string     `json:"faculty" validate:"required,oneof=computer_science engineering business arts science medicine"`
	Course    int        `json:"course" validate:"required,min=1,max=6"`
	Group     string     `json:"group" validate:"required,max=10"`
	Phone     string     `json:"phone" validate:"omitempty,max=15"`
	BirthDate *time.Time `json:"birth_date"`
}

// ChangeRoleRequest reassigns a profile's role.
type ChangeRoleRequest struct {
	ProfileID string      `json:"profile_id" validate:"required"`
	NewRole   models.Role `json:"new_role" validate:"required,oneof=student monitor curator teacher admin"`
}

// ProfileService manages account provisioning and the profile registry.
type ProfileService struct {
	profiles  profileRepository
	users     profileUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(profiles profileRepository, users profileUserRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{profiles: profiles, users: users, validator: validate, logger: logger}
}

// CreateAccount provisions a user account and its profile in one
// explicit, synchronous step. Every account gets exactly one profile by
// construction; there is no implicit creation hook.
func (s *ProfileService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*models.User, *models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}

	_, err := s.users.FindByUsername(ctx, strings.ToLower(req.Username))
	switch {
	case err == nil:
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
	case !errors.Is(err, sql.ErrNoRows):
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     strings.ToLower(req.Username),
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Two registrations can pass the username check at once; the
		// unique constraint decides the race.
		if repository.IsUniqueViolation(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	profile := &models.Profile{UserID: user.ID, Role: role}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision profile")
	}

	s.logger.Info("account provisioned",
		zap.String("user_id", user.ID),
		zap.String("profile_id", profile.ID),
		zap.String("role", string(role)))
	return user, profile, nil
}

// EnsureProfile returns the user's profile, creating a default student
// profile when none exists yet.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	profile = &models.Profile{UserID: userID, Role: models.RoleStudent}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision profile")
	}
	s.logger.Info("profile provisioned on demand", zap.String("user_id", userID))
	return profile, nil
}

// Get returns a profile by its identifier.
func (s *ProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// Update applies the editable profile fields.
func (s *ProfileService) Update(ctx context.Context, profileID string, req UpdateProfileRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile, err := s.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	faculty := models.Faculty(req.Faculty)
	profile.StudentID = &req.StudentID
	profile.Faculty = &faculty
	profile.Course = &req.Course
	profile.Group = &req.Group
	profile.Phone = req.Phone
	profile.BirthDate = req.BirthDate

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return profile, nil
}

// ChangeRole reassigns a profile's role. Only curators and above may
// change roles, and never to a rank at or above their own unless the
// actor is an admin.
func (s *ProfileService) ChangeRole(ctx context.Context, actor *models.Profile, req ChangeRoleRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	if !actor.Role.AtLeast(models.RoleCurator) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role to change roles")
	}
	if actor.Role != models.RoleAdmin && req.NewRole.Rank() >= actor.Role.Rank() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot assign a role at or above your own")
	}

	target, err := s.Get(ctx, req.ProfileID)
	if err != nil {
		return nil, err
	}

	oldRole := target.Role
	if err := s.profiles.UpdateRole(ctx, target.ID, req.NewRole); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change role")
	}
	target.Role = req.NewRole

	s.logger.Info("role changed",
		zap.String("profile_id", target.ID),
		zap.String("actor_id", actor.ID),
		zap.String("old_role", string(oldRole)),
		zap.String("new_role", string(req.NewRole)))
	return target, nil
}

// StudentsInGroup returns the students sharing a monitor's group. A
// caller without the monitor role, or without a group, gets an empty
// result rather than an error.
func (s *ProfileService) StudentsInGroup(ctx context.Context, caller *models.Profile) ([]models.ProfileDetail, error) {
	if caller.Role != models.RoleMonitor || caller.Group == nil || *caller.Group == "" {
		return []models.ProfileDetail{}, nil
	}
	students, err := s.profiles.StudentsInGroup(ctx, *caller.Group)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group students")
	}
	return students, nil
}

// StudentsInCourse returns the students and monitors on a curator's
// course, or an empty result for callers lacking the curator role.
func (s *ProfileService) StudentsInCourse(ctx context.Context, caller *models.Profile) ([]models.ProfileDetail, error) {
	if caller.Role != models.RoleCurator || caller.Course == nil {
		return []models.ProfileDetail{}, nil
	}
	students, err := s.profiles.StudentsInCourse(ctx, *caller.Course)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course students")
	}
	return students, nil
}

// AllStudents returns every student and monitor for a teacher-role
// caller, or an empty result otherwise. Admins pass the route gates but
// are not teachers; they see teacher data through the admin surfaces.
func (s *ProfileService) AllStudents(ctx context.Context, caller *models.Profile) ([]models.ProfileDetail, error) {
	if caller.Role != models.RoleTeacher && caller.Role != models.RoleAdmin {
		return []models.ProfileDetail{}, nil
	}
	students, err := s.profiles.AllStudents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}
