package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/identica-edu/portal-api/internal/models"
)

const profileColumns = `p.id, p.user_id, p.student_id, p.faculty, p.course, p.group_name, p.phone, p.birth_date, p.role, p.created_at, p.updated_at`

const profileDetailColumns = profileColumns + `, u.username, u.email, u.first_name, u.last_name`

// ProfileRepository manages persistence for student profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByUserID fetches the profile owned by a user account.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	const query = `SELECT id, user_id, student_id, faculty, course, group_name, phone, birth_date, role, created_at, updated_at FROM profiles WHERE user_id = $1 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by user id: %w", err)
	}
	return &profile, nil
}

// FindByID fetches a profile by its own identifier.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	const query = `SELECT id, user_id, student_id, faculty, course, group_name, phone, birth_date, role, created_at, updated_at FROM profiles WHERE id = $1 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return &profile, nil
}

// Create inserts a new profile row.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.Role == "" {
		profile.Role = models.RoleStudent
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO profiles (id, user_id, student_id, faculty, course, group_name, phone, birth_date, role, created_at, updated_at)
        VALUES (:id, :user_id, :student_id, :faculty, :course, :group_name, :phone, :birth_date, :role, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// Update modifies the editable profile fields.
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET student_id = :student_id, faculty = :faculty, course = :course, group_name = :group_name, phone = :phone, birth_date = :birth_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdateRole changes a profile's role.
func (r *ProfileRepository) UpdateRole(ctx context.Context, id string, role models.Role) error {
	const query = `UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, role, time.Now().UTC()); err != nil {
		return fmt.Errorf("update profile role: %w", err)
	}
	return nil
}

// StudentsInGroup returns student-role profiles in the given group.
func (r *ProfileRepository) StudentsInGroup(ctx context.Context, group string) ([]models.ProfileDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles p JOIN users u ON u.id = p.user_id
        WHERE p.role = $1 AND p.group_name = $2 ORDER BY u.last_name, u.first_name`, profileDetailColumns)
	var profiles []models.ProfileDetail
	if err := r.db.SelectContext(ctx, &profiles, query, models.RoleStudent, group); err != nil {
		return nil, fmt.Errorf("list students in group: %w", err)
	}
	return profiles, nil
}

// StudentsInCourse returns student and monitor profiles in the given course.
func (r *ProfileRepository) StudentsInCourse(ctx context.Context, course int) ([]models.ProfileDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles p JOIN users u ON u.id = p.user_id
        WHERE p.role IN ($1, $2) AND p.course = $3 ORDER BY p.group_name, u.last_name`, profileDetailColumns)
	var profiles []models.ProfileDetail
	if err := r.db.SelectContext(ctx, &profiles, query, models.RoleStudent, models.RoleMonitor, course); err != nil {
		return nil, fmt.Errorf("list students in course: %w", err)
	}
	return profiles, nil
}

// AllStudents returns every student and monitor profile.
func (r *ProfileRepository) AllStudents(ctx context.Context) ([]models.ProfileDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles p JOIN users u ON u.id = p.user_id
        WHERE p.role IN ($1, $2) ORDER BY p.course, p.group_name, u.last_name`, profileDetailColumns)
	var profiles []models.ProfileDetail
	if err := r.db.SelectContext(ctx, &profiles, query, models.RoleStudent, models.RoleMonitor); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return profiles, nil
}
