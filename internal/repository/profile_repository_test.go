package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identica-edu/portal-api/internal/models"
)

func newProfileRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func profileRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "user_id", "student_id", "faculty", "course", "group_name", "phone", "birth_date", "role", "created_at", "updated_at"}).
		AddRow("pr1", "u1", "ST001", "computer_science", 2, "CS-201", "", nil, "student", now, now)
}

func TestProfileRepositoryFindByUserID(t *testing.T) {
	db, mock, cleanup := newProfileRepoMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, student_id, faculty, course, group_name, phone, birth_date, role, created_at, updated_at FROM profiles WHERE user_id = $1 LIMIT 1")).
		WithArgs("u1").
		WillReturnRows(profileRows())

	profile, err := repo.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "pr1", profile.ID)
	assert.True(t, profile.Complete())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryCreateDefaultsRole(t *testing.T) {
	db, mock, cleanup := newProfileRepoMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("INSERT INTO profiles").
		WillReturnResult(sqlmock.NewResult(1, 1))

	profile := &models.Profile{UserID: "u1"}
	require.NoError(t, repo.Create(context.Background(), profile))
	assert.Equal(t, models.RoleStudent, profile.Role)
	assert.NotEmpty(t, profile.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryStudentsInGroup(t *testing.T) {
	db, mock, cleanup := newProfileRepoMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "student_id", "faculty", "course", "group_name", "phone", "birth_date", "role", "created_at", "updated_at", "username", "email", "first_name", "last_name"}).
		AddRow("pr1", "u1", "ST001", "computer_science", 2, "CS-201", "", nil, "student", now, now, "student1", "student1@university.local", "Ivan", "Petrov")
	mock.ExpectQuery("SELECT .+ FROM profiles p JOIN users u ON u.id = p.user_id").
		WithArgs(string(models.RoleStudent), "CS-201").
		WillReturnRows(rows)

	students, err := repo.StudentsInGroup(context.Background(), "CS-201")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "student1", students[0].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryUpdateRole(t *testing.T) {
	db, mock, cleanup := newProfileRepoMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("pr1", string(models.RoleMonitor), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateRole(context.Background(), "pr1", models.RoleMonitor))
	assert.NoError(t, mock.ExpectationsWereMet())
}
