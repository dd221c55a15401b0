package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identica-edu/portal-api/internal/models"
)

func newSubscriptionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSubscriptionRepositoryCreateSurfacesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newSubscriptionRepoMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Subscription{
		ProfileID: "p1", WebsiteID: "w1", Status: models.SubscriptionPending,
	})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepositorySetDecisionGuardsPending(t *testing.T) {
	db, mock, cleanup := newSubscriptionRepoMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	now := time.Now().UTC()
	expires := now.AddDate(0, 0, 90)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET status = $2, approved_by = $3, approved_at = $4, expires_at = COALESCE(expires_at, $5)")).
		WithArgs("sub-1", string(models.SubscriptionActive), "approver-1", now, &expires, string(models.SubscriptionPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.SetDecision(context.Background(), "sub-1", models.SubscriptionActive, "approver-1", now, &expires)
	require.NoError(t, err)
	assert.True(t, applied)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET status = $2, approved_by = $3, approved_at = $4, expires_at = COALESCE(expires_at, $5)")).
		WithArgs("sub-1", string(models.SubscriptionActive), "approver-1", now, &expires, string(models.SubscriptionPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err = repo.SetDecision(context.Background(), "sub-1", models.SubscriptionActive, "approver-1", now, &expires)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepositoryExpireOverdue(t *testing.T) {
	db, mock, cleanup := newSubscriptionRepoMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET status = $3 WHERE profile_id = $1 AND status = $2 AND expires_at IS NOT NULL AND expires_at < $4")).
		WithArgs("p1", string(models.SubscriptionActive), string(models.SubscriptionExpired), now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	expired, err := repo.ExpireOverdue(context.Background(), "p1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), expired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepositoryReplaceAllCommits(t *testing.T) {
	db, mock, cleanup := newSubscriptionRepoMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subscriptions WHERE profile_id = $1 AND website_id <> ALL($2)")).
		WithArgs("p1", pq.Array([]string{"w1"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.ReplaceAll(context.Background(), "p1", []string{"w1"}, []*models.Subscription{
		{ProfileID: "p1", WebsiteID: "w1", Status: models.SubscriptionActive},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepositoryReplaceAllRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newSubscriptionRepoMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subscriptions WHERE profile_id = $1 AND website_id <> ALL($2)")).
		WithArgs("p1", pq.Array([]string{"w1"})).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.ReplaceAll(context.Background(), "p1", []string{"w1"}, []*models.Subscription{
		{ProfileID: "p1", WebsiteID: "w1", Status: models.SubscriptionActive},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepositoryListByProfileWithStatus(t *testing.T) {
	db, mock, cleanup := newSubscriptionRepoMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "profile_id", "website_id", "status", "subscribed_at", "expires_at", "approved_by", "approved_at", "website_name", "website_url", "access_level"}).
		AddRow("s1", "p1", "w1", "active", now, nil, nil, nil, "Coursera", "https://www.coursera.org", "all")
	mock.ExpectQuery("SELECT .+ FROM subscriptions s JOIN websites w ON w.id = s.website_id").
		WithArgs("p1", string(models.SubscriptionActive)).
		WillReturnRows(rows)

	subs, err := repo.ListByProfile(context.Background(), "p1", models.SubscriptionActive)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Coursera", subs[0].WebsiteName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepositoryCountByProfilesEmptySkipsQuery(t *testing.T) {
	db, mock, cleanup := newSubscriptionRepoMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	count, err := repo.CountByProfiles(context.Background(), nil, models.SubscriptionActive)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
