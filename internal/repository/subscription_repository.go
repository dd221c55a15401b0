package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/identica-edu/portal-api/internal/models"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the error is a postgres duplicate-key
// violation. A concurrent duplicate subscribe surfaces this way and is
// treated as idempotent success by the service layer.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

const subscriptionColumns = `s.id, s.profile_id, s.website_id, s.status, s.subscribed_at, s.expires_at, s.approved_by, s.approved_at`

// SubscriptionRepository manages persistence for subscription rows. The
// (profile_id, website_id) pair carries a unique constraint.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository constructs a SubscriptionRepository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindByID fetches a subscription by identifier.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*models.Subscription, error) {
	const query = `SELECT id, profile_id, website_id, status, subscribed_at, expires_at, approved_by, approved_at FROM subscriptions WHERE id = $1 LIMIT 1`
	var sub models.Subscription
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return &sub, nil
}

// ListByProfile returns the profile's subscriptions joined with website
// data, optionally restricted to one status.
func (r *SubscriptionRepository) ListByProfile(ctx context.Context, profileID string, status models.SubscriptionStatus) ([]models.SubscriptionDetail, error) {
	query := fmt.Sprintf(`SELECT %s, w.name AS website_name, w.url AS website_url, w.access_level
        FROM subscriptions s JOIN websites w ON w.id = s.website_id
        WHERE s.profile_id = $1`, subscriptionColumns)
	args := []interface{}{profileID}
	if status != "" {
		query += " AND s.status = $2"
		args = append(args, status)
	}
	query += " ORDER BY s.subscribed_at DESC"

	var subs []models.SubscriptionDetail
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// ListWebsiteIDsByProfile returns the website ids the profile has any
// subscription row for.
func (r *SubscriptionRepository) ListWebsiteIDsByProfile(ctx context.Context, profileID string) ([]string, error) {
	const query = `SELECT website_id FROM subscriptions WHERE profile_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, profileID); err != nil {
		return nil, fmt.Errorf("list subscribed website ids: %w", err)
	}
	return ids, nil
}

// ListPending returns pending subscriptions across all profiles for the
// approval queue.
func (r *SubscriptionRepository) ListPending(ctx context.Context) ([]models.SubscriptionDetail, error) {
	query := fmt.Sprintf(`SELECT %s, w.name AS website_name, w.url AS website_url, w.access_level
        FROM subscriptions s JOIN websites w ON w.id = s.website_id
        WHERE s.status = $1 ORDER BY s.subscribed_at`, subscriptionColumns)
	var subs []models.SubscriptionDetail
	if err := r.db.SelectContext(ctx, &subs, query, models.SubscriptionPending); err != nil {
		return nil, fmt.Errorf("list pending subscriptions: %w", err)
	}
	return subs, nil
}

// Create inserts a subscription row. Callers must inspect the error with
// IsUniqueViolation to recover duplicate-pair races.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now().UTC()
	}
	const query = `INSERT INTO subscriptions (id, profile_id, website_id, status, subscribed_at, expires_at, approved_by, approved_at)
        VALUES (:id, :profile_id, :website_id, :status, :subscribed_at, :expires_at, :approved_by, :approved_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// SetDecision applies an approval or rejection to a pending row. The
// status guard in the WHERE clause makes the transition race-safe: a row
// already moved out of pending is simply not matched.
func (r *SubscriptionRepository) SetDecision(ctx context.Context, id string, status models.SubscriptionStatus, approvedBy string, approvedAt time.Time, expiresAt *time.Time) (bool, error) {
	const query = `UPDATE subscriptions SET status = $2, approved_by = $3, approved_at = $4, expires_at = COALESCE(expires_at, $5)
        WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, status, approvedBy, approvedAt, expiresAt, models.SubscriptionPending)
	if err != nil {
		return false, fmt.Errorf("set subscription decision: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set subscription decision rows: %w", err)
	}
	return affected > 0, nil
}

// BulkDecide applies approve/reject to every selected pending row and
// returns how many rows actually changed. Non-pending rows are left
// untouched. Approval backfills expires_at from the website duration for
// rows that do not carry one yet.
func (r *SubscriptionRepository) BulkDecide(ctx context.Context, ids []string, status models.SubscriptionStatus, approvedBy string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE subscriptions s
        SET status = $2, approved_by = $3, approved_at = $4,
            expires_at = CASE WHEN $2 = 'active' AND s.expires_at IS NULL AND w.duration_days > 0
                THEN $4::timestamptz + make_interval(days => w.duration_days) ELSE s.expires_at END
        FROM websites w
        WHERE w.id = s.website_id AND s.id = ANY($1) AND s.status = $5`
	result, err := r.db.ExecContext(ctx, query, pq.Array(ids), status, approvedBy, now, models.SubscriptionPending)
	if err != nil {
		return 0, fmt.Errorf("bulk decide subscriptions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk decide rows: %w", err)
	}
	return affected, nil
}

// ExpireOverdue flips the profile's overdue active rows to expired and
// returns the count. This is the lazy, read-triggered sweep; nothing
// scans the table globally.
func (r *SubscriptionRepository) ExpireOverdue(ctx context.Context, profileID string, now time.Time) (int64, error) {
	const query = `UPDATE subscriptions SET status = $3 WHERE profile_id = $1 AND status = $2 AND expires_at IS NOT NULL AND expires_at < $4`
	result, err := r.db.ExecContext(ctx, query, profileID, models.SubscriptionActive, models.SubscriptionExpired, now)
	if err != nil {
		return 0, fmt.Errorf("expire overdue subscriptions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire overdue rows: %w", err)
	}
	return affected, nil
}

// DeleteOwned removes a subscription only when it belongs to the given
// profile, reporting whether a row was deleted.
func (r *SubscriptionRepository) DeleteOwned(ctx context.Context, id, profileID string) (bool, error) {
	const query = `DELETE FROM subscriptions WHERE id = $1 AND profile_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, profileID)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subscription rows: %w", err)
	}
	return affected > 0, nil
}

// ReplaceAll atomically replaces a profile's subscription set: rows for
// websites outside keepWebsiteIDs are removed and the prepared new rows
// are inserted. Either every write commits or none does.
func (r *SubscriptionRepository) ReplaceAll(ctx context.Context, profileID string, keepWebsiteIDs []string, creates []*models.Subscription) (removed int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const deleteQuery = `DELETE FROM subscriptions WHERE profile_id = $1 AND website_id <> ALL($2)`
	result, err := tx.ExecContext(ctx, deleteQuery, profileID, pq.Array(keepWebsiteIDs))
	if err != nil {
		return 0, fmt.Errorf("remove unselected subscriptions: %w", err)
	}
	if removed, err = result.RowsAffected(); err != nil {
		return 0, fmt.Errorf("removed subscription rows: %w", err)
	}

	const insertQuery = `INSERT INTO subscriptions (id, profile_id, website_id, status, subscribed_at, expires_at, approved_by, approved_at)
        VALUES (:id, :profile_id, :website_id, :status, :subscribed_at, :expires_at, :approved_by, :approved_at)
        ON CONFLICT (profile_id, website_id) DO NOTHING`
	for _, sub := range creates {
		if sub.ID == "" {
			sub.ID = uuid.NewString()
		}
		if sub.SubscribedAt.IsZero() {
			sub.SubscribedAt = time.Now().UTC()
		}
		if _, err = tx.NamedExecContext(ctx, insertQuery, sub); err != nil {
			return 0, fmt.Errorf("insert subscription %s: %w", sub.WebsiteID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace tx: %w", err)
	}
	return removed, nil
}

// CountByProfiles returns the number of subscriptions in the given
// status across a set of profiles. Used for dashboard statistics.
func (r *SubscriptionRepository) CountByProfiles(ctx context.Context, profileIDs []string, status models.SubscriptionStatus) (int, error) {
	if len(profileIDs) == 0 {
		return 0, nil
	}
	const query = `SELECT COUNT(*) FROM subscriptions WHERE profile_id = ANY($1) AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, pq.Array(profileIDs), status); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return count, nil
}

// PopularWebsites returns the most subscribed websites across a set of
// profiles, ordered by subscription count.
func (r *SubscriptionRepository) PopularWebsites(ctx context.Context, profileIDs []string, limit int) ([]models.WebsitePopularity, error) {
	if len(profileIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT w.name, COUNT(*) AS subscription_count
        FROM subscriptions s JOIN websites w ON w.id = s.website_id
        WHERE s.profile_id = ANY($1)
        GROUP BY w.name ORDER BY subscription_count DESC, w.name LIMIT $2`
	var rows []models.WebsitePopularity
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(profileIDs), limit); err != nil {
		return nil, fmt.Errorf("popular websites: %w", err)
	}
	return rows, nil
}

// RecentActivity returns the newest subscriptions across a set of
// profiles for the activity report.
func (r *SubscriptionRepository) RecentActivity(ctx context.Context, profileIDs []string, since time.Time, limit int) ([]models.SubscriptionActivity, error) {
	if len(profileIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT u.username, w.name AS website_name, s.status, s.subscribed_at
        FROM subscriptions s
        JOIN websites w ON w.id = s.website_id
        JOIN profiles p ON p.id = s.profile_id
        JOIN users u ON u.id = p.user_id
        WHERE s.profile_id = ANY($1) AND s.subscribed_at >= $2
        ORDER BY s.subscribed_at DESC LIMIT $3`
	var rows []models.SubscriptionActivity
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(profileIDs), since, limit); err != nil {
		return nil, fmt.Errorf("recent subscription activity: %w", err)
	}
	return rows, nil
}
