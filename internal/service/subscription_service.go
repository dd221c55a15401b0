package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/identica-edu/portal-api/internal/models"
	"github.com/identica-edu/portal-api/internal/repository"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type subscriptionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subscription, error)
	ListByProfile(ctx context.Context, profileID string, status models.SubscriptionStatus) ([]models.SubscriptionDetail, error)
	ListWebsiteIDsByProfile(ctx context.Context, profileID string) ([]string, error)
	ListPending(ctx context.Context) ([]models.SubscriptionDetail, error)
	Create(ctx context.Context, sub *models.Subscription) error
	SetDecision(ctx context.Context, id string, status models.SubscriptionStatus, approvedBy string, approvedAt time.Time, expiresAt *time.Time) (bool, error)
	BulkDecide(ctx context.Context, ids []string, status models.SubscriptionStatus, approvedBy string, now time.Time) (int64, error)
	ExpireOverdue(ctx context.Context, profileID string, now time.Time) (int64, error)
	DeleteOwned(ctx context.Context, id, profileID string) (bool, error)
	ReplaceAll(ctx context.Context, profileID string, keepWebsiteIDs []string, creates []*models.Subscription) (int64, error)
}

type subscriptionWebsiteRepository interface {
	FindByID(ctx context.Context, id string) (*models.Website, error)
}

type subscriptionDecider interface {
	CanAccess(profile *models.Profile, website *models.Website) bool
}

type subscriptionEventRecorder interface {
	RecordSubscriptionEvent(event string)
}

// BulkSubscribeRequest replaces the caller's subscription selection.
type BulkSubscribeRequest struct {
	WebsiteIDs []string `json:"website_ids" validate:"required,dive,uuid"`
}

// BulkDecisionRequest approves or rejects a batch of pending subscriptions.
type BulkDecisionRequest struct {
	SubscriptionIDs []string `json:"subscription_ids" validate:"required,min=1,dive,uuid"`
}

// SubscriptionService drives the subscription lifecycle: requests,
// approval decisions, expiry and the all-or-nothing bulk replace.
type SubscriptionService struct {
	subs      subscriptionRepository
	websites  subscriptionWebsiteRepository
	policy    subscriptionDecider
	metrics   subscriptionEventRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(subs subscriptionRepository, websites subscriptionWebsiteRepository, policy subscriptionDecider, metrics subscriptionEventRecorder, validate *validator.Validate, logger *zap.Logger) *SubscriptionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		subs:      subs,
		websites:  websites,
		policy:    policy,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe requests access to a website for the given profile. Auto
// subscriptions activate immediately with an expiry from the website
// duration; approval-gated ones start pending. A duplicate request for
// the same website returns the existing row unchanged.
func (s *SubscriptionService) Subscribe(ctx context.Context, profile *models.Profile, websiteID string) (*models.Subscription, error) {
	if !profile.Complete() {
		return nil, appErrors.Clone(appErrors.ErrProfileIncomplete, "complete your profile before subscribing")
	}

	website, err := s.websites.FindByID(ctx, websiteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "website not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load website")
	}
	if !website.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "website not found")
	}
	if !s.policy.CanAccess(profile, website) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "your role cannot access this website")
	}

	sub := s.buildSubscription(profile.ID, website)
	if err := s.subs.Create(ctx, sub); err != nil {
		if repository.IsUniqueViolation(err) {
			existing, findErr := s.findExisting(ctx, profile.ID, websiteID)
			if findErr != nil {
				return nil, findErr
			}
			return existing, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subscription")
	}

	s.recordEvent("subscribed")
	s.logger.Info("subscription created",
		zap.String("profile_id", profile.ID),
		zap.String("website_id", website.ID),
		zap.String("status", string(sub.Status)))
	return sub, nil
}

// ListOwn returns the profile's subscriptions. Overdue active rows are
// flipped to expired first so callers always see consistent statuses.
func (s *SubscriptionService) ListOwn(ctx context.Context, profileID string, status models.SubscriptionStatus) ([]models.SubscriptionDetail, error) {
	if _, err := s.SweepExpired(ctx, profileID); err != nil {
		return nil, err
	}
	subs, err := s.subs.ListByProfile(ctx, profileID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subscriptions")
	}
	s.fillDerived(subs)
	return subs, nil
}

// SweepExpired flips the profile's overdue active subscriptions to
// expired and returns how many changed. Reads call this; there is no
// background scan.
func (s *SubscriptionService) SweepExpired(ctx context.Context, profileID string) (int64, error) {
	expired, err := s.subs.ExpireOverdue(ctx, profileID, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire subscriptions")
	}
	if expired > 0 {
		s.recordEvent("expired")
		s.logger.Info("subscriptions expired", zap.String("profile_id", profileID), zap.Int64("count", expired))
	}
	return expired, nil
}

// Cancel removes the caller's own subscription in any state.
func (s *SubscriptionService) Cancel(ctx context.Context, profileID, subscriptionID string) error {
	deleted, err := s.subs.DeleteOwned(ctx, subscriptionID, profileID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel subscription")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "subscription not found")
	}
	s.recordEvent("cancelled")
	return nil
}

// ListPending returns the pending approval queue.
func (s *SubscriptionService) ListPending(ctx context.Context) ([]models.SubscriptionDetail, error) {
	subs, err := s.subs.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending subscriptions")
	}
	s.fillDerived(subs)
	return subs, nil
}

// Approve activates a pending subscription and stamps the approver.
// Expiry is normally set at creation; when missing it is derived here
// from the website duration. A subscription that has already left
// pending cannot be approved again.
func (s *SubscriptionService) Approve(ctx context.Context, approverID, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.loadForDecision(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var expiresAt *time.Time
	if sub.ExpiresAt == nil {
		website, err := s.websites.FindByID(ctx, sub.WebsiteID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load website")
		}
		if website.DurationDays > 0 {
			t := now.AddDate(0, 0, website.DurationDays)
			expiresAt = &t
		}
	}

	applied, err := s.subs.SetDecision(ctx, subscriptionID, models.SubscriptionActive, approverID, now, expiresAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve subscription")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "subscription is not pending")
	}

	s.recordEvent("approved")
	s.logger.Info("subscription approved",
		zap.String("subscription_id", subscriptionID),
		zap.String("approver_id", approverID))
	return s.subs.FindByID(ctx, subscriptionID)
}

// Reject moves a pending subscription to the terminal rejected state.
func (s *SubscriptionService) Reject(ctx context.Context, approverID, subscriptionID string) (*models.Subscription, error) {
	if _, err := s.loadForDecision(ctx, subscriptionID); err != nil {
		return nil, err
	}

	applied, err := s.subs.SetDecision(ctx, subscriptionID, models.SubscriptionRejected, approverID, s.now(), nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject subscription")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "subscription is not pending")
	}

	s.recordEvent("rejected")
	s.logger.Info("subscription rejected",
		zap.String("subscription_id", subscriptionID),
		zap.String("approver_id", approverID))
	return s.subs.FindByID(ctx, subscriptionID)
}

// BulkApprove activates every still-pending subscription in the batch
// and returns how many changed. Rows already decided are skipped, not
// failed.
func (s *SubscriptionService) BulkApprove(ctx context.Context, approverID string, req BulkDecisionRequest) (int64, error) {
	return s.bulkDecide(ctx, approverID, req, models.SubscriptionActive, "bulk approved")
}

// BulkReject rejects every still-pending subscription in the batch.
func (s *SubscriptionService) BulkReject(ctx context.Context, approverID string, req BulkDecisionRequest) (int64, error) {
	return s.bulkDecide(ctx, approverID, req, models.SubscriptionRejected, "bulk rejected")
}

func (s *SubscriptionService) bulkDecide(ctx context.Context, approverID string, req BulkDecisionRequest, status models.SubscriptionStatus, event string) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	affected, err := s.subs.BulkDecide(ctx, req.SubscriptionIDs, status, approverID, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide subscriptions")
	}
	s.logger.Info(event,
		zap.String("approver_id", approverID),
		zap.Int("requested", len(req.SubscriptionIDs)),
		zap.Int64("applied", affected))
	return affected, nil
}

// Replace swaps the profile's entire subscription selection in one
// transaction. Websites the caller cannot access are skipped and
// reported in Denied; subscriptions for unselected websites are
// removed; existing rows for still-selected websites are kept as they
// are. Either the whole replacement commits or nothing changes.
func (s *SubscriptionService) Replace(ctx context.Context, profile *models.Profile, req BulkSubscribeRequest) (*models.BulkReplaceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection payload")
	}
	if !profile.Complete() {
		return nil, appErrors.Clone(appErrors.ErrProfileIncomplete, "complete your profile before subscribing")
	}

	existing, err := s.subs.ListWebsiteIDsByProfile(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current selection")
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		existingSet[id] = struct{}{}
	}

	result := &models.BulkReplaceResult{}
	keep := make([]string, 0, len(req.WebsiteIDs))
	creates := make([]*models.Subscription, 0, len(req.WebsiteIDs))
	seen := make(map[string]struct{}, len(req.WebsiteIDs))

	for _, websiteID := range req.WebsiteIDs {
		if _, dup := seen[websiteID]; dup {
			continue
		}
		seen[websiteID] = struct{}{}

		website, err := s.websites.FindByID(ctx, websiteID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Denied = append(result.Denied, websiteID)
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load website")
		}
		if !website.Active || !s.policy.CanAccess(profile, website) {
			result.Denied = append(result.Denied, website.Name)
			continue
		}

		keep = append(keep, websiteID)
		if _, ok := existingSet[websiteID]; ok {
			continue
		}

		sub := s.buildSubscription(profile.ID, website)
		creates = append(creates, sub)
		if sub.Status == models.SubscriptionPending {
			result.Pending++
		} else {
			result.Added++
		}
	}

	removed, err := s.subs.ReplaceAll(ctx, profile.ID, keep, creates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace subscriptions")
	}
	result.Removed = int(removed)

	s.recordEvent("bulk_replace")
	s.logger.Info("subscriptions replaced",
		zap.String("profile_id", profile.ID),
		zap.Int("added", result.Added),
		zap.Int("pending", result.Pending),
		zap.Int("removed", result.Removed),
		zap.Int("denied", len(result.Denied)))
	return result, nil
}

func (s *SubscriptionService) buildSubscription(profileID string, website *models.Website) *models.Subscription {
	now := s.now()
	sub := &models.Subscription{
		ProfileID:    profileID,
		WebsiteID:    website.ID,
		Status:       models.SubscriptionPending,
		SubscribedAt: now,
	}
	if !website.RequiresApproval {
		sub.Status = models.SubscriptionActive
	}
	if website.DurationDays > 0 {
		t := now.AddDate(0, 0, website.DurationDays)
		sub.ExpiresAt = &t
	}
	return sub
}

func (s *SubscriptionService) loadForDecision(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subscription not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subscription")
	}
	if sub.Status != models.SubscriptionPending {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "subscription is not pending")
	}
	return sub, nil
}

func (s *SubscriptionService) findExisting(ctx context.Context, profileID, websiteID string) (*models.Subscription, error) {
	subs, err := s.subs.ListByProfile(ctx, profileID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing subscription")
	}
	for i := range subs {
		if subs[i].WebsiteID == websiteID {
			sub := subs[i].Subscription
			return &sub, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "subscription not found")
}

func (s *SubscriptionService) fillDerived(subs []models.SubscriptionDetail) {
	now := s.now()
	for i := range subs {
		subs[i].DaysRemaining = subs[i].Subscription.DaysRemaining(now)
		subs[i].Expired = subs[i].Subscription.IsExpired(now)
	}
}

func (s *SubscriptionService) recordEvent(event string) {
	if s.metrics != nil {
		s.metrics.RecordSubscriptionEvent(event)
	}
}
