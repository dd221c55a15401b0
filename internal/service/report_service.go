package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/identica-edu/portal-api/internal/models"
	"github.com/identica-edu/portal-api/pkg/export"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type reportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	ListByAuthor(ctx context.Context, profileID string) ([]models.Report, error)
}

type reportSubscriptionRepository interface {
	CountByProfiles(ctx context.Context, profileIDs []string, status models.SubscriptionStatus) (int, error)
	PopularWebsites(ctx context.Context, profileIDs []string, limit int) ([]models.WebsitePopularity, error)
	RecentActivity(ctx context.Context, profileIDs []string, since time.Time, limit int) ([]models.SubscriptionActivity, error)
}

// GenerateReportRequest names the report to build.
type GenerateReportRequest struct {
	Type   string `json:"type" validate:"required,oneof=subscriptions activity"`
	Title  string `json:"title" validate:"required,max=200"`
	Public bool   `json:"public"`
}

// subscriptionReportData is the stored payload of a subscriptions report.
type subscriptionReportData struct {
	Students int                        `json:"students"`
	Stats    models.SubscriptionStats   `json:"stats"`
	Popular  []models.WebsitePopularity `json:"popular_websites"`
}

// activityReportData is the stored payload of an activity report.
type activityReportData struct {
	Since   time.Time                     `json:"since"`
	Entries []models.SubscriptionActivity `json:"entries"`
}

// ReportService generates subscription and activity reports over the
// caller's student scope and renders them as CSV or PDF.
type ReportService struct {
	reports   reportRepository
	subs      reportSubscriptionRepository
	profiles  dashboardProfileService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	enabled   bool
	now       func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(reports reportRepository, subs reportSubscriptionRepository, profiles dashboardProfileService, validate *validator.Validate, logger *zap.Logger, enabled bool) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		reports:   reports,
		subs:      subs,
		profiles:  profiles,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		enabled:   enabled,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds and stores a report over the students visible to the
// caller. Callers below curator, or with reports disabled, are refused.
func (s *ReportService) Generate(ctx context.Context, author *models.Profile, req GenerateReportRequest) (*models.Report, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "reports are disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	if !author.Role.AtLeast(models.RoleCurator) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role to generate reports")
	}

	students, err := s.scopedStudents(ctx, author)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(students))
	for i := range students {
		ids = append(ids, students[i].Profile.ID)
	}

	var payload interface{}
	switch models.ReportType(req.Type) {
	case models.ReportSubscriptions:
		payload, err = s.buildSubscriptionData(ctx, ids)
	case models.ReportActivity:
		payload, err = s.buildActivityData(ctx, ids)
	}
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode report data")
	}

	report := &models.Report{
		Title:     req.Title,
		Type:      models.ReportType(req.Type),
		CreatedBy: author.ID,
		Data:      data,
		Public:    req.Public,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	s.logger.Info("report generated",
		zap.String("report_id", report.ID),
		zap.String("type", req.Type),
		zap.String("author_id", author.ID),
		zap.Int("students", len(ids)))
	return report, nil
}

func (s *ReportService) scopedStudents(ctx context.Context, author *models.Profile) ([]models.ProfileDetail, error) {
	if author.Role == models.RoleCurator {
		return s.profiles.StudentsInCourse(ctx, author)
	}
	return s.profiles.AllStudents(ctx, author)
}

func (s *ReportService) buildSubscriptionData(ctx context.Context, profileIDs []string) (*subscriptionReportData, error) {
	data := &subscriptionReportData{Students: len(profileIDs)}
	for status, target := range map[models.SubscriptionStatus]*int{
		models.SubscriptionActive:  &data.Stats.Active,
		models.SubscriptionPending: &data.Stats.Pending,
		models.SubscriptionExpired: &data.Stats.Expired,
	} {
		count, err := s.subs.CountByProfiles(ctx, profileIDs, status)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count subscriptions")
		}
		*target = count
	}

	popular, err := s.subs.PopularWebsites(ctx, profileIDs, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load popular websites")
	}
	data.Popular = popular
	return data, nil
}

func (s *ReportService) buildActivityData(ctx context.Context, profileIDs []string) (*activityReportData, error) {
	since := s.now().AddDate(0, 0, -30)
	entries, err := s.subs.RecentActivity(ctx, profileIDs, since, 100)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return &activityReportData{Since: since, Entries: entries}, nil
}

// Get returns a report when the caller authored it or it is public.
func (s *ReportService) Get(ctx context.Context, caller *models.Profile, id string) (*models.Report, error) {
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if !report.Public && report.CreatedBy != caller.ID && caller.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	return report, nil
}

// Mine returns the caller's reports, newest first.
func (s *ReportService) Mine(ctx context.Context, profileID string) ([]models.Report, error) {
	reports, err := s.reports.ListByAuthor(ctx, profileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reports")
	}
	return reports, nil
}

// Export renders a stored report as CSV or PDF bytes.
func (s *ReportService) Export(ctx context.Context, caller *models.Profile, id, format string) ([]byte, string, error) {
	report, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, "", err
	}

	dataset, err := s.dataset(report)
	if err != nil {
		return nil, "", err
	}

	switch format {
	case "csv":
		payload, err := s.csv.Render(*dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(*dataset, report.Title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *ReportService) dataset(report *models.Report) (*export.Dataset, error) {
	switch report.Type {
	case models.ReportSubscriptions:
		var data subscriptionReportData
		if err := json.Unmarshal(report.Data, &data); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode report data")
		}
		dataset := &export.Dataset{
			Headers: []string{"metric", "value"},
			Rows: []map[string]string{
				{"metric": "students", "value": strconv.Itoa(data.Students)},
				{"metric": "active_subscriptions", "value": strconv.Itoa(data.Stats.Active)},
				{"metric": "pending_subscriptions", "value": strconv.Itoa(data.Stats.Pending)},
				{"metric": "expired_subscriptions", "value": strconv.Itoa(data.Stats.Expired)},
			},
		}
		for _, site := range data.Popular {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"metric": fmt.Sprintf("popular:%s", site.Name),
				"value":  strconv.Itoa(site.SubscriptionCount),
			})
		}
		return dataset, nil
	case models.ReportActivity:
		var data activityReportData
		if err := json.Unmarshal(report.Data, &data); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode report data")
		}
		dataset := &export.Dataset{Headers: []string{"username", "website", "status", "subscribed_at"}}
		for _, entry := range data.Entries {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"username":      entry.Username,
				"website":       entry.WebsiteName,
				"status":        string(entry.Status),
				"subscribed_at": entry.SubscribedAt.Format(time.RFC3339),
			})
		}
		return dataset, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report type")
	}
}
