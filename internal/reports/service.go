// Package reports serves the emissions dashboard and annual report exports.
package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/audit"
	"luma-ledger/ledger-backend/internal/reports/dashboard"
	"luma-ledger/ledger-backend/internal/reports/export"
	"luma-ledger/ledger-backend/pkg/storage"
)

type Service interface {
	Dashboard(ctx context.Context, companyID uuid.UUID, filter dashboard.Filter) (*dashboard.Dashboard, error)
	ExportAnnual(ctx context.Context, req ExportRequest) (*ExportResult, error)
	ListReports(ctx context.Context, companyID uuid.UUID) ([]Report, error)
}

// Aggregates is the dashboard read side.
type Aggregates interface {
	Dashboard(ctx context.Context, companyID uuid.UUID, filter dashboard.Filter) (*dashboard.Dashboard, error)
	Records(ctx context.Context, companyID uuid.UUID, filter dashboard.Filter) ([]activity.ComputedRecord, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, companyID uuid.UUID, eventType string, details map[string]string) error
}

// Dependencies; Storage and Audit are optional. Without storage the rendered
// file is only returned to the caller.
type Dependencies struct {
	Repo       Repository
	Aggregates Aggregates
	Storage    storage.S3Client
	Bucket     string
	Audit      AuditRecorder
	Logger     *zap.Logger
}

type reportService struct {
	repo       Repository
	aggregates Aggregates
	storage    storage.S3Client
	bucket     string
	audit      AuditRecorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(deps Dependencies) Service {
	return &reportService{
		repo:       deps.Repo,
		aggregates: deps.Aggregates,
		storage:    deps.Storage,
		bucket:     deps.Bucket,
		audit:      deps.Audit,
		logger:     deps.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *reportService) Dashboard(ctx context.Context, companyID uuid.UUID, filter dashboard.Filter) (*dashboard.Dashboard, error) {
	return s.aggregates.Dashboard(ctx, companyID, filter)
}

func (s *reportService) ListReports(ctx context.Context, companyID uuid.UUID) ([]Report, error) {
	return s.repo.ListReports(ctx, companyID, 50)
}

// ExportAnnual renders the report for one calendar year, keeps a copy in
// object storage and records its metadata. Records without an activity date
// never fall into a year.
func (s *reportService) ExportAnnual(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	exporter, err := export.ForFormat(req.Format)
	if err != nil {
		return nil, err
	}

	year := req.Year
	records, err := s.aggregates.Records(ctx, req.CompanyID, dashboard.Filter{Year: &year})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoData, req.Year)
	}

	content := &export.Report{
		CompanyID:   req.CompanyID,
		Year:        req.Year,
		Dashboard:   dashboard.Aggregate(records),
		Records:     records,
		GeneratedAt: s.now(),
	}

	var buf bytes.Buffer
	if err := exporter.Export(&buf, content); err != nil {
		return nil, fmt.Errorf("failed to render %s report: %w", req.Format, err)
	}

	summary := content.Dashboard.Summary
	report := &Report{
		ID:          uuid.New(),
		CompanyID:   req.CompanyID,
		Year:        req.Year,
		Format:      req.Format,
		TotalCO2e:   summary.TotalCO2e,
		Scope1CO2e:  summary.Scope1CO2e,
		Scope2CO2e:  summary.Scope2CO2e,
		Scope3CO2e:  summary.Scope3CO2e,
		Coverage:    summary.DataCoverage,
		RecordCount: summary.TotalRecords,
		GeneratedBy: req.RequestedBy,
		CreatedAt:   content.GeneratedAt,
	}
	fileName := export.FileName(content, req.Format)

	if s.storage != nil {
		key := fmt.Sprintf("companies/%s/reports/%s/%s", req.CompanyID, report.ID, fileName)
		if err := s.storage.Upload(ctx, s.bucket, key, bytes.NewReader(buf.Bytes())); err != nil {
			return nil, fmt.Errorf("failed to store report: %w", err)
		}
		report.S3Key = key
	}

	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	if s.audit != nil {
		err := s.audit.Record(ctx, req.CompanyID, audit.EventReportGenerated, map[string]string{
			"report_id":  report.ID.String(),
			"year":       fmt.Sprint(req.Year),
			"format":     string(req.Format),
			"total_co2e": report.TotalCO2e.StringFixed(3),
		})
		if err != nil {
			s.logger.Warn("Failed to record audit event", zap.Error(err))
		}
	}

	s.logger.Info("Report generated",
		zap.String("report_id", report.ID.String()),
		zap.Int("year", req.Year),
		zap.String("format", string(req.Format)),
		zap.Int("records", report.RecordCount))

	return &ExportResult{
		Report:      report,
		FileName:    fileName,
		ContentType: exporter.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}
