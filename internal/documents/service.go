package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/audit"
	"luma-ledger/ledger-backend/internal/emissions/calculation"
	"luma-ledger/ledger-backend/internal/metrics"
	"luma-ledger/ledger-backend/internal/notifications"
	"luma-ledger/ledger-backend/internal/pipeline"
)

type Service interface {
	UploadDocument(ctx context.Context, req UploadRequest) (*Document, error)
	GetDocument(ctx context.Context, companyID, id uuid.UUID) (*Document, error)
	ListDocuments(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Document, error)
	GetStatus(ctx context.Context, companyID, id uuid.UUID) (*StatusResponse, error)
	AnalyzeDocument(ctx context.Context, companyID, id uuid.UUID) (*AnalysisResult, error)
	ListRecords(ctx context.Context, companyID, id uuid.UUID) ([]ActivityRecord, error)
}

type UploadRequest struct {
	CompanyID   uuid.UUID
	FileName    string
	FileSize    int64
	FileContent io.Reader
	UploadedBy  string
}

// Analyzer runs the ingestion pipeline.
type Analyzer interface {
	Run(ctx context.Context, kind pipeline.Kind, r io.Reader) (*pipeline.Result, error)
}

// TextExtractor gives best-effort text for PDFs and images.
type TextExtractor interface {
	ExtractPDF(ctx context.Context, data []byte) (string, error)
	ExtractImage(ctx context.Context, data []byte, ext string) (string, error)
}

// AlertPublisher reports factor gaps to operators.
type AlertPublisher interface {
	PublishFactorGaps(ctx context.Context, alert notifications.FactorGapAlert) error
}

// AuditRecorder keeps the usage trail.
type AuditRecorder interface {
	Record(ctx context.Context, companyID uuid.UUID, eventType string, details map[string]string) error
}

// DashboardInvalidator drops cached aggregates once records change.
type DashboardInvalidator interface {
	InvalidateCompany(companyID uuid.UUID)
}

// Dependencies bundles what the service needs; Alerts, Audit, Dashboards and
// Metrics are optional.
type Dependencies struct {
	Repo       Repository
	Storage    *StorageProvider
	Analyzer   Analyzer
	OCR        TextExtractor
	Alerts     AlertPublisher
	Audit      AuditRecorder
	Dashboards DashboardInvalidator
	Metrics    *metrics.Registry
	Logger     *zap.Logger
	OCRTimeout time.Duration
}

type documentService struct {
	repo       Repository
	storage    *StorageProvider
	workflow   *WorkflowService
	analyzer   Analyzer
	ocr        TextExtractor
	alerts     AlertPublisher
	audit      AuditRecorder
	dashboards DashboardInvalidator
	metrics    *metrics.Registry
	logger     *zap.Logger
	ocrTimeout time.Duration
	now        func() time.Time
}

func NewService(deps Dependencies) Service {
	return &documentService{
		repo:       deps.Repo,
		storage:    deps.Storage,
		workflow:   NewWorkflowService(),
		analyzer:   deps.Analyzer,
		ocr:        deps.OCR,
		alerts:     deps.Alerts,
		audit:      deps.Audit,
		dashboards: deps.Dashboards,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		ocrTimeout: deps.OCRTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *documentService) UploadDocument(ctx context.Context, req UploadRequest) (*Document, error) {
	fileType, err := DetectFileType(req.FileName)
	if err != nil {
		return nil, err
	}

	docID := uuid.New()
	s3Key := s.storage.GenerateS3Key(req.CompanyID, docID, req.FileName)

	if err := s.storage.UploadToS3(ctx, s3Key, req.FileContent); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &Document{
		ID:         docID,
		CompanyID:  req.CompanyID,
		FileName:   filepath.Base(req.FileName),
		FileType:   fileType,
		FileSize:   req.FileSize,
		S3Key:      s3Key,
		S3Bucket:   s.storage.Bucket(),
		Status:     StatusPending,
		UploadedBy: req.UploadedBy,
		UploadedAt: s.now(),
	}

	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DocumentsUploaded.Inc()
	}
	s.recordAudit(ctx, doc.CompanyID, audit.EventUpload, map[string]string{
		"document_id": doc.ID.String(),
		"filename":    doc.FileName,
		"file_size":   fmt.Sprint(doc.FileSize),
	})
	s.logger.Info("Document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("file_type", string(doc.FileType)))
	return doc, nil
}

func (s *documentService) GetDocument(ctx context.Context, companyID, id uuid.UUID) (*Document, error) {
	return s.repo.GetDocumentByID(ctx, companyID, id)
}

func (s *documentService) ListDocuments(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Document, error) {
	return s.repo.ListDocuments(ctx, companyID, filter)
}

func (s *documentService) GetStatus(ctx context.Context, companyID, id uuid.UUID) (*StatusResponse, error) {
	doc, err := s.repo.GetDocumentByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountRecords(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		DocumentID:   doc.ID,
		Status:       doc.Status,
		ErrorMessage: doc.ErrorMessage,
		ProcessedAt:  doc.ProcessedAt,
		RecordCount:  count,
	}, nil
}

func (s *documentService) ListRecords(ctx context.Context, companyID, id uuid.UUID) ([]ActivityRecord, error) {
	if _, err := s.repo.GetDocumentByID(ctx, companyID, id); err != nil {
		return nil, err
	}
	return s.repo.ListRecords(ctx, companyID, id)
}

// AnalyzeDocument extracts, calculates and persists the records of a document.
// Reanalyzing supersedes the previous records. A document with no extractable
// data ends up failed and pipeline.ErrNoDataExtracted is returned.
func (s *documentService) AnalyzeDocument(ctx context.Context, companyID, id uuid.UUID) (*AnalysisResult, error) {
	start := time.Now()

	doc, err := s.repo.ClaimForProcessing(ctx, companyID, id, s.workflow.ClaimableStatuses())
	if err != nil {
		return nil, err
	}

	result, err := s.run(ctx, doc)
	if err != nil {
		s.fail(ctx, doc, err)
		return nil, err
	}

	records, err := s.buildRecords(doc, result)
	if err == nil {
		err = s.repo.ReplaceRecords(ctx, doc.ID, records)
	}
	if err != nil {
		s.fail(ctx, doc, err)
		return nil, fmt.Errorf("failed to save records: %w", err)
	}

	if err := s.complete(ctx, doc); err != nil {
		return nil, err
	}

	if s.dashboards != nil {
		s.dashboards.InvalidateCompany(doc.CompanyID)
	}
	s.observe(doc, result, time.Since(start))
	s.publishGaps(ctx, doc, result)
	s.recordAudit(ctx, doc.CompanyID, audit.EventAnalyze, map[string]string{
		"document_id":   doc.ID.String(),
		"records_count": fmt.Sprint(len(result.Records)),
		"total_co2e":    result.Totals.Total.StringFixed(calculation.CO2ePrecision),
	})

	s.logger.Info("Document processed",
		zap.String("document_id", doc.ID.String()),
		zap.Int("records", len(result.Records)),
		zap.Int("dropped", len(result.Drops)))

	return &AnalysisResult{
		DocumentID:       doc.ID,
		Status:           doc.Status,
		RecordsExtracted: len(result.Records),
		EntriesDropped:   len(result.Drops),
		Totals:           result.Totals,
		Message:          fmt.Sprintf("Successfully extracted %d records", len(result.Records)),
	}, nil
}

func (s *documentService) run(ctx context.Context, doc *Document) (*pipeline.Result, error) {
	body, err := s.storage.DownloadFromS3(ctx, doc.S3Bucket, doc.S3Key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	defer body.Close()

	switch doc.FileType {
	case FileTypeCSV:
		return s.analyzer.Run(ctx, pipeline.KindCSV, body)
	case FileTypeXLSX:
		return s.analyzer.Run(ctx, pipeline.KindSpreadsheet, body)
	case FileTypePDF, FileTypeImage:
		text, err := s.extractText(ctx, doc, body)
		if err != nil {
			return nil, err
		}
		return s.analyzer.Run(ctx, pipeline.KindText, strings.NewReader(text))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, doc.FileType)
	}
}

func (s *documentService) extractText(ctx context.Context, doc *Document, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	if s.ocrTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ocrTimeout)
		defer cancel()
	}

	if doc.FileType == FileTypePDF {
		return s.ocr.ExtractPDF(ctx, data)
	}
	return s.ocr.ExtractImage(ctx, data, filepath.Ext(doc.FileName))
}

func (s *documentService) buildRecords(doc *Document, result *pipeline.Result) ([]ActivityRecord, error) {
	now := s.now()
	records := make([]ActivityRecord, 0, len(result.Records))
	for _, rec := range result.Records {
		trail, err := json.Marshal(rec.Steps)
		if err != nil {
			return nil, err
		}
		records = append(records, ActivityRecord{
			ID:               uuid.New(),
			CompanyID:        doc.CompanyID,
			DocumentID:       doc.ID,
			ComputedRecord:   rec,
			CalculationTrail: trail,
			CreatedAt:        now,
		})
	}
	return records, nil
}

// fail marks the document failed. It runs even when ctx is already done.
// complete stores the completed status. The records are already committed,
// so the save outlives the request; if it still fails the document is marked
// failed instead of staying claimed.
func (s *documentService) complete(ctx context.Context, doc *Document) error {
	if err := s.workflow.Transition(doc, StatusCompleted); err != nil {
		return err
	}
	processedAt := s.now()
	doc.ErrorMessage = nil
	doc.ProcessedAt = &processedAt

	err := s.repo.UpdateDocument(context.WithoutCancel(ctx), doc)
	if err == nil {
		return nil
	}

	doc.Status = StatusProcessing
	doc.ProcessedAt = nil
	err = fmt.Errorf("failed to save document status: %w", err)
	s.fail(ctx, doc, err)
	return err
}

func (s *documentService) fail(ctx context.Context, doc *Document, cause error) {
	ctx = context.WithoutCancel(ctx)

	msg := cause.Error()
	outcome := metrics.OutcomeFailed
	if errors.Is(cause, pipeline.ErrNoDataExtracted) {
		msg = NoDataMessage
		outcome = metrics.OutcomeNoData
	}

	if err := s.workflow.Transition(doc, StatusFailed); err != nil {
		s.logger.Error("Invalid status transition", zap.Error(err))
		return
	}
	doc.ErrorMessage = &msg
	if err := s.repo.UpdateDocument(ctx, doc); err != nil {
		s.logger.Error("Failed to mark document as failed",
			zap.String("document_id", doc.ID.String()), zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.DocumentsProcessed.WithLabelValues(outcome, string(doc.FileType)).Inc()
	}
	s.logger.Warn("Document processing failed",
		zap.String("document_id", doc.ID.String()), zap.Error(cause))
}

func (s *documentService) observe(doc *Document, result *pipeline.Result, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.DocumentsProcessed.WithLabelValues(metrics.OutcomeCompleted, string(doc.FileType)).Inc()
	s.metrics.RecordsComputed.Add(float64(len(result.Records)))
	for reason, n := range result.DropCounts() {
		s.metrics.RecordsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
	for _, rec := range result.Records {
		s.metrics.RecordCO2e.Observe(rec.CO2e.InexactFloat64())
	}
	s.metrics.AnalyzeLatencySec.Observe(elapsed.Seconds())
}

func (s *documentService) publishGaps(ctx context.Context, doc *Document, result *pipeline.Result) {
	if s.alerts == nil {
		return
	}
	gaps := FactorGaps(result.Drops)
	if len(gaps) == 0 {
		return
	}
	err := s.alerts.PublishFactorGaps(ctx, notifications.FactorGapAlert{
		CompanyID:  doc.CompanyID,
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		Gaps:       gaps,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("Failed to publish factor gaps", zap.Error(err))
	}
}

func (s *documentService) recordAudit(ctx context.Context, companyID uuid.UUID, event string, details map[string]string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, companyID, event, details); err != nil {
		s.logger.Warn("Failed to record audit event", zap.String("event", event), zap.Error(err))
	}
}

// FactorGaps groups no-factor drops by (category, unit), sorted.
func FactorGaps(drops []pipeline.Drop) []notifications.FactorGap {
	counts := make(map[notifications.FactorGap]int)
	for _, d := range drops {
		if d.Reason != calculation.ReasonNoFactor {
			continue
		}
		var de *calculation.DropError
		if !errors.As(d.Err, &de) {
			continue
		}
		counts[notifications.FactorGap{Category: de.Category, Unit: de.Unit}]++
	}

	gaps := make([]notifications.FactorGap, 0, len(counts))
	for g, n := range counts {
		g.Entries = n
		gaps = append(gaps, g)
	}
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].Category != gaps[j].Category {
			return gaps[i].Category < gaps[j].Category
		}
		return gaps[i].Unit < gaps[j].Unit
	})
	return gaps
}
