package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/audit"
	"luma-ledger/ledger-backend/internal/emissions/calculation"
	"luma-ledger/ledger-backend/internal/emissions/factors"
	"luma-ledger/ledger-backend/internal/metrics"
	"luma-ledger/ledger-backend/internal/notifications"
	"luma-ledger/ledger-backend/internal/pipeline"
	"luma-ledger/ledger-backend/pkg/storage"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateDocument(ctx context.Context, doc *Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) GetDocumentByID(ctx context.Context, companyID, id uuid.UUID) (*Document, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockRepository) ListDocuments(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Document, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockRepository) UpdateDocument(ctx context.Context, doc *Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) ClaimForProcessing(ctx context.Context, companyID, id uuid.UUID, from []string) (*Document, error) {
	args := m.Called(ctx, companyID, id, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockRepository) ReplaceRecords(ctx context.Context, documentID uuid.UUID, records []ActivityRecord) error {
	args := m.Called(ctx, documentID, records)
	return args.Error(0)
}

func (m *MockRepository) ListRecords(ctx context.Context, companyID, documentID uuid.UUID) ([]ActivityRecord, error) {
	args := m.Called(ctx, companyID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ActivityRecord), args.Error(1)
}

func (m *MockRepository) ListCompanyRecords(ctx context.Context, companyID uuid.UUID, from, to *time.Time) ([]ActivityRecord, error) {
	args := m.Called(ctx, companyID, from, to)
	return args.Get(0).([]ActivityRecord), args.Error(1)
}

func (m *MockRepository) CountRecords(ctx context.Context, documentID uuid.UUID) (int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Error(1)
}

type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) ExtractPDF(ctx context.Context, data []byte) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

func (m *MockTextExtractor) ExtractImage(ctx context.Context, data []byte, ext string) (string, error) {
	args := m.Called(ctx, data, ext)
	return args.String(0), args.Error(1)
}

type MockAlerts struct {
	mock.Mock
}

func (m *MockAlerts) PublishFactorGaps(ctx context.Context, alert notifications.FactorGapAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type MockAudit struct {
	mock.Mock
}

func (m *MockAudit) Record(ctx context.Context, companyID uuid.UUID, eventType string, details map[string]string) error {
	args := m.Called(ctx, companyID, eventType, details)
	return args.Error(0)
}

type invalidations []uuid.UUID

func (i *invalidations) InvalidateCompany(companyID uuid.UUID) { *i = append(*i, companyID) }

type fixture struct {
	repo        *MockRepository
	ocr         *MockTextExtractor
	alerts      *MockAlerts
	audit       *MockAudit
	objects     *storage.MemoryClient
	invalidated *invalidations
	service     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table, err := factors.NewTable([]factors.Factor{
		{Category: "electricity", Unit: "kWh", Factor: decimal.RequireFromString("0.233"), Source: "MITECO", Year: 2023},
		{Category: "natural_gas", Unit: "m3", Factor: decimal.RequireFromString("2.02"), Source: "IPCC", Year: 2023},
	})
	require.NoError(t, err)

	f := &fixture{
		repo:        new(MockRepository),
		ocr:         new(MockTextExtractor),
		alerts:      new(MockAlerts),
		audit:       new(MockAudit),
		objects:     storage.NewMemoryClient(),
		invalidated: &invalidations{},
	}
	f.service = NewService(Dependencies{
		Repo:       f.repo,
		Storage:    NewStorageProvider(f.objects, "ledger-docs"),
		Analyzer:   pipeline.NewDefault(factors.NewStore(table), zap.NewNop()),
		OCR:        f.ocr,
		Alerts:     f.alerts,
		Audit:      f.audit,
		Dashboards: f.invalidated,
		Metrics:    metrics.NewRegistry(),
		Logger:     zap.NewNop(),
	})
	return f
}

func (f *fixture) storedDocument(t *testing.T, fileName, content string) *Document {
	t.Helper()
	fileType, err := DetectFileType(fileName)
	require.NoError(t, err)
	doc := &Document{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		FileName:  fileName,
		FileType:  fileType,
		S3Bucket:  "ledger-docs",
		S3Key:     "companies/x/" + fileName,
		Status:    StatusProcessing,
	}
	require.NoError(t, f.objects.Upload(context.Background(), doc.S3Bucket, doc.S3Key, strings.NewReader(content)))
	return doc
}

func withStatus(status DocumentStatus) interface{} {
	return mock.MatchedBy(func(doc *Document) bool { return doc.Status == status })
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID := uuid.New()

	f.repo.On("CreateDocument", ctx, mock.AnythingOfType("*documents.Document")).Return(nil)
	f.audit.On("Record", ctx, companyID, audit.EventUpload, mock.Anything).Return(nil)

	doc, err := f.service.UploadDocument(ctx, UploadRequest{
		CompanyID:   companyID,
		FileName:    "factura marzo.csv",
		FileSize:    42,
		FileContent: strings.NewReader("fecha,consumo"),
		UploadedBy:  "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, doc.Status)
	assert.Equal(t, FileTypeCSV, doc.FileType)
	assert.Equal(t, "ledger-docs", doc.S3Bucket)
	assert.True(t, strings.HasPrefix(doc.S3Key, "companies/"+companyID.String()+"/documents/"))
	assert.True(t, strings.HasSuffix(doc.S3Key, "/factura_marzo.csv"))

	rc, err := f.objects.Download(ctx, doc.S3Bucket, doc.S3Key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "fecha,consumo", string(data))

	f.repo.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestUploadDocumentRejectsExtension(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.UploadDocument(context.Background(), UploadRequest{
		CompanyID:   uuid.New(),
		FileName:    "notes.docx",
		FileContent: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	f.repo.AssertNotCalled(t, "CreateDocument", mock.Anything, mock.Anything)
}

func TestAnalyzeCSVDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.storedDocument(t, "consumos.csv", "fecha,proveedor,consumo,unidad\n15/03/2024,Endesa,1500,kWh\n")

	f.repo.On("ClaimForProcessing", ctx, doc.CompanyID, doc.ID, mock.Anything).Return(doc, nil)
	f.repo.On("ReplaceRecords", ctx, doc.ID, mock.MatchedBy(func(records []ActivityRecord) bool {
		return len(records) == 1 &&
			records[0].Category == "electricity" &&
			records[0].CO2e.Equal(decimal.RequireFromString("0.35")) &&
			records[0].CompanyID == doc.CompanyID &&
			strings.Contains(string(records[0].CalculationTrail), "compute_co2e")
	})).Return(nil)
	f.repo.On("UpdateDocument", mock.Anything, withStatus(StatusCompleted)).Return(nil)
	f.audit.On("Record", ctx, doc.CompanyID, audit.EventAnalyze, mock.MatchedBy(func(d map[string]string) bool {
		return d["records_count"] == "1" && d["total_co2e"] == "0.350"
	})).Return(nil)

	result, err := f.service.AnalyzeDocument(ctx, doc.CompanyID, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.RecordsExtracted)
	assert.True(t, result.Totals.Scope2.Equal(decimal.RequireFromString("0.35")))
	assert.NotNil(t, doc.ProcessedAt)
	assert.Nil(t, doc.ErrorMessage)
	assert.Equal(t, invalidations{doc.CompanyID}, *f.invalidated)

	f.repo.AssertExpectations(t)
	f.audit.AssertExpectations(t)
	f.alerts.AssertNotCalled(t, "PublishFactorGaps", mock.Anything, mock.Anything)
}

func TestAnalyzePDFPublishesFactorGaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.storedDocument(t, "ticket.pdf", "%PDF-1.4")
	text := "Repsol\nGasóleo: 55,3 L\nTotal: 80,10 €\nConsumo: 120 kWh"

	f.repo.On("ClaimForProcessing", ctx, doc.CompanyID, doc.ID, mock.Anything).Return(doc, nil)
	f.ocr.On("ExtractPDF", mock.Anything, []byte("%PDF-1.4")).Return(text, nil)
	f.repo.On("ReplaceRecords", ctx, doc.ID, mock.MatchedBy(func(records []ActivityRecord) bool {
		return len(records) == 1 && records[0].Category == "electricity"
	})).Return(nil)
	f.repo.On("UpdateDocument", mock.Anything, withStatus(StatusCompleted)).Return(nil)
	f.alerts.On("PublishFactorGaps", ctx, mock.MatchedBy(func(a notifications.FactorGapAlert) bool {
		return a.DocumentID == doc.ID && len(a.Gaps) == 1 &&
			a.Gaps[0] == notifications.FactorGap{Category: "diesel", Unit: "L", Entries: 1}
	})).Return(nil)
	f.audit.On("Record", ctx, doc.CompanyID, audit.EventAnalyze, mock.Anything).Return(errors.New("dynamo down"))

	result, err := f.service.AnalyzeDocument(ctx, doc.CompanyID, doc.ID)
	require.NoError(t, err, "audit failures do not fail the analysis")
	assert.Equal(t, 1, result.RecordsExtracted)
	assert.Equal(t, 1, result.EntriesDropped)

	f.ocr.AssertExpectations(t)
	f.alerts.AssertExpectations(t)
}

func TestAnalyzeImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.storedDocument(t, "foto.JPG", "jpeg-bytes")

	f.repo.On("ClaimForProcessing", ctx, doc.CompanyID, doc.ID, mock.Anything).Return(doc, nil)
	f.ocr.On("ExtractImage", mock.Anything, []byte("jpeg-bytes"), ".JPG").Return("Consumo: 250 m³", nil)
	f.repo.On("ReplaceRecords", ctx, doc.ID, mock.Anything).Return(nil)
	f.repo.On("UpdateDocument", mock.Anything, withStatus(StatusCompleted)).Return(nil)
	f.audit.On("Record", ctx, doc.CompanyID, audit.EventAnalyze, mock.Anything).Return(nil)

	result, err := f.service.AnalyzeDocument(ctx, doc.CompanyID, doc.ID)
	require.NoError(t, err)
	assert.True(t, result.Totals.Scope1.Equal(decimal.RequireFromString("0.505")))
}

func TestAnalyzeNoDataMarksDocumentFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.storedDocument(t, "vacio.csv", "foo,bar\n1,2\n")

	f.repo.On("ClaimForProcessing", ctx, doc.CompanyID, doc.ID, mock.Anything).Return(doc, nil)
	f.repo.On("UpdateDocument", mock.Anything, mock.MatchedBy(func(d *Document) bool {
		return d.Status == StatusFailed && d.ErrorMessage != nil && *d.ErrorMessage == NoDataMessage
	})).Return(nil)

	_, err := f.service.AnalyzeDocument(ctx, doc.CompanyID, doc.ID)
	assert.ErrorIs(t, err, pipeline.ErrNoDataExtracted)

	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "ReplaceRecords", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, *f.invalidated)
}

func TestAnalyzeStorageFailureKeepsCause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := &Document{ID: uuid.New(), CompanyID: uuid.New(), FileType: FileTypeCSV, S3Bucket: "ledger-docs", S3Key: "missing", Status: StatusProcessing}

	f.repo.On("ClaimForProcessing", ctx, doc.CompanyID, doc.ID, mock.Anything).Return(doc, nil)
	f.repo.On("UpdateDocument", mock.Anything, mock.MatchedBy(func(d *Document) bool {
		return d.Status == StatusFailed && d.ErrorMessage != nil && strings.Contains(*d.ErrorMessage, "object not found")
	})).Return(nil)

	_, err := f.service.AnalyzeDocument(ctx, doc.CompanyID, doc.ID)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	f.repo.AssertExpectations(t)
}

func TestAnalyzeStatusSaveFailureMarksDocumentFailed(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	doc := f.storedDocument(t, "consumos.csv", "proveedor,consumo,unidad\nEndesa,1000,kWh\n")

	var saved []DocumentStatus
	f.repo.On("ClaimForProcessing", ctx, doc.CompanyID, doc.ID, mock.Anything).Return(doc, nil)
	f.repo.On("ReplaceRecords", ctx, doc.ID, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		cancel()
	})
	f.repo.On("UpdateDocument", mock.Anything, withStatus(StatusCompleted)).Run(func(args mock.Arguments) {
		require.NoError(t, args.Get(0).(context.Context).Err(), "status is saved even after the request is gone")
		saved = append(saved, StatusCompleted)
	}).Return(errors.New("connection reset")).Once()
	f.repo.On("UpdateDocument", mock.Anything, mock.MatchedBy(func(d *Document) bool {
		return d.Status == StatusFailed && d.ErrorMessage != nil && strings.Contains(*d.ErrorMessage, "connection reset")
	})).Run(func(mock.Arguments) {
		saved = append(saved, StatusFailed)
	}).Return(nil).Once()

	_, err := f.service.AnalyzeDocument(ctx, doc.CompanyID, doc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	assert.Equal(t, []DocumentStatus{StatusCompleted, StatusFailed}, saved)
	assert.Equal(t, StatusFailed, doc.Status)
	assert.Contains(t, NewWorkflowService().ClaimableStatuses(), string(doc.Status), "document can be analyzed again")
	assert.Empty(t, *f.invalidated)
	f.repo.AssertExpectations(t)
	f.audit.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeAlreadyProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID, id := uuid.New(), uuid.New()

	f.repo.On("ClaimForProcessing", ctx, companyID, id, mock.MatchedBy(func(from []string) bool {
		return assert.ElementsMatch(t, []string{"pending", "completed", "failed"}, from)
	})).Return(nil, ErrAlreadyProcessing)

	_, err := f.service.AnalyzeDocument(ctx, companyID, id)
	assert.ErrorIs(t, err, ErrAlreadyProcessing)
	f.repo.AssertNotCalled(t, "UpdateDocument", mock.Anything, mock.Anything)
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := NoDataMessage
	doc := &Document{ID: uuid.New(), CompanyID: uuid.New(), Status: StatusFailed, ErrorMessage: &msg}

	f.repo.On("GetDocumentByID", ctx, doc.CompanyID, doc.ID).Return(doc, nil)
	f.repo.On("CountRecords", ctx, doc.ID).Return(0, nil)

	status, err := f.service.GetStatus(ctx, doc.CompanyID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Status)
	assert.Equal(t, NoDataMessage, *status.ErrorMessage)
}

func TestListRecordsChecksOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companyID, id := uuid.New(), uuid.New()

	f.repo.On("GetDocumentByID", ctx, companyID, id).Return(nil, ErrNotFound)

	_, err := f.service.ListRecords(ctx, companyID, id)
	assert.ErrorIs(t, err, ErrNotFound)
	f.repo.AssertNotCalled(t, "ListRecords", mock.Anything, mock.Anything, mock.Anything)
}

func TestFactorGaps(t *testing.T) {
	drop := func(reason calculation.DropReason, cat, unit string) pipeline.Drop {
		return pipeline.Drop{Reason: reason, Err: &calculation.DropError{Reason: reason, Category: cat, Unit: unit}}
	}

	gaps := FactorGaps([]pipeline.Drop{
		drop(calculation.ReasonNoFactor, "freight_transport", "tonne_km"),
		drop(calculation.ReasonUnresolvedCategory, "", "pallets"),
		drop(calculation.ReasonNoFactor, "diesel", "L"),
		drop(calculation.ReasonNoFactor, "freight_transport", "tonne_km"),
	})

	assert.Equal(t, []notifications.FactorGap{
		{Category: "diesel", Unit: "L", Entries: 1},
		{Category: "freight_transport", Unit: "tonne_km", Entries: 2},
	}, gaps)
}

func TestDetectFileType(t *testing.T) {
	for name, want := range map[string]FileType{
		"a.PDF": FileTypePDF, "b.csv": FileTypeCSV, "c.xlsx": FileTypeXLSX,
		"d.png": FileTypeImage, "e.jpeg": FileTypeImage, "f.JPG": FileTypeImage,
	} {
		got, err := DetectFileType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := DetectFileType("g.xls")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}
