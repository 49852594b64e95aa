package documents

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/pipeline"
	"luma-ledger/ledger-backend/pkg/workflows"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = workflows.StatusPending
	StatusProcessing DocumentStatus = workflows.StatusProcessing
	StatusCompleted  DocumentStatus = workflows.StatusCompleted
	StatusFailed     DocumentStatus = workflows.StatusFailed
)

type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeCSV   FileType = "csv"
	FileTypeXLSX  FileType = "xlsx"
	FileTypeImage FileType = "image"
)

// NoDataMessage is stored on documents that yielded no activity entries.
const NoDataMessage = "No data could be extracted from document"

var (
	ErrNotFound            = errors.New("document not found")
	ErrAlreadyProcessing   = errors.New("document is already being processed")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

var extensionTypes = map[string]FileType{
	".pdf":  FileTypePDF,
	".csv":  FileTypeCSV,
	".xlsx": FileTypeXLSX,
	".png":  FileTypeImage,
	".jpg":  FileTypeImage,
	".jpeg": FileTypeImage,
}

// DetectFileType maps an upload's extension to its type.
func DetectFileType(fileName string) (FileType, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ft, ok := extensionTypes[ext]; ok {
		return ft, nil
	}
	return "", ErrUnsupportedFileType
}

type Document struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	CompanyID    uuid.UUID      `json:"company_id" db:"company_id"`
	FileName     string         `json:"file_name" db:"file_name"`
	FileType     FileType       `json:"file_type" db:"file_type"`
	FileSize     int64          `json:"file_size" db:"file_size"`
	S3Key        string         `json:"s3_key" db:"s3_key"`
	S3Bucket     string         `json:"s3_bucket" db:"s3_bucket"`
	Status       DocumentStatus `json:"status" db:"status"`
	ErrorMessage *string        `json:"error_message,omitempty" db:"error_message"`
	UploadedBy   string         `json:"uploaded_by" db:"uploaded_by"`
	UploadedAt   time.Time      `json:"uploaded_at" db:"uploaded_at"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty" db:"processed_at"`
}

// ActivityRecord is a computed record persisted against its document.
type ActivityRecord struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CompanyID  uuid.UUID `json:"company_id" db:"company_id"`
	DocumentID uuid.UUID `json:"document_id" db:"document_id"`
	activity.ComputedRecord
	CalculationTrail datatypes.JSON `json:"-" db:"calculation_trail"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

type ListFilter struct {
	Status   *DocumentStatus
	FileType *FileType
	Limit    int
	Offset   int
}

// AnalysisResult is what POST /documents/:id/analyze answers.
type AnalysisResult struct {
	DocumentID       uuid.UUID       `json:"document_id"`
	Status           DocumentStatus  `json:"status"`
	RecordsExtracted int             `json:"records_extracted"`
	EntriesDropped   int             `json:"entries_dropped"`
	Totals           pipeline.Totals `json:"totals"`
	Message          string          `json:"message"`
}

// StatusResponse is the polling view of a document.
type StatusResponse struct {
	DocumentID   uuid.UUID      `json:"document_id"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	RecordCount  int            `json:"record_count"`
}
