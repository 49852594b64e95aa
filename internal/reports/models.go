package reports

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"luma-ledger/ledger-backend/internal/reports/export"
)

var ErrNoData = errors.New("no emission data found for the requested period")

// Report is the stored metadata of a generated annual report.
type Report struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	CompanyID   uuid.UUID       `json:"company_id" db:"company_id"`
	Year        int             `json:"year" db:"year"`
	Format      export.Format   `json:"format" db:"format"`
	TotalCO2e   decimal.Decimal `json:"total_co2e" db:"total_co2e"`
	Scope1CO2e  decimal.Decimal `json:"scope1_co2e" db:"scope1_co2e"`
	Scope2CO2e  decimal.Decimal `json:"scope2_co2e" db:"scope2_co2e"`
	Scope3CO2e  decimal.Decimal `json:"scope3_co2e" db:"scope3_co2e"`
	Coverage    decimal.Decimal `json:"coverage" db:"coverage"`
	RecordCount int             `json:"record_count" db:"record_count"`
	S3Key       string          `json:"s3_key,omitempty" db:"s3_key"`
	GeneratedBy string          `json:"generated_by" db:"generated_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type ExportRequest struct {
	CompanyID   uuid.UUID
	Year        int
	Format      export.Format
	RequestedBy string
}

// ExportResult carries the rendered file back to the caller.
type ExportResult struct {
	Report      *Report
	FileName    string
	ContentType string
	Data        []byte
}
