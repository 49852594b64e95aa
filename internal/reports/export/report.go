// Package export renders annual emission reports as CSV, XLSX or PDF.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/reports/dashboard"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var ErrUnsupportedFormat = errors.New("unsupported report format")

// Methodology is printed on every report.
const Methodology = "Emissions are calculated as activity usage multiplied by the most recent " +
	"emission factor for the activity category and unit (IPCC, DEFRA, EEA, MITECO), " +
	"expressed in tonnes of CO2e. Scope 1 covers direct combustion, Scope 2 purchased " +
	"energy and Scope 3 other indirect emissions."

// Report is the content of an annual report.
type Report struct {
	CompanyID   uuid.UUID
	Year        int
	Dashboard   *dashboard.Dashboard
	Records     []activity.ComputedRecord
	GeneratedAt time.Time
}

// Exporter writes a report in one format.
type Exporter interface {
	ContentType() string
	Export(w io.Writer, r *Report) error
}

// ForFormat returns the exporter for f with default options.
func ForFormat(f Format) (Exporter, error) {
	switch f {
	case FormatPDF:
		return NewPDFGenerator(DefaultPDFOptions()), nil
	case FormatXLSX:
		return NewExcelExporter(DefaultExcelOptions()), nil
	case FormatCSV:
		return NewCSVExporter(DefaultCSVOptions()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// FileName is the download name of a report.
func FileName(r *Report, f Format) string {
	return fmt.Sprintf("ghg_report_%d.%s", r.Year, f)
}

var recordColumns = []string{
	"date", "supplier", "category", "scope", "usage", "unit", "cost",
	"invoice_number", "co2e_t", "emission_factor", "factor_source",
}

func recordRow(r activity.ComputedRecord) []interface{} {
	return []interface{}{
		r.Date, r.Supplier, r.Category, r.Scope, r.Usage, r.Unit, r.Cost,
		r.InvoiceNumber, r.CO2e, r.EmissionFactor, r.FactorSource,
	}
}

// share is part/total as a percentage with one decimal.
func share(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Mul(decimal.NewFromInt(100)).Div(total).Round(1)
}
