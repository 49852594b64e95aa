package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CSVExporter writes one line per record.
type CSVExporter struct {
	options CSVOptions
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter  rune
	UseCRLF    bool
	DateFormat string
	NullValue  string
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:  ',',
		DateFormat: time.DateOnly,
	}
}

func NewCSVExporter(options CSVOptions) *CSVExporter {
	return &CSVExporter{options: options}
}

func (e *CSVExporter) ContentType() string { return "text/csv" }

func (e *CSVExporter) Export(w io.Writer, r *Report) error {
	writer := csv.NewWriter(w)
	writer.Comma = e.options.Delimiter
	writer.UseCRLF = e.options.UseCRLF

	if err := writer.Write(recordColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range r.Records {
		row := recordRow(rec)
		line := make([]string, len(row))
		for i, val := range row {
			line[i] = e.formatValue(val)
		}
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatValue formats a value for CSV output
func (e *CSVExporter) formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return e.options.NullValue
	case string:
		return v
	case *string:
		if v == nil {
			return e.options.NullValue
		}
		return *v
	case int:
		return strconv.Itoa(v)
	case decimal.Decimal:
		return v.String()
	case *decimal.Decimal:
		if v == nil {
			return e.options.NullValue
		}
		return v.String()
	case *time.Time:
		if v == nil || v.IsZero() {
			return e.options.NullValue
		}
		return v.Format(e.options.DateFormat)
	default:
		return fmt.Sprintf("%v", v)
	}
}
