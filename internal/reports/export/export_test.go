package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/reports/dashboard"
)

func sampleReport() *Report {
	date := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	records := []activity.ComputedRecord{
		{
			RawActivityEntry: activity.RawActivityEntry{
				Supplier: activity.String("Endesa"),
				Usage:    activity.Decimal(decimal.NewFromInt(1500)),
				Unit:     activity.String("kWh"),
				Date:     &date,
			},
			Category:       "electricity",
			Scope:          2,
			CO2e:           decimal.RequireFromString("0.35"),
			EmissionFactor: decimal.RequireFromString("0.233"),
			FactorSource:   "MITECO 2023",
		},
		{
			RawActivityEntry: activity.RawActivityEntry{
				Supplier: activity.String("Compañía Logística"),
				Usage:    activity.Decimal(decimal.NewFromInt(100)),
				Unit:     activity.String("m3"),
			},
			Category:       "natural_gas",
			Scope:          1,
			CO2e:           decimal.RequireFromString("0.202"),
			EmissionFactor: decimal.RequireFromString("2.02"),
			FactorSource:   "IPCC 2023",
		},
	}
	return &Report{
		CompanyID:   uuid.New(),
		Year:        2024,
		Dashboard:   dashboard.Aggregate(records),
		Records:     records,
		GeneratedAt: time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestForFormat(t *testing.T) {
	for _, f := range []Format{FormatPDF, FormatXLSX, FormatCSV} {
		e, err := ForFormat(f)
		require.NoError(t, err)
		assert.NotEmpty(t, e.ContentType())
	}

	_, err := ForFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCSVExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter(DefaultCSVOptions()).Export(&buf, sampleReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(recordColumns, ","), lines[0])
	assert.Equal(t, "2024-03-15,Endesa,electricity,2,1500,kWh,,,0.35,0.233,MITECO 2023", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], ",Compañía Logística,natural_gas,1,100,m3,"))
}

func TestExcelExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter(DefaultExcelOptions()).Export(&buf, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Monthly", "Categories", "Records"}, f.GetSheetList())

	total, err := f.GetCellValue("Summary", "A3")
	require.NoError(t, err)
	assert.Equal(t, "Total GHG emissions (tCO2e)", total)

	rows, err := f.GetRows("Records")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "supplier", rows[0][1])
	assert.Equal(t, "Endesa", rows[1][1])

	categories, err := f.GetRows("Categories")
	require.NoError(t, err)
	assert.Equal(t, "electricity", categories[1][0])
}

func TestPDFExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPDFGenerator(DefaultPDFOptions()).Export(&buf, sampleReport()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "ghg_report_2024.xlsx", FileName(sampleReport(), FormatXLSX))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Natural gas", label("natural_gas"))
	assert.Equal(t, "", label(""))
}
