package export

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes a workbook with summary, monthly, category and record
// sheets.
type ExcelExporter struct {
	options ExcelOptions
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	DateFormat   string
	NumberFormat string
	HeaderStyle  *ExcelStyleConfig
	AutoWidth    bool
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool
	FontSize  int
	FontColor string
	FillColor string
	Alignment string
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		DateFormat:   "yyyy-mm-dd",
		NumberFormat: "#,##0.000",
		AutoWidth:    true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "2C5F2D",
			FontColor: "FFFFFF",
			Alignment: "center",
		},
	}
}

func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	return &ExcelExporter{options: options}
}

func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *ExcelExporter) Export(w io.Writer, r *Report) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", "Summary"); err != nil {
		return err
	}

	s := r.Dashboard.Summary
	summary := [][]interface{}{
		{"Reporting year", r.Year},
		{"Total GHG emissions (tCO2e)", s.TotalCO2e},
		{"Scope 1 (tCO2e)", s.Scope1CO2e},
		{"Scope 2 (tCO2e)", s.Scope2CO2e},
		{"Scope 3 (tCO2e)", s.Scope3CO2e},
		{"Records", s.TotalRecords},
		{"Data coverage (%)", s.DataCoverage},
		{"Generated", r.GeneratedAt.Format(time.RFC3339)},
		{"Methodology", Methodology},
	}
	if err := e.writeTable(file, "Summary", []string{"Metric", "Value"}, summary); err != nil {
		return err
	}

	monthly := make([][]interface{}, 0, len(r.Dashboard.Monthly))
	for _, m := range r.Dashboard.Monthly {
		monthly = append(monthly, []interface{}{m.Month, m.CO2e})
	}
	if err := e.addTable(file, "Monthly", []string{"Month", "tCO2e"}, monthly); err != nil {
		return err
	}

	categories := make([][]interface{}, 0, len(r.Dashboard.Categories))
	for _, c := range r.Dashboard.Categories {
		categories = append(categories, []interface{}{c.Category, c.CO2e, c.Count, share(c.CO2e, s.TotalCO2e)})
	}
	if err := e.addTable(file, "Categories", []string{"Category", "tCO2e", "Records", "% of total"}, categories); err != nil {
		return err
	}

	records := make([][]interface{}, 0, len(r.Records))
	for _, rec := range r.Records {
		records = append(records, recordRow(rec))
	}
	if err := e.addTable(file, "Records", recordColumns, records); err != nil {
		return err
	}

	return file.Write(w)
}

func (e *ExcelExporter) addTable(file *excelize.File, sheet string, header []string, rows [][]interface{}) error {
	if _, err := file.NewSheet(sheet); err != nil {
		return err
	}
	return e.writeTable(file, sheet, header, rows)
}

// writeTable writes a styled header, the rows, a frozen header pane and an
// autofilter.
func (e *ExcelExporter) writeTable(file *excelize.File, sheet string, header []string, rows [][]interface{}) error {
	headerStyle := 0
	if e.options.HeaderStyle != nil {
		style, err := e.createStyle(file, e.options.HeaderStyle)
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		headerStyle = style
	}
	numberStyle, err := file.NewStyle(&excelize.Style{CustomNumFmt: &e.options.NumberFormat})
	if err != nil {
		return err
	}
	dateStyle, err := file.NewStyle(&excelize.Style{CustomNumFmt: &e.options.DateFormat})
	if err != nil {
		return err
	}

	widths := make([]int, len(header))
	for i, col := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		if headerStyle > 0 {
			_ = file.SetCellStyle(sheet, cell, cell, headerStyle)
		}
		widths[i] = utf8.RuneCountInString(col)
	}

	for r, row := range rows {
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			value, style := cellValue(val, numberStyle, dateStyle)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if style > 0 {
				_ = file.SetCellStyle(sheet, cell, cell, style)
			}
			if n := utf8.RuneCountInString(fmt.Sprint(value)); c < len(widths) && n > widths[c] {
				widths[c] = n
			}
		}
	}

	if err := file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if len(rows) > 0 {
		lastCell, _ := excelize.CoordinatesToCellName(len(header), len(rows)+1)
		if err := file.AutoFilter(sheet, "A1:"+lastCell, nil); err != nil {
			return err
		}
	}

	if e.options.AutoWidth {
		for i, w := range widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			_ = file.SetColWidth(sheet, col, col, float64(min(max(w+2, 10), 60)))
		}
	}
	return nil
}

// cellValue converts report values to what excelize stores natively and picks
// the cell style.
func cellValue(val interface{}, numberStyle, dateStyle int) (interface{}, int) {
	switch v := val.(type) {
	case decimal.Decimal:
		return v.InexactFloat64(), numberStyle
	case *decimal.Decimal:
		if v == nil {
			return "", 0
		}
		return v.InexactFloat64(), numberStyle
	case *string:
		if v == nil {
			return "", 0
		}
		return *v, 0
	case *time.Time:
		if v == nil {
			return "", 0
		}
		return *v, dateStyle
	default:
		return v, 0
	}
}

// createStyle creates an Excel style from config
func (e *ExcelExporter) createStyle(file *excelize.File, config *ExcelStyleConfig) (int, error) {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{config.FillColor}}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	return file.NewStyle(style)
}
