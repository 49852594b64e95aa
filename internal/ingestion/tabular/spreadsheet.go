package tabular

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Largest serial Excel can display (9999-12-31).
const maxExcelSerial = 2958465

// ParseSpreadsheet reads the active sheet of an XLSX workbook.
func (p *Parser) ParseSpreadsheet(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(f.GetActiveSheetIndex())
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyDocument
		}
		sheetName = sheets[0]
	}

	raw, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}

	headerRow := -1
	for i, row := range raw {
		if !blankRow(row) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, ErrEmptyDocument
	}

	header := raw[headerRow]
	rows := make([][]Cell, 0, len(raw)-headerRow-1)
	for i := headerRow + 1; i < len(raw); i++ {
		cells := make([]Cell, len(raw[i]))
		for j, v := range raw[i] {
			cells[j] = Cell{Value: v, Numeric: numericCell(f, sheetName, j+1, i+1, v)}
		}
		rows = append(rows, cells)
	}

	sheet := &Sheet{
		Header:  header,
		Rows:    rows,
		Entries: p.parseCells(header, rows),
		Text:    joinRows(header, rows),
	}
	p.logger.Info("Parsed spreadsheet",
		zap.String("sheet", sheetName),
		zap.Int("rows", len(rows)),
		zap.Int("entries", len(sheet.Entries)))
	return sheet, nil
}

// numericCell reports whether the stored cell is a number. Excel leaves the
// type attribute unset for plain numbers, so unset cells count when their raw
// value parses as a float.
func numericCell(f *excelize.File, sheet string, col, row int, value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return false
	}
	if typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset {
		return false
	}
	_, err = strconv.ParseFloat(strings.TrimSpace(value), 64)
	return err == nil
}

// serialDate converts an Excel serial day number to a calendar date.
func serialDate(value string) (time.Time, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v < 1 || v > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
