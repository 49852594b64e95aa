package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// sniffBytes is how much of the stream is inspected to pick the delimiter.
const sniffBytes = 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrEmptyDocument is returned for a tabular document without a header row.
var ErrEmptyDocument = errors.New("document has no rows")

// ParseCSV reads a comma or semicolon separated document.
func (p *Parser) ParseCSV(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = DetectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyDocument
	}

	rows := make([][]Cell, len(records)-1)
	for i, rec := range records[1:] {
		rows[i] = textCells(rec)
	}

	sheet := &Sheet{
		Header:  records[0],
		Rows:    rows,
		Entries: p.parseCells(records[0], rows),
		Text:    string(data),
	}
	p.logger.Info("Parsed CSV",
		zap.String("delimiter", string(reader.Comma)),
		zap.Int("rows", len(rows)),
		zap.Int("entries", len(sheet.Entries)))
	return sheet, nil
}

// DetectDelimiter looks at the first line within the first kilobyte and picks
// ';' when it has more semicolons than commas, ',' otherwise. Only the header
// line is counted because Spanish decimal commas in data rows would skew it.
func DetectDelimiter(data []byte) rune {
	sample := data
	if len(sample) > sniffBytes {
		sample = sample[:sniffBytes]
	}
	if i := bytes.IndexAny(sample, "\r\n"); i >= 0 {
		sample = sample[:i]
	}
	if bytes.Count(sample, []byte{';'}) > bytes.Count(sample, []byte{','}) {
		return ';'
	}
	return ','
}
