// Package tabular turns CSV and spreadsheet rows into raw activity entries.
package tabular

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/emissions/category"
	"luma-ledger/ledger-backend/internal/ingestion/columns"
	"luma-ledger/ledger-backend/internal/ingestion/locale"
)

// Cell is one value of a row. Numeric marks cells whose text is already a
// canonical number (spreadsheet numeric cells), which skips locale parsing.
type Cell struct {
	Value   string
	Numeric bool
}

// Sheet is a parsed tabular document.
type Sheet struct {
	Header  []string
	Rows    [][]Cell
	Entries []activity.RawActivityEntry
	// Text is the raw content, kept for the free-text fallback.
	Text string
}

// Parser applies the column mapping and locale rules to tabular rows.
type Parser struct {
	synonyms *columns.Synonyms
	resolver *category.Resolver
	logger   *zap.Logger
}

// NewParser creates a parser.
func NewParser(synonyms *columns.Synonyms, resolver *category.Resolver, logger *zap.Logger) *Parser {
	return &Parser{
		synonyms: synonyms,
		resolver: resolver,
		logger:   logger,
	}
}

// ParseRows parses text rows; the first row is the header.
func (p *Parser) ParseRows(rows [][]string) []activity.RawActivityEntry {
	if len(rows) == 0 {
		return nil
	}
	cells := make([][]Cell, len(rows)-1)
	for i, row := range rows[1:] {
		cells[i] = textCells(row)
	}
	return p.parseCells(rows[0], cells)
}

func (p *Parser) parseCells(header []string, rows [][]Cell) []activity.RawActivityEntry {
	layout := p.synonyms.Layout(header)
	if len(layout) == 0 {
		p.logger.Debug("No recognizable columns in header", zap.Strings("header", header))
		return nil
	}

	var entries []activity.RawActivityEntry
	dropped := 0
	for _, row := range rows {
		entry := p.parseRow(layout, row)
		if !entry.HasQuantity() {
			dropped++
			continue
		}
		entries = append(entries, entry)
	}

	if dropped > 0 {
		p.logger.Debug("Dropped rows without usage or cost", zap.Int("rows", dropped))
	}
	return entries
}

func (p *Parser) parseRow(layout columns.Layout, row []Cell) activity.RawActivityEntry {
	cell := func(f columns.Field) (Cell, bool) {
		idx, ok := layout[f]
		if !ok || idx >= len(row) {
			return Cell{}, false
		}
		c := row[idx]
		c.Value = strings.TrimSpace(c.Value)
		return c, c.Value != ""
	}
	text := func(f columns.Field) *string {
		if c, ok := cell(f); ok {
			return activity.String(c.Value)
		}
		return nil
	}
	number := func(f columns.Field) *decimal.Decimal {
		c, ok := cell(f)
		if !ok {
			return nil
		}
		if d, ok := parseNumber(c); ok {
			return &d
		}
		return nil
	}

	entry := activity.RawActivityEntry{
		Supplier:      text(columns.FieldSupplier),
		CategoryHint:  text(columns.FieldCategory),
		Usage:         number(columns.FieldUsage),
		Unit:          text(columns.FieldUnit),
		Cost:          number(columns.FieldCost),
		InvoiceNumber: text(columns.FieldInvoiceNumber),
		Notes:         text(columns.FieldNotes),
	}
	if c, ok := cell(columns.FieldDate); ok {
		if d, ok := parseDate(c); ok {
			entry.Date = &d
		}
	}

	if entry.CategoryHint == nil && entry.Supplier != nil && entry.Unit != nil {
		if c, ok := p.resolver.Infer(*entry.Unit, *entry.Supplier); ok {
			entry.CategoryHint = activity.String(string(c))
		}
	}
	return entry
}

func parseNumber(c Cell) (decimal.Decimal, bool) {
	if c.Numeric {
		if d, err := decimal.NewFromString(c.Value); err == nil {
			return d, true
		}
	}
	return locale.ParseNumber(c.Value)
}

func parseDate(c Cell) (time.Time, bool) {
	if c.Numeric {
		if t, ok := serialDate(c.Value); ok {
			return t, true
		}
	}
	return locale.ParseDate(c.Value)
}

func textCells(row []string) []Cell {
	cells := make([]Cell, len(row))
	for i, v := range row {
		cells[i] = Cell{Value: v}
	}
	return cells
}

// joinRows flattens rows into newline separated text.
func joinRows(header []string, rows [][]Cell) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, " "))
	for _, row := range rows {
		b.WriteByte('\n')
		for i, c := range row {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(c.Value)
		}
	}
	return b.String()
}
