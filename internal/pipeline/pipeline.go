// Package pipeline runs one document through parsing, category resolution and
// the emission calculation against a single factor table snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/emissions/calculation"
	"luma-ledger/ledger-backend/internal/emissions/category"
	"luma-ledger/ledger-backend/internal/emissions/factors"
	"luma-ledger/ledger-backend/internal/ingestion/columns"
	"luma-ledger/ledger-backend/internal/ingestion/freetext"
	"luma-ledger/ledger-backend/internal/ingestion/tabular"
)

// Kind is the shape of the input handed to Run.
type Kind string

const (
	KindCSV         Kind = "csv"
	KindSpreadsheet Kind = "spreadsheet"
	KindText        Kind = "plaintext-from-ocr"
)

var (
	// ErrNoDataExtracted means neither the structured parser nor the free-text
	// extractor produced a single entry.
	ErrNoDataExtracted = errors.New("no data could be extracted from document")
	ErrUnknownKind     = errors.New("unknown input kind")
)

// FactorSource hands out the current factor table.
type FactorSource interface {
	Snapshot() *factors.Table
}

// Drop is an entry that produced no record.
type Drop struct {
	Entry  activity.RawActivityEntry
	Reason calculation.DropReason
	Err    error
}

// Totals are tonnes of CO2e, rounded like the records themselves.
type Totals struct {
	Total  decimal.Decimal `json:"total_co2e"`
	Scope1 decimal.Decimal `json:"scope1"`
	Scope2 decimal.Decimal `json:"scope2"`
	Scope3 decimal.Decimal `json:"scope3"`
}

// Result is the outcome of a run.
type Result struct {
	Records []activity.ComputedRecord
	Drops   []Drop
	// Extracted is the number of raw entries before calculation.
	Extracted int
	// FromText is set when the entries came from the free-text extractor,
	// including the fallback for structured files.
	FromText bool
	Totals   Totals
}

// DropCounts groups drops by reason.
func (r *Result) DropCounts() map[calculation.DropReason]int {
	counts := make(map[calculation.DropReason]int)
	for _, d := range r.Drops {
		counts[d.Reason]++
	}
	return counts
}

// Pipeline is safe for concurrent use; every run reads its own snapshot.
type Pipeline struct {
	parser    *tabular.Parser
	extractor *freetext.Extractor
	engine    *calculation.Engine
	factors   FactorSource
	logger    *zap.Logger
}

// New wires a pipeline from its parts.
func New(parser *tabular.Parser, extractor *freetext.Extractor, engine *calculation.Engine, source FactorSource, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		parser:    parser,
		extractor: extractor,
		engine:    engine,
		factors:   source,
		logger:    logger,
	}
}

// NewDefault builds a pipeline with the built-in synonym, category and
// extraction tables.
func NewDefault(source FactorSource, logger *zap.Logger) *Pipeline {
	resolver := category.Default()
	return New(
		tabular.NewParser(columns.Default(), resolver, logger.Named("tabular")),
		freetext.Default(),
		calculation.NewEngine(resolver),
		source,
		logger,
	)
}

// Run parses r according to kind and calculates every entry. Entries that
// cannot be calculated are reported in Result.Drops and never fail the run.
func (p *Pipeline) Run(ctx context.Context, kind Kind, r io.Reader) (*Result, error) {
	table := p.factors.Snapshot()

	entries, fromText, err := p.extract(kind, r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoDataExtracted
	}

	result := &Result{Extracted: len(entries), FromText: fromText}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := p.engine.Calculate(entry, table)
		if err != nil {
			var drop *calculation.DropError
			if !errors.As(err, &drop) {
				return nil, fmt.Errorf("failed to calculate entry: %w", err)
			}
			p.logDrop(entry, drop)
			result.Drops = append(result.Drops, Drop{Entry: entry, Reason: drop.Reason, Err: drop})
			continue
		}
		result.Records = append(result.Records, *record)
	}

	result.Totals = Summarize(result.Records)
	p.logger.Info("Pipeline run finished",
		zap.String("kind", string(kind)),
		zap.Int("entries", result.Extracted),
		zap.Int("records", len(result.Records)),
		zap.Int("dropped", len(result.Drops)),
		zap.String("total_co2e", result.Totals.Total.StringFixed(calculation.CO2ePrecision)))
	return result, nil
}

// RunText is Run for text that is already in memory.
func (p *Pipeline) RunText(ctx context.Context, text string) (*Result, error) {
	return p.Run(ctx, KindText, strings.NewReader(text))
}

func (p *Pipeline) extract(kind Kind, r io.Reader) ([]activity.RawActivityEntry, bool, error) {
	var (
		sheet *tabular.Sheet
		err   error
	)
	switch kind {
	case KindCSV:
		sheet, err = p.parser.ParseCSV(r)
	case KindSpreadsheet:
		sheet, err = p.parser.ParseSpreadsheet(r)
	case KindText:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read text: %w", err)
		}
		return p.extractor.Extract(string(data)), true, nil
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if errors.Is(err, tabular.ErrEmptyDocument) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(sheet.Entries) > 0 {
		return sheet.Entries, false, nil
	}

	p.logger.Info("No rows recognized, falling back to free-text extraction",
		zap.String("kind", string(kind)))
	return p.extractor.Extract(sheet.Text), true, nil
}

func (p *Pipeline) logDrop(entry activity.RawActivityEntry, drop *calculation.DropError) {
	fields := []zap.Field{
		zap.String("reason", string(drop.Reason)),
		zap.String("supplier", entry.SupplierName()),
		zap.String("unit", entry.UnitName()),
	}
	switch drop.Reason {
	case calculation.ReasonNoFactor:
		p.logger.Warn("No emission factor for entry", append(fields, zap.String("category", drop.Category))...)
	case calculation.ReasonUnresolvedCategory:
		p.logger.Info("Could not determine category for entry", fields...)
	default:
		p.logger.Debug("Entry skipped", fields...)
	}
}

// Summarize adds up record CO2e overall and per scope.
func Summarize(records []activity.ComputedRecord) Totals {
	var t Totals
	for _, r := range records {
		t.Total = t.Total.Add(r.CO2e)
		switch r.Scope {
		case 1:
			t.Scope1 = t.Scope1.Add(r.CO2e)
		case 2:
			t.Scope2 = t.Scope2.Add(r.CO2e)
		default:
			t.Scope3 = t.Scope3.Add(r.CO2e)
		}
	}
	t.Total = t.Total.Round(calculation.CO2ePrecision)
	t.Scope1 = t.Scope1.Round(calculation.CO2ePrecision)
	t.Scope2 = t.Scope2.Round(calculation.CO2ePrecision)
	t.Scope3 = t.Scope3.Round(calculation.CO2ePrecision)
	return t
}
