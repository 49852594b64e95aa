// Package calculation turns raw activity entries into CO2e records.
package calculation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/emissions/category"
	"luma-ledger/ledger-backend/internal/emissions/factors"
)

// DropReason classifies why an entry produced no record.
type DropReason string

const (
	ReasonInsufficientData   DropReason = "insufficient_data"
	ReasonUnresolvedCategory DropReason = "unresolved_category"
	ReasonNoFactor           DropReason = "no_factor"
)

var (
	ErrInsufficientData   = errors.New("usage and unit are required")
	ErrUnresolvedCategory = errors.New("could not determine category")
	ErrNoFactor           = errors.New("no emission factor available")
)

// CO2ePrecision is the number of decimal places kept on tonnes of CO2e.
const CO2ePrecision = 3

var kgPerTonne = decimal.NewFromInt(1000)

// DropError is returned for every entry that cannot be calculated. It is a
// per-entry outcome, never a document failure.
type DropError struct {
	Reason   DropReason
	Category string
	Unit     string
	err      error
}

func (e *DropError) Error() string {
	switch e.Reason {
	case ReasonNoFactor:
		return fmt.Sprintf("%s for %s (%s)", e.err, e.Category, e.Unit)
	case ReasonUnresolvedCategory:
		return fmt.Sprintf("%s for unit %q", e.err, e.Unit)
	default:
		return e.err.Error()
	}
}

func (e *DropError) Unwrap() error {
	return e.err
}

// Engine computes records against a factor table snapshot.
type Engine struct {
	resolver *category.Resolver
}

// NewEngine creates an engine using the given resolver tables.
func NewEngine(resolver *category.Resolver) *Engine {
	return &Engine{resolver: resolver}
}

// Calculate resolves the entry's category, picks the newest factor for
// (category, normalized unit) and computes tonnes of CO2e. The result depends
// only on the entry and the table.
func (e *Engine) Calculate(entry activity.RawActivityEntry, table *factors.Table) (*activity.ComputedRecord, error) {
	rawUnit := entry.UnitName()
	if entry.Usage == nil || rawUnit == "" {
		return nil, &DropError{Reason: ReasonInsufficientData, Unit: rawUnit, err: ErrInsufficientData}
	}

	supplier := entry.SupplierName()
	cat, ok := e.resolver.Normalize(entry.CategoryHint, rawUnit, supplier)
	if !ok {
		return nil, &DropError{Reason: ReasonUnresolvedCategory, Unit: rawUnit, err: ErrUnresolvedCategory}
	}
	unit := e.resolver.NormalizeUnit(rawUnit)

	factor, ok := table.Lookup(string(cat), unit)
	if !ok {
		return nil, &DropError{Reason: ReasonNoFactor, Category: string(cat), Unit: unit, err: ErrNoFactor}
	}

	usage := *entry.Usage
	kg := usage.Mul(factor.Factor)
	tonnes := kg.Div(kgPerTonne).Round(CO2ePrecision)
	scope := e.resolver.Scope(cat)

	return &activity.ComputedRecord{
		RawActivityEntry: entry,
		Category:         string(cat),
		Scope:            scope,
		CO2e:             tonnes,
		EmissionFactor:   factor.Factor,
		FactorSource:     factor.Label(),
		FactorUnit:       unit,
		FactorYear:       factor.Year,
		FactorRegion:     factor.Region,
		Steps:            buildSteps(entry, cat, unit, scope, factor, kg, tonnes),
	}, nil
}

func buildSteps(entry activity.RawActivityEntry, cat category.Category, unit string, scope int, factor factors.Factor, kg, tonnes decimal.Decimal) []activity.CalculationStep {
	hint := ""
	if entry.CategoryHint != nil {
		hint = *entry.CategoryHint
	}

	return []activity.CalculationStep{
		{
			StepNumber:  1,
			Name:        "resolve_category",
			Description: "Normalize the declared category or infer it from unit and supplier",
			Inputs: map[string]string{
				"category_hint": hint,
				"unit":          entry.UnitName(),
				"supplier":      entry.SupplierName(),
			},
			Outputs: map[string]string{
				"category": string(cat),
				"unit":     unit,
				"scope":    fmt.Sprintf("%d", scope),
			},
		},
		{
			StepNumber:  2,
			Name:        "select_factor",
			Description: "Select the most recent emission factor for category and unit",
			Inputs: map[string]string{
				"category": string(cat),
				"unit":     unit,
			},
			Outputs: map[string]string{
				"factor_kg_per_unit": factor.Factor.String(),
				"source":             factor.Source,
				"year":               fmt.Sprintf("%d", factor.Year),
				"region":             factor.Region,
			},
		},
		{
			StepNumber:  3,
			Name:        "compute_co2e",
			Description: "Convert usage to tonnes of CO2e",
			Formula:     "co2e_t = round(usage * factor / 1000, 3)",
			Inputs: map[string]string{
				"usage":  entry.Usage.String(),
				"factor": factor.Factor.String(),
			},
			Outputs: map[string]string{
				"co2e_kg": kg.String(),
				"co2e_t":  tonnes.StringFixed(CO2ePrecision),
			},
		},
	}
}
