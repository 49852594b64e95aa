package activity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawActivityEntry is a single row or text snippet as it comes out of a parser.
// Every field is optional; an entry with neither Usage nor Cost is never emitted.
type RawActivityEntry struct {
	Supplier      *string          `json:"supplier,omitempty" db:"supplier"`
	CategoryHint  *string          `json:"category_hint,omitempty" db:"category_hint"`
	Usage         *decimal.Decimal `json:"usage,omitempty" db:"usage"`
	Unit          *string          `json:"unit,omitempty" db:"unit"`
	Cost          *decimal.Decimal `json:"cost,omitempty" db:"cost"`
	Date          *time.Time       `json:"date,omitempty" db:"activity_date"`
	InvoiceNumber *string          `json:"invoice_number,omitempty" db:"invoice_number"`
	Notes         *string          `json:"notes,omitempty" db:"notes"`
}

// HasQuantity reports whether the entry carries a usage or a cost figure.
func (e RawActivityEntry) HasQuantity() bool {
	return e.Usage != nil || e.Cost != nil
}

// SupplierName returns the supplier or an empty string.
func (e RawActivityEntry) SupplierName() string {
	if e.Supplier == nil {
		return ""
	}
	return *e.Supplier
}

// UnitName returns the unit or an empty string.
func (e RawActivityEntry) UnitName() string {
	if e.Unit == nil {
		return ""
	}
	return *e.Unit
}

// ComputedRecord is the durable output of a pipeline run.
type ComputedRecord struct {
	RawActivityEntry

	Category       string          `json:"category" db:"category"`
	Scope          int             `json:"scope" db:"scope"`
	CO2e           decimal.Decimal `json:"co2e" db:"co2e"`
	EmissionFactor decimal.Decimal `json:"emission_factor" db:"emission_factor"`
	FactorSource   string          `json:"factor_source" db:"factor_source"`
	FactorUnit     string          `json:"factor_unit" db:"factor_unit"`
	FactorYear     int             `json:"factor_year" db:"factor_year"`
	FactorRegion   string          `json:"factor_region" db:"factor_region"`

	Steps []CalculationStep `json:"calculation_steps,omitempty" db:"-"`
}

// CalculationStep is one entry of the calculation trail attached to a record.
// Values are kept as strings so the trail is byte-for-byte reproducible.
type CalculationStep struct {
	StepNumber  int               `json:"step_number"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Formula     string            `json:"formula,omitempty"`
	Inputs      map[string]string `json:"inputs"`
	Outputs     map[string]string `json:"outputs"`
}

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Decimal returns a pointer to a copy of d.
func Decimal(d decimal.Decimal) *decimal.Decimal {
	return &d
}
