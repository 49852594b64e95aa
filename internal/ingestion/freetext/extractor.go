// Package freetext pulls activity entries out of OCR text of Spanish utility
// and fuel invoices.
package freetext

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/emissions/category"
	"luma-ledger/ledger-backend/internal/ingestion/locale"
)

// UnknownSupplier is attached when no known brand appears in the text.
const UnknownSupplier = "Unknown"

// CostWindow is how many characters either side of a usage match are searched
// for a cost.
const CostWindow = 200

// rule is a pattern plus the index of the capture group holding the value.
type rule struct {
	pattern *regexp.Regexp
	group   int
}

// extraction describes one consumption kind; at most one entry per kind is
// emitted for a document.
type extraction struct {
	name     string
	unit     string
	rules    []rule
	category func(span string) category.Category
}

func fixed(c category.Category) func(string) category.Category {
	return func(string) category.Category { return c }
}

func fuelType(span string) category.Category {
	s := strings.ToLower(span)
	if strings.Contains(s, "diesel") || strings.Contains(s, "gasóleo") {
		return category.Diesel
	}
	return category.Petrol
}

// Extractor holds the compiled rule tables. It is safe for concurrent use.
type Extractor struct {
	extractions  []extraction
	costRules    []rule
	invoiceRules []rule
	suppliers    []string
	datePattern  *regexp.Regexp
}

var defaultExtractor = &Extractor{
	extractions: []extraction{
		{
			name: "electricity",
			unit: "kWh",
			rules: []rule{
				{regexp.MustCompile(`(?i)Consumo[:\s]+([0-9.,]+)\s*kWh`), 1},
				{regexp.MustCompile(`(?i)([0-9.,]+)\s*kWh`), 1},
				{regexp.MustCompile(`(?i)Energía consumida[:\s]+([0-9.,]+)`), 1},
			},
			category: fixed(category.Electricity),
		},
		{
			name: "natural_gas",
			unit: "m3",
			rules: []rule{
				{regexp.MustCompile(`(?i)Consumo[:\s]+([0-9.,]+)\s*m[³3]`), 1},
				{regexp.MustCompile(`(?i)([0-9.,]+)\s*m[³3]`), 1},
				{regexp.MustCompile(`(?i)Gas natural[:\s]+([0-9.,]+)`), 1},
			},
			category: fixed(category.NaturalGas),
		},
		{
			name: "fuel",
			unit: "L",
			rules: []rule{
				{regexp.MustCompile(`(?i)(Diesel|Gasóleo|Gasolina)[:\s]+([0-9.,]+)\s*L`), 2},
				{regexp.MustCompile(`(?i)([0-9.,]+)\s*Litros?\s+(?:de\s+)?(Diesel|Gasóleo|Gasolina)`), 1},
			},
			category: fuelType,
		},
	},
	costRules: []rule{
		{regexp.MustCompile(`([0-9.,]+)\s*€`), 1},
		{regexp.MustCompile(`€\s*([0-9.,]+)`), 1},
		{regexp.MustCompile(`(?i)Total[:\s]+([0-9.,]+)`), 1},
		{regexp.MustCompile(`(?i)Importe[:\s]+([0-9.,]+)`), 1},
	},
	invoiceRules: []rule{
		{regexp.MustCompile(`(?i)N[úu]mero\s+(?:de\s+)?factura[:\s]+([A-Z0-9-]+)`), 1},
		{regexp.MustCompile(`(?i)Factura\s+n[úu]m\.\s*([A-Z0-9-]+)`), 1},
		{regexp.MustCompile(`(?i)Invoice\s+(?:number|#)[:\s]+([A-Z0-9-]+)`), 1},
	},
	suppliers:   []string{"Endesa", "Iberdrola", "Naturgy", "Repsol", "Cepsa", "Gas Natural"},
	datePattern: regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})`),
}

// Default returns the built-in Spanish invoice extractor.
func Default() *Extractor {
	return defaultExtractor
}

// Extract runs the electricity, natural gas and fuel extractors in that order.
// Document-level supplier, invoice number and date are attached to every
// entry. A text with no match yields an empty slice.
func (x *Extractor) Extract(text string) []activity.RawActivityEntry {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	supplier := x.Supplier(text)
	invoice := x.InvoiceNumber(text)
	date := x.Date(text)

	var entries []activity.RawActivityEntry
	for _, ex := range x.extractions {
		usage, span, start, ok := firstPositive(ex.rules, text)
		if !ok {
			continue
		}

		e := activity.RawActivityEntry{
			Supplier:      activity.String(supplier),
			CategoryHint:  activity.String(string(ex.category(span))),
			Usage:         activity.Decimal(usage),
			Unit:          activity.String(ex.unit),
			InvoiceNumber: invoice,
			Date:          date,
		}
		if cost, ok := x.costNear(text, start); ok {
			e.Cost = activity.Decimal(cost)
		}
		entries = append(entries, e)
	}
	return entries
}

// Supplier returns the first known brand (in list order) found anywhere in
// the text, or UnknownSupplier.
func (x *Extractor) Supplier(text string) string {
	lower := strings.ToLower(text)
	for _, s := range x.suppliers {
		if strings.Contains(lower, strings.ToLower(s)) {
			return s
		}
	}
	return UnknownSupplier
}

// InvoiceNumber returns the first labeled invoice number, if any.
func (x *Extractor) InvoiceNumber(text string) *string {
	for _, r := range x.invoiceRules {
		if m := r.pattern.FindStringSubmatch(text); m != nil {
			return activity.String(m[r.group])
		}
	}
	return nil
}

// Date returns the first DD/MM/YYYY or DD-MM-YYYY date in the text. Only the
// first candidate is considered; if it is not a real date the result is nil.
func (x *Extractor) Date(text string) *time.Time {
	m := x.datePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	t, ok := locale.Date(year, month, day)
	if !ok {
		return nil
	}
	return &t
}

// firstPositive walks the rules in order and, within a rule, its matches in
// text order, returning the first quantity greater than zero together with the
// matched span and its byte offset.
func firstPositive(rules []rule, text string) (decimal.Decimal, string, int, bool) {
	for _, r := range rules {
		for _, loc := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			gs, ge := loc[2*r.group], loc[2*r.group+1]
			if gs < 0 {
				continue
			}
			v, ok := locale.ParseNumber(text[gs:ge])
			if ok && v.IsPositive() {
				return v, text[loc[0]:loc[1]], loc[0], true
			}
		}
	}
	return decimal.Zero, "", 0, false
}

// costNear searches CostWindow characters either side of the byte offset pos.
func (x *Extractor) costNear(text string, pos int) (decimal.Decimal, bool) {
	runes := []rune(text)
	center := utf8.RuneCountInString(text[:pos])
	from := max(0, center-CostWindow)
	to := min(len(runes), center+CostWindow)
	snippet := string(runes[from:to])

	for _, r := range x.costRules {
		for _, m := range r.pattern.FindAllStringSubmatch(snippet, -1) {
			v, ok := locale.ParseNumber(m[r.group])
			if ok && v.IsPositive() {
				return v, true
			}
		}
	}
	return decimal.Zero, false
}
