// Package category normalizes and infers canonical emission categories,
// units and GHG Protocol scopes.
package category

import (
	"strings"
)

// Category is one of the canonical activity types used as the factor join key.
type Category string

const (
	Electricity      Category = "electricity"
	NaturalGas       Category = "natural_gas"
	Diesel           Category = "diesel"
	Petrol           Category = "petrol"
	FreightTransport Category = "freight_transport"
	PurchasedGoods   Category = "purchased_goods"
)

// Canonical lists every canonical category.
var Canonical = []Category{Electricity, NaturalGas, Diesel, Petrol, FreightTransport, PurchasedGoods}

const defaultScope = 3

// Resolver holds the lookup tables. It is built once and never mutated.
type Resolver struct {
	canonical map[string]Category
	synonyms  map[string]Category
	units     map[string]string
	scopes    map[Category]int
	rules     []inferenceRule
}

// inferenceRule is one step of the unit+supplier inference chain.
type inferenceRule struct {
	name  string
	match func(unit, supplier string) (Category, bool)
}

var (
	electricityBrands = []string{"endesa", "iberdrola", "naturgy", "eléctrica", "electrica", "electric"}
	dieselMarkers     = []string{"diesel", "gasóleo", "gasoleo", "gasoil"}
	electricityUnits  = set("kwh", "mwh")
	gasUnits          = set("m3", "m³")
	litreUnits        = set("l", "litro", "litros", "liter", "liters", "litre", "litres")
	currencyUnits     = set("eur", "euro", "euros", "€", "usd", "dollar", "dollars", "$")
)

var defaultResolver = &Resolver{
	canonical: func() map[string]Category {
		m := make(map[string]Category, len(Canonical))
		for _, c := range Canonical {
			m[string(c)] = c
		}
		return m
	}(),
	synonyms: map[string]Category{
		"electricidad": Electricity,
		"electric":     Electricity,
		"energia":      Electricity,
		"energía":      Electricity,
		"luz":          Electricity,
		"gas":          NaturalGas,
		"gas_natural":  NaturalGas,
		"gas natural":  NaturalGas,
		"gasnatural":   NaturalGas,
		"gasoleo":      Diesel,
		"gasóleo":      Diesel,
		"gasoil":       Diesel,
		"gasolina":     Petrol,
		"transporte":   FreightTransport,
		"flete":        FreightTransport,
		"compras":      PurchasedGoods,
		"materiales":   PurchasedGoods,
	},
	units: map[string]string{
		"kwh":      "kWh",
		"mwh":      "MWh",
		"m3":       "m3",
		"m³":       "m3",
		"l":        "L",
		"litro":    "L",
		"litros":   "L",
		"liter":    "L",
		"liters":   "L",
		"tonne_km": "tonne_km",
		"eur":      "EUR",
		"euro":     "EUR",
		"€":        "EUR",
	},
	scopes: map[Category]int{
		NaturalGas:       1,
		Diesel:           1,
		Petrol:           1,
		Electricity:      2,
		FreightTransport: 3,
		PurchasedGoods:   3,
	},
	rules: []inferenceRule{
		{"electricity_unit", func(unit, _ string) (Category, bool) {
			return Electricity, electricityUnits[unit]
		}},
		{"electricity_brand", func(_, supplier string) (Category, bool) {
			return Electricity, containsAny(supplier, electricityBrands)
		}},
		{"gas_unit", func(unit, _ string) (Category, bool) {
			return NaturalGas, gasUnits[unit]
		}},
		{"gas_supplier", func(_, supplier string) (Category, bool) {
			return NaturalGas, strings.Contains(supplier, "gas")
		}},
		{"liquid_fuel", func(unit, supplier string) (Category, bool) {
			if !litreUnits[unit] {
				return "", false
			}
			if containsAny(supplier, dieselMarkers) {
				return Diesel, true
			}
			return Petrol, true
		}},
		{"freight", func(unit, _ string) (Category, bool) {
			return FreightTransport, strings.Contains(unit, "km") || strings.Contains(unit, "tonne")
		}},
		{"currency", func(unit, _ string) (Category, bool) {
			return PurchasedGoods, currencyUnits[unit]
		}},
	},
}

// Default returns the process-wide resolver.
func Default() *Resolver {
	return defaultResolver
}

// Normalize resolves a raw category. A present value is matched against the
// canonical names, then the Spanish synonym table; no inference is attempted
// for a present but unknown value. An absent or blank value falls back to Infer.
func (r *Resolver) Normalize(raw *string, unit, supplier string) (Category, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return r.Infer(unit, supplier)
	}

	key := strings.ToLower(strings.TrimSpace(*raw))
	if c, ok := r.canonical[key]; ok {
		return c, true
	}
	c, ok := r.synonyms[key]
	return c, ok
}

// Infer guesses a category from unit and supplier. Rules run top to bottom and
// the first match wins; the order is part of the contract.
func (r *Resolver) Infer(unit, supplier string) (Category, bool) {
	u := strings.ToLower(strings.TrimSpace(unit))
	s := strings.ToLower(supplier)
	for _, rule := range r.rules {
		if c, ok := rule.match(u, s); ok {
			return c, true
		}
	}
	return "", false
}

// InferenceRules returns the rule names in evaluation order.
func (r *Resolver) InferenceRules() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.name
	}
	return names
}

// NormalizeUnit maps known spellings to the unit used in the factor table.
// Unknown units come back exactly as given.
func (r *Resolver) NormalizeUnit(raw string) string {
	if u, ok := r.units[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return u
	}
	return raw
}

// Scope returns the GHG Protocol scope; unmapped categories are scope 3.
func (r *Resolver) Scope(c Category) int {
	if s, ok := r.scopes[c]; ok {
		return s
	}
	return defaultScope
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
