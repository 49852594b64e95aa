// Package factors holds the emission-factor reference table.
package factors

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Factor is one published conversion ratio, in kg CO2e per unit.
type Factor struct {
	Category string          `json:"category"`
	Unit     string          `json:"unit"`
	Factor   decimal.Decimal `json:"factor"`
	Source   string          `json:"source"`
	Year     int             `json:"year"`
	Region   string          `json:"region"`
	Notes    string          `json:"notes,omitempty"`
}

// Label is the human readable "<source> <year>" attribution.
func (f Factor) Label() string {
	return fmt.Sprintf("%s %d", f.Source, f.Year)
}

type lookupKey struct {
	category string
	unit     string
}

type rowKey struct {
	category string
	unit     string
	source   string
	year     int
}

// Table is an immutable snapshot of factors indexed by (category, unit).
type Table struct {
	rows  []Factor
	index map[lookupKey][]Factor
}

// NewTable validates rows and builds the lookup index. (category, unit,
// source, year) must be unique.
func NewTable(rows []Factor) (*Table, error) {
	seen := make(map[rowKey]struct{}, len(rows))
	index := make(map[lookupKey][]Factor)

	for i, f := range rows {
		if f.Category == "" || f.Unit == "" || f.Source == "" {
			return nil, fmt.Errorf("factor %d: category, unit and source are required", i)
		}
		if f.Year <= 0 {
			return nil, fmt.Errorf("factor %d (%s/%s): invalid year %d", i, f.Category, f.Unit, f.Year)
		}
		if f.Factor.IsNegative() {
			return nil, fmt.Errorf("factor %d (%s/%s): negative factor %s", i, f.Category, f.Unit, f.Factor)
		}

		rk := rowKey{f.Category, f.Unit, f.Source, f.Year}
		if _, dup := seen[rk]; dup {
			return nil, fmt.Errorf("duplicate factor %s/%s %s %d", f.Category, f.Unit, f.Source, f.Year)
		}
		seen[rk] = struct{}{}

		lk := lookupKey{f.Category, f.Unit}
		index[lk] = append(index[lk], f)
	}

	// Newest year first; a same-year tie goes to the alphabetically first source.
	for _, candidates := range index {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Year != candidates[j].Year {
				return candidates[i].Year > candidates[j].Year
			}
			return candidates[i].Source < candidates[j].Source
		})
	}

	copied := make([]Factor, len(rows))
	copy(copied, rows)
	return &Table{rows: copied, index: index}, nil
}

// Lookup returns the factor with the maximum year for (category, unit).
func (t *Table) Lookup(category, unit string) (Factor, bool) {
	if t == nil {
		return Factor{}, false
	}
	candidates := t.index[lookupKey{category, unit}]
	if len(candidates) == 0 {
		return Factor{}, false
	}
	return candidates[0], true
}

// Candidates returns every factor for (category, unit) in resolution order.
func (t *Table) Candidates(category, unit string) []Factor {
	if t == nil {
		return nil
	}
	candidates := t.index[lookupKey{category, unit}]
	out := make([]Factor, len(candidates))
	copy(out, candidates)
	return out
}

// All returns a copy of every row in load order.
func (t *Table) All() []Factor {
	if t == nil {
		return nil
	}
	out := make([]Factor, len(t.rows))
	copy(out, t.rows)
	return out
}

// Len is the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Store publishes the current table. Readers take a snapshot once per run;
// a refresh replaces the whole table.
type Store struct {
	current atomic.Pointer[Table]
}

// NewStore creates a store seeded with t (which may be nil).
func NewStore(t *Table) *Store {
	s := &Store{}
	if t == nil {
		t, _ = NewTable(nil)
	}
	s.current.Store(t)
	return s
}

// Snapshot returns the table in effect right now.
func (s *Store) Snapshot() *Table {
	return s.current.Load()
}

// Swap installs t and returns the previous table.
func (s *Store) Swap(t *Table) *Table {
	return s.current.Swap(t)
}
