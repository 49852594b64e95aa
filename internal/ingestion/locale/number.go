// Package locale parses numbers and dates written in mixed Spanish and
// English conventions.
package locale

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumber parses plain numerics ("1234.56") and Spanish-formatted figures
// ("1.234,56 €"). Currency symbols, spaces and any other noise are dropped.
//
// Separator rules:
//   - both '.' and ',' present: the one that appears last is the decimal mark
//   - only ',': a single comma is decimal, several are thousands groups
//   - only '.': several dots are thousands groups; a single dot is a thousands
//     group when it splits 1-3 leading digits from exactly three trailing ones
//     ("1.500"), otherwise it is the decimal mark ("0.233", "12.5")
//
// The second return value is false when nothing numeric is left.
func ParseNumber(raw string) (decimal.Decimal, bool) {
	var b strings.Builder
	negative := false
	seenDigit := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune(r)
		case r == '-' && !seenDigit && b.Len() == 0:
			negative = true
		}
	}

	kept := b.String()
	if !seenDigit {
		return decimal.Zero, false
	}

	canonical := normalizeSeparators(kept, decimalMark(kept))
	if canonical == "" || canonical == "." {
		return decimal.Zero, false
	}
	if negative {
		canonical = "-" + canonical
	}

	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// decimalMark picks the rune acting as decimal separator, or 0 when every
// separator is a thousands group.
func decimalMark(s string) rune {
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			return ','
		}
		return '.'
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			return ','
		}
		return 0
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || isThousandsGroup(s, lastDot) {
			return 0
		}
		return '.'
	}
	return 0
}

func isThousandsGroup(s string, dot int) bool {
	head, tail := s[:dot], s[dot+1:]
	if len(tail) != 3 || len(head) == 0 || len(head) > 3 {
		return false
	}
	return head[0] != '0'
}

// normalizeSeparators keeps digits, turns the last occurrence of mark into '.'
// and removes every other separator.
func normalizeSeparators(s string, mark rune) string {
	last := -1
	if mark != 0 {
		last = strings.LastIndexByte(s, byte(mark))
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case i == last:
			b.WriteByte('.')
		}
	}
	return b.String()
}
