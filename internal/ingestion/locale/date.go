package locale

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order; the first one that parses wins.
// Non-padded layout elements accept both "3" and "03".
var dateLayouts = []string{
	"2/1/2006", // DD/MM/YYYY
	"2006-1-2", // YYYY-MM-DD
	"2-1-2006", // DD-MM-YYYY
	"2.1.2006", // DD.MM.YYYY
}

var spanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

var spanishDatePattern = regexp.MustCompile(`(?i)^(\d{1,2})\s+de\s+(\p{L}+)\s+(?:de(?:l)?\s+)?(\d{4})$`)

// ParseDate parses a calendar date. The result is midnight UTC.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if t, ok := parseLayouts(s); ok {
		return t, true
	}
	if t, ok := ParseSpanishMonthDate(s); ok {
		return t, true
	}

	// Spreadsheet exports often append a time of day ("15/03/2024 0:00").
	if fields := strings.Fields(s); len(fields) > 1 {
		return parseLayouts(fields[0])
	}
	return time.Time{}, false
}

// ParseSpanishMonthDate parses long-form dates such as "15 de marzo de 2024".
func ParseSpanishMonthDate(raw string) (time.Time, bool) {
	m := spanishDatePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, false
	}
	month, ok := spanishMonths[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	return Date(year, int(month), day)
}

// Date builds a UTC calendar date and rejects values that would overflow,
// e.g. 31/02.
func Date(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func parseLayouts(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
