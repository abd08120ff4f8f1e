package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var months = map[string]time.Month{
	"enero": time.January, "ene": time.January, "january": time.January, "jan": time.January,
	"febrero": time.February, "feb": time.February, "february": time.February,
	"marzo": time.March, "mar": time.March, "march": time.March,
	"abril": time.April, "abr": time.April, "april": time.April, "apr": time.April,
	"mayo": time.May, "may": time.May,
	"junio": time.June, "jun": time.June, "june": time.June,
	"julio": time.July, "jul": time.July, "july": time.July,
	"agosto": time.August, "ago": time.August, "august": time.August, "aug": time.August,
	"septiembre": time.September, "setiembre": time.September, "sep": time.September,
	"sept": time.September, "set": time.September, "september": time.September,
	"octubre": time.October, "oct": time.October, "october": time.October,
	"noviembre": time.November, "nov": time.November, "november": time.November,
	"diciembre": time.December, "dic": time.December, "december": time.December, "dec": time.December,
}

var (
	isoDateRe     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4}|\d{2})\b`)
	dayMonthRe    = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th|º)?\s+(?:de\s+)?([a-z]{3,})\.?,?\s+(?:de\s+|del\s+)?(\d{4})\b`)
	monthDayRe    = regexp.MustCompile(`\b([a-z]{3,})\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)

	dayRangeRe   = regexp.MustCompile(`\b(\d{1,2})\s*(?:-|–|—|al|a)\s*(\d{1,2})\s+(?:de\s+)?([a-z]{3,})\.?,?\s+(?:de\s+)?(\d{4})\b`)
	monthRangeRe = regexp.MustCompile(`\b([a-z]{3,})\.?\s+(\d{1,2})\s*(?:-|–|—)\s*(\d{1,2}),?\s+(\d{4})\b`)
)

// dateLayout selects how purely numeric dates are read.
type dateLayout int

const (
	dayFirst dateLayout = iota
	monthFirst
)

// parseDate finds the first date in s. Dates are returned at UTC midnight.
func parseDate(s string, layout dateLayout) (time.Time, bool) {
	f := fold(s)

	if m := isoDateRe.FindStringSubmatch(f); m != nil {
		if t, ok := mkDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return t, true
		}
	}
	for _, m := range dayMonthRe.FindAllStringSubmatch(f, -1) {
		if mon, ok := lookupMonth(m[2]); ok {
			if t, ok := mkDate(atoi(m[3]), int(mon), atoi(m[1])); ok {
				return t, true
			}
		}
	}
	for _, m := range monthDayRe.FindAllStringSubmatch(f, -1) {
		if mon, ok := lookupMonth(m[1]); ok {
			if t, ok := mkDate(atoi(m[3]), int(mon), atoi(m[2])); ok {
				return t, true
			}
		}
	}
	if m := numericDateRe.FindStringSubmatch(f); m != nil {
		a, b, y := atoi(m[1]), atoi(m[2]), atoi(m[3])
		if y < 100 {
			y += 2000
		}
		day, month := a, b
		if layout == monthFirst {
			day, month = b, a
		}
		// an impossible month means the other order was used
		if month > 12 && day <= 12 {
			day, month = month, day
		}
		if t, ok := mkDate(y, month, day); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDateRange reads "1-3 dic 2025" or "Dec 1 - 3, 2025", and otherwise
// the first two dates in s.
func parseDateRange(s string, layout dateLayout) (time.Time, time.Time, bool) {
	f := fold(s)
	if m := dayRangeRe.FindStringSubmatch(f); m != nil {
		if mon, ok := lookupMonth(m[3]); ok {
			in, ok1 := mkDate(atoi(m[4]), int(mon), atoi(m[1]))
			out, ok2 := mkDate(atoi(m[4]), int(mon), atoi(m[2]))
			if ok1 && ok2 && in.Before(out) {
				return in, out, true
			}
		}
	}
	if m := monthRangeRe.FindStringSubmatch(f); m != nil {
		if mon, ok := lookupMonth(m[1]); ok {
			in, ok1 := mkDate(atoi(m[4]), int(mon), atoi(m[2]))
			out, ok2 := mkDate(atoi(m[4]), int(mon), atoi(m[3]))
			if ok1 && ok2 && in.Before(out) {
				return in, out, true
			}
		}
	}
	for _, sep := range []string{" - ", " – ", " — ", " al ", " to ", " hasta "} {
		if i := strings.Index(f, sep); i > 0 {
			in, ok1 := parseDate(f[:i], layout)
			out, ok2 := parseDate(f[i+len(sep):], layout)
			if ok1 && ok2 && in.Before(out) {
				return in, out, true
			}
		}
	}
	return time.Time{}, time.Time{}, false
}

func lookupMonth(word string) (time.Month, bool) {
	m, ok := months[strings.TrimSuffix(word, ".")]
	return m, ok
}

func mkDate(year, month, day int) (time.Time, bool) {
	if year < 2000 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
