package parser

import (
	"regexp"
	"strings"
)

var (
	isoCurrencyRe = regexp.MustCompile(`\b(EUR|USD|COP|MXN|ARS|CLP|PEN|BRL|GBP|UYU)\b`)
	numberRe      = regexp.MustCompile(`\d[\d.,\s]*\d|\d`)
	leadingIntRe  = regexp.MustCompile(`\d+`)
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"R$", "BRL"},
	{"€", "EUR"},
	{"£", "GBP"},
}

// maxAmountDigits keeps the minor-unit value inside int64.
const maxAmountDigits = 17

// parseAmount reads a money value into minor units. Both "1.234,56" and
// "1,234.56" are understood; a single separator followed by exactly three
// digits is a thousands separator ("$ 150.000" is 150000). A bare "$" yields
// no currency because it is ambiguous across markets.
func parseAmount(s string) (int64, string, bool) {
	currency := ""
	if m := isoCurrencyRe.FindStringSubmatch(strings.ToUpper(s)); m != nil {
		currency = m[1]
	} else {
		for _, cs := range currencySymbols {
			if strings.Contains(s, cs.symbol) {
				currency = cs.code
				break
			}
		}
	}

	raw := numberRe.FindString(s)
	if raw == "" {
		return 0, currency, false
	}
	raw = strings.Join(strings.Fields(raw), "")

	intPart, fracPart := splitDecimal(raw)
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) == 1 {
		fracPart += "0"
	}
	if len(fracPart) > 2 {
		fracPart = fracPart[:2]
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	digits := strings.TrimLeft(intPart+fracPart, "0")
	if len(digits) > maxAmountDigits {
		return 0, currency, false
	}
	var cents int64
	for _, r := range digits {
		cents = cents*10 + int64(r-'0')
	}
	return cents, currency, true
}

func splitDecimal(raw string) (string, string) {
	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")
	if lastDot >= 0 && lastComma >= 0 {
		sep := lastDot
		if lastComma > lastDot {
			sep = lastComma
		}
		return raw[:sep], raw[sep+1:]
	}
	sep := lastDot
	if lastComma >= 0 {
		sep = lastComma
	}
	if sep < 0 {
		return raw, ""
	}
	sepChar := raw[sep : sep+1]
	frac := raw[sep+1:]
	if strings.Count(raw, sepChar) > 1 || len(frac) == 3 {
		return raw, ""
	}
	return raw[:sep], frac
}

// leadingInt returns the first integer in s, or 0.
func leadingInt(s string) int {
	return atoi(leadingIntRe.FindString(s))
}
