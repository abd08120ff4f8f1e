package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		layout dateLayout
		want   time.Time
		ok     bool
	}{
		{"2025-12-01", dayFirst, day(2025, time.December, 1), true},
		{"01/12/2025", dayFirst, day(2025, time.December, 1), true},
		{"12/01/2025", monthFirst, day(2025, time.December, 1), true},
		{"25/12/2025", monthFirst, day(2025, time.December, 25), true},
		{"1.12.25", dayFirst, day(2025, time.December, 1), true},
		{"1 de diciembre de 2025", dayFirst, day(2025, time.December, 1), true},
		{"lunes, 1 de diciembre de 2025 (desde las 14:00)", dayFirst, day(2025, time.December, 1), true},
		{"1 dic. 2025", dayFirst, day(2025, time.December, 1), true},
		{"sáb, 3 ene 2026", dayFirst, day(2026, time.January, 3), true},
		{"Dec 1, 2025", monthFirst, day(2025, time.December, 1), true},
		{"Monday, December 1st, 2025", monthFirst, day(2025, time.December, 1), true},
		{"1 September 2025", dayFirst, day(2025, time.September, 1), true},
		{"31/02/2025", dayFirst, time.Time{}, false},
		{"sin fecha", dayFirst, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDate(tt.in, tt.layout)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		in       string
		from, to time.Time
	}{
		{"1–3 dic. 2025", day(2025, time.December, 1), day(2025, time.December, 3)},
		{"del 1 al 3 de diciembre de 2025", day(2025, time.December, 1), day(2025, time.December, 3)},
		{"Dec 1 - 3, 2025", day(2025, time.December, 1), day(2025, time.December, 3)},
		{"2025-12-30 - 2026-01-02", day(2025, time.December, 30), day(2026, time.January, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			from, to, ok := parseDateRange(tt.in, dayFirst)
			assert.True(t, ok)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		cents    int64
		currency string
	}{
		{"COP 180.000", 18000000, "COP"},
		{"$ 150.000", 15000000, ""},
		{"€ 45,50", 4550, "EUR"},
		{"1.234,56 €", 123456, "EUR"},
		{"USD 1,234.56", 123456, "USD"},
		{"US$ 99", 9900, "USD"},
		{"EUR 54.00", 5400, "EUR"},
		{"1.500.000 COP", 150000000, "COP"},
		{"£12.5", 1250, "GBP"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cents, currency, ok := parseAmount(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.cents, cents)
			assert.Equal(t, tt.currency, currency)
		})
	}

	_, _, ok := parseAmount("gratis")
	assert.False(t, ok)
}

func TestParseAmount_DigitLimit(t *testing.T) {
	cents, _, ok := parseAmount("COP 999999999999999")
	assert.True(t, ok)
	assert.Equal(t, int64(99999999999999900), cents)

	cents, _, ok = parseAmount("COP 000000000000000000012,50")
	assert.True(t, ok)
	assert.Equal(t, int64(1250), cents)

	for _, in := range []string{
		"COP 9999999999999999",
		"USD 92233720368547758.07",
		"COP 184467440737095516160",
	} {
		_, _, ok := parseAmount(in)
		assert.False(t, ok, in)
	}
}

func TestHTMLToText(t *testing.T) {
	src := `<html><head><title>x</title><script>var a = 1;</script></head>
<body><div>Hola&nbsp;<b>Juan</b></div><table><tr><th>Guest</th><td>Ana &amp; Luis</td></tr></table>
<p>Line<br>break</p></body></html>`

	assert.Equal(t, "Hola Juan\nGuest\tAna & Luis\nLine\nbreak", htmlToText(src))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "numero de habitacion", fold("Número de Habitación"))
	assert.Equal(t, "huesped", fold("HUÉSPED"))
}

func TestIndexFields(t *testing.T) {
	known := DefaultFormats()[4].knownLabels()
	body := "Nombre del huésped: Ana\nHabitación 1: Dorm A\nHabitación 2: Dorm B\nLlegada\n2025-12-01\nhttps://example.com/x"

	idx := indexFields(body, known)
	assert.Equal(t, []string{"Ana"}, idx["nombre del huesped"])
	assert.Equal(t, []string{"Dorm A", "Dorm B"}, idx["habitacion"])
	assert.Equal(t, []string{"2025-12-01"}, idx["llegada"])
	assert.NotContains(t, idx, "https")
}
