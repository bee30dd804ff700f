// Package numeric provides tolerant coercion and display formatting for the
// loosely typed numeric values that flow out of the listing store. Failure is
// always signaled by the ok result, never by a panic or error.
package numeric

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is rendered in place of a missing currency value.
const Placeholder = "—"

var printer = message.NewPrinter(language.AmericanEnglish)

// ToNumber coerces an arbitrary value to a finite float64. Native numeric
// kinds are returned as-is when finite. Strings are stripped of every
// character that is not a digit, '.', or '-' before parsing. Anything else,
// or a value that is NaN or infinite, yields ok=false.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		cleaned := strings.Map(keepNumeric, n)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	}
	return 0, false
}

func keepNumeric(r rune) rune {
	if (r >= '0' && r <= '9') || r == '.' || r == '-' {
		return r
	}
	return -1
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatCurrency renders a whole-dollar USD amount, or the placeholder glyph
// when the value is absent.
func FormatCurrency(n *float64) string {
	if n == nil {
		return Placeholder
	}
	return printer.Sprintf("$%v", number.Decimal(*n, number.MaxFractionDigits(0)))
}

// FormatNumber renders a grouped decimal, or "0" when the value is absent.
func FormatNumber(n *float64) string {
	if n == nil {
		return "0"
	}
	return printer.Sprintf("%v", number.Decimal(*n))
}

// FormatPercent renders a value already scaled 0-100 as a percentage with
// the given number of fraction digits. Absent values render as a zero
// percentage with the same precision.
func FormatPercent(n *float64, fractionDigits int) string {
	v := 0.0
	if n != nil {
		v = *n
	}
	return printer.Sprintf("%v", number.Percent(v/100,
		number.MinFractionDigits(fractionDigits),
		number.MaxFractionDigits(fractionDigits),
	))
}
