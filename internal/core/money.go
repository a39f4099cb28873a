// Package core provides money parsing and handling utilities.
//
// Amounts follow the es-AR convention used in the spreadsheet: dot as the
// thousands separator and comma as the decimal separator ("1.234,56").
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var thousandsGrouped = regexp.MustCompile(`^-?[1-9]\d{0,2}(\.\d{3})+$`)

// ParseAmount converts a locale-formatted amount into a decimal.
//
// It accepts both comma (1500,50) and dot (1500.50) decimal separators. When a
// comma is present every dot is treated as a thousands separator. Without a
// comma, dots that split the digits into groups of three ("50.000") are
// grouping, so whatever FormatPesos prints parses back to the same value;
// any other single dot is a decimal point. A leading "$" is ignored.
//
// Examples:
//
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("1500,5")   -> 1500.5
//	ParseAmount("1500.50")  -> 1500.5
//	ParseAmount("$50.000")   -> 50000
//	ParseAmount("1.250.000") -> 1250000
//	ParseAmount("0.5")       -> 0.5
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	switch {
	case strings.Contains(s, ","):
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1, thousandsGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	digits := strings.TrimPrefix(s, "-")
	if digits == "" || digits == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range digits {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParsePositiveAmount is ParseAmount restricted to values greater than zero,
// which is what every amount prompt in the chat accepts.
func ParsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatPesos renders an amount as "$1.234,56". Whole amounts drop the
// decimal part ("$50.000").
func FormatPesos(d decimal.Decimal) string {
	d = d.Round(2)
	neg := d.IsNegative()
	if neg {
		d = d.Neg()
	}

	fixed := d.StringFixed(2)
	intDigits, fracDigits := fixed[:len(fixed)-3], fixed[len(fixed)-2:]

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	b.WriteString(groupThousands(intDigits))
	if fracDigits != "00" {
		b.WriteByte(',')
		b.WriteString(fracDigits)
	}
	return b.String()
}

// FormatFixed renders an amount with exactly two decimals and no grouping,
// e.g. the implied exchange rate "1000.00".
func FormatFixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
