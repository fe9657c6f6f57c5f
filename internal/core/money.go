// Package core holds the domain types, calendar helpers and validation rules
// shared by every other package.
//
// This file contains amount parsing and the es-AR display formats used by
// the dashboard and the exports.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// ParseAmount parses a positive amount from user input.
//
// Both separators are accepted: "1234.5", "1234,5" and "1.234,50" all parse.
// When a string carries both '.' and ',' the last one is the decimal mark.
//
// Examples:
//
//	ParseAmount("12,34")    -> 12.34
//	ParseAmount("1.234,50") -> 1234.5
//	ParseAmount("-3")       -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount the way the dashboard shows it: ARS with no
// decimals ("$ 1.234"), USD with two ("USD 1.234,50").
func FormatAmount(amount decimal.Decimal, c Currency) string {
	if c == USD {
		return "USD " + groupThousands(amount.StringFixed(2))
	}
	return "$ " + groupThousands(amount.StringFixed(0))
}

// FormatCompact renders the short form used by chart labels. Zero renders as
// the empty string.
func FormatCompact(amount decimal.Decimal, c Currency) string {
	if amount.IsZero() {
		return ""
	}
	if c == USD {
		return "U$" + amount.StringFixed(0)
	}
	switch {
	case amount.GreaterThanOrEqual(million):
		s := amount.Div(million).StringFixed(1)
		return "$ " + strings.Replace(s, ".0", "", 1) + "M"
	case amount.GreaterThanOrEqual(thousand):
		return "$ " + amount.Div(thousand).StringFixed(0) + "k"
	default:
		return "$ " + amount.StringFixed(0)
	}
}

// groupThousands turns a plain "1234567.89" into es-AR "1.234.567,89".
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
