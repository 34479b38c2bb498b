// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and rendering cents as Colombian pesos.
package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) as the decimal separator.
// Thousands separators are rejected because "1.234" is ambiguous.
// Returns ErrInvalidAmount for invalid formats, negative values, or zero.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents (rounds up)
//	ParseAmount("85000")  -> 8500000 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Cents: d.Round(2).Shift(2).IntPart()}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Pesos returns the value as a float64 for display purposes.
// Use Cents for calculations.
func (m Money) Pesos() float64 {
	return float64(m.Cents) / 100.0
}

// Decimal returns the exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// FormatCOP renders cents as Colombian pesos without fractions, e.g. "$ 1.234.567".
func FormatCOP(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	pesos := decimal.New(cents, -2).Round(0).IntPart()
	digits := strconv.FormatInt(pesos, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$ " + b.String()
	}
	return "$ " + b.String()
}

// MarshalJSON writes the amount as a plain JSON number of pesos.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. Zero is allowed
// here; Validate enforces positivity where it matters.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return ErrInvalidAmount
		}
		raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return ErrInvalidAmount
	}
	*m = Money{Cents: d.Round(2).Shift(2).IntPart()}
	return nil
}
