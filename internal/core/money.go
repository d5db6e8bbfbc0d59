// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from form input
// and formatting them for display. Amounts are decimals with two fraction
// digits; floats are never used for arithmetic.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative amount with two fraction digits.
type Money struct {
	decimal.Decimal
}

var ErrNegativeAmount = fmt.Errorf("%w: amount must not be negative", ErrValidation)
var ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)

// NewMoney rounds d to cents.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(2)}
}

// MustMoney parses s and panics on error. Intended for tests and seeds.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a decimal string to Money with half-up rounding to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional trailing currency sign. Zero is a valid amount; negative values
// are rejected.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,345") -> 12.35
//	ParseMoney("0")      -> 0.00
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "€"))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Thousands separators are not accepted together with a decimal comma.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return NewMoney(d), nil
}

func (m Money) Validate() error {
	if m.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Add returns m+o.
func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

// Plain returns the amount with exactly two fraction digits ("42.50").
func (m Money) Plain() string {
	return m.StringFixed(2)
}

// Format renders the amount for display with thousands separators ("1,234.50 €").
func (m Money) Format() string {
	s := m.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac + " €"
	if neg {
		return "-" + out
	}
	return out
}
