// Package core provides money parsing and handling utilities.
//
// Amounts are stored as minor units at a fixed scale of two. Parsing and
// percentage arithmetic go through shopspring/decimal so no value ever passes
// through a float before it is rounded.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

var (
	hundred   = decimal.NewFromInt(100)
	maxMinors = decimal.NewFromInt(math.MaxInt64)
)

// ParseDecimalToCents converts a positive decimal string to minor units.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if m.Cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return m.Cents, nil
}

// ParseMoney parses a signed decimal string. Used for opening balances,
// which may be negative.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, &ValidationError{Field: "amount", Reason: "cannot be empty"}
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &ValidationError{Field: "amount", Reason: "not a decimal number"}
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d to minor units. Values whose minor-unit magnitude
// does not fit an int64 fail with ErrAmountOutOfRange.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	minors := d.Round(moneyScale).Shift(moneyScale)
	if minors.Abs().GreaterThanOrEqual(maxMinors) {
		return Money{}, ErrAmountOutOfRange
	}
	return Money{Cents: minors.IntPart()}, nil
}

// Decimal returns the major-unit value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -moneyScale)
}

// Float64 is for plotting only; arithmetic stays on Cents.
func (m Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) String() string {
	return m.Decimal().StringFixed(moneyScale)
}

// MarshalJSON renders m as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*m = Money{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &ValidationError{Field: "amount", Reason: "not a decimal number"}
		}
		raw = s
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Percent returns part/whole*100 rounded to places decimals, 0 when whole is
// not positive.
func Percent(part, whole Money, places int32) float64 {
	if whole.Cents <= 0 {
		return 0
	}
	p := decimal.NewFromInt(part.Cents).
		Div(decimal.NewFromInt(whole.Cents)).
		Mul(hundred).
		Round(places)
	return p.InexactFloat64()
}
