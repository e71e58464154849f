// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer minor units (two decimal places) so sums never
// drift; decimal text is parsed and printed with shopspring/decimal.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

// maxMinor caps amounts well below the int64 range so SQL sums cannot overflow.
const maxMinor = int64(1e15)

// Money is a currency-agnostic amount in minor units.
type Money struct {
	Minor int64
}

// ParseAmount converts a decimal string to Money.
//
// It accepts dot (12.34) or a single decimal comma (12,34). Values must be
// positive and carry at most two fractional digits; anything finer is rejected
// rather than rounded so the stored value equals the input.
//
// Examples:
//
//	ParseAmount("1000")   -> Money{100000}, nil
//	ParseAmount("12,5")   -> Money{1250}, nil
//	ParseAmount("12.345") -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d)
}

// FromDecimal converts d to Money, applying the same rules as ParseAmount.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(moneyScale)) {
		return Money{}, ErrInvalidAmount
	}
	shifted := d.Shift(moneyScale)
	if shifted.GreaterThan(decimal.NewFromInt(maxMinor)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Minor: shifted.IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Minor <= 0 || m.Minor > maxMinor {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) IsZero() bool { return m.Minor == 0 }

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Minor, -moneyScale)
}

// String prints the shortest exact decimal form ("1000", "12.5").
func (m Money) String() string {
	return m.Decimal().String()
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	v, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
