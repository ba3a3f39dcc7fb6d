// Package money holds the fixed-point currency type used across the ledger.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor-unit digits (paise for INR).
const Scale = 2

// Tolerance is the largest difference treated as zero by balance checks (0.01).
const Tolerance Money = 1

// Money is an amount in minor currency units.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromMinor wraps a minor-unit integer.
func FromMinor(minor int64) Money {
	return Money(minor)
}

// FromMajor builds an amount from whole currency units.
func FromMajor(major int64) Money {
	return Money(major * 100)
}

// FromDecimal converts a decimal major-unit value, rounding half away from zero
// to the nearest minor unit.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(Scale).Round(0).IntPart())
}

// Parse reads a major-unit string such as "1180.50".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Minor returns the raw minor-unit value.
func (m Money) Minor() int64 { return int64(m) }

// Decimal returns the major-unit decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

// Float64 is for ratios and charts only; never feed it back into the ledger.
func (m Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsPositive() bool { return m > 0 }

func (m Money) Neg() Money { return -m }

func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// MulDiv returns m*num/den rounded half away from zero to a minor unit.
func (m Money) MulDiv(num, den int64) Money {
	if den == 0 {
		panic("money: MulDiv by zero")
	}
	q := decimal.NewFromInt(int64(m)).Mul(decimal.NewFromInt(num)).DivRound(decimal.NewFromInt(den), 0)
	return Money(q.IntPart())
}

// Sum adds the supplied amounts.
func Sum(values ...Money) Money {
	var total Money
	for _, v := range values {
		total += v
	}
	return total
}

// WithinTolerance reports whether |a-b| < Tolerance.
func WithinTolerance(a, b Money) bool {
	return (a - b).Abs() < Tolerance
}

// MarshalJSON encodes the amount as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number in major units.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("money: decode %s: %w", string(data), err)
		}
		raw = num.String()
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
