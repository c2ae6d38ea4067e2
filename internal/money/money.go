// Package money holds the fixed-point currency helpers. Every cost in the
// system is stored and compared as integer cents; floating-point currency
// arithmetic is not permitted anywhere in the engine.
package money

import "github.com/shopspring/decimal"

// RoundHalfUpCents converts a fractional cent amount into integer cents.
// Ties round away from zero: 2.5 → 3, -2.5 → -3.
func RoundHalfUpCents(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}

// Cents returns d as a decimal for further fixed-point arithmetic.
func Cents(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
