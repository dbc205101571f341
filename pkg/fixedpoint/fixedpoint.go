// Package fixedpoint converts currency amounts between their decimal
// representation and integer minor units. All prize splitting happens in
// minor units so that division never leaves the integers.
package fixedpoint

import "github.com/shopspring/decimal"

// Decimals is the number of decimal places of the minor unit (10^-6 of the
// display currency, the precision of USDT-style jettons).
const Decimals = 6

// ToMinor converts an amount to integer minor units, flooring any precision
// beyond Decimals. Flooring only ever happens at this conversion boundary.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(Decimals).Floor().IntPart()
}

// FromMinor converts integer minor units back to a decimal amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-Decimals)
}

// Pct scales an amount by a percentage expressed as a decimal fraction
// (0.90 for 90%) and returns the result in minor units.
func Pct(amount decimal.Decimal, pct decimal.Decimal) int64 {
	return ToMinor(amount.Mul(pct))
}
