package money

import (
	"fmt"
	"math"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// Bps is a percentage expressed in basis points. 100% == 10000 bps.
type Bps = int32

// MaxBps is the basis-point representation of 100%.
const MaxBps Bps = 10000

// minorPerMajor is the number of minor units in one major unit.
const minorPerMajor = 100

// PercentToBps converts a human-entered percentage (0..100, fractions
// allowed) to basis points, rounding half away from zero.
func PercentToBps(percent float64) Bps {
	return Bps(math.Round(percent * 100))
}

// BpsToPercent converts basis points back to a percentage for display.
func BpsToPercent(bps Bps) float64 {
	return float64(bps) / 100
}

// Portion returns the share of amount described by bps, truncating toward
// zero. Truncation keeps repeated applications from ever exceeding the base.
func Portion(amount Money, bps Bps) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount * Money(bps)) / Money(MaxBps)
}

// Mul multiplies a unit price by a quantity.
func Mul(unitPrice Money, qty int64) Money {
	if qty <= 0 || unitPrice <= 0 {
		return 0
	}
	return unitPrice * qty
}

// ClampMin returns v bounded below by min.
func ClampMin(v, min Money) Money {
	if v < min {
		return min
	}
	return v
}

// ClampMax returns v bounded above by max.
func ClampMax(v, max Money) Money {
	if v > max {
		return max
	}
	return v
}

// Display formats a minor-unit amount as a 2-decimal major-unit string.
// Rounding happens only here, at the display boundary; internal arithmetic
// stays in exact integer minor units.
func Display(m Money) string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/minorPerMajor, m%minorPerMajor)
}

// FromMajor converts a major-unit float (e.g. user input) to minor units,
// rounding half away from zero.
func FromMajor(v float64) Money {
	return Money(math.Round(v * minorPerMajor))
}
