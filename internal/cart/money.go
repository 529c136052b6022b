package cart

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// percentOf returns amount × percent / 100 in minor units, rounded half
// away from zero.
func percentOf(amount, percent int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(percent)).
		Div(hundred).
		Round(0).
		IntPart()
}

// withPercent returns amount × (100 + percent) / 100, rounded the same way.
func withPercent(amount, percent int64) int64 {
	return amount + percentOf(amount, percent)
}

// ceilDiv returns ⌈a / b⌉ for non-negative a and positive b.
func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
