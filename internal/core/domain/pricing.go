package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountPercent returns round((original - sale) / original * 100).
// A non-positive original price yields 0.
func DiscountPercent(original, sale Money) int {
	if !original.IsPositive() {
		return 0
	}
	pct := original.Sub(sale).Div(original).Mul(hundred).Round(0)
	return int(pct.IntPart())
}

// Savings is how much cheaper sale is than original, never negative.
func Savings(original, sale Money) Money {
	diff := original.Sub(sale)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}
