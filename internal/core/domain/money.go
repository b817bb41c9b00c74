package domain

import "github.com/shopspring/decimal"

func init() {
	// Prices travel as JSON numbers, the storefront client does arithmetic on them.
	decimal.MarshalJSONWithoutQuotes = true
}

// Money is an amount in taka.
type Money = decimal.Decimal

// Taka builds a Money from a whole taka amount.
func Taka(amount int64) Money {
	return decimal.NewFromInt(amount)
}

// WholePaisa reports whether m has no fraction below 0.01, the precision
// amounts are stored with.
func WholePaisa(m Money) bool {
	return m.Equal(m.Round(2))
}
