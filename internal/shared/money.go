package shared

import "github.com/shopspring/decimal"

// MoneyPlaces is the scale used when rounding currency amounts.
const MoneyPlaces = 2

// QuantityPlaces is the scale stored for stock and line quantities.
const QuantityPlaces = 3

// WithinPlaces reports whether d carries no more than places fractional digits.
func WithinPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// RoundMoney rounds half away from zero to currency precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Percent returns part/whole*100 rounded to two places, zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2)
}
