package utils

import "github.com/shopspring/decimal"

const moneyPlaces = 2

// RoundMoney rounds to whole cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Money converts a float read from config or a form into a rounded amount.
func Money(f float64) decimal.Decimal {
	return RoundMoney(decimal.NewFromFloat(f))
}

// ApplyMarkup returns the customer price for a base price.
func ApplyMarkup(base decimal.Decimal, multiplier float64) decimal.Decimal {
	return RoundMoney(base.Mul(decimal.NewFromFloat(multiplier)))
}
