// Package currency converts invoice amounts to a USD reference value.
//
// The rates are static approximations; there is no live FX feed and no
// historical rate lookup.
package currency

import "github.com/shopspring/decimal"

var (
	inrPerUSD = decimal.NewFromInt(83)
	usdPerEUR = decimal.RequireFromString("1.08")
)

// ToUSD converts amount in the given currency to USD.
// Codes other than INR and EUR, including USD, are returned unchanged.
func ToUSD(amount float64, code string) float64 {
	d := decimal.NewFromFloat(amount)
	switch code {
	case "INR":
		return d.Div(inrPerUSD).InexactFloat64()
	case "EUR":
		return d.Mul(usdPerEUR).InexactFloat64()
	default:
		return amount
	}
}

// Sum adds amounts in decimal so that e.g. 0.1+0.2 yields 0.3.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.InexactFloat64()
}
