package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency exponents per Stripe's documented special cases. Everything
// not listed uses two decimal places.
var (
	zeroDecimalCurrencies = map[string]struct{}{
		"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
		"KRW": {}, "MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
		"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
	}
	threeDecimalCurrencies = map[string]struct{}{
		"BHD": {}, "JOD": {}, "KWD": {}, "OMR": {}, "TND": {},
	}
)

func currencyExponent(currency string) int32 {
	code := strings.ToUpper(currency)
	if _, ok := zeroDecimalCurrencies[code]; ok {
		return 0
	}
	if _, ok := threeDecimalCurrencies[code]; ok {
		return 3
	}
	return 2
}

// MinorUnits converts a major-unit decimal amount into the processor's
// minor-unit integer form, rounding half away from zero at the currency
// exponent. 222.99 is 22299 in USD and 223 in JPY.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(currencyExponent(currency)).Round(0).IntPart()
}

// MajorUnits is the inverse conversion, for amounts reported back by the
// processor.
func MajorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(amount).Shift(-currencyExponent(currency))
}
