package forecast

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// tariffs is the price per kWh by meter capacity.
var tariffs = map[string]decimal.Decimal{
	"450VA":  decimal.NewFromInt(415),
	"900VA":  decimal.NewFromInt(1352),
	"1300VA": decimal.NewFromInt(1444),
	"2200VA": decimal.NewFromInt(1444),
}

// MeterTypes lists the accepted meter types, smallest first.
func MeterTypes() []string {
	return []string{"450VA", "900VA", "1300VA", "2200VA"}
}

// Tariff returns the price per kWh for meterType.
func Tariff(meterType string) (decimal.Decimal, error) {
	t, ok := tariffs[meterType]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMeterType, meterType)
	}
	return t, nil
}

// HourlyCost converts an average draw in watts into the cost of one hour at
// the meter's tariff, rounded to two decimal places.
func HourlyCost(watts float64, meterType string) (decimal.Decimal, error) {
	t, err := Tariff(meterType)
	if err != nil {
		return decimal.Zero, err
	}
	kw := decimal.NewFromFloat(watts).Div(decimal.NewFromInt(1000))
	return kw.Mul(t).Round(2), nil
}
