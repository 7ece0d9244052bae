// Package units holds the pure unit arithmetic shared by the live and mock
// data sources. Everything here is total: bad input resolves to a documented
// fallback instead of an error.
package units

import (
	"math"
	"strings"
)

// EnergyToWh converts an energy reading to Wh. The unit is compared
// case-insensitively; "kWh" multiplies by 1000 and anything else (including
// an empty or unrecognized unit) is treated as already being Wh.
func EnergyToWh(value float64, unit string) float64 {
	if strings.ToUpper(unit) == "KWH" {
		return value * 1000
	}
	return value
}

// WhToKwh converts watt-hours to kilowatt-hours.
func WhToKwh(energyWh float64) float64 {
	return energyWh / 1000
}

// WToKw converts watts to kilowatts.
func WToKw(powerW float64) float64 {
	return powerW / 1000
}

// QuarterHourWhToAverageKw converts a quarter-hour energy reading in Wh to
// the average power in kW over that 15 minute interval:
// Wh / 0.25h = 4*Wh in W, then /1000 for kW, so divide by 250.
func QuarterHourWhToAverageKw(energyWh float64) float64 {
	return energyWh / 250
}

// Round rounds v to the given number of decimal places. Non-finite input
// falls back to 0 before rounding so model fields are always finite.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	factor := math.Pow10(places)
	return math.Round(v*factor) / factor
}
