package solar

import (
	"github.com/mikechalmers/bespokely-solar/pkg/types"
	"github.com/mikechalmers/bespokely-solar/pkg/units"
)

// powerPoints converts every intraday quarter-hour reading into the average
// power over its interval. A nil reading counts as 0 Wh.
func powerPoints(intraday series) []types.PowerPoint {
	points := make([]types.PowerPoint, 0, len(intraday.Points))
	for _, p := range intraday.Points {
		var energyWh float64
		if p.Value != nil {
			energyWh = units.EnergyToWh(*p.Value, intraday.Unit)
		}
		points = append(points, types.PowerPoint{
			Timestamp: p.Timestamp,
			PowerKw:   units.Round(units.QuarterHourWhToAverageKw(energyWh), 2),
		})
	}
	return points
}

// energyDays converts the daily history series, truncating timestamps to
// their date part.
func energyDays(daily series) []types.EnergyDay {
	days := make([]types.EnergyDay, 0, len(daily.Points))
	for _, p := range daily.Points {
		var energyWh float64
		if p.Value != nil {
			energyWh = units.EnergyToWh(*p.Value, daily.Unit)
		}
		date := p.Timestamp
		if len(date) > 10 {
			date = date[:10]
		}
		days = append(days, types.EnergyDay{
			Date:      date,
			EnergyKwh: units.Round(units.WhToKwh(energyWh), 1),
		})
	}
	return days
}

// buildModel reduces the normalized inputs to the canonical dashboard model.
//
// When the intraday series is empty, today's energy falls back to the
// overview's last-day total and the peak falls back to the overview's
// instantaneous power. The latter conflates "current" with "peak"; it's a
// best-effort approximation kept for parity with the upstream dashboard.
func buildModel(cfg Config, overview overviewData, intraday, daily series) types.DashboardModel {
	points := powerPoints(intraday)
	days := energyDays(daily)

	var todayEnergyKwh, peakPowerKw float64
	if len(points) > 0 {
		todayEnergyKwh = units.Round(intraday.sumEnergyKwh(), 1)
		for _, p := range points {
			if p.PowerKw > peakPowerKw {
				peakPowerKw = p.PowerKw
			}
		}
		peakPowerKw = units.Round(peakPowerKw, 2)
	} else {
		todayEnergyKwh = units.Round(overview.LastDayEnergyKwh, 1)
		peakPowerKw = units.Round(overview.CurrentPowerKw, 2)
	}

	return types.DashboardModel{
		Overview: types.Overview{
			CurrentPowerKw: units.Round(overview.CurrentPowerKw, 2),
			TodayEnergyKwh: todayEnergyKwh,
			PeakPowerKw:    peakPowerKw,
			CO2AvoidedKg:   units.Round(todayEnergyKwh*cfg.EmissionsKgPerKwh, 1),
			LastUpdateTime: overview.LastUpdateTime,
		},
		Power:  types.PowerSeries{Points: points},
		Energy: types.EnergySeries{Days: days},
	}
}
