package solar

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/mikechalmers/bespokely-solar/pkg/types"
	"github.com/mikechalmers/bespokely-solar/pkg/units"
)

const (
	mockPeakPowerKw     = 45.0
	mockSeasonalBaseKwh = 220.0
	mockEmissionsPerKwh = 0.36
	mockHistoryDays     = 30
	mockArtificialDelay = 250 * time.Millisecond
)

// Mock synthesizes a plausible production day so the dashboard works without
// a configured upstream. It satisfies the same Source contract as the live
// client so callers never special-case it.
type Mock struct {
	rng *rand.Rand
	now func() time.Time
}

// NewMock returns a mock source seeded from the wall clock.
func NewMock() *Mock {
	return &Mock{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// powerCurve generates 24 hourly samples for the current day: a Gaussian
// bell centered on noon, scaled by a bounded weather-noise factor.
func (m *Mock) powerCurve(now time.Time) []types.PowerPoint {
	points := make([]types.PowerPoint, 0, 24)
	for hour := 0; hour <= 23; hour++ {
		pointTime := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())

		normalized := math.Exp(-math.Pow(float64(hour)-12, 2) / 20)
		weatherNoise := 0.75 + m.rng.Float64()*0.35
		powerKw := units.Round(math.Max(0, mockPeakPowerKw*normalized*weatherNoise), 2)

		points = append(points, types.PowerPoint{
			Timestamp: pointTime.Format("2006-01-02T15:04:05"),
			PowerKw:   powerKw,
		})
	}
	return points
}

// energyHistory generates the trailing 30 days (today included): a seasonal
// base plus one full sinusoidal cycle over the window and uniform noise.
func (m *Mock) energyHistory(now time.Time) []types.EnergyDay {
	days := make([]types.EnergyDay, 0, mockHistoryDays)
	for i := mockHistoryDays - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i)

		swing := (math.Sin(float64(i)/mockHistoryDays*2*math.Pi) + 1) * 40
		weatherNoise := m.rng.Float64() * 60

		days = append(days, types.EnergyDay{
			Date:      date.Format("2006-01-02"),
			EnergyKwh: units.Round(mockSeasonalBaseKwh+swing+weatherNoise, 1),
		})
	}
	return days
}

// Dashboard builds a full synthetic model. The small artificial delay stands
// in for network latency and respects the caller's cancellation like the
// live path does.
func (m *Mock) Dashboard(ctx context.Context) (types.DashboardModel, error) {
	select {
	case <-ctx.Done():
		return types.DashboardModel{}, ctx.Err()
	case <-time.After(mockArtificialDelay):
	}

	now := m.now()
	points := m.powerCurve(now)
	days := m.energyHistory(now)

	var currentPowerKw, todayEnergyKwh, peakPowerKw float64
	if hour := now.Hour(); hour >= 0 && hour < len(points) {
		currentPowerKw = points[hour].PowerKw
	}
	for _, p := range points {
		todayEnergyKwh += p.PowerKw
		if p.PowerKw > peakPowerKw {
			peakPowerKw = p.PowerKw
		}
	}
	todayEnergyKwh = units.Round(todayEnergyKwh, 1)

	return types.DashboardModel{
		Overview: types.Overview{
			CurrentPowerKw: currentPowerKw,
			TodayEnergyKwh: todayEnergyKwh,
			PeakPowerKw:    peakPowerKw,
			CO2AvoidedKg:   units.Round(todayEnergyKwh*mockEmissionsPerKwh, 1),
			LastUpdateTime: now.Format("2006-01-02 15:04:05"),
		},
		Power:  types.PowerSeries{Points: points},
		Energy: types.EnergySeries{Days: days},
	}, nil
}
