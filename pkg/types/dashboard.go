package types

// DashboardModel is the canonical output of one pipeline run. It is the
// contract between the data pipeline and any rendering consumer: every
// numeric field is finite and already rounded for display math, series are
// chronological, and a fresh instance is built on every poll — it is never
// mutated in place.
type DashboardModel struct {
	Overview Overview     `json:"overview"`
	Power    PowerSeries  `json:"power"`
	Energy   EnergySeries `json:"energy"`
}

// Overview holds the headline numbers for the dashboard cards.
type Overview struct {
	CurrentPowerKw float64 `json:"currentPowerKw"`
	TodayEnergyKwh float64 `json:"todayEnergyKwh"`
	PeakPowerKw    float64 `json:"peakPowerKw"`
	CO2AvoidedKg   float64 `json:"co2AvoidedKg"`

	// LastUpdateTime is the upstream timestamp exactly as the API reported
	// it; the renderer owns display formatting. Empty means the upstream
	// didn't report one.
	LastUpdateTime string `json:"lastUpdateTime"`
}

// PowerSeries is the intraday power curve, chronological.
type PowerSeries struct {
	Points []PowerPoint `json:"points"`
}

// EnergySeries is the trailing daily energy history, oldest first.
type EnergySeries struct {
	Days []EnergyDay `json:"days"`
}

// PowerPoint is a quarter-hour energy reading converted to the average power
// over that interval.
type PowerPoint struct {
	Timestamp string  `json:"timestamp"`
	PowerKw   float64 `json:"powerKw"` // rounded to 2 decimals
}

// EnergyDay is one day's total production.
type EnergyDay struct {
	Date      string  `json:"date"`      // YYYY-MM-DD
	EnergyKwh float64 `json:"energyKwh"` // rounded to 1 decimal
}
