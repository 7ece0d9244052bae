package solar

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/mikechalmers/bespokely-solar/pkg/units"
)

// normalizeTimestamp coerces the timestamp shapes the upstream mixes
// (date-only, space-separated date-time, ISO) into a single ISO-like form.
// The second return is false when the input is unusable and the entry must
// be dropped.
func normalizeTimestamp(raw *string) (string, bool) {
	if raw == nil || *raw == "" {
		return "", false
	}
	s := *raw
	if strings.Contains(s, "T") {
		return s, true
	}
	if strings.Contains(s, " ") {
		return strings.Replace(s, " ", "T", 1), true
	}
	return s + "T00:00:00", true
}

// point is one normalized series entry. Value keeps the upstream tri-state:
// nil means the sensor reported no reading for the slot, which is distinct
// from an explicit zero.
type point struct {
	Timestamp string
	Value     *float64
}

// series is a unit-tagged, chronologically ordered set of points.
type series struct {
	Unit   string
	Points []point
}

// flexNumber decodes JSON numbers and number-like strings, coercing anything
// else (and non-finite parses) to 0 so normalization stays total.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexNumber(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			*f = flexNumber(parsed)
			return nil
		}
	}
	*f = 0
	return nil
}

// flexString decodes JSON strings and treats anything else (numbers, objects,
// null) as absent, so a malformed timestamp drops its own entry instead of
// failing the whole decode.
type flexString struct {
	val string
	set bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f.val = s
		f.set = true
	}
	return nil
}

func (f flexString) ptr() *string {
	if !f.set {
		return nil
	}
	return &f.val
}

type rawValue struct {
	Date  flexString  `json:"date"`
	Value *flexNumber `json:"value"`
}

type rawSeries struct {
	Unit   string     `json:"unit"`
	Values []rawValue `json:"values"`
}

// energyEnvelope tolerates both response nestings: the upstream sometimes
// wraps the payload in an "energy" object and sometimes returns it bare,
// depending on which field selector was used.
type energyEnvelope struct {
	Energy *rawSeries `json:"energy"`
	rawSeries
	apiError
}

func (e energyEnvelope) resolve() rawSeries {
	if e.Energy != nil {
		return *e.Energy
	}
	return e.rawSeries
}

// normalizeSeries maps a raw payload into a canonical series: the unit
// defaults to Wh, entries without a usable timestamp are dropped entirely and
// nil values survive as nil.
func normalizeSeries(raw rawSeries) series {
	unit := raw.Unit
	if unit == "" {
		unit = "Wh"
	}

	s := series{
		Unit:   unit,
		Points: make([]point, 0, len(raw.Values)),
	}
	for _, v := range raw.Values {
		ts, ok := normalizeTimestamp(v.Date.ptr())
		if !ok {
			continue
		}
		p := point{Timestamp: ts}
		if v.Value != nil {
			val := float64(*v.Value)
			p.Value = &val
		}
		s.Points = append(s.Points, p)
	}
	return s
}

// sumEnergyKwh totals a series in kWh, treating absent readings as zero.
func (s series) sumEnergyKwh() float64 {
	var totalWh float64
	for _, p := range s.Points {
		if p.Value == nil {
			continue
		}
		totalWh += units.EnergyToWh(*p.Value, s.Unit)
	}
	return units.WhToKwh(totalWh)
}

// currentPower accepts both shapes of the overview power field: a nested
// {"power": n} object or a bare number. Anything else coerces to 0.
type currentPower struct {
	W float64
}

func (c *currentPower) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Power flexNumber `json:"power"`
		}
		if err := json.Unmarshal(b, &obj); err == nil {
			c.W = float64(obj.Power)
		}
		return nil
	}
	var f flexNumber
	if err := json.Unmarshal(b, &f); err == nil {
		c.W = float64(f)
	}
	return nil
}

type rawOverview struct {
	CurrentPower currentPower `json:"currentPower"`
	LastDayData  struct {
		Energy flexNumber `json:"energy"`
	} `json:"lastDayData"`
	LastUpdateTime flexString `json:"lastUpdateTime"`
}

// overviewEnvelope tolerates the wrapped and unwrapped overview shapes.
type overviewEnvelope struct {
	Overview *rawOverview `json:"overview"`
	rawOverview
	apiError
}

func (e overviewEnvelope) resolve() rawOverview {
	if e.Overview != nil {
		return *e.Overview
	}
	return e.rawOverview
}

// overviewData is the normalized snapshot: current power in kW, yesterday's
// total in kWh and the upstream's raw update timestamp.
type overviewData struct {
	CurrentPowerKw   float64
	LastDayEnergyKwh float64
	LastUpdateTime   string
}

func normalizeOverview(raw rawOverview) overviewData {
	return overviewData{
		CurrentPowerKw:   units.WToKw(raw.CurrentPower.W),
		LastDayEnergyKwh: units.WhToKwh(float64(raw.LastDayData.Energy)),
		LastUpdateTime:   raw.LastUpdateTime.val,
	}
}
