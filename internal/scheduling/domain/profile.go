package domain

import "github.com/circadianlabs/tempo/pkg/timeutil"

// Chronotype is the user's natural timing preference.
type Chronotype string

const (
	ChronotypeEarly        Chronotype = "EARLY"
	ChronotypeIntermediate Chronotype = "INTERMEDIATE"
	ChronotypeLate         Chronotype = "LATE"
	ChronotypeFlexible     Chronotype = "FLEXIBLE"
	ChronotypeUnknown      Chronotype = "UNKNOWN"
)

// Window is a half-open [start,end) interval in minutes from midnight.
type Window struct {
	StartMinutes int `json:"start_minutes"`
	EndMinutes   int `json:"end_minutes"`
}

// ChronotypeProfile captures what the system believes about the user's
// circadian timing. Strength and Consistency are confidence values in [0,1].
type ChronotypeProfile struct {
	Type              Chronotype `json:"type"`
	Strength          float64    `json:"strength"`
	Consistency       float64    `json:"consistency"`
	NaturalBedtime    int        `json:"natural_bedtime"`
	NaturalWake       int        `json:"natural_wake"`
	ProductiveWindows []Window   `json:"productive_windows"`
}

// SleepWindow is the recommended sleep interval for the target day.
// Wake = (Bedtime + Duration) mod 1440, so a window may wrap midnight.
type SleepWindow struct {
	BedtimeMinutes  int `json:"bedtime_minutes"`
	WakeMinutes     int `json:"wake_minutes"`
	DurationMinutes int `json:"duration_minutes"`
}

// WrapsMidnight reports whether the sleep window crosses 00:00 and must be
// injected as a prev/next pair of fixed blocks.
func (w SleepWindow) WrapsMidnight() bool {
	return w.BedtimeMinutes+w.DurationMinutes > timeutil.MinutesPerDay
}

// EnergyPattern maps each hour of the day to expected energy in [0,1].
type EnergyPattern [24]float64

// At returns the energy for an hour, clamping out-of-range hours to the
// nearest edge so minute 1440 resolves to hour 23.
func (p EnergyPattern) At(hour int) float64 {
	if hour < 0 {
		hour = 0
	}
	if hour > 23 {
		hour = 23
	}
	return p[hour]
}
