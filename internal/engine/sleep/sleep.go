// Package sleep recommends sleep windows from age and chronotype and scores
// observed sleep against those recommendations.
package sleep

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/timeutil"
)

var ErrInvalidAge = errors.New("age must be between 0 and 120")

// guideline is a recommended nightly sleep range in hours.
type guideline struct {
	minHours float64
	maxHours float64
}

// Age-banded sleep guidelines: teen <18, young adult <26, adult <65,
// senior 65+.
var guidelines = []struct {
	maxAge int
	guideline
}{
	{maxAge: 17, guideline: guideline{minHours: 8.0, maxHours: 10.0}},
	{maxAge: 25, guideline: guideline{minHours: 7.0, maxHours: 9.0}},
	{maxAge: 64, guideline: guideline{minHours: 7.0, maxHours: 9.0}},
	{maxAge: 120, guideline: guideline{minHours: 7.0, maxHours: 8.0}},
}

// Default wake times per chronotype in minutes from midnight.
var defaultWakeTimes = map[domain.Chronotype]int{
	domain.ChronotypeEarly:        6*60 + 30,
	domain.ChronotypeIntermediate: 7*60 + 30,
	domain.ChronotypeLate:         8*60 + 30,
	domain.ChronotypeUnknown:      7*60 + 30,
}

// Category timing adjustments in minutes, used when no chronotype scale is
// supplied.
var categoryTimingAdjustments = map[domain.Chronotype]int{
	domain.ChronotypeEarly: -60,
	domain.ChronotypeLate:  60,
}

// Config tunes the calculator. Zero values fall back to defaults.
type Config struct {
	MaxNeedAdjustmentHours   float64
	MaxChronoAdjustmentHours float64
	SleepCycleMinutes        int
	SleepOnsetMinutes        int

	TimingToleranceMinutes   int
	TimingPenaltyRange       int
	DurationToleranceMinutes int
	DurationPenaltyRange     int
	HRTargetMin              int
	HRTargetMax              int
	HRPenaltyRangeLow        int
	HRPenaltyRangeHigh       int
	HRVTargetRMSSD           float64
}

// DefaultConfig returns the standard calculator tuning.
func DefaultConfig() Config {
	return Config{
		MaxNeedAdjustmentHours:   1.0,
		MaxChronoAdjustmentHours: 1.5,
		SleepCycleMinutes:        90,
		SleepOnsetMinutes:        15,
		TimingToleranceMinutes:   30,
		TimingPenaltyRange:       90,
		DurationToleranceMinutes: 30,
		DurationPenaltyRange:     90,
		HRTargetMin:              40,
		HRTargetMax:              60,
		HRPenaltyRangeLow:        10,
		HRPenaltyRangeHigh:       20,
		HRVTargetRMSSD:           50,
	}
}

// Calculator derives sleep windows and quality scores.
type Calculator struct {
	cfg    Config
	logger *slog.Logger
}

// NewCalculator builds a calculator, filling zero config fields with
// defaults.
func NewCalculator(cfg Config, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxNeedAdjustmentHours == 0 {
		cfg.MaxNeedAdjustmentHours = def.MaxNeedAdjustmentHours
	}
	if cfg.MaxChronoAdjustmentHours == 0 {
		cfg.MaxChronoAdjustmentHours = def.MaxChronoAdjustmentHours
	}
	if cfg.SleepCycleMinutes == 0 {
		cfg.SleepCycleMinutes = def.SleepCycleMinutes
	}
	if cfg.SleepOnsetMinutes == 0 {
		cfg.SleepOnsetMinutes = def.SleepOnsetMinutes
	}
	if cfg.TimingToleranceMinutes == 0 {
		cfg.TimingToleranceMinutes = def.TimingToleranceMinutes
	}
	if cfg.TimingPenaltyRange == 0 {
		cfg.TimingPenaltyRange = def.TimingPenaltyRange
	}
	if cfg.DurationToleranceMinutes == 0 {
		cfg.DurationToleranceMinutes = def.DurationToleranceMinutes
	}
	if cfg.DurationPenaltyRange == 0 {
		cfg.DurationPenaltyRange = def.DurationPenaltyRange
	}
	if cfg.HRTargetMin == 0 {
		cfg.HRTargetMin = def.HRTargetMin
	}
	if cfg.HRTargetMax == 0 {
		cfg.HRTargetMax = def.HRTargetMax
	}
	if cfg.HRPenaltyRangeLow == 0 {
		cfg.HRPenaltyRangeLow = def.HRPenaltyRangeLow
	}
	if cfg.HRPenaltyRangeHigh == 0 {
		cfg.HRPenaltyRangeHigh = def.HRPenaltyRangeHigh
	}
	if cfg.HRVTargetRMSSD == 0 {
		cfg.HRVTargetRMSSD = def.HRVTargetRMSSD
	}
	return &Calculator{cfg: cfg, logger: logger}
}

// RecommendedDuration returns the recommended sleep duration in minutes for
// the given age and need scale (0-100, 50 neutral). Out-of-range scales fall
// back to neutral with a warning.
func (c *Calculator) RecommendedDuration(age int, needScale *float64) (int, string, error) {
	if age < 0 || age > 120 {
		return 0, "", fmt.Errorf("%w: %d", ErrInvalidAge, age)
	}

	var g guideline
	for _, band := range guidelines {
		if age <= band.maxAge {
			g = band.guideline
			break
		}
	}

	baseHours := (g.minHours + g.maxHours) / 2.0

	warning := ""
	adjHours := 0.0
	if needScale != nil {
		if *needScale >= 0 && *needScale <= 100 {
			adjHours = (*needScale - 50.0) / 50.0 * c.cfg.MaxNeedAdjustmentHours
		} else {
			warning = fmt.Sprintf("sleep_need_scale %.1f out of range, using neutral", *needScale)
			c.logger.Warn("invalid sleep need scale", "scale", *needScale)
		}
	}

	finalHours := baseHours + adjHours
	lo := math.Max(4.0, g.minHours-1.0)
	hi := math.Min(12.0, g.maxHours+1.0)
	finalHours = timeutil.Clamp(finalHours, lo, hi)

	return int(math.Round(finalHours * 60)), warning, nil
}

// SleepWindow computes the recommended sleep window. targetWake is minutes
// from midnight; when nil the chronotype default applies. When
// chronotypeScale is supplied and valid it shifts the wake time by up to
// MaxChronoAdjustmentHours; otherwise the category adjustment applies.
func (c *Calculator) SleepWindow(age int, ct domain.Chronotype, targetWake *int, needScale, chronotypeScale *float64) (domain.SleepWindow, []string, error) {
	var warnings []string

	duration, warn, err := c.RecommendedDuration(age, needScale)
	if err != nil {
		return domain.SleepWindow{}, nil, err
	}
	if warn != "" {
		warnings = append(warnings, warn)
	}

	wake := 0
	if targetWake != nil {
		wake = *targetWake
	} else {
		w, ok := defaultWakeTimes[ct]
		if !ok {
			w = defaultWakeTimes[domain.ChronotypeUnknown]
		}
		wake = w
	}

	timingAdj := 0
	if chronotypeScale != nil && *chronotypeScale >= 0 && *chronotypeScale <= 100 {
		timingAdj = int(math.Round((*chronotypeScale - 50.0) / 50.0 * c.cfg.MaxChronoAdjustmentHours * 60))
	} else {
		if chronotypeScale != nil {
			warnings = append(warnings, fmt.Sprintf("chronotype_scale %.1f out of range, using category adjustment", *chronotypeScale))
		}
		timingAdj = categoryTimingAdjustments[ct]
	}

	wake = ((wake+timingAdj)%timeutil.MinutesPerDay + timeutil.MinutesPerDay) % timeutil.MinutesPerDay
	bedtime := ((wake-duration)%timeutil.MinutesPerDay + timeutil.MinutesPerDay) % timeutil.MinutesPerDay

	window := domain.SleepWindow{
		BedtimeMinutes:  bedtime,
		WakeMinutes:     wake,
		DurationMinutes: duration,
	}
	c.logger.Debug("calculated sleep window",
		"bedtime", timeutil.FormatClock(bedtime),
		"wake", timeutil.FormatClock(wake),
		"duration", timeutil.FormatDuration(duration),
	)
	return window, warnings, nil
}

// SuggestWakeTimes returns wake times in minutes from midnight that complete
// whole sleep cycles after the assumed onset delay, one per cycle count in
// [minCycles, maxCycles].
func (c *Calculator) SuggestWakeTimes(bedtime, minCycles, maxCycles int) []int {
	if bedtime < 0 || bedtime >= timeutil.MinutesPerDay {
		return nil
	}
	if minCycles < 1 || minCycles > maxCycles || maxCycles > 10 {
		return nil
	}

	sleepStart := bedtime + c.cfg.SleepOnsetMinutes
	times := make([]int, 0, maxCycles-minCycles+1)
	for cycles := minCycles; cycles <= maxCycles; cycles++ {
		wake := (sleepStart + cycles*c.cfg.SleepCycleMinutes) % timeutil.MinutesPerDay
		times = append(times, wake)
	}
	sort.Ints(times)
	return times
}
