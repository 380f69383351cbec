// Package chronotype determines a user's circadian type from questionnaire
// scores or observed sleep records and maintains the resulting profile.
package chronotype

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/timeutil"
)

var (
	ErrInvalidMEQScore     = errors.New("MEQ score out of range")
	ErrInsufficientRecords = errors.New("not enough valid sleep records")
	ErrMissingLocation     = errors.New("user timezone is required")
)

// MEQ score bounds for the Morningness-Eveningness Questionnaire.
const (
	MEQMin = 16
	MEQMax = 86
)

// Config tunes the analyzer. Zero values fall back to defaults.
type Config struct {
	MinSleepRecords           int
	MidsleepEarlyThreshold    float64
	MidsleepLateThreshold     float64
	ConfidenceScaleHours      float64
	UpdateConfidenceThreshold float64
	FocusBlockBreakMinutes    int
}

// DefaultConfig returns the standard analyzer tuning.
func DefaultConfig() Config {
	return Config{
		MinSleepRecords:           7,
		MidsleepEarlyThreshold:    3.5,
		MidsleepLateThreshold:     5.5,
		ConfidenceScaleHours:      4.0,
		UpdateConfidenceThreshold: 0.6,
		FocusBlockBreakMinutes:    15,
	}
}

// wakeAdjustments shift the inferred natural wake time per chronotype,
// relative to the 07:30 baseline.
var wakeAdjustments = map[domain.Chronotype]int{
	domain.ChronotypeEarly: -90,
	domain.ChronotypeLate:  90,
}

var productiveWindows = map[domain.Chronotype][]domain.Window{
	domain.ChronotypeEarly: {
		{StartMinutes: 7 * 60, EndMinutes: 12 * 60},
		{StartMinutes: 15 * 60, EndMinutes: 17 * 60},
	},
	domain.ChronotypeLate: {
		{StartMinutes: 10 * 60, EndMinutes: 13 * 60},
		{StartMinutes: 17 * 60, EndMinutes: 22 * 60},
	},
	domain.ChronotypeIntermediate: {
		{StartMinutes: 9 * 60, EndMinutes: 12 * 60},
		{StartMinutes: 14 * 60, EndMinutes: 18 * 60},
	},
	domain.ChronotypeFlexible: {
		{StartMinutes: 9 * 60, EndMinutes: 13 * 60},
		{StartMinutes: 15 * 60, EndMinutes: 19 * 60},
	},
	domain.ChronotypeUnknown: {
		{StartMinutes: 9 * 60, EndMinutes: 12 * 60},
		{StartMinutes: 14 * 60, EndMinutes: 17 * 60},
	},
}

var exerciseTimes = map[domain.Chronotype]int{
	domain.ChronotypeEarly:        7 * 60,
	domain.ChronotypeLate:         18 * 60,
	domain.ChronotypeIntermediate: 17 * 60,
	domain.ChronotypeFlexible:     16 * 60,
	domain.ChronotypeUnknown:      17 * 60,
}

// SleepRecord is one observed sleep interval in absolute time.
type SleepRecord struct {
	Start time.Time
	End   time.Time
}

// Analyzer determines chronotypes and manages profiles.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger
}

// NewAnalyzer builds an analyzer, filling zero config fields with defaults.
func NewAnalyzer(cfg Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MinSleepRecords == 0 {
		cfg.MinSleepRecords = def.MinSleepRecords
	}
	if cfg.MidsleepEarlyThreshold == 0 {
		cfg.MidsleepEarlyThreshold = def.MidsleepEarlyThreshold
	}
	if cfg.MidsleepLateThreshold == 0 {
		cfg.MidsleepLateThreshold = def.MidsleepLateThreshold
	}
	if cfg.ConfidenceScaleHours == 0 {
		cfg.ConfidenceScaleHours = def.ConfidenceScaleHours
	}
	if cfg.UpdateConfidenceThreshold == 0 {
		cfg.UpdateConfidenceThreshold = def.UpdateConfidenceThreshold
	}
	if cfg.FocusBlockBreakMinutes == 0 {
		cfg.FocusBlockBreakMinutes = def.FocusBlockBreakMinutes
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// FromMEQ maps a questionnaire score to a chronotype.
func (a *Analyzer) FromMEQ(score int) (domain.Chronotype, error) {
	if score < MEQMin || score > MEQMax {
		return domain.ChronotypeUnknown, fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidMEQScore, score, MEQMin, MEQMax)
	}
	switch {
	case score <= 41:
		return domain.ChronotypeLate, nil
	case score <= 58:
		return domain.ChronotypeIntermediate, nil
	default:
		return domain.ChronotypeEarly, nil
	}
}

// FromSleepRecords derives a chronotype and a confidence value from observed
// sleep intervals. Records with inverted times or durations outside [3h,14h]
// are skipped; at least MinSleepRecords valid records must remain.
func (a *Analyzer) FromSleepRecords(records []SleepRecord, loc *time.Location) (domain.Chronotype, float64, error) {
	if loc == nil {
		return domain.ChronotypeUnknown, 0, ErrMissingLocation
	}
	if len(records) < a.cfg.MinSleepRecords {
		return domain.ChronotypeUnknown, 0, fmt.Errorf("%w: %d provided, need %d", ErrInsufficientRecords, len(records), a.cfg.MinSleepRecords)
	}

	var midSleepHours []float64
	for i, rec := range records {
		if !rec.End.After(rec.Start) {
			a.logger.Warn("skipping sleep record with inverted times", "index", i)
			continue
		}
		duration := rec.End.Sub(rec.Start)
		if duration < 3*time.Hour || duration > 14*time.Hour {
			a.logger.Warn("skipping sleep record with unusual duration", "index", i, "duration", duration)
			continue
		}
		mid := rec.Start.Add(duration / 2).In(loc)
		midSleepHours = append(midSleepHours,
			float64(mid.Hour())+float64(mid.Minute())/60.0+float64(mid.Second())/3600.0)
	}

	if len(midSleepHours) < a.cfg.MinSleepRecords {
		return domain.ChronotypeUnknown, 0, fmt.Errorf("%w: %d valid after filtering, need %d", ErrInsufficientRecords, len(midSleepHours), a.cfg.MinSleepRecords)
	}

	mean := 0.0
	for _, h := range midSleepHours {
		mean += h
	}
	mean /= float64(len(midSleepHours))

	variance := 0.0
	for _, h := range midSleepHours {
		variance += (h - mean) * (h - mean)
	}
	stdev := math.Sqrt(variance / float64(len(midSleepHours)-1))

	var ct domain.Chronotype
	switch {
	case mean <= a.cfg.MidsleepEarlyThreshold:
		ct = domain.ChronotypeEarly
	case mean >= a.cfg.MidsleepLateThreshold:
		ct = domain.ChronotypeLate
	default:
		ct = domain.ChronotypeIntermediate
	}

	confidence := timeutil.Clamp(1.0-stdev/math.Max(0.1, a.cfg.ConfidenceScaleHours), 0, 1)
	a.logger.Info("chronotype from sleep records",
		"chronotype", ct,
		"confidence", confidence,
		"avg_mid_sleep_hour", mean,
		"records", len(midSleepHours),
	)
	return ct, confidence, nil
}

// NewProfile builds a profile for a chronotype with default strength,
// productive windows, and inferred natural sleep times.
func (a *Analyzer) NewProfile(ct domain.Chronotype) domain.ChronotypeProfile {
	wake := 7*60 + 30 + wakeAdjustments[ct]
	bedtime := ((wake-8*60)%timeutil.MinutesPerDay + timeutil.MinutesPerDay) % timeutil.MinutesPerDay

	return domain.ChronotypeProfile{
		Type:              ct,
		Strength:          0.5,
		Consistency:       1.0,
		NaturalBedtime:    bedtime,
		NaturalWake:       wake,
		ProductiveWindows: ProductiveWindows(ct),
	}
}

// UpdateProfile recomputes the chronotype from new sleep records and applies
// it only when the new confidence clears the configured threshold. The
// consistency score blends 70% old with 30% new confidence.
func (a *Analyzer) UpdateProfile(profile domain.ChronotypeProfile, records []SleepRecord, loc *time.Location) domain.ChronotypeProfile {
	ct, confidence, err := a.FromSleepRecords(records, loc)
	if err != nil {
		a.logger.Info("profile not updated", "error", err)
		return profile
	}
	if confidence < a.cfg.UpdateConfidenceThreshold {
		a.logger.Info("profile not updated, confidence below threshold",
			"confidence", confidence,
			"threshold", a.cfg.UpdateConfidenceThreshold,
		)
		return profile
	}

	updated := a.NewProfile(ct)
	updated.Strength = confidence
	updated.Consistency = timeutil.Clamp(profile.Consistency*0.7+confidence*0.3, 0, 1)
	return updated
}

// FocusBlocks slices the profile's productive windows into focus blocks of
// the requested duration, separated by the configured minimum break.
func (a *Analyzer) FocusBlocks(profile domain.ChronotypeProfile, blockMinutes, maxBlocks int) []domain.Window {
	if blockMinutes <= 0 || maxBlocks <= 0 {
		return nil
	}
	var blocks []domain.Window
	for _, w := range profile.ProductiveWindows {
		cursor := w.StartMinutes
		for len(blocks) < maxBlocks && cursor+blockMinutes <= w.EndMinutes {
			blocks = append(blocks, domain.Window{StartMinutes: cursor, EndMinutes: cursor + blockMinutes})
			cursor += blockMinutes + a.cfg.FocusBlockBreakMinutes
		}
		if len(blocks) >= maxBlocks {
			break
		}
	}
	return blocks
}

// ProductiveWindows returns the default productive windows for a chronotype.
func ProductiveWindows(ct domain.Chronotype) []domain.Window {
	if w, ok := productiveWindows[ct]; ok {
		windows := make([]domain.Window, len(w))
		copy(windows, w)
		return windows
	}
	return ProductiveWindows(domain.ChronotypeUnknown)
}

// ExerciseTime returns the default exercise time for a chronotype in minutes
// from midnight.
func ExerciseTime(ct domain.Chronotype) int {
	if t, ok := exerciseTimes[ct]; ok {
		return t
	}
	return exerciseTimes[domain.ChronotypeUnknown]
}
