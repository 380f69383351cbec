package sleep

import (
	"math"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/timeutil"
)

// ActualSleep is one observed night with optional physiological samples.
// HeartRate samples are bpm; HRV samples are RMSSD in milliseconds.
type ActualSleep struct {
	BedtimeMinutes  int
	WakeMinutes     int
	DurationMinutes int
	HeartRate       []int
	HRV             []float64
}

// QualityScore breaks down a sleep quality analysis. All components are in
// [0,100] before weighting; Overall is the weighted, clamped composite.
type QualityScore struct {
	Overall        float64 `json:"overall"`
	Duration       float64 `json:"duration"`
	Timing         float64 `json:"timing"`
	Physiological  float64 `json:"physiological"`
	DeficitMinutes int     `json:"deficit_minutes"`
}

// Component weights for the composite quality score. When no physiological
// data is present, its weight is redistributed proportionally to the
// duration and timing components.
const (
	durationWeight = 0.4
	timingWeight   = 0.3
	physioWeight   = 0.3
)

// AnalyzeQuality scores an observed night against the recommended window.
func (c *Calculator) AnalyzeQuality(ideal domain.SleepWindow, actual ActualSleep) QualityScore {
	durationScore := c.durationScore(actual.DurationMinutes, ideal.DurationMinutes)
	timingScore := c.timingScore(actual, ideal)
	physioScore, hasPhysio := c.physiologicalScore(actual)

	dw, tw, pw := durationWeight, timingWeight, physioWeight
	if !hasPhysio {
		scale := 1.0 / (durationWeight + timingWeight)
		dw = durationWeight * scale
		tw = timingWeight * scale
		pw = 0
	}

	overall := timeutil.Clamp(durationScore*dw+timingScore*tw+physioScore*pw, 0, 100)
	return QualityScore{
		Overall:        overall,
		Duration:       durationScore,
		Timing:         timingScore,
		Physiological:  physioScore,
		DeficitMinutes: ideal.DurationMinutes - actual.DurationMinutes,
	}
}

// durationScore penalizes deviation from the ideal duration beyond the
// tolerance, linearly across the penalty range.
func (c *Calculator) durationScore(actual, ideal int) float64 {
	diff := math.Abs(float64(actual - ideal))
	if diff <= float64(c.cfg.DurationToleranceMinutes) {
		return 100
	}
	penalty := (diff - float64(c.cfg.DurationToleranceMinutes)) * (100 / math.Max(1, float64(c.cfg.DurationPenaltyRange)))
	return math.Max(0, 100-penalty)
}

// timingScore splits 100 points between bedtime and wake alignment, using
// circular distance so 23:50 vs 00:10 counts as 20 minutes.
func (c *Calculator) timingScore(actual ActualSleep, ideal domain.SleepWindow) float64 {
	const maxPart = 50.0
	score := 0.0
	for _, pair := range [][2]int{
		{actual.BedtimeMinutes, ideal.BedtimeMinutes},
		{actual.WakeMinutes, ideal.WakeMinutes},
	} {
		diff := math.Abs(float64(pair[0] - pair[1]))
		diff = math.Min(diff, float64(timeutil.MinutesPerDay)-diff)
		if diff <= float64(c.cfg.TimingToleranceMinutes) {
			score += maxPart
			continue
		}
		penalty := (diff - float64(c.cfg.TimingToleranceMinutes)) * (maxPart / math.Max(1, float64(c.cfg.TimingPenaltyRange)))
		score += math.Max(0, maxPart-penalty)
	}
	return score
}

// physiologicalScore combines a minimum-HR band check with an average-HRV
// target. When only one signal is present its sub-weight expands to cover
// the whole component.
func (c *Calculator) physiologicalScore(actual ActualSleep) (float64, bool) {
	validHR := make([]int, 0, len(actual.HeartRate))
	for _, hr := range actual.HeartRate {
		if hr > 0 {
			validHR = append(validHR, hr)
		}
	}
	validHRV := make([]float64, 0, len(actual.HRV))
	for _, v := range actual.HRV {
		if v > 0 {
			validHRV = append(validHRV, v)
		}
	}

	hasHR := len(validHR) > 0
	hasHRV := len(validHRV) > 0
	if !hasHR && !hasHRV {
		return 0, false
	}

	hrWeight, hrvWeight := 0.5, 0.5
	switch {
	case hasHR && !hasHRV:
		hrWeight, hrvWeight = 1.0, 0.0
	case !hasHR && hasHRV:
		hrWeight, hrvWeight = 0.0, 1.0
	}

	total := 0.0
	if hasHR {
		minHR := validHR[0]
		for _, hr := range validHR[1:] {
			if hr < minHR {
				minHR = hr
			}
		}
		maxPart := 100 * hrWeight
		switch {
		case minHR >= c.cfg.HRTargetMin && minHR <= c.cfg.HRTargetMax:
			total += maxPart
		case minHR < c.cfg.HRTargetMin:
			penalty := float64(c.cfg.HRTargetMin-minHR) * (maxPart / math.Max(1, float64(c.cfg.HRPenaltyRangeLow)))
			total += math.Max(0, maxPart-penalty)
		default:
			penalty := float64(minHR-c.cfg.HRTargetMax) * (maxPart / math.Max(1, float64(c.cfg.HRPenaltyRangeHigh)))
			total += math.Max(0, maxPart-penalty)
		}
	}

	if hasHRV {
		sum := 0.0
		for _, v := range validHRV {
			sum += v
		}
		avg := sum / float64(len(validHRV))
		maxPart := 100 * hrvWeight
		// Scales toward the target and caps at the sub-weight ceiling.
		total += timeutil.Clamp(maxPart*(avg/math.Max(1, c.cfg.HRVTargetRMSSD)), 0, maxPart)
	}

	return total, true
}
