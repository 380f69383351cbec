package sleep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestRecommendedDuration(t *testing.T) {
	calc := NewCalculator(Config{}, nil)

	tests := []struct {
		name     string
		age      int
		scale    *float64
		want     int
		wantWarn bool
		wantErr  bool
	}{
		{name: "adult neutral", age: 30, scale: floatPtr(50), want: 480},
		{name: "adult nil scale", age: 30, scale: nil, want: 480},
		{name: "adult high need", age: 30, scale: floatPtr(100), want: 540},
		{name: "adult low need", age: 30, scale: floatPtr(0), want: 420},
		{name: "teen neutral", age: 16, scale: floatPtr(50), want: 540},
		{name: "young adult neutral", age: 20, scale: floatPtr(50), want: 480},
		{name: "senior neutral", age: 70, scale: floatPtr(50), want: 450},
		{name: "out of range scale falls back", age: 30, scale: floatPtr(150), want: 480, wantWarn: true},
		{name: "negative age", age: -1, wantErr: true},
		{name: "implausible age", age: 130, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, warn, err := calc.RecommendedDuration(tc.age, tc.scale)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAge)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			if tc.wantWarn {
				assert.NotEmpty(t, warn)
			} else {
				assert.Empty(t, warn)
			}
		})
	}
}

func TestSleepWindow(t *testing.T) {
	calc := NewCalculator(Config{}, nil)

	t.Run("neutral adult with explicit wake", func(t *testing.T) {
		// 8h of sleep ending at 07:00 puts bedtime at 23:00.
		w, warns, err := calc.SleepWindow(30, domain.ChronotypeIntermediate, intPtr(7*60), floatPtr(50), floatPtr(50))
		require.NoError(t, err)
		assert.Empty(t, warns)
		assert.Equal(t, 7*60, w.WakeMinutes)
		assert.Equal(t, 23*60, w.BedtimeMinutes)
		assert.Equal(t, 480, w.DurationMinutes)
		assert.True(t, w.WrapsMidnight())
	})

	t.Run("default wake per chronotype", func(t *testing.T) {
		w, _, err := calc.SleepWindow(30, domain.ChronotypeEarly, nil, floatPtr(50), floatPtr(50))
		require.NoError(t, err)
		assert.Equal(t, 6*60+30, w.WakeMinutes)
	})

	t.Run("category adjustment when scale absent", func(t *testing.T) {
		// LATE shifts the 08:30 default one hour later.
		w, _, err := calc.SleepWindow(30, domain.ChronotypeLate, nil, floatPtr(50), nil)
		require.NoError(t, err)
		assert.Equal(t, 9*60+30, w.WakeMinutes)
	})

	t.Run("chronotype scale shifts wake", func(t *testing.T) {
		// Scale 100 shifts wake by the full +1.5h.
		w, _, err := calc.SleepWindow(30, domain.ChronotypeIntermediate, intPtr(7*60), floatPtr(50), floatPtr(100))
		require.NoError(t, err)
		assert.Equal(t, 8*60+30, w.WakeMinutes)
	})

	t.Run("invalid scale warns and uses category", func(t *testing.T) {
		w, warns, err := calc.SleepWindow(30, domain.ChronotypeIntermediate, intPtr(7*60), floatPtr(50), floatPtr(200))
		require.NoError(t, err)
		assert.NotEmpty(t, warns)
		assert.Equal(t, 7*60, w.WakeMinutes)
	})

	t.Run("invalid age", func(t *testing.T) {
		_, _, err := calc.SleepWindow(-5, domain.ChronotypeIntermediate, nil, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidAge)
	})
}

func TestSuggestWakeTimes(t *testing.T) {
	calc := NewCalculator(Config{}, nil)

	// Bed at 23:00, onset 15m: cycles land at 05:15 (4), 06:45 (5), 08:15 (6).
	times := calc.SuggestWakeTimes(23*60, 4, 6)
	require.Len(t, times, 3)
	assert.Equal(t, []int{5*60 + 15, 6*60 + 45, 8*60 + 15}, times)

	assert.Nil(t, calc.SuggestWakeTimes(-10, 4, 6))
	assert.Nil(t, calc.SuggestWakeTimes(23*60, 6, 4))
	assert.Nil(t, calc.SuggestWakeTimes(23*60, 1, 11))
}

func TestAnalyzeQuality(t *testing.T) {
	calc := NewCalculator(Config{}, nil)
	ideal := domain.SleepWindow{BedtimeMinutes: 23 * 60, WakeMinutes: 7 * 60, DurationMinutes: 480}

	t.Run("perfect night without physio data", func(t *testing.T) {
		score := calc.AnalyzeQuality(ideal, ActualSleep{
			BedtimeMinutes:  23 * 60,
			WakeMinutes:     7 * 60,
			DurationMinutes: 480,
		})
		// Physio weight redistributes to duration and timing.
		assert.InDelta(t, 100.0, score.Overall, 1e-9)
		assert.Equal(t, 0, score.DeficitMinutes)
	})

	t.Run("perfect night with ideal physio data", func(t *testing.T) {
		score := calc.AnalyzeQuality(ideal, ActualSleep{
			BedtimeMinutes:  23 * 60,
			WakeMinutes:     7 * 60,
			DurationMinutes: 480,
			HeartRate:       []int{55, 48, 52},
			HRV:             []float64{55, 60},
		})
		assert.InDelta(t, 100.0, score.Overall, 1e-9)
		assert.InDelta(t, 100.0, score.Physiological, 1e-9)
	})

	t.Run("short night accrues deficit", func(t *testing.T) {
		score := calc.AnalyzeQuality(ideal, ActualSleep{
			BedtimeMinutes:  1 * 60,
			WakeMinutes:     7 * 60,
			DurationMinutes: 360,
		})
		assert.Equal(t, 120, score.DeficitMinutes)
		assert.Less(t, score.Overall, 100.0)
		assert.Less(t, score.Duration, 100.0)
	})

	t.Run("timing tolerance uses circular distance", func(t *testing.T) {
		late := domain.SleepWindow{BedtimeMinutes: 23*60 + 50, WakeMinutes: 7 * 60, DurationMinutes: 430}
		score := calc.AnalyzeQuality(late, ActualSleep{
			BedtimeMinutes:  10, // 00:10, twenty minutes past an ideal 23:50
			WakeMinutes:     7 * 60,
			DurationMinutes: 430,
		})
		assert.InDelta(t, 100.0, score.Timing, 1e-9)
	})

	t.Run("low heart rate penalized", func(t *testing.T) {
		score := calc.AnalyzeQuality(ideal, ActualSleep{
			BedtimeMinutes:  23 * 60,
			WakeMinutes:     7 * 60,
			DurationMinutes: 480,
			HeartRate:       []int{35},
		})
		// HR-only data expands the HR sub-weight to the full component.
		assert.InDelta(t, 50.0, score.Physiological, 1e-9)
	})

	t.Run("hrv score capped at sub-weight ceiling", func(t *testing.T) {
		score := calc.AnalyzeQuality(ideal, ActualSleep{
			BedtimeMinutes:  23 * 60,
			WakeMinutes:     7 * 60,
			DurationMinutes: 480,
			HRV:             []float64{500},
		})
		assert.InDelta(t, 100.0, score.Physiological, 1e-9)
	})
}
