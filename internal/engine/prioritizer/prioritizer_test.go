package prioritizer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

var (
	testNow  = time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	testDate = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
)

func makeTask(priority int, opts ...func(*domain.Task)) domain.Task {
	t := domain.Task{
		ID:              uuid.New(),
		Title:           "task",
		DurationMinutes: 60,
		Priority:        priority,
		Energy:          domain.EnergyMedium,
		CreatedAt:       testNow.Add(-24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func withDeadline(minutes int) func(*domain.Task) {
	return func(t *domain.Task) { t.Deadline = &minutes }
}

func TestScoreComponents(t *testing.T) {
	p := New(Config{}, nil)

	t.Run("priority factor dominates", func(t *testing.T) {
		high := p.Score(makeTask(domain.PriorityHighest), testNow, testDate, 0)
		low := p.Score(makeTask(domain.PriorityLowest), testNow, testDate, 0)
		assert.InDelta(t, 0.50, high, 1e-9)
		assert.InDelta(t, 0.10, low, 1e-9)
	})

	t.Run("past deadline is maximum urgency", func(t *testing.T) {
		// Deadline at 08:00, now 09:00.
		task := makeTask(domain.PriorityMedium, withDeadline(8*60))
		score := p.Score(task, testNow, testDate, 0)
		assert.InDelta(t, 0.50*0.6+0.35*1.0, score, 1e-9)
	})

	t.Run("urgency grows quadratically", func(t *testing.T) {
		// Created 24h before now, deadline 24h after now: half the lead
		// time is spent, so urgency is 0.25. The deadline minute is
		// expressed past midnight of the target day.
		task := makeTask(domain.PriorityMedium, withDeadline((24+9)*60))
		task.CreatedAt = testNow.Add(-24 * time.Hour)
		score := p.Score(task, testNow, testDate, 0)
		assert.InDelta(t, 0.50*0.6+0.35*0.25, score, 1e-9)
	})

	t.Run("no deadline means no urgency", func(t *testing.T) {
		score := p.Score(makeTask(domain.PriorityMedium), testNow, testDate, 0)
		assert.InDelta(t, 0.30, score, 1e-9)
	})

	t.Run("dependents and postponements capped at scale", func(t *testing.T) {
		task := makeTask(domain.PriorityMedium)
		task.PostponedCount = 50
		score := p.Score(task, testNow, testDate, 10)
		assert.InDelta(t, 0.30+0.10+0.05, score, 1e-9)
	})
}

func TestPrioritize(t *testing.T) {
	p := New(Config{}, nil)

	t.Run("orders by descending score", func(t *testing.T) {
		low := makeTask(domain.PriorityLow)
		high := makeTask(domain.PriorityHighest)
		urgent := makeTask(domain.PriorityMedium, withDeadline(8*60))

		got := p.Prioritize([]domain.Task{low, high, urgent}, testNow, testDate)
		require.Len(t, got, 3)
		assert.Equal(t, urgent.ID, got[0].ID) // 0.65
		assert.Equal(t, high.ID, got[1].ID)   // 0.50
		assert.Equal(t, low.ID, got[2].ID)    // 0.20
	})

	t.Run("skips completed tasks", func(t *testing.T) {
		done := makeTask(domain.PriorityHighest)
		done.Completed = true
		pending := makeTask(domain.PriorityLow)

		got := p.Prioritize([]domain.Task{done, pending}, testNow, testDate)
		require.Len(t, got, 1)
		assert.Equal(t, pending.ID, got[0].ID)
	})

	t.Run("equal scores break ties by id", func(t *testing.T) {
		a := makeTask(domain.PriorityMedium)
		b := makeTask(domain.PriorityMedium)
		got := p.Prioritize([]domain.Task{a, b}, testNow, testDate)
		require.Len(t, got, 2)
		assert.Less(t, got[0].ID.String(), got[1].ID.String())

		// Order of the input slice must not matter.
		again := p.Prioritize([]domain.Task{b, a}, testNow, testDate)
		assert.Equal(t, got[0].ID, again[0].ID)
	})

	t.Run("empty batch", func(t *testing.T) {
		assert.Nil(t, p.Prioritize(nil, testNow, testDate))
	})
}

func TestDependentCounts(t *testing.T) {
	a := makeTask(domain.PriorityMedium)
	b := makeTask(domain.PriorityMedium)
	c := makeTask(domain.PriorityMedium)
	b.Dependencies = []uuid.UUID{a.ID}
	c.Dependencies = []uuid.UUID{a.ID, uuid.New()} // second edge points outside the batch

	counts := DependentCounts([]domain.Task{a, b, c})
	assert.Equal(t, 2, counts[a.ID])
	assert.Zero(t, counts[b.ID])
}

func TestEnergyPattern(t *testing.T) {
	t.Run("nil profile is flat", func(t *testing.T) {
		pattern := EnergyPattern(nil)
		for h := 0; h < 24; h++ {
			assert.Equal(t, 0.5, pattern[h])
		}
	})

	t.Run("early chronotype gets morning boost", func(t *testing.T) {
		pattern := EnergyPattern(&domain.ChronotypeProfile{Type: domain.ChronotypeEarly})
		assert.Equal(t, 0.5, pattern[5])
		for h := 6; h <= 10; h++ {
			assert.InDelta(t, 0.6, pattern[h], 1e-9)
		}
		assert.Equal(t, 0.5, pattern[11])
	})

	t.Run("late chronotype gets evening boost", func(t *testing.T) {
		pattern := EnergyPattern(&domain.ChronotypeProfile{Type: domain.ChronotypeLate})
		assert.Equal(t, 0.5, pattern[16])
		for h := 17; h <= 21; h++ {
			assert.InDelta(t, 0.6, pattern[h], 1e-9)
		}
		assert.Equal(t, 0.5, pattern[22])
	})

	t.Run("intermediate stays flat", func(t *testing.T) {
		pattern := EnergyPattern(&domain.ChronotypeProfile{Type: domain.ChronotypeIntermediate})
		for h := 0; h < 24; h++ {
			assert.Equal(t, 0.5, pattern[h])
		}
	})
}
