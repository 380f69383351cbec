// Package prioritizer orders tasks by a weighted blend of explicit priority,
// deadline urgency, dependency fan-out, and postponement history, and derives
// the 24-hour energy pattern the solver's objective consumes.
package prioritizer

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/timeutil"
)

// Config holds the scoring weights and normalization scales.
type Config struct {
	PriorityWeight   float64
	DeadlineWeight   float64
	DependencyWeight float64
	PostponedWeight  float64
	DependencyScale  int
	PostponedScale   int
}

// DefaultConfig returns the standard weights.
func DefaultConfig() Config {
	return Config{
		PriorityWeight:   0.50,
		DeadlineWeight:   0.35,
		DependencyWeight: 0.10,
		PostponedWeight:  0.05,
		DependencyScale:  5,
		PostponedScale:   5,
	}
}

// Prioritizer scores and orders task batches.
type Prioritizer struct {
	cfg    Config
	logger *slog.Logger
}

// New builds a prioritizer, filling a zero config with defaults.
func New(cfg Config, logger *slog.Logger) *Prioritizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if cfg.DependencyScale < 1 {
		cfg.DependencyScale = 1
	}
	if cfg.PostponedScale < 1 {
		cfg.PostponedScale = 1
	}
	return &Prioritizer{cfg: cfg, logger: logger}
}

// Prioritize returns the uncompleted tasks in descending score order, ties
// broken by task id for determinism. targetDate anchors minute-of-day
// deadlines to absolute time for the urgency computation.
func (p *Prioritizer) Prioritize(tasks []domain.Task, now, targetDate time.Time) []domain.Task {
	if len(tasks) == 0 {
		return nil
	}

	dependents := DependentCounts(tasks)

	type scored struct {
		task  domain.Task
		score float64
	}
	ranked := make([]scored, 0, len(tasks))
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		s := p.Score(t, now, targetDate, dependents[t.ID])
		ranked = append(ranked, scored{task: t, score: s})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].task.ID.String() < ranked[j].task.ID.String()
	})

	out := make([]domain.Task, len(ranked))
	for i, r := range ranked {
		out[i] = r.task
	}
	p.logger.Debug("prioritized tasks", "count", len(out))
	return out
}

// Score computes the weighted priority score for one task.
func (p *Prioritizer) Score(t domain.Task, now, targetDate time.Time, dependents int) float64 {
	priorityFactor := float64(t.Priority) / float64(domain.PriorityHighest)
	deadlineFactor := p.urgency(t, now, targetDate)
	dependencyFactor := math.Min(1.0, float64(dependents)/float64(p.cfg.DependencyScale))
	postponedFactor := math.Min(1.0, float64(t.PostponedCount)/float64(p.cfg.PostponedScale))

	score := p.cfg.PriorityWeight*priorityFactor +
		p.cfg.DeadlineWeight*deadlineFactor +
		p.cfg.DependencyWeight*dependencyFactor +
		p.cfg.PostponedWeight*postponedFactor
	return math.Max(0, score)
}

// urgency grows quadratically with the fraction of lead time already spent,
// reaching 1 at the deadline. Tasks without a deadline have zero urgency.
func (p *Prioritizer) urgency(t domain.Task, now, targetDate time.Time) float64 {
	if t.Deadline == nil {
		return 0
	}
	day := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	deadlineAt := day.Add(time.Duration(*t.Deadline) * time.Minute)

	if !deadlineAt.After(now) {
		return 1
	}
	lead := deadlineAt.Sub(t.CreatedAt)
	if lead <= 0 {
		return 1
	}
	elapsed := math.Max(0, now.Sub(t.CreatedAt).Seconds()/lead.Seconds())
	return timeutil.Clamp(elapsed*elapsed, 0, 1)
}

// DependentCounts maps each task id to the number of other tasks in the
// batch that list it as a prerequisite. References to tasks outside the
// batch are ignored.
func DependentCounts(tasks []domain.Task) map[uuid.UUID]int {
	inBatch := make(map[uuid.UUID]bool, len(tasks))
	for _, t := range tasks {
		inBatch[t.ID] = true
	}
	counts := make(map[uuid.UUID]int, len(tasks))
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if inBatch[dep] {
				counts[dep]++
			}
		}
	}
	return counts
}

// EnergyPattern derives the hour-by-hour energy expectation from a
// chronotype profile: a flat 0.5 baseline with a +0.1 morning boost for
// early types (hours 6-10) and a +0.1 evening boost for late types
// (hours 17-21).
func EnergyPattern(profile *domain.ChronotypeProfile) domain.EnergyPattern {
	var pattern domain.EnergyPattern
	for h := range pattern {
		pattern[h] = 0.5
	}
	if profile == nil {
		return pattern
	}
	switch profile.Type {
	case domain.ChronotypeEarly:
		for h := 6; h <= 10; h++ {
			pattern[h] = math.Min(1.0, pattern[h]+0.1)
		}
	case domain.ChronotypeLate:
		for h := 17; h <= 21; h++ {
			pattern[h] = math.Min(1.0, pattern[h]+0.1)
		}
	}
	return pattern
}
