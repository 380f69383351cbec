// Package application orchestrates schedule generation: it derives the user's
// chronotype profile and sleep window, prioritizes the task batch, runs the
// constraint solver, optionally refines the result, and fills the remaining
// gaps so the emitted items tile the full day.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/circadianlabs/tempo/internal/engine/chronotype"
	"github.com/circadianlabs/tempo/internal/engine/prioritizer"
	"github.com/circadianlabs/tempo/internal/engine/sleep"
	"github.com/circadianlabs/tempo/internal/engine/solver"
	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/timeutil"
)

var (
	// ErrMissingUserID is returned when the input carries no user id.
	ErrMissingUserID = errors.New("missing user id")
	// ErrMissingTargetDate is returned when the input carries no target date.
	ErrMissingTargetDate = errors.New("missing target date")
)

// Refiner reworks the filler portion of a generated day. Implementations must
// return the full item list; the generator discards any result that touches
// the fixed, task, or sleep skeleton.
type Refiner interface {
	Refine(ctx context.Context, items []domain.ScheduledItem, input domain.ScheduleInput) ([]domain.ScheduledItem, error)
}

// GeneratorConfig holds the orchestration knobs.
type GeneratorConfig struct {
	// DayStart and DayEnd bound the solver's placement window in minutes
	// from midnight.
	DayStart int
	DayEnd   int
	// DefaultAge is assumed when the profile does not state one.
	DefaultAge      int
	SolverTimeLimit time.Duration
	SolverWeights   solver.Weights
}

// DefaultGeneratorConfig returns the standard orchestration settings.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		DayStart:        0,
		DayEnd:          timeutil.MinutesPerDay,
		DefaultAge:      30,
		SolverTimeLimit: solver.DefaultTimeLimit,
	}
}

// Generator wires the engine components into the generate pipeline.
type Generator struct {
	chronotypes *chronotype.Analyzer
	sleep       *sleep.Calculator
	prioritizer *prioritizer.Prioritizer
	solver      *solver.Solver
	refiner     Refiner
	cfg         GeneratorConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewGenerator builds a generator. A zero config is filled with defaults; nil
// components are constructed with their own defaults.
func NewGenerator(cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == (GeneratorConfig{}) {
		cfg = DefaultGeneratorConfig()
	}
	if cfg.DayEnd <= cfg.DayStart {
		cfg.DayStart = 0
		cfg.DayEnd = timeutil.MinutesPerDay
	}
	if cfg.DefaultAge <= 0 {
		cfg.DefaultAge = 30
	}
	return &Generator{
		chronotypes: chronotype.NewAnalyzer(chronotype.Config{}, logger),
		sleep:       sleep.NewCalculator(sleep.Config{}, logger),
		prioritizer: prioritizer.New(prioritizer.Config{}, logger),
		solver:      solver.New(logger),
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// WithRefiner attaches an optional schedule refiner.
func (g *Generator) WithRefiner(r Refiner) *Generator {
	g.refiner = r
	return g
}

// WithClock overrides the wall clock, used by tests and replay tooling.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	if now != nil {
		g.now = now
	}
	return g
}

// Generate produces the full-day schedule for one user and date. Degraded
// outcomes (an unsolvable batch, a rejected refinement) surface as warnings
// and a failed-status schedule rather than errors; the error return covers
// unusable input only.
func (g *Generator) Generate(ctx context.Context, input domain.ScheduleInput) (domain.GeneratedSchedule, error) {
	if input.UserID == uuid.Nil {
		return domain.GeneratedSchedule{}, ErrMissingUserID
	}
	if input.TargetDate.IsZero() {
		return domain.GeneratedSchedule{}, ErrMissingTargetDate
	}

	var warnings []string
	input.Preferences = normalizePreferences(input.Preferences)

	for _, t := range input.Tasks {
		if err := t.Validate(); err != nil {
			return g.failed(input, warnings, fmt.Sprintf("task %q rejected: %v", t.Title, err)), nil
		}
	}
	if err := domain.ValidateDependencyGraph(input.Tasks); err != nil {
		return g.failed(input, warnings, fmt.Sprintf("dependency graph rejected: %v", err)), nil
	}

	profile, profileWarnings := g.resolveProfile(input.Profile)
	warnings = append(warnings, profileWarnings...)

	window, windowWarnings, err := g.resolveSleepWindow(input, profile)
	warnings = append(warnings, windowWarnings...)
	if err != nil {
		return g.failed(input, warnings, fmt.Sprintf("sleep window unavailable: %v", err)), nil
	}

	sleepEvents := sleepFixedEvents(window)
	fixed := make([]domain.FixedEvent, 0, len(input.FixedEvents)+len(sleepEvents))
	fixed = append(fixed, input.FixedEvents...)
	fixed = append(fixed, sleepEvents...)

	pattern := prioritizer.EnergyPattern(&profile)
	ordered := g.prioritizer.Prioritize(input.Tasks, g.now(), input.TargetDate)

	result := g.solver.Solve(ctx, solver.Input{
		DayStart:      g.cfg.DayStart,
		DayEnd:        g.cfg.DayEnd,
		Tasks:         solverTasks(ordered),
		FixedEvents:   fixed,
		EnergyPattern: pattern,
		TimeLimit:     g.cfg.SolverTimeLimit,
		Weights:       g.cfg.SolverWeights,
	})
	warnings = append(warnings, result.Warnings...)
	if !result.Status.Solved() {
		return g.failed(input, warnings, fmt.Sprintf("solver found no schedule (%s)", result.Status)), nil
	}

	skeleton := buildSkeleton(input, sleepEvents, result.Placements)
	skeleton, conflictWarnings := resolveConflicts(skeleton)
	warnings = append(warnings, conflictWarnings...)

	items, fillWarnings := g.finishSchedule(ctx, skeleton, input, window)
	warnings = append(warnings, fillWarnings...)
	if !domain.ValidateCoverage(items) {
		return g.failed(input, warnings, "schedule items do not tile the day"), nil
	}

	schedule := domain.GeneratedSchedule{
		ScheduleID: scheduleID(input),
		UserID:     input.UserID,
		TargetDate: input.TargetDate,
		Items:      items,
		Metrics:    computeMetrics(items, input.Tasks),
		Warnings:   warnings,
	}
	g.logger.Info("schedule generated",
		"user_id", input.UserID,
		"target_date", input.TargetDate.Format("2006-01-02"),
		"items", len(items),
		"warnings", len(warnings))
	return schedule, nil
}

// finishSchedule runs the optional refiner over the skeleton and then fills
// the remaining gaps. A refinement that fails, breaks the skeleton, or leaves
// holes in the day is discarded.
func (g *Generator) finishSchedule(ctx context.Context, skeleton []domain.ScheduledItem, input domain.ScheduleInput, window domain.SleepWindow) ([]domain.ScheduledItem, []string) {
	fc := fillContext{
		wake:    window.WakeMinutes,
		bedtime: window.BedtimeMinutes,
		prefs:   input.Preferences,
		weekday: input.TargetDate.Weekday(),
	}

	if g.refiner != nil {
		refined, err := g.refiner.Refine(ctx, skeleton, input)
		switch {
		case err != nil:
			return g.fillFrom(skeleton, fc, []string{fmt.Sprintf("refinement skipped: %v", err)})
		case !preservesSkeleton(skeleton, refined):
			return g.fillFrom(skeleton, fc, []string{"refinement discarded: fixed, task, or sleep blocks were altered"})
		default:
			domain.SortItems(refined)
			if domain.ValidateCoverage(refined) {
				return refined, nil
			}
			// The refiner kept the skeleton intact but left gaps; relabel
			// them instead of rejecting the whole result.
			items, warns := labelGaps(refined)
			if domain.ValidateCoverage(items) {
				return items, warns
			}
			return g.fillFrom(skeleton, fc, []string{"refinement discarded: returned items overlap"})
		}
	}
	return g.fillFrom(skeleton, fc, nil)
}

func (g *Generator) fillFrom(skeleton []domain.ScheduledItem, fc fillContext, warnings []string) ([]domain.ScheduledItem, []string) {
	items, fillWarnings := fillGaps(skeleton, fc)
	return items, append(warnings, fillWarnings...)
}

// resolveProfile derives the chronotype profile from the MEQ score when one
// is present, falling back to the unknown-chronotype defaults.
func (g *Generator) resolveProfile(p domain.UserProfile) (domain.ChronotypeProfile, []string) {
	ct := domain.ChronotypeUnknown
	var warnings []string
	if p.MEQScore != nil {
		derived, err := g.chronotypes.FromMEQ(*p.MEQScore)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("meq score ignored: %v", err))
		} else {
			ct = derived
		}
	}
	return g.chronotypes.NewProfile(ct), warnings
}

func (g *Generator) resolveSleepWindow(input domain.ScheduleInput, profile domain.ChronotypeProfile) (domain.SleepWindow, []string, error) {
	var warnings []string
	age := g.cfg.DefaultAge
	if input.Profile.Age != nil {
		age = *input.Profile.Age
	} else {
		warnings = append(warnings, fmt.Sprintf("age not provided, assuming %d", age))
	}
	window, sleepWarnings, err := g.sleep.SleepWindow(
		age,
		profile.Type,
		input.Preferences.PreferredWakeTime,
		input.Preferences.SleepNeedScale,
		input.Preferences.ChronotypeScale,
	)
	return window, append(warnings, sleepWarnings...), err
}

// failed builds the empty degraded schedule for an unrecoverable step.
func (g *Generator) failed(input domain.ScheduleInput, warnings []string, reason string) domain.GeneratedSchedule {
	g.logger.Error("schedule generation failed", "user_id", input.UserID, "reason", reason)
	unscheduled := 0
	for _, t := range input.Tasks {
		if !t.Completed {
			unscheduled++
		}
	}
	return domain.GeneratedSchedule{
		ScheduleID: scheduleID(input),
		UserID:     input.UserID,
		TargetDate: input.TargetDate,
		Items:      []domain.ScheduledItem{},
		Metrics: domain.Metrics{
			Status:           domain.StatusFailed,
			UnscheduledTasks: unscheduled,
		},
		Warnings: append(warnings, reason),
	}
}

// scheduleID derives a stable id from the user and date so repeated calls
// with equal input produce identical output.
func scheduleID(input domain.ScheduleInput) uuid.UUID {
	return uuid.NewSHA1(input.UserID, []byte(input.TargetDate.Format("2006-01-02")))
}

// sleepFixedEvents turns the sleep window into fixed events. A window that
// wraps midnight splits into a late block ending at 24:00 and an early block
// starting at 00:00.
func sleepFixedEvents(w domain.SleepWindow) []domain.FixedEvent {
	if w.WrapsMidnight() {
		return []domain.FixedEvent{
			{ID: "sleep_prev", Name: "Sleep", StartMinutes: w.BedtimeMinutes, EndMinutes: timeutil.MinutesPerDay},
			{ID: "sleep_next", Name: "Sleep", StartMinutes: 0, EndMinutes: w.WakeMinutes},
		}
	}
	return []domain.FixedEvent{
		{ID: "sleep", Name: "Sleep", StartMinutes: w.BedtimeMinutes, EndMinutes: w.BedtimeMinutes + w.DurationMinutes},
	}
}

func solverTasks(tasks []domain.Task) []solver.Task {
	out := make([]solver.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, solver.Task{
			ID:              t.ID,
			DurationMinutes: t.DurationMinutes,
			Priority:        t.Priority,
			Energy:          t.Energy,
			EarliestStart:   t.EarliestStart,
			LatestEnd:       t.Deadline,
			Dependencies:    t.Dependencies,
		})
	}
	return out
}

// buildSkeleton assembles the immovable items: calendar events, sleep blocks,
// and solved task placements.
func buildSkeleton(input domain.ScheduleInput, sleepEvents []domain.FixedEvent, placements []solver.Placement) []domain.ScheduledItem {
	items := make([]domain.ScheduledItem, 0, len(input.FixedEvents)+len(sleepEvents)+len(placements))
	for _, fe := range input.FixedEvents {
		items = append(items, domain.ScheduledItem{
			Type:         domain.ItemFixed,
			Name:         fe.Name,
			StartMinutes: fe.StartMinutes,
			EndMinutes:   fe.EndMinutes,
		})
	}
	for _, se := range sleepEvents {
		items = append(items, domain.ScheduledItem{
			Type:         domain.ItemSleep,
			Name:         se.Name,
			StartMinutes: se.StartMinutes,
			EndMinutes:   se.EndMinutes,
		})
	}
	titles := make(map[uuid.UUID]string, len(input.Tasks))
	for _, t := range input.Tasks {
		titles[t.ID] = t.Title
	}
	for _, p := range placements {
		id := p.TaskID
		items = append(items, domain.ScheduledItem{
			Type:         domain.ItemTask,
			Name:         titles[id],
			StartMinutes: p.StartMinutes,
			EndMinutes:   p.EndMinutes,
			TaskID:       &id,
		})
	}
	domain.SortItems(items)
	return items
}

// preservesSkeleton reports whether the refined items contain exactly the
// original fixed, task, and sleep blocks, unmoved and unrenamed.
func preservesSkeleton(skeleton, refined []domain.ScheduledItem) bool {
	want := make(map[skeletonKey]int)
	for _, item := range skeleton {
		want[keyOf(item)]++
	}
	for _, item := range refined {
		if !isSkeletonType(item.Type) {
			continue
		}
		k := keyOf(item)
		if want[k] == 0 {
			return false
		}
		want[k]--
	}
	for _, n := range want {
		if n != 0 {
			return false
		}
	}
	return true
}

type skeletonKey struct {
	typ        domain.ItemType
	name       string
	start, end int
	taskID     uuid.UUID
}

func keyOf(item domain.ScheduledItem) skeletonKey {
	k := skeletonKey{typ: item.Type, name: item.Name, start: item.StartMinutes, end: item.EndMinutes}
	if item.TaskID != nil {
		k.taskID = *item.TaskID
	}
	return k
}

func isSkeletonType(t domain.ItemType) bool {
	return t == domain.ItemFixed || t == domain.ItemTask || t == domain.ItemSleep
}

// normalizePreferences fills zero-valued meal and routine preferences with
// the defaults.
func normalizePreferences(p domain.Preferences) domain.Preferences {
	if p.Meals == (domain.MealPreferences{}) {
		p.Meals = domain.DefaultMealPreferences()
	}
	if p.Routines == (domain.RoutinePreferences{}) {
		p.Routines = domain.DefaultRoutinePreferences()
	}
	return p
}
