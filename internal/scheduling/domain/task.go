package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidDuration   = errors.New("task duration must be positive")
	ErrInvalidPriority   = errors.New("task priority must be between 1 and 5")
	ErrInvalidEnergy     = errors.New("task energy must be between 1 and 3")
	ErrInvalidWindow     = errors.New("task window cannot fit its duration")
	ErrDependencyCycle   = errors.New("task dependencies form a cycle")
	ErrInvalidTimeRange  = errors.New("start must be before end within the day")
	ErrInvalidScaleValue = errors.New("scale must be between 0 and 100")
)

// Priority levels mirror the 1..5 task priority scale.
const (
	PriorityLowest  = 1
	PriorityLow     = 2
	PriorityMedium  = 3
	PriorityHigh    = 4
	PriorityHighest = 5
)

// Energy levels describe how demanding a task is.
const (
	EnergyLow    = 1
	EnergyMedium = 2
	EnergyHigh   = 3
)

// Task is a flexible unit of work the solver may place anywhere in the day
// that satisfies its window, dependencies, and the no-overlap constraint.
// Tasks are constructed once per generate call and never mutated.
type Task struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	DurationMinutes int         `json:"duration_minutes"`
	Priority        int         `json:"priority"`
	Energy          int         `json:"energy"`
	EarliestStart   *int        `json:"earliest_start,omitempty"`
	Deadline        *int        `json:"deadline_minutes,omitempty"`
	Dependencies    []uuid.UUID `json:"dependencies,omitempty"`
	PostponedCount  int         `json:"postponed_count"`
	Completed       bool        `json:"completed"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Validate checks the per-task invariants.
func (t Task) Validate() error {
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("%w: task %s has duration %d", ErrInvalidDuration, t.ID, t.DurationMinutes)
	}
	if t.Priority < PriorityLowest || t.Priority > PriorityHighest {
		return fmt.Errorf("%w: task %s has priority %d", ErrInvalidPriority, t.ID, t.Priority)
	}
	if t.Energy < EnergyLow || t.Energy > EnergyHigh {
		return fmt.Errorf("%w: task %s has energy %d", ErrInvalidEnergy, t.ID, t.Energy)
	}
	if t.EarliestStart != nil && (*t.EarliestStart < 0 || *t.EarliestStart > 1440) {
		return fmt.Errorf("%w: task %s earliest start %d", ErrInvalidTimeRange, t.ID, *t.EarliestStart)
	}
	if t.Deadline != nil && (*t.Deadline < 0 || *t.Deadline > 1440) {
		return fmt.Errorf("%w: task %s deadline %d", ErrInvalidTimeRange, t.ID, *t.Deadline)
	}
	if t.EarliestStart != nil && t.Deadline != nil && *t.Deadline < *t.EarliestStart+t.DurationMinutes {
		return fmt.Errorf("%w: task %s window [%d,%d] for %dm", ErrInvalidWindow, t.ID, *t.EarliestStart, *t.Deadline, t.DurationMinutes)
	}
	return nil
}

// ValidateDependencyGraph rejects batches whose intra-batch dependency edges
// contain a cycle. Edges pointing outside the batch are ignored here; the
// solver reports them as warnings.
func ValidateDependencyGraph(tasks []Task) error {
	inBatch := make(map[uuid.UUID]bool, len(tasks))
	for _, t := range tasks {
		inBatch[t.ID] = true
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[uuid.UUID]int, len(tasks))
	deps := make(map[uuid.UUID][]uuid.UUID, len(tasks))
	for _, t := range tasks {
		for _, d := range t.Dependencies {
			if inBatch[d] {
				deps[t.ID] = append(deps[t.ID], d)
			}
		}
	}

	var visit func(id uuid.UUID) error
	visit = func(id uuid.UUID) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("%w: via task %s", ErrDependencyCycle, id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, d := range deps[id] {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for _, t := range tasks {
		if err := visit(t.ID); err != nil {
			return err
		}
	}
	return nil
}
