package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/circadianlabs/tempo/pkg/timeutil"
)

// ItemType classifies a scheduled interval.
type ItemType string

const (
	ItemTask     ItemType = "TASK"
	ItemFixed    ItemType = "FIXED"
	ItemSleep    ItemType = "SLEEP"
	ItemMeal     ItemType = "MEAL"
	ItemRoutine  ItemType = "ROUTINE"
	ItemActivity ItemType = "ACTIVITY"
	ItemBreak    ItemType = "BREAK"
	ItemFree     ItemType = "FREE"
)

// placementRank orders item types for conflict resolution during gap
// filling. Higher ranks win; lower-ranked items are dropped, never resized.
var placementRank = map[ItemType]int{
	ItemFixed:    6,
	ItemSleep:    6,
	ItemTask:     5,
	ItemMeal:     4,
	ItemRoutine:  3,
	ItemActivity: 2,
	ItemBreak:    1,
	ItemFree:     1,
}

// PlacementRank returns the conflict-resolution rank of an item type.
func PlacementRank(t ItemType) int {
	return placementRank[t]
}

// ScheduledItem is one interval of the final day plan. The emitted sequence
// tiles [0,1440] with no gaps and no overlaps.
type ScheduledItem struct {
	Type         ItemType   `json:"type"`
	Name         string     `json:"name"`
	StartMinutes int        `json:"start_minutes"`
	EndMinutes   int        `json:"end_minutes"`
	TaskID       *uuid.UUID `json:"task_id,omitempty"`
}

// Duration returns the item length in minutes.
func (i ScheduledItem) Duration() int {
	return i.EndMinutes - i.StartMinutes
}

// StartTime renders the item start as "HH:MM".
func (i ScheduledItem) StartTime() string {
	return timeutil.FormatClock(i.StartMinutes)
}

// EndTime renders the item end as "HH:MM"; 1440 renders as "00:00".
func (i ScheduledItem) EndTime() string {
	return timeutil.FormatClock(i.EndMinutes)
}

// ScheduleStatus values reported in Metrics.Status.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Metrics summarizes a generated schedule. Every total is a pure function of
// the item list.
type Metrics struct {
	Status               string  `json:"status"`
	TotalTaskMinutes     int     `json:"total_task_minutes"`
	TotalBreakMinutes    int     `json:"total_break_minutes"`
	TotalFixedMinutes    int     `json:"total_fixed_minutes"`
	TotalSleepMinutes    int     `json:"total_sleep_minutes"`
	TotalMealMinutes     int     `json:"total_meal_minutes"`
	TotalRoutineMinutes  int     `json:"total_routine_minutes"`
	TotalActivityMinutes int     `json:"total_activity_minutes"`
	ProductiveMinutes    int     `json:"productive_minutes"`
	PersonalMinutes      int     `json:"personal_minutes"`
	RestMinutes          int     `json:"rest_minutes"`
	UnscheduledTasks     int     `json:"unscheduled_tasks"`
	TaskCompletionPct    float64 `json:"task_completion_pct"`
	WorkLifeBalance      float64 `json:"work_life_balance"`
}

// GeneratedSchedule is the result of one generate call.
type GeneratedSchedule struct {
	ScheduleID uuid.UUID       `json:"schedule_id"`
	UserID     uuid.UUID       `json:"user_id"`
	TargetDate time.Time       `json:"target_date"`
	Items      []ScheduledItem `json:"scheduled_items"`
	Metrics    Metrics         `json:"metrics"`
	Warnings   []string        `json:"warnings"`
}

// SortItems orders items by start minute, ties by name for determinism.
func SortItems(items []ScheduledItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].StartMinutes != items[j].StartMinutes {
			return items[i].StartMinutes < items[j].StartMinutes
		}
		return items[i].Name < items[j].Name
	})
}

// ValidateCoverage reports whether the items tile [0,1440] exactly.
// Items must already be sorted by start.
func ValidateCoverage(items []ScheduledItem) bool {
	cursor := 0
	for _, item := range items {
		if item.StartMinutes != cursor || item.EndMinutes <= item.StartMinutes {
			return false
		}
		cursor = item.EndMinutes
	}
	return cursor == timeutil.MinutesPerDay
}
