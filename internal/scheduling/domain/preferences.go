package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PreferredTime names the part of day an activity goal should land in.
type PreferredTime string

const (
	PreferMorning     PreferredTime = "morning"
	PreferAfternoon   PreferredTime = "afternoon"
	PreferEvening     PreferredTime = "evening"
	PreferBeforeSleep PreferredTime = "before_sleep"
)

// MealPreferences hold canonical meal times in minutes from midnight.
type MealPreferences struct {
	BreakfastTime    int `json:"breakfast_time"`
	BreakfastMinutes int `json:"breakfast_duration_minutes"`
	LunchTime        int `json:"lunch_time"`
	LunchMinutes     int `json:"lunch_duration_minutes"`
	DinnerTime       int `json:"dinner_time"`
	DinnerMinutes    int `json:"dinner_duration_minutes"`
}

// DefaultMealPreferences returns the canonical meal slots.
func DefaultMealPreferences() MealPreferences {
	return MealPreferences{
		BreakfastTime:    7*60 + 30,
		BreakfastMinutes: 20,
		LunchTime:        12*60 + 30,
		LunchMinutes:     45,
		DinnerTime:       19 * 60,
		DinnerMinutes:    30,
	}
}

// RoutinePreferences hold morning and evening routine durations.
type RoutinePreferences struct {
	MorningMinutes int `json:"morning_duration_minutes"`
	EveningMinutes int `json:"evening_duration_minutes"`
}

// DefaultRoutinePreferences returns the default routine durations.
func DefaultRoutinePreferences() RoutinePreferences {
	return RoutinePreferences{MorningMinutes: 30, EveningMinutes: 45}
}

// ActivityGoal is a recurring activity the gap filler tries to place on days
// its frequency matches.
type ActivityGoal struct {
	Name            string        `json:"name"`
	DurationMinutes int           `json:"duration_minutes"`
	Frequency       string        `json:"frequency"`
	PreferredTime   PreferredTime `json:"preferred_time"`
}

// MatchesWeekday reports whether the goal's frequency covers the given day.
// Recognized frequencies: "daily", "weekdays", "weekends", or a weekday name.
func (g ActivityGoal) MatchesWeekday(day time.Weekday) bool {
	switch strings.ToLower(strings.TrimSpace(g.Frequency)) {
	case "daily", "":
		return true
	case "weekdays":
		return day >= time.Monday && day <= time.Friday
	case "weekends":
		return day == time.Saturday || day == time.Sunday
	default:
		return strings.EqualFold(g.Frequency, day.String())
	}
}

// Preferences are the recognized scheduling preferences for one user.
// Unknown keys in the raw input are logged and ignored upstream.
type Preferences struct {
	PreferredWakeTime *int               `json:"preferred_wake_time,omitempty"`
	SleepNeedScale    *float64           `json:"sleep_need_scale,omitempty"`
	ChronotypeScale   *float64           `json:"chronotype_scale,omitempty"`
	Meals             MealPreferences    `json:"meals"`
	Routines          RoutinePreferences `json:"routines"`
	ActivityGoals     []ActivityGoal     `json:"activity_goals,omitempty"`
}

// DefaultPreferences returns preferences with all defaults applied.
func DefaultPreferences() Preferences {
	return Preferences{
		Meals:    DefaultMealPreferences(),
		Routines: DefaultRoutinePreferences(),
	}
}

// UserProfile is the minimal profile the engine needs.
type UserProfile struct {
	Age      *int   `json:"age,omitempty"`
	MEQScore *int   `json:"meq_score,omitempty"`
	Name     string `json:"name,omitempty"`
}

// ScheduleInput is the full input bundle for one generate call. It is owned
// exclusively by the orchestrator for the duration of the call.
type ScheduleInput struct {
	UserID         uuid.UUID      `json:"user_id"`
	TargetDate     time.Time      `json:"target_date"`
	Tasks          []Task         `json:"tasks"`
	FixedEvents    []FixedEvent   `json:"fixed_events"`
	Preferences    Preferences    `json:"preferences"`
	Profile        UserProfile    `json:"user_profile"`
	WearableToday  map[string]any `json:"wearable_data_today,omitempty"`
	HistoricalData map[string]any `json:"historical_data,omitempty"`
}
