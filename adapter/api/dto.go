package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/timeutil"
)

// generateRequest is the wire form of a generation call. Clock fields are
// "HH:MM" strings; durations accept "1h 30m" style strings or raw minutes.
type generateRequest struct {
	UserID      string              `json:"user_id"`
	TargetDate  string              `json:"target_date"`
	Tasks       []taskRequest       `json:"tasks"`
	FixedEvents []fixedEventRequest `json:"fixed_events"`
	Preferences *preferencesRequest `json:"preferences,omitempty"`
	Profile     profileRequest      `json:"user_profile"`
}

type taskRequest struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title"`
	Duration        string   `json:"duration,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	Priority        int      `json:"priority,omitempty"`
	EnergyLevel     int      `json:"energy_level,omitempty"`
	EarliestStart   string   `json:"earliest_start,omitempty"`
	Deadline        string   `json:"deadline,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
	PostponedCount  int      `json:"postponed_count,omitempty"`
	Completed       bool     `json:"completed,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
}

type fixedEventRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type preferencesRequest struct {
	PreferredWakeTime string                `json:"preferred_wake_time,omitempty"`
	SleepNeedScale    *float64              `json:"sleep_need_scale,omitempty"`
	ChronotypeScale   *float64              `json:"chronotype_scale,omitempty"`
	Meals             *mealsRequest         `json:"meals,omitempty"`
	Routines          *routinesRequest      `json:"routines,omitempty"`
	ActivityGoals     []domain.ActivityGoal `json:"activity_goals,omitempty"`
}

type mealsRequest struct {
	BreakfastTime    string `json:"breakfast_time,omitempty"`
	BreakfastMinutes int    `json:"breakfast_duration_minutes,omitempty"`
	LunchTime        string `json:"lunch_time,omitempty"`
	LunchMinutes     int    `json:"lunch_duration_minutes,omitempty"`
	DinnerTime       string `json:"dinner_time,omitempty"`
	DinnerMinutes    int    `json:"dinner_duration_minutes,omitempty"`
}

type routinesRequest struct {
	MorningMinutes int `json:"morning_duration_minutes,omitempty"`
	EveningMinutes int `json:"evening_duration_minutes,omitempty"`
}

type profileRequest struct {
	Age      *int   `json:"age,omitempty"`
	MEQScore *int   `json:"meq_score,omitempty"`
	Name     string `json:"name,omitempty"`
}

// ParseScheduleRequest decodes the JSON wire form used by the generate
// endpoint. The CLI reads the same format from files.
func ParseScheduleRequest(data []byte) (domain.ScheduleInput, []string, error) {
	var req generateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ScheduleInput{}, nil, fmt.Errorf("invalid schedule request: %w", err)
	}
	return req.toDomain()
}

// toDomain converts the request into the generation input. Parse problems in
// required fields are errors; soft issues come back as warnings.
func (r generateRequest) toDomain() (domain.ScheduleInput, []string, error) {
	var warnings []string

	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return domain.ScheduleInput{}, nil, fmt.Errorf("invalid user_id: %w", err)
	}
	targetDate, err := time.ParseInLocation("2006-01-02", r.TargetDate, time.UTC)
	if err != nil {
		return domain.ScheduleInput{}, nil, fmt.Errorf("invalid target_date: %w", err)
	}

	input := domain.ScheduleInput{
		UserID:     userID,
		TargetDate: targetDate,
		Profile: domain.UserProfile{
			Age:      r.Profile.Age,
			MEQScore: r.Profile.MEQScore,
			Name:     r.Profile.Name,
		},
	}

	for _, t := range r.Tasks {
		task, taskWarnings, err := t.toDomain(userID)
		warnings = append(warnings, taskWarnings...)
		if err != nil {
			return domain.ScheduleInput{}, nil, err
		}
		input.Tasks = append(input.Tasks, task)
	}

	for _, fe := range r.FixedEvents {
		start, err := timeutil.ParseClock(fe.StartTime)
		if err != nil {
			return domain.ScheduleInput{}, nil, fmt.Errorf("fixed event %q: invalid start_time: %w", fe.Name, err)
		}
		end, err := timeutil.ParseClock(fe.EndTime)
		if err != nil {
			return domain.ScheduleInput{}, nil, fmt.Errorf("fixed event %q: invalid end_time: %w", fe.Name, err)
		}
		event, err := domain.NewFixedEvent(fe.ID, fe.Name, start, end)
		if err != nil {
			return domain.ScheduleInput{}, nil, fmt.Errorf("fixed event %q: %w", fe.Name, err)
		}
		input.FixedEvents = append(input.FixedEvents, event)
	}

	prefs, prefWarnings, err := r.Preferences.toDomain()
	warnings = append(warnings, prefWarnings...)
	if err != nil {
		return domain.ScheduleInput{}, nil, err
	}
	input.Preferences = prefs

	return input, warnings, nil
}

func (t taskRequest) toDomain(userID uuid.UUID) (domain.Task, []string, error) {
	var warnings []string

	task := domain.Task{
		Title:          t.Title,
		Priority:       t.Priority,
		Energy:         t.EnergyLevel,
		PostponedCount: t.PostponedCount,
		Completed:      t.Completed,
	}
	if task.Priority == 0 {
		task.Priority = domain.PriorityMedium
	}
	if task.Energy == 0 {
		task.Energy = domain.EnergyMedium
	}

	if t.ID != "" {
		id, err := uuid.Parse(t.ID)
		if err != nil {
			return domain.Task{}, nil, fmt.Errorf("task %q: invalid id: %w", t.Title, err)
		}
		task.ID = id
	} else {
		// A stable fallback id keeps repeated identical requests identical.
		task.ID = uuid.NewSHA1(userID, []byte(t.Title))
	}

	switch {
	case t.Duration != "":
		minutes, warning, err := timeutil.ParseDuration(t.Duration)
		if err != nil {
			return domain.Task{}, nil, fmt.Errorf("task %q: invalid duration: %w", t.Title, err)
		}
		if warning != "" {
			warnings = append(warnings, fmt.Sprintf("task %q: %s", t.Title, warning))
		}
		task.DurationMinutes = minutes
	default:
		task.DurationMinutes = t.DurationMinutes
	}

	if t.EarliestStart != "" {
		m, err := timeutil.ParseClock(t.EarliestStart)
		if err != nil {
			return domain.Task{}, nil, fmt.Errorf("task %q: invalid earliest_start: %w", t.Title, err)
		}
		task.EarliestStart = &m
	}
	if t.Deadline != "" {
		m, err := timeutil.ParseClock(t.Deadline)
		if err != nil {
			return domain.Task{}, nil, fmt.Errorf("task %q: invalid deadline: %w", t.Title, err)
		}
		task.Deadline = &m
	}

	for _, dep := range t.Dependencies {
		id, err := uuid.Parse(dep)
		if err != nil {
			return domain.Task{}, nil, fmt.Errorf("task %q: invalid dependency id %q: %w", t.Title, dep, err)
		}
		task.Dependencies = append(task.Dependencies, id)
	}

	if t.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339, t.CreatedAt)
		if err != nil {
			return domain.Task{}, nil, fmt.Errorf("task %q: invalid created_at: %w", t.Title, err)
		}
		task.CreatedAt = created
	}

	return task, warnings, nil
}

func (p *preferencesRequest) toDomain() (domain.Preferences, []string, error) {
	prefs := domain.DefaultPreferences()
	if p == nil {
		return prefs, nil, nil
	}
	var warnings []string

	if p.PreferredWakeTime != "" {
		m, err := timeutil.ParseClock(p.PreferredWakeTime)
		if err != nil {
			return domain.Preferences{}, nil, fmt.Errorf("invalid preferred_wake_time: %w", err)
		}
		prefs.PreferredWakeTime = &m
	}
	prefs.SleepNeedScale = p.SleepNeedScale
	prefs.ChronotypeScale = p.ChronotypeScale
	prefs.ActivityGoals = p.ActivityGoals

	if p.Meals != nil {
		meals := domain.DefaultMealPreferences()
		setClock := func(field string, value string, dst *int) {
			if value == "" {
				return
			}
			m, err := timeutil.ParseClock(value)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s %q, using default %s", field, value, timeutil.FormatClock(*dst)))
				return
			}
			*dst = m
		}
		setClock("breakfast_time", p.Meals.BreakfastTime, &meals.BreakfastTime)
		setClock("lunch_time", p.Meals.LunchTime, &meals.LunchTime)
		setClock("dinner_time", p.Meals.DinnerTime, &meals.DinnerTime)
		if p.Meals.BreakfastMinutes > 0 {
			meals.BreakfastMinutes = p.Meals.BreakfastMinutes
		}
		if p.Meals.LunchMinutes > 0 {
			meals.LunchMinutes = p.Meals.LunchMinutes
		}
		if p.Meals.DinnerMinutes > 0 {
			meals.DinnerMinutes = p.Meals.DinnerMinutes
		}
		prefs.Meals = meals
	}

	if p.Routines != nil {
		routines := domain.DefaultRoutinePreferences()
		if p.Routines.MorningMinutes > 0 {
			routines.MorningMinutes = p.Routines.MorningMinutes
		}
		if p.Routines.EveningMinutes > 0 {
			routines.EveningMinutes = p.Routines.EveningMinutes
		}
		prefs.Routines = routines
	}

	return prefs, warnings, nil
}

// scheduleItemView is one rendered schedule entry.
type scheduleItemView struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	StartMinutes int    `json:"start_minutes"`
	EndMinutes   int    `json:"end_minutes"`
	TaskID       string `json:"task_id,omitempty"`
}

// legacyTaskView is the flat projection older clients consume.
type legacyTaskView struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Task      string `json:"task"`
}

// generateResponse is the wire form of a generated schedule.
type generateResponse struct {
	ScheduleID string             `json:"schedule_id"`
	UserID     string             `json:"user_id"`
	TargetDate string             `json:"target_date"`
	Items      []scheduleItemView `json:"scheduled_items"`
	Metrics    domain.Metrics     `json:"metrics"`
	Warnings   []string           `json:"warnings"`
	// Tasks is the legacy projection: task blocks only, as clock strings.
	Tasks []legacyTaskView `json:"tasks"`
}

func toResponse(schedule domain.GeneratedSchedule) generateResponse {
	resp := generateResponse{
		ScheduleID: schedule.ScheduleID.String(),
		UserID:     schedule.UserID.String(),
		TargetDate: schedule.TargetDate.Format("2006-01-02"),
		Metrics:    schedule.Metrics,
		Warnings:   schedule.Warnings,
		Items:      make([]scheduleItemView, 0, len(schedule.Items)),
		Tasks:      []legacyTaskView{},
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	for _, item := range schedule.Items {
		view := scheduleItemView{
			Type:         string(item.Type),
			Name:         item.Name,
			StartTime:    item.StartTime(),
			EndTime:      item.EndTime(),
			StartMinutes: item.StartMinutes,
			EndMinutes:   item.EndMinutes,
		}
		if item.TaskID != nil {
			view.TaskID = item.TaskID.String()
		}
		resp.Items = append(resp.Items, view)
		if item.Type == domain.ItemTask {
			resp.Tasks = append(resp.Tasks, legacyTaskView{
				StartTime: item.StartTime(),
				EndTime:   item.EndTime(),
				Task:      item.Name,
			})
		}
	}
	return resp
}
