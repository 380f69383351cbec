package application

import (
	"math"

	"github.com/google/uuid"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

// computeMetrics summarizes a finished item list. Productive time is tasks
// plus activities, personal time is meals plus routines, rest is breaks plus
// sleep; with free time counted as break the three groups and fixed events
// partition the day.
func computeMetrics(items []domain.ScheduledItem, tasks []domain.Task) domain.Metrics {
	m := domain.Metrics{Status: domain.StatusCompleted}

	scheduled := make(map[uuid.UUID]bool)
	for _, item := range items {
		d := item.Duration()
		switch item.Type {
		case domain.ItemTask:
			m.TotalTaskMinutes += d
			if item.TaskID != nil {
				scheduled[*item.TaskID] = true
			}
		case domain.ItemFixed:
			m.TotalFixedMinutes += d
		case domain.ItemSleep:
			m.TotalSleepMinutes += d
		case domain.ItemMeal:
			m.TotalMealMinutes += d
		case domain.ItemRoutine:
			m.TotalRoutineMinutes += d
		case domain.ItemActivity:
			m.TotalActivityMinutes += d
		case domain.ItemBreak, domain.ItemFree:
			m.TotalBreakMinutes += d
		}
	}

	m.ProductiveMinutes = m.TotalTaskMinutes + m.TotalActivityMinutes
	m.PersonalMinutes = m.TotalMealMinutes + m.TotalRoutineMinutes
	m.RestMinutes = m.TotalBreakMinutes + m.TotalSleepMinutes

	pending := 0
	placed := 0
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		pending++
		if scheduled[t.ID] {
			placed++
		}
	}
	m.UnscheduledTasks = pending - placed
	if pending > 0 {
		m.TaskCompletionPct = float64(placed) / float64(pending) * 100
	} else {
		m.TaskCompletionPct = 100
	}

	productive := m.ProductiveMinutes
	if productive < 1 {
		productive = 1
	}
	m.WorkLifeBalance = math.Round(float64(m.PersonalMinutes)/float64(productive)*1000) / 10
	return m
}
