package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/timeutil"
)

// fillContext carries what the gap filler needs beyond the skeleton itself.
type fillContext struct {
	wake    int
	bedtime int
	prefs   domain.Preferences
	weekday time.Weekday
}

// fillGaps inserts meals, routines, and activity goals into the free space
// around the skeleton, then labels every remaining gap so the result tiles
// [0,1440]. Fillers that collide with higher-ranked items are dropped whole,
// never shortened.
func fillGaps(skeleton []domain.ScheduledItem, fc fillContext) ([]domain.ScheduledItem, []string) {
	items := make([]domain.ScheduledItem, len(skeleton))
	copy(items, skeleton)
	domain.SortItems(items)

	var warnings []string
	insert := func(candidate domain.ScheduledItem) {
		if candidate.StartMinutes < 0 || candidate.EndMinutes > timeutil.MinutesPerDay ||
			candidate.EndMinutes <= candidate.StartMinutes {
			warnings = append(warnings, fmt.Sprintf("%s %q does not fit the day", strings.ToLower(string(candidate.Type)), candidate.Name))
			return
		}
		for _, existing := range items {
			if overlapsItem(candidate, existing) {
				warnings = append(warnings, conflictWarning(candidate, existing))
				return
			}
		}
		items = append(items, candidate)
		domain.SortItems(items)
	}

	// Fillers go in by descending placement rank: meals, then routines,
	// then activities.
	for _, meal := range mealCandidates(items, fc.prefs.Meals) {
		insert(meal)
	}

	routines := fc.prefs.Routines
	insert(domain.ScheduledItem{
		Type:         domain.ItemRoutine,
		Name:         "Morning Routine",
		StartMinutes: fc.wake,
		EndMinutes:   fc.wake + routines.MorningMinutes,
	})
	eveningStart := maxInt(0, fc.bedtime-routines.EveningMinutes)
	insert(domain.ScheduledItem{
		Type:         domain.ItemRoutine,
		Name:         "Evening Routine",
		StartMinutes: eveningStart,
		EndMinutes:   fc.bedtime,
	})

	for _, goal := range fc.prefs.ActivityGoals {
		if !goal.MatchesWeekday(fc.weekday) {
			continue
		}
		start := activityStart(goal, fc, eveningStart)
		insert(domain.ScheduledItem{
			Type:         domain.ItemActivity,
			Name:         goal.Name,
			StartMinutes: start,
			EndMinutes:   start + goal.DurationMinutes,
		})
	}

	labeled, labelWarnings := labelGaps(items)
	return labeled, append(warnings, labelWarnings...)
}

// resolveConflicts drops overlapping items by placement rank: the lower
// ranked block loses; on equal rank the earlier block stays. The sleep and
// task blocks come from the solver conflict-free, so in practice this
// arbitrates user fixed events against the injected sleep window. Survivors
// are sorted and overlap-free.
func resolveConflicts(items []domain.ScheduledItem) ([]domain.ScheduledItem, []string) {
	sorted := make([]domain.ScheduledItem, len(items))
	copy(sorted, items)
	domain.SortItems(sorted)

	var warnings []string
	kept := make([]domain.ScheduledItem, 0, len(sorted))
	for _, item := range sorted {
		blocked := false
		for _, existing := range kept {
			if overlapsItem(item, existing) && domain.PlacementRank(existing.Type) >= domain.PlacementRank(item.Type) {
				warnings = append(warnings, conflictWarning(item, existing))
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		retained := kept[:0]
		for _, existing := range kept {
			if overlapsItem(item, existing) {
				warnings = append(warnings, conflictWarning(existing, item))
				continue
			}
			retained = append(retained, existing)
		}
		kept = append(retained, item)
	}
	domain.SortItems(kept)
	return kept, warnings
}

func overlapsItem(a, b domain.ScheduledItem) bool {
	return a.StartMinutes < b.EndMinutes && b.StartMinutes < a.EndMinutes
}

func conflictWarning(loser, winner domain.ScheduledItem) string {
	return fmt.Sprintf("%s %q dropped: conflicts with %q (%s-%s)",
		strings.ToLower(string(loser.Type)), loser.Name,
		winner.Name, winner.StartTime(), winner.EndTime())
}

// mealCandidates builds the meal items still worth placing. A meal already on
// the calendar as a fixed event (matched by name) is skipped.
func mealCandidates(items []domain.ScheduledItem, meals domain.MealPreferences) []domain.ScheduledItem {
	type meal struct {
		name     string
		start    int
		duration int
	}
	candidates := []meal{
		{"Breakfast", meals.BreakfastTime, meals.BreakfastMinutes},
		{"Lunch", meals.LunchTime, meals.LunchMinutes},
		{"Dinner", meals.DinnerTime, meals.DinnerMinutes},
	}

	out := make([]domain.ScheduledItem, 0, len(candidates))
	for _, m := range candidates {
		if hasNamedEvent(items, m.name) {
			continue
		}
		out = append(out, domain.ScheduledItem{
			Type:         domain.ItemMeal,
			Name:         m.name,
			StartMinutes: m.start,
			EndMinutes:   m.start + m.duration,
		})
	}
	return out
}

func hasNamedEvent(items []domain.ScheduledItem, name string) bool {
	needle := strings.ToLower(name)
	for _, item := range items {
		if item.Type == domain.ItemFixed && strings.Contains(strings.ToLower(item.Name), needle) {
			return true
		}
	}
	return false
}

// activityStart resolves the preferred start minute for an activity goal.
func activityStart(goal domain.ActivityGoal, fc fillContext, eveningRoutineStart int) int {
	switch goal.PreferredTime {
	case domain.PreferMorning:
		return fc.wake + fc.prefs.Routines.MorningMinutes + 30
	case domain.PreferAfternoon:
		return 15 * 60
	case domain.PreferBeforeSleep:
		return eveningRoutineStart - goal.DurationMinutes - 30
	default:
		// Evening is also the fallback for unrecognized values.
		return 18 * 60
	}
}

// labelGaps closes every hole between sorted, non-overlapping items with a
// break item named by its length, so the result tiles the whole day.
func labelGaps(items []domain.ScheduledItem) ([]domain.ScheduledItem, []string) {
	sorted := make([]domain.ScheduledItem, len(items))
	copy(sorted, items)
	domain.SortItems(sorted)

	var warnings []string
	final := make([]domain.ScheduledItem, 0, len(sorted)*2)
	cursor := 0
	for _, item := range sorted {
		if item.StartMinutes > cursor {
			final = append(final, gapItem(cursor, item.StartMinutes))
		}
		final = append(final, item)
		cursor = maxInt(cursor, item.EndMinutes)
	}
	if cursor < timeutil.MinutesPerDay {
		final = append(final, trailingGapItem(cursor))
	}

	if !domain.ValidateCoverage(final) {
		warnings = append(warnings, "schedule items do not tile the day")
	}
	return final, warnings
}

// gapItem labels an interior gap by its length.
func gapItem(start, end int) domain.ScheduledItem {
	item := domain.ScheduledItem{StartMinutes: start, EndMinutes: end}
	switch gap := end - start; {
	case gap >= 120:
		item.Type = domain.ItemFree
		item.Name = "Free Time"
	case gap >= 45:
		item.Type = domain.ItemBreak
		item.Name = "Relaxation"
	case gap >= 15:
		item.Type = domain.ItemBreak
		item.Name = "Short Break"
	default:
		item.Type = domain.ItemBreak
		item.Name = "Quick Break"
	}
	return item
}

// trailingGapItem labels the stretch between the last item and midnight.
// Short remainders read as a quick break, anything longer as free time.
func trailingGapItem(start int) domain.ScheduledItem {
	item := domain.ScheduledItem{
		Type:         domain.ItemFree,
		Name:         "Free Time",
		StartMinutes: start,
		EndMinutes:   timeutil.MinutesPerDay,
	}
	if timeutil.MinutesPerDay-start <= 30 {
		item.Type = domain.ItemBreak
		item.Name = "Quick Break"
	}
	return item
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
