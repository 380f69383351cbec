package domain

import (
	"fmt"

	"github.com/circadianlabs/tempo/pkg/timeutil"
)

// FixedEvent is a non-movable interval on the target day. Wall-clock events
// that cross midnight are supplied as two entries, an "_prev" half ending at
// 1440 and an "_next" half starting at 0.
type FixedEvent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	StartMinutes int    `json:"start_minutes"`
	EndMinutes   int    `json:"end_minutes"`
}

// NewFixedEvent builds a validated fixed event. An end of 0 is interpreted
// as end-of-day (1440) so events ending exactly at midnight are accepted.
func NewFixedEvent(id, name string, start, end int) (FixedEvent, error) {
	if end == 0 && start > 0 {
		end = timeutil.MinutesPerDay
	}
	if start < 0 || end > timeutil.MinutesPerDay || start >= end {
		return FixedEvent{}, fmt.Errorf("%w: event %q [%d,%d]", ErrInvalidTimeRange, id, start, end)
	}
	if name == "" {
		name = id
	}
	return FixedEvent{ID: id, Name: name, StartMinutes: start, EndMinutes: end}, nil
}

// Duration returns the event length in minutes.
func (e FixedEvent) Duration() int {
	return e.EndMinutes - e.StartMinutes
}

// Overlaps reports whether two half-open intervals [start,end) intersect.
func (e FixedEvent) Overlaps(start, end int) bool {
	return e.StartMinutes < end && start < e.EndMinutes
}
