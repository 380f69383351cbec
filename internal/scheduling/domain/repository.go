package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleRepository defines the interface for schedule persistence.
type ScheduleRepository interface {
	// Save persists a schedule, replacing any earlier one for the same
	// user and date.
	Save(ctx context.Context, schedule *GeneratedSchedule) error

	// FindByID finds a schedule by its ID, or returns nil when none exists.
	FindByID(ctx context.Context, id uuid.UUID) (*GeneratedSchedule, error)

	// FindByUserAndDate finds a schedule for a user on a specific date, or
	// returns nil when none exists.
	FindByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*GeneratedSchedule, error)

	// Delete removes a schedule.
	Delete(ctx context.Context, id uuid.UUID) error
}
