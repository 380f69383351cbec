package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

// RoutingKeyScheduleGenerated is the routing key for schedule generation
// events.
const RoutingKeyScheduleGenerated = "schedule.generated.v1"

// ScheduleGeneratedEvent is emitted after a schedule is generated.
type ScheduleGeneratedEvent struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	UserID     uuid.UUID `json:"user_id"`
	TargetDate string    `json:"target_date"`
	Status     string    `json:"status"`
	ItemCount  int       `json:"item_count"`
	Warnings   int       `json:"warnings"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewScheduleGeneratedEvent builds the event payload for a schedule.
func NewScheduleGeneratedEvent(schedule *domain.GeneratedSchedule, occurredAt time.Time) ScheduleGeneratedEvent {
	return ScheduleGeneratedEvent{
		ScheduleID: schedule.ScheduleID,
		UserID:     schedule.UserID,
		TargetDate: schedule.TargetDate.Format("2006-01-02"),
		Status:     schedule.Metrics.Status,
		ItemCount:  len(schedule.Items),
		Warnings:   len(schedule.Warnings),
		OccurredAt: occurredAt,
	}
}

// PublishScheduleGenerated serializes and publishes the event.
func PublishScheduleGenerated(ctx context.Context, pub Publisher, schedule *domain.GeneratedSchedule) error {
	event := NewScheduleGeneratedEvent(schedule, time.Now().UTC())
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding schedule event: %w", err)
	}
	return pub.Publish(ctx, RoutingKeyScheduleGenerated, payload)
}
