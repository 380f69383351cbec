package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

type capturePublisher struct {
	routingKey string
	payload    []byte
}

func (c *capturePublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	c.routingKey = routingKey
	c.payload = payload
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestPublishScheduleGenerated(t *testing.T) {
	schedule := &domain.GeneratedSchedule{
		ScheduleID: uuid.New(),
		UserID:     uuid.New(),
		TargetDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Items: []domain.ScheduledItem{
			{Type: domain.ItemSleep, Name: "Sleep", StartMinutes: 0, EndMinutes: 1440},
		},
		Metrics:  domain.Metrics{Status: domain.StatusCompleted},
		Warnings: []string{"one"},
	}

	pub := &capturePublisher{}
	require.NoError(t, PublishScheduleGenerated(context.Background(), pub, schedule))

	assert.Equal(t, RoutingKeyScheduleGenerated, pub.routingKey)

	var event ScheduleGeneratedEvent
	require.NoError(t, json.Unmarshal(pub.payload, &event))
	assert.Equal(t, schedule.ScheduleID, event.ScheduleID)
	assert.Equal(t, schedule.UserID, event.UserID)
	assert.Equal(t, "2025-01-15", event.TargetDate)
	assert.Equal(t, domain.StatusCompleted, event.Status)
	assert.Equal(t, 1, event.ItemCount)
	assert.Equal(t, 1, event.Warnings)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestNoopPublisher(t *testing.T) {
	pub := NewNoopPublisher(nil)
	assert.NoError(t, pub.Publish(context.Background(), "any.key", []byte("{}")))
	assert.NoError(t, pub.Close())
}
