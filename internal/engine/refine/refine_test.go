package refine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestBuildPrompt(t *testing.T) {
	id := uuid.New()
	items := []domain.ScheduledItem{
		{Type: domain.ItemSleep, Name: "Sleep", StartMinutes: 0, EndMinutes: 420},
		{Type: domain.ItemTask, Name: "Write report", StartMinutes: 540, EndMinutes: 600, TaskID: &id},
	}
	input := domain.ScheduleInput{Preferences: domain.DefaultPreferences()}

	prompt, err := buildPrompt(items, input)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Write report")
	assert.Contains(t, prompt, id.String())
	assert.Contains(t, prompt, "breakfast_time")
	assert.Contains(t, prompt, "Keep every FIXED, TASK, and SLEEP block")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain json", in: `{"items":[]}`, want: `{"items":[]}`},
		{name: "fenced json", in: "```json\n{\"items\":[]}\n```", want: `{"items":[]}`},
		{name: "bare fence", in: "```\n{\"items\":[]}\n```", want: `{"items":[]}`},
		{name: "not json", in: "sorry, I cannot do that", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractJSON(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseItems(t *testing.T) {
	id := uuid.New()

	t.Run("round trip", func(t *testing.T) {
		payload := `{"items":[
			{"type":"SLEEP","name":"Sleep","start_minutes":0,"end_minutes":420},
			{"type":"TASK","name":"Report","start_minutes":540,"end_minutes":600,"task_id":"` + id.String() + `"}
		]}`
		items, err := parseItems(payload)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, domain.ItemSleep, items[0].Type)
		require.NotNil(t, items[1].TaskID)
		assert.Equal(t, id, *items[1].TaskID)
	})

	t.Run("empty list", func(t *testing.T) {
		_, err := parseItems(`{"items":[]}`)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("bad task id", func(t *testing.T) {
		_, err := parseItems(`{"items":[{"type":"TASK","name":"X","start_minutes":0,"end_minutes":30,"task_id":"nope"}]}`)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "bad task id"))
	})
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, isTransientError(errors.New("503 Service Unavailable")))
	assert.True(t, isTransientError(errors.New("rate limit exceeded")))
	assert.True(t, isTransientError(errors.New("context deadline exceeded")))
	assert.False(t, isTransientError(errors.New("invalid api key")))
}
