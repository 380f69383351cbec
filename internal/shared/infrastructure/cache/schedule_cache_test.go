package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

func TestKeyDeterministic(t *testing.T) {
	input := domain.ScheduleInput{
		UserID:     uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		TargetDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	first, err := Key(input)
	require.NoError(t, err)
	second, err := Key(input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "tempo:schedule:")
}

func TestKeyChangesWithInput(t *testing.T) {
	base := domain.ScheduleInput{
		UserID:     uuid.New(),
		TargetDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	other := base
	other.TargetDate = base.TargetDate.AddDate(0, 0, 1)

	k1, err := Key(base)
	require.NoError(t, err)
	k2, err := Key(other)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	withTask := base
	withTask.Tasks = []domain.Task{{ID: uuid.New(), Title: "T", DurationMinutes: 30}}
	k3, err := Key(withTask)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}
