package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

func newTestRepo(t *testing.T) *SQLiteScheduleRepository {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tempo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteScheduleRepository(db)
}

func sampleSchedule(userID uuid.UUID, date time.Time) *domain.GeneratedSchedule {
	taskID := uuid.New()
	return &domain.GeneratedSchedule{
		ScheduleID: uuid.NewSHA1(userID, []byte(date.Format("2006-01-02"))),
		UserID:     userID,
		TargetDate: date,
		Items: []domain.ScheduledItem{
			{Type: domain.ItemSleep, Name: "Sleep", StartMinutes: 0, EndMinutes: 420},
			{Type: domain.ItemTask, Name: "Report", StartMinutes: 540, EndMinutes: 600, TaskID: &taskID},
			{Type: domain.ItemFree, Name: "Free Time", StartMinutes: 600, EndMinutes: 1440},
		},
		Metrics: domain.Metrics{
			Status:            domain.StatusCompleted,
			TotalTaskMinutes:  60,
			TotalSleepMinutes: 420,
			TaskCompletionPct: 100,
		},
		Warnings: []string{"age not provided, assuming 30"},
	}
}

func TestSQLiteScheduleRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	saved := sampleSchedule(userID, date)
	require.NoError(t, repo.Save(ctx, saved))

	loaded, err := repo.FindByUserAndDate(ctx, userID, date)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, saved.ScheduleID, loaded.ScheduleID)
	assert.Equal(t, saved.UserID, loaded.UserID)
	assert.True(t, saved.TargetDate.Equal(loaded.TargetDate))
	assert.Equal(t, saved.Items, loaded.Items)
	assert.Equal(t, saved.Metrics, loaded.Metrics)
	assert.Equal(t, saved.Warnings, loaded.Warnings)

	byID, err := repo.FindByID(ctx, saved.ScheduleID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, saved.Items, byID.Items)
}

func TestSQLiteScheduleSaveReplaces(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	first := sampleSchedule(userID, date)
	require.NoError(t, repo.Save(ctx, first))

	second := sampleSchedule(userID, date)
	second.Items = second.Items[:1]
	second.Items[0].EndMinutes = 1440
	require.NoError(t, repo.Save(ctx, second))

	loaded, err := repo.FindByUserAndDate(ctx, userID, date)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 1440, loaded.Items[0].EndMinutes)
}

func TestSQLiteScheduleMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loaded, err := repo.FindByUserAndDate(ctx, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.Nil(t, loaded)

	byID, err := repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, byID)
}

func TestSQLiteScheduleDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	saved := sampleSchedule(userID, date)
	require.NoError(t, repo.Save(ctx, saved))
	require.NoError(t, repo.Delete(ctx, saved.ScheduleID))

	loaded, err := repo.FindByUserAndDate(ctx, userID, date)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
