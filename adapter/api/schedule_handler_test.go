package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circadianlabs/tempo/internal/scheduling/application"
	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/observability"
)

type memoryRepo struct {
	saved map[string]*domain.GeneratedSchedule
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{saved: make(map[string]*domain.GeneratedSchedule)}
}

func (m *memoryRepo) key(userID uuid.UUID, date time.Time) string {
	return userID.String() + "/" + date.Format("2006-01-02")
}

func (m *memoryRepo) Save(_ context.Context, s *domain.GeneratedSchedule) error {
	m.saved[m.key(s.UserID, s.TargetDate)] = s
	return nil
}

func (m *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.GeneratedSchedule, error) {
	for _, s := range m.saved {
		if s.ScheduleID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (m *memoryRepo) FindByUserAndDate(_ context.Context, userID uuid.UUID, date time.Time) (*domain.GeneratedSchedule, error) {
	return m.saved[m.key(userID, date)], nil
}

func (m *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	for k, s := range m.saved {
		if s.ScheduleID == id {
			delete(m.saved, k)
		}
	}
	return nil
}

func newTestServer(repo domain.ScheduleRepository) *Server {
	generator := application.NewGenerator(application.GeneratorConfig{}, nil)
	handler := NewScheduleHandler(generator, nil)
	if repo != nil {
		handler.WithRepository(repo)
	}
	return NewServer(DefaultServerConfig(), handler, nil)
}

const generateBody = `{
	"user_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	"target_date": "2025-01-15",
	"tasks": [
		{
			"title": "Write report",
			"duration": "1h",
			"priority": 4,
			"energy_level": 2,
			"earliest_start": "09:00",
			"created_at": "2025-01-14T09:00:00Z"
		}
	],
	"fixed_events": [
		{"id": "team-lunch", "name": "Team Lunch", "start_time": "12:30", "end_time": "13:15"}
	],
	"preferences": {"preferred_wake_time": "07:00"},
	"user_profile": {"age": 30}
}`

func TestGenerateScheduleEndpoint(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/generate", strings.NewReader(generateBody))
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", resp.UserID)
	assert.Equal(t, "2025-01-15", resp.TargetDate)
	assert.Equal(t, domain.StatusCompleted, resp.Metrics.Status)

	// Items tile the day.
	require.NotEmpty(t, resp.Items)
	assert.Equal(t, 0, resp.Items[0].StartMinutes)
	assert.Equal(t, 1440, resp.Items[len(resp.Items)-1].EndMinutes)
	assert.Equal(t, "00:00", resp.Items[len(resp.Items)-1].EndTime)

	// Legacy projection carries the solved task.
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "Write report", resp.Tasks[0].Task)
	assert.Equal(t, "09:00", resp.Tasks[0].StartTime)
	assert.Equal(t, "10:00", resp.Tasks[0].EndTime)
}

func TestGenerateScheduleEndpointPersists(t *testing.T) {
	repo := newMemoryRepo()
	server := newTestServer(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/generate", strings.NewReader(generateBody))
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.saved, 1)

	get := httptest.NewRequest(http.MethodGet, "/api/v1/schedules/6ba7b810-9dad-11d1-80b4-00c04fd430c8/2025-01-15", nil)
	getRec := httptest.NewRecorder()
	server.mux.ServeHTTP(getRec, get)
	require.Equal(t, http.StatusOK, getRec.Code)

	var resp generateResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-01-15", resp.TargetDate)
}

func TestGenerateScheduleEndpointBadRequests(t *testing.T) {
	server := newTestServer(nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{"},
		{name: "bad user id", body: `{"user_id": "nope", "target_date": "2025-01-15"}`},
		{name: "bad date", body: `{"user_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "target_date": "January 15"}`},
		{name: "bad clock", body: `{"user_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "target_date": "2025-01-15", "fixed_events": [{"id": "x", "name": "X", "start_time": "25:00", "end_time": "26:00"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/generate", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			server.mux.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var apiErr APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.NotEmpty(t, apiErr.Error)
		})
	}
}

func TestGetScheduleNotFound(t *testing.T) {
	server := newTestServer(newMemoryRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedules/"+uuid.NewString()+"/2025-01-15", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpointWithFailingDependency(t *testing.T) {
	reg := observability.NewHealthRegistry()
	reg.Register("database", observability.DatabaseHealthChecker(func(ctx context.Context) error {
		return context.DeadlineExceeded
	}))
	server := newTestServer(nil).WithHealth(reg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health observability.OverallHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, observability.HealthStatusUnhealthy, health.Status)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}
