package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/circadianlabs/tempo/internal/scheduling/application"
	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/internal/shared/infrastructure/cache"
	"github.com/circadianlabs/tempo/internal/shared/infrastructure/eventbus"
)

// ScheduleHandler serves the schedule endpoints. Repository, publisher, and
// cache are optional; a nil value disables that side effect.
type ScheduleHandler struct {
	generator *application.Generator
	repo      domain.ScheduleRepository
	publisher eventbus.Publisher
	cache     *cache.ScheduleCache
	logger    *slog.Logger
}

// NewScheduleHandler creates a schedule handler.
func NewScheduleHandler(generator *application.Generator, logger *slog.Logger) *ScheduleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleHandler{generator: generator, logger: logger}
}

// WithRepository attaches schedule persistence.
func (h *ScheduleHandler) WithRepository(repo domain.ScheduleRepository) *ScheduleHandler {
	h.repo = repo
	return h
}

// WithPublisher attaches domain event publishing.
func (h *ScheduleHandler) WithPublisher(pub eventbus.Publisher) *ScheduleHandler {
	h.publisher = pub
	return h
}

// WithCache attaches the schedule cache.
func (h *ScheduleHandler) WithCache(c *cache.ScheduleCache) *ScheduleHandler {
	h.cache = c
	return h
}

// GenerateSchedule handles POST /api/v1/schedules/generate
func (h *ScheduleHandler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	input, warnings, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.cache != nil {
		if cached := h.cache.Get(r.Context(), input); cached != nil {
			h.logger.Debug("schedule served from cache", "user_id", input.UserID)
			writeJSON(w, http.StatusOK, toResponse(*cached))
			return
		}
	}

	schedule, err := h.generator.Generate(r.Context(), input)
	if err != nil {
		if errors.Is(err, application.ErrMissingUserID) || errors.Is(err, application.ErrMissingTargetDate) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("schedule generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate schedule")
		return
	}
	schedule.Warnings = append(warnings, schedule.Warnings...)

	if h.repo != nil {
		if err := h.repo.Save(r.Context(), &schedule); err != nil {
			h.logger.Error("failed to persist schedule", "schedule_id", schedule.ScheduleID, "error", err)
		}
	}
	if h.publisher != nil {
		if err := eventbus.PublishScheduleGenerated(r.Context(), h.publisher, &schedule); err != nil {
			h.logger.Error("failed to publish schedule event", "schedule_id", schedule.ScheduleID, "error", err)
		}
	}
	if h.cache != nil && schedule.Metrics.Status == domain.StatusCompleted {
		h.cache.Set(r.Context(), input, &schedule)
	}

	writeJSON(w, http.StatusOK, toResponse(schedule))
}

// GetSchedule handles GET /api/v1/schedules/{userID}/{date}
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusNotFound, "Schedule storage not configured")
		return
	}

	userID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", r.PathValue("date"), time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	schedule, err := h.repo.FindByUserAndDate(r.Context(), userID, date)
	if err != nil {
		h.logger.Error("failed to load schedule", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load schedule")
		return
	}
	if schedule == nil {
		writeError(w, http.StatusNotFound, "Schedule not found")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(*schedule))
}
