// Package refine reworks the filler portion of a generated day with Gemini.
// The model receives the solved skeleton and the user's preferences and may
// rearrange breaks, meals, routines, and activities; the caller rejects any
// output that touches fixed, task, or sleep blocks.
package refine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

var (
	// ErrMissingAPIKey is returned when no Gemini API key is configured.
	ErrMissingAPIKey = errors.New("missing gemini api key")
	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Config tunes the refinement engine.
type Config struct {
	APIKey string
	// Model defaults to gemini-2.5-flash-lite.
	Model       string
	MaxRetries  int
	Temperature float32
	// Circuit breaker settings.
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold uint32
}

// DefaultConfig returns the standard refinement settings.
func DefaultConfig() Config {
	return Config{
		Model:                   "gemini-2.5-flash-lite",
		MaxRetries:              3,
		Temperature:             0.1,
		BreakerMaxRequests:      1,
		BreakerInterval:         60 * time.Second,
		BreakerTimeout:          30 * time.Second,
		BreakerFailureThreshold: 5,
	}
}

// Engine calls Gemini through a circuit breaker.
type Engine struct {
	client  *genai.Client
	breaker *gobreaker.CircuitBreaker[[]domain.ScheduledItem]
	cfg     Config
	logger  *slog.Logger
}

// New builds a refinement engine.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	defaults := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = defaults.BreakerMaxRequests
	}
	if cfg.BreakerInterval == 0 {
		cfg.BreakerInterval = defaults.BreakerInterval
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = defaults.BreakerFailureThreshold
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[[]domain.ScheduledItem](gobreaker.Settings{
		Name:        "gemini-refine",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Engine{client: client, breaker: breaker, cfg: cfg, logger: logger}, nil
}

// Refine asks the model to rearrange the non-skeleton items of the day.
func (e *Engine) Refine(ctx context.Context, items []domain.ScheduledItem, input domain.ScheduleInput) ([]domain.ScheduledItem, error) {
	return e.breaker.Execute(func() ([]domain.ScheduledItem, error) {
		return e.refine(ctx, items, input)
	})
}

func (e *Engine) refine(ctx context.Context, items []domain.ScheduledItem, input domain.ScheduleInput) ([]domain.ScheduledItem, error) {
	prompt, err := buildPrompt(items, input)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	temperature := e.cfg.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  4096,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}

	resp, err := e.generateWithRetry(ctx, contents, config)
	if err != nil {
		return nil, err
	}
	text := responseText(resp)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	payload, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	return parseItems(payload)
}

// generateWithRetry retries transient Gemini failures with exponential
// backoff and jitter.
func (e *Engine) generateWithRetry(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	baseDelay := 100 * time.Millisecond
	jitter := 50 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		resp, err := e.client.Models.GenerateContent(ctx, e.cfg.Model, contents, config)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isTransientError(err) {
			return nil, fmt.Errorf("gemini call failed: %w", err)
		}
		if attempt == e.cfg.MaxRetries {
			break
		}
		delay := baseDelay*time.Duration(1<<uint(attempt)) + time.Duration(rand.Int64N(int64(jitter)))
		e.logger.Debug("retrying gemini call", "attempt", attempt+1, "delay_ms", delay.Milliseconds(), "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("gemini call failed after %d attempts: %w", e.cfg.MaxRetries+1, lastErr)
}

func isTransientError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"rate limit", "quota", "timeout", "deadline", "unavailable",
		"internal server error", "502", "503", "504",
	} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// scheduleItemDTO is the wire shape the model fills in.
type scheduleItemDTO struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	StartMinutes int    `json:"start_minutes"`
	EndMinutes   int    `json:"end_minutes"`
	TaskID       string `json:"task_id,omitempty"`
}

func buildPrompt(items []domain.ScheduledItem, input domain.ScheduleInput) (string, error) {
	dtos := make([]scheduleItemDTO, 0, len(items))
	for _, item := range items {
		dto := scheduleItemDTO{
			Type:         string(item.Type),
			Name:         item.Name,
			StartMinutes: item.StartMinutes,
			EndMinutes:   item.EndMinutes,
		}
		if item.TaskID != nil {
			dto.TaskID = item.TaskID.String()
		}
		dtos = append(dtos, dto)
	}
	current, err := json.Marshal(dtos)
	if err != nil {
		return "", fmt.Errorf("encoding schedule: %w", err)
	}
	prefs, err := json.Marshal(input.Preferences)
	if err != nil {
		return "", fmt.Errorf("encoding preferences: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a daily-schedule assistant. Rearrange only the filler blocks ")
	b.WriteString("(MEAL, ROUTINE, ACTIVITY, BREAK, FREE) of the schedule below so the day ")
	b.WriteString("flows better for the user. Rules:\n")
	b.WriteString("- Keep every FIXED, TASK, and SLEEP block exactly as given: same type, name, start, end, and task_id.\n")
	b.WriteString("- Times are minutes from midnight; the items must cover 0 through 1440 with no gaps or overlaps.\n")
	b.WriteString("- Return the complete item list as JSON.\n\n")
	b.WriteString("Schedule:\n")
	b.Write(current)
	b.WriteString("\n\nUser preferences:\n")
	b.Write(prefs)
	return b.String(), nil
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"type": {
							Type: genai.TypeString,
							Enum: []string{"FIXED", "TASK", "SLEEP", "MEAL", "ROUTINE", "ACTIVITY", "BREAK", "FREE"},
						},
						"name":          {Type: genai.TypeString},
						"start_minutes": {Type: genai.TypeInteger},
						"end_minutes":   {Type: genai.TypeInteger},
						"task_id":       {Type: genai.TypeString},
					},
					PropertyOrdering: []string{"type", "name", "start_minutes", "end_minutes", "task_id"},
					Required:         []string{"type", "name", "start_minutes", "end_minutes"},
				},
			},
		},
		Required: []string{"items"},
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// extractJSON strips markdown fences the model sometimes wraps around the
// payload despite the JSON response type.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	if !json.Valid([]byte(text)) {
		return "", fmt.Errorf("model returned invalid json")
	}
	return text, nil
}

func parseItems(payload string) ([]domain.ScheduledItem, error) {
	var wrapper struct {
		Items []scheduleItemDTO `json:"items"`
	}
	if err := json.Unmarshal([]byte(payload), &wrapper); err != nil {
		return nil, fmt.Errorf("decoding refined schedule: %w", err)
	}
	if len(wrapper.Items) == 0 {
		return nil, ErrEmptyResponse
	}

	items := make([]domain.ScheduledItem, 0, len(wrapper.Items))
	for _, dto := range wrapper.Items {
		item := domain.ScheduledItem{
			Type:         domain.ItemType(dto.Type),
			Name:         dto.Name,
			StartMinutes: dto.StartMinutes,
			EndMinutes:   dto.EndMinutes,
		}
		if dto.TaskID != "" {
			id, err := uuid.Parse(dto.TaskID)
			if err != nil {
				return nil, fmt.Errorf("decoding refined schedule: bad task id %q: %w", dto.TaskID, err)
			}
			item.TaskID = &id
		}
		items = append(items, item)
	}
	return items, nil
}
