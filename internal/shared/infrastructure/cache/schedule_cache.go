// Package cache memoizes generated schedules in Redis, keyed by a digest of
// the full generation input so any input change misses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

// DefaultTTL is how long a cached schedule stays valid.
const DefaultTTL = 15 * time.Minute

// ScheduleCache stores generated schedules keyed by input digest.
type ScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewScheduleCache creates a cache around an existing Redis client.
func NewScheduleCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ScheduleCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleCache{client: client, ttl: ttl, logger: logger}
}

// Key derives the cache key for an input. The digest covers the canonical
// JSON encoding, so equal inputs share a key and any change produces a new
// one.
func Key(input domain.ScheduleInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encoding schedule input: %w", err)
	}
	sum := sha256.Sum256(payload)
	return "tempo:schedule:" + hex.EncodeToString(sum[:]), nil
}

// Get returns the cached schedule for the input, or nil on a miss. Cache
// failures are logged and reported as misses.
func (c *ScheduleCache) Get(ctx context.Context, input domain.ScheduleInput) *domain.GeneratedSchedule {
	key, err := Key(input)
	if err != nil {
		c.logger.Warn("cache key derivation failed", "error", err)
		return nil
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		c.logger.Warn("cache read failed", "error", err)
		return nil
	}

	var schedule domain.GeneratedSchedule
	if err := json.Unmarshal(raw, &schedule); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil
	}
	return &schedule
}

// Set stores the schedule for the input. Failures are logged, not returned;
// caching is best effort.
func (c *ScheduleCache) Set(ctx context.Context, input domain.ScheduleInput, schedule *domain.GeneratedSchedule) {
	key, err := Key(input)
	if err != nil {
		c.logger.Warn("cache key derivation failed", "error", err)
		return
	}
	payload, err := json.Marshal(schedule)
	if err != nil {
		c.logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}
