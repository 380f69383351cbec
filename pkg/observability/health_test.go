package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthRegistryOverall(t *testing.T) {
	reg := NewHealthRegistry()
	reg.Register("database", DatabaseHealthChecker(func(ctx context.Context) error { return nil }))
	reg.Register("redis", RedisHealthChecker(func(ctx context.Context) error { return nil }))

	health := reg.GetOverallHealth(context.Background())
	assert.Equal(t, HealthStatusHealthy, health.Status)
	require.Len(t, health.Checks, 2)
	assert.Equal(t, HealthStatusHealthy, health.Checks["database"].Status)
}

func TestHealthRegistryDegradedCache(t *testing.T) {
	reg := NewHealthRegistry()
	reg.Register("database", DatabaseHealthChecker(func(ctx context.Context) error { return nil }))
	reg.Register("redis", RedisHealthChecker(func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	health := reg.GetOverallHealth(context.Background())
	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Contains(t, health.Checks["redis"].Message, "connection refused")
}

func TestHealthRegistryUnhealthyDatabase(t *testing.T) {
	reg := NewHealthRegistry()
	reg.Register("database", DatabaseHealthChecker(func(ctx context.Context) error {
		return errors.New("no such host")
	}))
	reg.Register("redis", RedisHealthChecker(func(ctx context.Context) error { return nil }))

	health := reg.GetOverallHealth(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
}

func TestHealthRegistryEmpty(t *testing.T) {
	reg := NewHealthRegistry()
	health := reg.GetOverallHealth(context.Background())
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Empty(t, health.Checks)
}
