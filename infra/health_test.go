package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckHealth(t *testing.T) {
	probes := map[string]HealthProbe{
		"up":   func(context.Context) error { return nil },
		"down": func(context.Context) error { return errors.New("unreachable") },
	}

	results, healthy := CheckHealth(context.Background(), []string{"up"}, probes)
	assert.True(t, healthy)
	assert.Equal(t, map[string]string{"up": HealthStatusHealthy}, results)

	results, healthy = CheckHealth(context.Background(), []string{"up", "down", "unknown"}, probes)
	assert.False(t, healthy)
	assert.Equal(t, map[string]string{
		"up":      HealthStatusHealthy,
		"down":    HealthStatusUnhealthy,
		"unknown": HealthStatusUnhealthy,
	}, results)
}
