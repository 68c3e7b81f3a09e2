package infra

import (
	"context"
	"errors"
	"time"

	"github.com/tnqbao/gau-vm-orchestrator/config"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
)

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

const healthCheckTimeout = 3 * time.Second

// HealthProbe reports nil when the dependency behind a health check name is usable.
type HealthProbe func(ctx context.Context) error

// HealthProbes maps each health check name to the dependencies serving it.
// Compute needs the broker and a subscription, key vault needs the key store,
// storage needs Postgres and Redis.
func (i *Infra) HealthProbes(cfg *config.EnvConfig) map[string]HealthProbe {
	return map[string]HealthProbe{
		registry.HealthAzureCompute: func(ctx context.Context) error {
			if _, err := cfg.SubscriptionID(); err != nil {
				return err
			}
			return i.RabbitMQ.Ping()
		},
		registry.HealthAzureKeyVault: func(ctx context.Context) error {
			if i.KeyStore == nil {
				if i.KeyStoreErr != nil {
					return i.KeyStoreErr
				}
				return errors.New("key store is not configured")
			}
			return i.KeyStore.Ping(ctx)
		},
		registry.HealthAzureStorage: func(ctx context.Context) error {
			return errors.Join(i.Postgres.Ping(ctx), i.Redis.Ping(ctx))
		},
	}
}

// CheckHealth runs the probes named by endpoints. Names without a probe are
// reported unhealthy.
func CheckHealth(ctx context.Context, endpoints []string, probes map[string]HealthProbe) (map[string]string, bool) {
	results := make(map[string]string, len(endpoints))
	healthy := true
	for _, name := range endpoints {
		probe, ok := probes[name]
		if !ok {
			results[name] = HealthStatusUnhealthy
			healthy = false
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := probe(probeCtx)
		cancel()
		if err != nil {
			results[name] = HealthStatusUnhealthy
			healthy = false
			continue
		}
		results[name] = HealthStatusHealthy
	}
	return results, healthy
}
