package infra

import (
	"context"
	"errors"
	"log"

	"github.com/tnqbao/gau-vm-orchestrator/config"
	"github.com/tnqbao/gau-vm-orchestrator/infra/produce"
)

type Infra struct {
	Redis     *RedisClient
	Postgres  *PostgresClient
	Logger    *LoggerClient
	Telemetry *Telemetry
	RabbitMQ  *RabbitMQClient
	Produce   *produce.Produce
	KeyStore  SSHKeyStore
	// KeyStoreErr explains a nil KeyStore.
	KeyStoreErr error
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	logger := InitLoggerClient(cfg.EnvConfig)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	telemetry := InitTelemetry(cfg)
	if telemetry == nil {
		panic("Failed to initialize Telemetry service")
	}

	redis := InitRedisClient(cfg.EnvConfig)
	if redis == nil {
		panic("Failed to initialize Redis service")
	}

	postgres := InitPostgresClient(cfg.EnvConfig)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	rabbitMQ := InitRabbitMQClient(cfg.EnvConfig)
	if rabbitMQ == nil {
		panic("Failed to initialize RabbitMQ service")
	}

	produceService := produce.InitProduce(rabbitMQ.Channel)
	if produceService == nil {
		panic("Failed to initialize Produce service")
	}

	// The key store is optional: without storage credentials only the SSH key
	// endpoints are unavailable.
	var keyStore SSHKeyStore
	store, err := InitKeyStore(cfg.EnvConfig)
	if err != nil {
		log.Printf("Warning: Failed to initialize KeyStore: %v (SSH key management will not work)", err)
	} else {
		keyStore = store
	}

	infraInstance = &Infra{
		Redis:       redis,
		Postgres:    postgres,
		Logger:      logger,
		Telemetry:   telemetry,
		RabbitMQ:    rabbitMQ,
		Produce:     produceService,
		KeyStore:    keyStore,
		KeyStoreErr: err,
	}

	return infraInstance
}

// Close flushes telemetry and closes broker connections.
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	if i.RabbitMQ != nil {
		errs = append(errs, i.RabbitMQ.Close())
	}
	if i.Telemetry != nil {
		errs = append(errs, i.Telemetry.Shutdown(ctx))
	}
	if i.Logger != nil {
		errs = append(errs, i.Logger.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
