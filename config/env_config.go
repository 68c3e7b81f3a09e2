package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var ErrMissingEnv = errors.New("required environment value is not set")

// MissingEnvError names a credential-bearing variable that was not provided.
// Credentials never fall back to a default.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Name)
}

func (e *MissingEnvError) Unwrap() error {
	return ErrMissingEnv
}

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	JWT struct {
		SecretKey string
		Algorithm string
		Expire    int
	}
	CORS struct {
		AllowDomains string
		GlobalDomain string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Azure struct {
		SubscriptionID     string
		StorageAccountName string
		StorageAccountKey  string
	}
	KeyStore struct {
		Endpoint string
		Bucket   string
		UseSSL   bool
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	CallbackSecret string
	RegistryFile   string
	LogLevel       string

	Environment struct {
		Mode  string
		Group string
	}
	HTTPPort string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Algorithm = os.Getenv("JWT_ALGORITHM")

	if val := os.Getenv("JWT_EXPIRE"); val != "" {
		fmt.Sscanf(val, "%d", &config.JWT.Expire)
	} else {
		config.JWT.Expire = 3600 * 24 * 7
	}

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")
	config.CORS.GlobalDomain = os.Getenv("GLOBAL_DOMAIN")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")

	// RabbitMQ
	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	if config.RabbitMQ.Host == "" {
		config.RabbitMQ.Host = "localhost"
	}
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}

	// Azure credentials are read as-is; accessors report absence.
	config.Azure.SubscriptionID = os.Getenv("AZURE_SUBSCRIPTION_ID")
	config.Azure.StorageAccountName = os.Getenv("AZURE_STORAGE_ACCOUNT_NAME")
	config.Azure.StorageAccountKey = os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")

	config.KeyStore.Endpoint = os.Getenv("KEYSTORE_ENDPOINT")
	config.KeyStore.Bucket = os.Getenv("KEYSTORE_BUCKET")
	if config.KeyStore.Bucket == "" {
		config.KeyStore.Bucket = "vm-ssh-keys"
	}
	config.KeyStore.UseSSL, _ = strconv.ParseBool(os.Getenv("KEYSTORE_USE_SSL"))

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = os.Getenv("SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "gau-vm-orchestrator"
	}

	config.CallbackSecret = os.Getenv("CALLBACK_SECRET")
	config.RegistryFile = os.Getenv("VM_REGISTRY_FILE")

	config.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	config.Environment.Mode = os.Getenv("DEPLOY_ENV")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}

	config.Environment.Group = os.Getenv("GROUP_NAME")
	if config.Environment.Group == "" {
		config.Environment.Group = "local"
	}

	config.HTTPPort = os.Getenv("HTTP_PORT")
	if config.HTTPPort == "" {
		config.HTTPPort = "8080"
	}

	return &config
}

// SubscriptionID is required by every provisioning call path.
func (c *EnvConfig) SubscriptionID() (string, error) {
	if c.Azure.SubscriptionID == "" {
		return "", &MissingEnvError{Name: "AZURE_SUBSCRIPTION_ID"}
	}
	return c.Azure.SubscriptionID, nil
}

// StorageCredentials returns the storage account used by the SSH key store.
func (c *EnvConfig) StorageCredentials() (string, string, error) {
	if c.Azure.StorageAccountName == "" {
		return "", "", &MissingEnvError{Name: "AZURE_STORAGE_ACCOUNT_NAME"}
	}
	if c.Azure.StorageAccountKey == "" {
		return "", "", &MissingEnvError{Name: "AZURE_STORAGE_ACCOUNT_KEY"}
	}
	return c.Azure.StorageAccountName, c.Azure.StorageAccountKey, nil
}

// CallbackKey returns the shared secret collaborators sign callbacks with.
func (c *EnvConfig) CallbackKey() (string, error) {
	if c.CallbackSecret == "" {
		return "", &MissingEnvError{Name: "CALLBACK_SECRET"}
	}
	return c.CallbackSecret, nil
}

func (c *EnvConfig) IsProduction() bool {
	return c.Environment.Mode == "production"
}
