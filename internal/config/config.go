// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for firmware records and the fleet inventory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// MQTTBrokerURL is the device-facing MQTT broker (e.g. tcp://localhost:1883).
	MQTTBrokerURL string `mapstructure:"MQTT_BROKER_URL"`
	// MQTTClientID identifies this process to the broker (default ota-control-plane).
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	// MQTTPublishTimeout bounds a single publish token wait (e.g. "5s").
	MQTTPublishTimeout string `mapstructure:"MQTT_PUBLISH_TIMEOUT"`

	// ArtifactS3Endpoint is the S3-compatible object store host:port holding firmware images.
	ArtifactS3Endpoint string `mapstructure:"ARTIFACT_S3_ENDPOINT"`
	// ArtifactS3AccessKey and ArtifactS3SecretKey are the object store credentials.
	ArtifactS3AccessKey string `mapstructure:"ARTIFACT_S3_ACCESS_KEY"`
	ArtifactS3SecretKey string `mapstructure:"ARTIFACT_S3_SECRET_KEY"`
	// ArtifactS3UseSSL selects https for the object store connection.
	ArtifactS3UseSSL bool `mapstructure:"ARTIFACT_S3_USE_SSL"`
	// ArtifactURLTTL is the presigned download link lifetime (e.g. "1h").
	ArtifactURLTTL string `mapstructure:"ARTIFACT_URL_TTL"`

	// FanoutMaxConcurrency caps in-flight OTA publishes during a single fan-out.
	FanoutMaxConcurrency int `mapstructure:"FANOUT_MAX_CONCURRENCY"`
	// FanoutPublishRate limits publishes per second across a fan-out; 0 disables the limiter.
	FanoutPublishRate int `mapstructure:"FANOUT_PUBLISH_RATE"`
	// PublishMaxAttempts is the per-device publish attempt budget (>= 1).
	PublishMaxAttempts int `mapstructure:"PUBLISH_MAX_ATTEMPTS"`

	// Rollout events (optional). When Kafka brokers are set, the server emits rollout events to Kafka.
	// KafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// RolloutKafkaTopic is the Kafka topic for rollout events (default ota-rollout-events).
	RolloutKafkaTopic string `mapstructure:"ROLLOUT_KAFKA_TOPIC"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables trace/metric export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTELInsecure forces plaintext OTLP export even for https endpoints.
	OTELInsecure bool `mapstructure:"OTEL_INSECURE"`

	// LogLevel is the zerolog level (trace|debug|info|warn|error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MQTT_BROKER_URL", "")
	v.SetDefault("MQTT_CLIENT_ID", "ota-control-plane")
	v.SetDefault("MQTT_PUBLISH_TIMEOUT", "5s")
	v.SetDefault("ARTIFACT_S3_ENDPOINT", "")
	v.SetDefault("ARTIFACT_S3_ACCESS_KEY", "")
	v.SetDefault("ARTIFACT_S3_SECRET_KEY", "")
	v.SetDefault("ARTIFACT_S3_USE_SSL", false)
	v.SetDefault("ARTIFACT_URL_TTL", "1h")
	v.SetDefault("FANOUT_MAX_CONCURRENCY", 16)
	v.SetDefault("FANOUT_PUBLISH_RATE", 0)
	v.SetDefault("PUBLISH_MAX_ATTEMPTS", 3)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ROLLOUT_KAFKA_TOPIC", "ota-rollout-events")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_INSECURE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.FanoutMaxConcurrency < 1 {
		return nil, errors.New("config: FANOUT_MAX_CONCURRENCY must be at least 1")
	}
	if cfg.FanoutPublishRate < 0 {
		return nil, errors.New("config: FANOUT_PUBLISH_RATE must not be negative")
	}
	if cfg.PublishMaxAttempts < 1 {
		return nil, errors.New("config: PUBLISH_MAX_ATTEMPTS must be at least 1")
	}
	if _, err := time.ParseDuration(cfg.ArtifactURLTTL); err != nil {
		return nil, fmt.Errorf("config: ARTIFACT_URL_TTL is not a duration: %w", err)
	}

	return &cfg, nil
}

// ArtifactTTL parses ArtifactURLTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) ArtifactTTL() time.Duration {
	d, err := time.ParseDuration(c.ArtifactURLTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// PublishTimeout parses MQTTPublishTimeout as a time.Duration. Returns 5s if unset or invalid.
func (c *Config) PublishTimeout() time.Duration {
	d, err := time.ParseDuration(c.MQTTPublishTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if rollout events are enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
