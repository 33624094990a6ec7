package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ota-control-plane/internal/artifact"
	"ota-control-plane/internal/config"
	"ota-control-plane/internal/db"
	firmwarerepo "ota-control-plane/internal/firmware/repository"
	fleetrepo "ota-control-plane/internal/fleet/repository"
	"ota-control-plane/internal/notify"
	"ota-control-plane/internal/rollout"
	"ota-control-plane/internal/rollout/event"
	"ota-control-plane/internal/server"
	"ota-control-plane/internal/telemetry/otel"
)

const serviceName = "ota-control-plane"

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTELInsecure)
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry")
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	store, err := artifact.NewMinioStore(cfg.ArtifactS3Endpoint, cfg.ArtifactS3AccessKey, cfg.ArtifactS3SecretKey, cfg.ArtifactS3UseSSL)
	if err != nil {
		logger.Fatal().Err(err).Msg("object store")
	}
	resolver := artifact.NewResolver(store, cfg.ArtifactTTL(), logger)

	publisher, err := notify.NewMQTTPublisher(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.PublishTimeout())
	if err != nil {
		logger.Fatal().Err(err).Msg("mqtt broker")
	}
	defer publisher.Close()

	fanout := notify.NewFanout(publisher, notify.Config{
		MaxConcurrency: cfg.FanoutMaxConcurrency,
		MaxAttempts:    cfg.PublishMaxAttempts,
		PublishRate:    cfg.FanoutPublishRate,
	}, logger)

	// nil when Kafka is unconfigured; the service treats a nil producer as disabled.
	producer := event.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.RolloutKafkaTopic)
	if producer != nil {
		defer producer.Close()
		logger.Info().Str("topic", cfg.RolloutKafkaTopic).Msg("rollout events enabled")
	}

	svc := rollout.NewService(
		firmwarerepo.NewPostgresRepository(pool),
		fleetrepo.NewPostgresRepository(pool),
		resolver,
		fanout,
		producer,
		logger,
	)

	srv := server.New(cfg.HTTPAddr, svc, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("http server")
	}
	logger.Info().Msg("shutdown complete")
}
