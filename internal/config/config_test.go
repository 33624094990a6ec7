package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.MQTTClientID != "ota-control-plane" {
		t.Errorf("MQTTClientID = %q, want %q", cfg.MQTTClientID, "ota-control-plane")
	}
	if cfg.ArtifactURLTTL != "1h" {
		t.Errorf("ArtifactURLTTL = %q, want %q", cfg.ArtifactURLTTL, "1h")
	}
	if cfg.FanoutMaxConcurrency != 16 {
		t.Errorf("FanoutMaxConcurrency = %d, want 16", cfg.FanoutMaxConcurrency)
	}
	if cfg.FanoutPublishRate != 0 {
		t.Errorf("FanoutPublishRate = %d, want 0", cfg.FanoutPublishRate)
	}
	if cfg.PublishMaxAttempts != 3 {
		t.Errorf("PublishMaxAttempts = %d, want 3", cfg.PublishMaxAttempts)
	}
	if cfg.RolloutKafkaTopic != "ota-rollout-events" {
		t.Errorf("RolloutKafkaTopic = %q, want default", cfg.RolloutKafkaTopic)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("MQTT_BROKER_URL", "tcp://broker:1883")
	os.Setenv("FANOUT_MAX_CONCURRENCY", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.MQTTBrokerURL != "tcp://broker:1883" {
		t.Errorf("MQTTBrokerURL = %q, want %q", cfg.MQTTBrokerURL, "tcp://broker:1883")
	}
	if cfg.FanoutMaxConcurrency != 4 {
		t.Errorf("FanoutMaxConcurrency = %d, want 4", cfg.FanoutMaxConcurrency)
	}
}

func TestLoad_RejectsZeroConcurrency(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("FANOUT_MAX_CONCURRENCY", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject FANOUT_MAX_CONCURRENCY=0")
	}
}

func TestLoad_RejectsBadArtifactTTL(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("ARTIFACT_URL_TTL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a malformed ARTIFACT_URL_TTL")
	}
}

func TestArtifactTTL_FallsBackToHour(t *testing.T) {
	cfg := &Config{ArtifactURLTTL: ""}
	if got := cfg.ArtifactTTL(); got != time.Hour {
		t.Errorf("ArtifactTTL = %v, want 1h", got)
	}
	cfg.ArtifactURLTTL = "30m"
	if got := cfg.ArtifactTTL(); got != 30*time.Minute {
		t.Errorf("ArtifactTTL = %v, want 30m", got)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{KafkaBrokers: "localhost:9092, kafka-2:9092 ,"}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 {
		t.Fatalf("KafkaBrokersList returned %d brokers, want 2", len(got))
	}
	if got[0] != "localhost:9092" || got[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}

	cfg.KafkaBrokers = ""
	if got := cfg.KafkaBrokersList(); got != nil {
		t.Errorf("KafkaBrokersList = %v, want nil for empty config", got)
	}
}
