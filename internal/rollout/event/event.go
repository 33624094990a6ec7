// Package event defines the rollout event stream and its Kafka producer.
// Events are emitted best-effort for external consumers (dashboards,
// progression tooling); failures are logged, never surfaced to callers.
package event

import (
	"context"
	"time"
)

// Event types.
const (
	TypeFirmwareRegistered = "firmware_registered"
	TypeStageAdvanced      = "rollout_stage_advanced"
	TypeFirmwareRevoked    = "firmware_revoked"
)

// RolloutEvent records one rollout state change.
type RolloutEvent struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	FirmwareID      string    `json:"firmware_id"`
	DeviceType      string    `json:"device_type"`
	Version         string    `json:"version"`
	Stage           string    `json:"stage"`
	DevicesSelected int       `json:"devices_selected"`
	DevicesNotified int       `json:"devices_notified"`
	CreatedAt       time.Time `json:"created_at"`
}

// Producer emits rollout events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single rollout event. Implementations may block briefly;
	// use EmitAsync from request paths.
	Emit(ctx context.Context, event *RolloutEvent) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
