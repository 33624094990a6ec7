package repository

import (
	"context"

	"ota-control-plane/internal/firmware/domain"
)

// Repository defines persistence for firmware records.
type Repository interface {
	// Save upserts the record keyed by (device_type, version). Re-registering
	// an existing build overwrites it (last write wins).
	Save(ctx context.Context, r *domain.FirmwareRecord) error
	// GetByTypeAndVersion returns the record, or nil if not registered.
	// It returns an error only for database failures, not for missing rows.
	GetByTypeAndVersion(ctx context.Context, deviceType, version string) (*domain.FirmwareRecord, error)
	// UpdateRolloutState persists status, stage, and percentage after a
	// stage advance or revocation.
	UpdateRolloutState(ctx context.Context, r *domain.FirmwareRecord) error
}
