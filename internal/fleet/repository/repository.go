package repository

import (
	"context"

	"ota-control-plane/internal/fleet/domain"
)

// Repository defines read-only access to the fleet inventory.
type Repository interface {
	// ListCanaryByType returns the devices of the given type enrolled in the
	// canary cohort. An empty fleet is a valid empty slice, not an error, and
	// the result carries no ordering guarantee.
	ListCanaryByType(ctx context.Context, deviceType string) ([]*domain.Device, error)
}
