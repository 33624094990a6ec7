package repository

import (
	"context"
	"database/sql"

	"ota-control-plane/internal/fleet/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a fleet repository that reads the inventory from the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListCanaryByType returns all canary-flagged devices of the given type.
// Returns (nil, error) only on database errors; no matches yield an empty slice.
func (r *PostgresRepository) ListCanaryByType(ctx context.Context, deviceType string) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, device_type, canary_group, created_at
		FROM devices
		WHERE device_type = $1 AND canary_group = true`,
		deviceType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Device, 0)
	for rows.Next() {
		var d domain.Device
		if err := rows.Scan(&d.DeviceID, &d.DeviceType, &d.CanaryGroup, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
