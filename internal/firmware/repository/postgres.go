package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ota-control-plane/internal/firmware/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a firmware repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save upserts the record keyed by (device_type, version).
func (r *PostgresRepository) Save(ctx context.Context, rec *domain.FirmwareRecord) error {
	buildInfo, err := marshalBuildInfo(rec.BuildInfo)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO firmware_records
			(device_type, version, checksum, artifact_location, build_info,
			 release_notes, status, rollout_stage, rollout_percentage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (device_type, version) DO UPDATE SET
			checksum = EXCLUDED.checksum,
			artifact_location = EXCLUDED.artifact_location,
			build_info = EXCLUDED.build_info,
			release_notes = EXCLUDED.release_notes,
			status = EXCLUDED.status,
			rollout_stage = EXCLUDED.rollout_stage,
			rollout_percentage = EXCLUDED.rollout_percentage,
			created_at = EXCLUDED.created_at`,
		rec.DeviceType, rec.Version, rec.Checksum, rec.ArtifactLocation, buildInfo,
		rec.ReleaseNotes, string(rec.Status), string(rec.RolloutStage), rec.RolloutPercentage, rec.CreatedAt,
	)
	return err
}

// GetByTypeAndVersion returns the record for (deviceType, version), or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTypeAndVersion(ctx context.Context, deviceType, version string) (*domain.FirmwareRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT device_type, version, checksum, artifact_location, build_info,
		       release_notes, status, rollout_stage, rollout_percentage, created_at
		FROM firmware_records
		WHERE device_type = $1 AND version = $2`,
		deviceType, version,
	)

	var rec domain.FirmwareRecord
	var status, stage string
	var buildInfo []byte
	err := row.Scan(&rec.DeviceType, &rec.Version, &rec.Checksum, &rec.ArtifactLocation, &buildInfo,
		&rec.ReleaseNotes, &status, &stage, &rec.RolloutPercentage, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Status = domain.Status(status)
	rec.RolloutStage = domain.Stage(stage)
	if len(buildInfo) > 0 {
		if err := json.Unmarshal(buildInfo, &rec.BuildInfo); err != nil {
			return nil, fmt.Errorf("firmware %s: decode build_info: %w", rec.FirmwareID(), err)
		}
	}
	return &rec, nil
}

// UpdateRolloutState persists the record's status, stage, and percentage.
func (r *PostgresRepository) UpdateRolloutState(ctx context.Context, rec *domain.FirmwareRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE firmware_records
		SET status = $3, rollout_stage = $4, rollout_percentage = $5
		WHERE device_type = $1 AND version = $2`,
		rec.DeviceType, rec.Version, string(rec.Status), string(rec.RolloutStage), rec.RolloutPercentage,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("firmware %s: no such record", rec.FirmwareID())
	}
	return nil
}

func marshalBuildInfo(info map[string]any) ([]byte, error) {
	if info == nil {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode build_info: %w", err)
	}
	return out, nil
}
