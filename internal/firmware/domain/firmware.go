// Package domain holds the firmware record model and its rollout-stage state machine.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a firmware record.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusDeprecated Status = "deprecated"
	StatusRevoked    Status = "revoked"
)

// Stage is the rollout phase of a firmware record. Stages only ever advance.
type Stage string

const (
	StageCanary  Stage = "canary"
	StagePartial Stage = "partial"
	StageFull    Stage = "full"
)

// CanaryPercentage is the fixed share of the fleet addressed by the canary
// stage. A policy constant, not derived from fleet size.
const CanaryPercentage = 5

var stageOrder = map[Stage]int{
	StageCanary:  0,
	StagePartial: 1,
	StageFull:    2,
}

var stagePercentage = map[Stage]int{
	StageCanary:  CanaryPercentage,
	StagePartial: 50,
	StageFull:    100,
}

var (
	// ErrUnknownStage is returned for a stage name outside canary/partial/full.
	ErrUnknownStage = errors.New("unknown rollout stage")
	// ErrStageRegression is returned when a stage advance does not move forward.
	ErrStageRegression = errors.New("rollout stage can only advance forward")
	// ErrRecordImmutable is returned when mutating a record whose status has left available.
	ErrRecordImmutable = errors.New("firmware record is immutable once status leaves available")
)

// ParseStage validates a stage name from external input.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if _, ok := stageOrder[stage]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
	}
	return stage, nil
}

// FirmwareRecord is a registered firmware build: immutable build identity
// plus mutable rollout state, keyed by (DeviceType, Version).
type FirmwareRecord struct {
	DeviceType        string
	Version           string
	Checksum          string
	ArtifactLocation  string
	BuildInfo         map[string]any
	ReleaseNotes      string
	Status            Status
	RolloutStage      Stage
	RolloutPercentage int
	CreatedAt         time.Time
}

// NewRecord builds a freshly registered record: available, canary stage,
// canary percentage, created now.
func NewRecord(deviceType, version, checksum, artifactLocation string, buildInfo map[string]any, releaseNotes string) *FirmwareRecord {
	return &FirmwareRecord{
		DeviceType:        deviceType,
		Version:           version,
		Checksum:          checksum,
		ArtifactLocation:  artifactLocation,
		BuildInfo:         buildInfo,
		ReleaseNotes:      releaseNotes,
		Status:            StatusAvailable,
		RolloutStage:      StageCanary,
		RolloutPercentage: CanaryPercentage,
		CreatedAt:         time.Now().UTC(),
	}
}

// FirmwareID is the caller-facing identifier, "<device_type>-<version>".
func (r *FirmwareRecord) FirmwareID() string {
	return r.DeviceType + "-" + r.Version
}

// AdvanceStage moves the record to target. The record must still be available
// and target must be strictly after the current stage.
func (r *FirmwareRecord) AdvanceStage(target Stage) error {
	targetOrder, ok := stageOrder[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStage, target)
	}
	if r.Status != StatusAvailable {
		return ErrRecordImmutable
	}
	if targetOrder <= stageOrder[r.RolloutStage] {
		return fmt.Errorf("%w: %s -> %s", ErrStageRegression, r.RolloutStage, target)
	}
	r.RolloutStage = target
	r.RolloutPercentage = stagePercentage[target]
	return nil
}

// Revoke permanently pulls the firmware. Allowed from any stage while the
// record is still available; afterwards the record is immutable.
func (r *FirmwareRecord) Revoke() error {
	if r.Status != StatusAvailable {
		return ErrRecordImmutable
	}
	r.Status = StatusRevoked
	return nil
}
