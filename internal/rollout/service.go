// Package rollout orchestrates firmware registration: persist the record,
// select the canary cohort, resolve the artifact, and fan the OTA
// notification out to the selected devices.
package rollout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ota-control-plane/internal/artifact"
	firmwaredomain "ota-control-plane/internal/firmware/domain"
	fleetdomain "ota-control-plane/internal/fleet/domain"
	"ota-control-plane/internal/notify"
	"ota-control-plane/internal/rollout/event"
)

// FirmwareRepo is the minimal firmware repository needed by the service.
type FirmwareRepo interface {
	Save(ctx context.Context, r *firmwaredomain.FirmwareRecord) error
	GetByTypeAndVersion(ctx context.Context, deviceType, version string) (*firmwaredomain.FirmwareRecord, error)
	UpdateRolloutState(ctx context.Context, r *firmwaredomain.FirmwareRecord) error
}

// FleetRepo is the minimal fleet inventory access needed by the service.
type FleetRepo interface {
	ListCanaryByType(ctx context.Context, deviceType string) ([]*fleetdomain.Device, error)
}

// Resolver turns an artifact locator into a signed download reference.
type Resolver interface {
	Resolve(ctx context.Context, location string) (artifact.Download, error)
}

// Notifier fans one notification out to a set of devices.
type Notifier interface {
	Notify(ctx context.Context, deviceIDs []string, n *notify.OtaNotification) []notify.DeliveryOutcome
}

// RegisterInput is the validated shape of a registration request.
type RegisterInput struct {
	DeviceType       string
	Version          string
	Checksum         string
	ArtifactLocation string
	BuildInfo        map[string]any
	ReleaseNotes     string
}

// RegisterResult is the terminal outcome of a successful registration:
// firmware persisted, notifications attempted, per-device outcomes collected.
type RegisterResult struct {
	Record   *firmwaredomain.FirmwareRecord
	Selected int
	Notified int
	Outcomes []notify.DeliveryOutcome
}

// Service sequences the rollout pipeline. One registration runs to
// completion per call; the only state shared across requests lives in the
// external stores.
type Service struct {
	firmware FirmwareRepo
	fleet    FleetRepo
	resolver Resolver
	notifier Notifier
	events   event.Producer
	log      zerolog.Logger

	tracer        trace.Tracer
	registrations metric.Int64Counter
	delivered     metric.Int64Counter
	failed        metric.Int64Counter
}

// NewService wires the orchestrator. events may be nil to disable the
// rollout event stream.
func NewService(firmware FirmwareRepo, fleet FleetRepo, resolver Resolver, notifier Notifier, events event.Producer, log zerolog.Logger) *Service {
	meter := otel.Meter("ota-control-plane/rollout")
	registrations, _ := meter.Int64Counter("rollout.registrations",
		metric.WithDescription("Firmware registrations accepted"))
	delivered, _ := meter.Int64Counter("rollout.notifications.delivered",
		metric.WithDescription("OTA notifications acknowledged by the channel"))
	failed, _ := meter.Int64Counter("rollout.notifications.failed",
		metric.WithDescription("OTA notifications that exhausted their attempt budget"))

	return &Service{
		firmware:      firmware,
		fleet:         fleet,
		resolver:      resolver,
		notifier:      notifier,
		events:        events,
		log:           log.With().Str("component", "rollout").Logger(),
		tracer:        otel.Tracer("ota-control-plane/rollout"),
		registrations: registrations,
		delivered:     delivered,
		failed:        failed,
	}
}

// Register runs the rollout pipeline: validate, persist the record at the
// canary stage, select the cohort, resolve the artifact once, and fan out.
// No step after the save is compensated on failure: an inventory or signing
// error aborts the request but leaves the record persisted. Re-registering
// the same (device_type, version) overwrites the record and re-runs fan-out
// (at-least-once notification semantics).
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := validateRegisterInput(in); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "rollout.register", trace.WithAttributes(
		attribute.String("firmware.device_type", in.DeviceType),
		attribute.String("firmware.version", in.Version),
	))
	defer span.End()

	rec := firmwaredomain.NewRecord(in.DeviceType, in.Version, in.Checksum, in.ArtifactLocation, in.BuildInfo, in.ReleaseNotes)
	if err := s.firmware.Save(ctx, rec); err != nil {
		return nil, s.fail(span, &PersistenceError{Err: err})
	}

	cohort, err := s.fleet.ListCanaryByType(ctx, in.DeviceType)
	if err != nil {
		return nil, s.fail(span, &InventoryQueryError{Err: err})
	}
	span.SetAttributes(attribute.Int("rollout.devices_selected", len(cohort)))

	result := &RegisterResult{Record: rec, Selected: len(cohort)}
	if len(cohort) > 0 {
		// The artifact is the same for every device; resolve once.
		download, err := s.resolver.Resolve(ctx, in.ArtifactLocation)
		if err != nil {
			return nil, s.fail(span, &ArtifactResolutionError{Err: err})
		}

		msg := notify.NewOtaAvailable(in.Version, in.Checksum, download.URL, download.SizeBytes, string(rec.RolloutStage))
		ids := make([]string, len(cohort))
		for i, d := range cohort {
			ids[i] = d.DeviceID
		}
		result.Outcomes = s.notifier.Notify(ctx, ids, msg)
		for _, o := range result.Outcomes {
			if o.Delivered {
				result.Notified++
			}
		}
		s.delivered.Add(ctx, int64(result.Notified))
		s.failed.Add(ctx, int64(result.Selected-result.Notified))
	}

	s.registrations.Add(ctx, 1)
	s.log.Info().
		Str("firmware_id", rec.FirmwareID()).
		Int("selected", result.Selected).
		Int("notified", result.Notified).
		Msg("firmware registered")

	event.EmitAsync(s.events, s.log, s.newEvent(event.TypeFirmwareRegistered, rec, result.Selected, result.Notified))
	return result, nil
}

// AdvanceStage moves a registered firmware to a later rollout stage. The
// stage only ever advances; regressions, unknown stages, and records no
// longer available are rejected. Devices are not re-notified here.
func (s *Service) AdvanceStage(ctx context.Context, deviceType, version, targetStage string) (*firmwaredomain.FirmwareRecord, error) {
	if deviceType == "" || version == "" {
		return nil, &ValidationError{Reason: "device_type and version are required"}
	}
	target, err := firmwaredomain.ParseStage(targetStage)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	ctx, span := s.tracer.Start(ctx, "rollout.advance_stage", trace.WithAttributes(
		attribute.String("firmware.device_type", deviceType),
		attribute.String("firmware.version", version),
		attribute.String("rollout.target_stage", targetStage),
	))
	defer span.End()

	rec, err := s.getRecord(ctx, span, deviceType, version)
	if err != nil {
		return nil, err
	}
	if err := rec.AdvanceStage(target); err != nil {
		return nil, s.fail(span, &ValidationError{Err: err})
	}
	if err := s.firmware.UpdateRolloutState(ctx, rec); err != nil {
		return nil, s.fail(span, &PersistenceError{Err: err})
	}

	s.log.Info().Str("firmware_id", rec.FirmwareID()).Str("stage", string(rec.RolloutStage)).Msg("rollout stage advanced")
	event.EmitAsync(s.events, s.log, s.newEvent(event.TypeStageAdvanced, rec, 0, 0))
	return rec, nil
}

// Revoke permanently pulls a registered firmware. The record becomes
// immutable afterwards.
func (s *Service) Revoke(ctx context.Context, deviceType, version string) (*firmwaredomain.FirmwareRecord, error) {
	if deviceType == "" || version == "" {
		return nil, &ValidationError{Reason: "device_type and version are required"}
	}

	ctx, span := s.tracer.Start(ctx, "rollout.revoke", trace.WithAttributes(
		attribute.String("firmware.device_type", deviceType),
		attribute.String("firmware.version", version),
	))
	defer span.End()

	rec, err := s.getRecord(ctx, span, deviceType, version)
	if err != nil {
		return nil, err
	}
	if err := rec.Revoke(); err != nil {
		return nil, s.fail(span, &ValidationError{Err: err})
	}
	if err := s.firmware.UpdateRolloutState(ctx, rec); err != nil {
		return nil, s.fail(span, &PersistenceError{Err: err})
	}

	s.log.Info().Str("firmware_id", rec.FirmwareID()).Msg("firmware revoked")
	event.EmitAsync(s.events, s.log, s.newEvent(event.TypeFirmwareRevoked, rec, 0, 0))
	return rec, nil
}

func (s *Service) getRecord(ctx context.Context, span trace.Span, deviceType, version string) (*firmwaredomain.FirmwareRecord, error) {
	rec, err := s.firmware.GetByTypeAndVersion(ctx, deviceType, version)
	if err != nil {
		return nil, s.fail(span, &PersistenceError{Err: err})
	}
	if rec == nil {
		return nil, s.fail(span, ErrNotFound)
	}
	return rec, nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}

func (s *Service) newEvent(eventType string, rec *firmwaredomain.FirmwareRecord, selected, notified int) *event.RolloutEvent {
	return &event.RolloutEvent{
		EventID:         uuid.New().String(),
		EventType:       eventType,
		FirmwareID:      rec.FirmwareID(),
		DeviceType:      rec.DeviceType,
		Version:         rec.Version,
		Stage:           string(rec.RolloutStage),
		DevicesSelected: selected,
		DevicesNotified: notified,
		CreatedAt:       time.Now().UTC(),
	}
}

func validateRegisterInput(in RegisterInput) error {
	switch {
	case in.DeviceType == "":
		return &ValidationError{Reason: "device_type is required"}
	case in.Version == "":
		return &ValidationError{Reason: "version is required"}
	case in.Checksum == "":
		return &ValidationError{Reason: "checksum is required"}
	case in.ArtifactLocation == "":
		return &ValidationError{Reason: "s3_url is required"}
	}
	return nil
}
