package rollout

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stage-advance and revoke for an unregistered
// (device_type, version) pair.
var ErrNotFound = errors.New("firmware record not found")

// ValidationError reports malformed or missing input. Handlers map it to a
// client error; every other taxonomy member is a server-side failure.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return "invalid request: " + e.Err.Error()
	}
	return "invalid request: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError wraps a metadata-store failure. Surfaced, never retried.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("firmware store: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// InventoryQueryError wraps a fleet-inventory failure. By the time it can
// occur the firmware record is already persisted; the registration still
// aborts without rollback.
type InventoryQueryError struct {
	Err error
}

func (e *InventoryQueryError) Error() string {
	return fmt.Sprintf("fleet inventory: %v", e.Err)
}

func (e *InventoryQueryError) Unwrap() error { return e.Err }

// ArtifactResolutionError wraps a download-link signing failure. Size-lookup
// failures are not in this category; resolution degrades to size 0 instead.
type ArtifactResolutionError struct {
	Err error
}

func (e *ArtifactResolutionError) Error() string {
	return fmt.Sprintf("artifact resolution: %v", e.Err)
}

func (e *ArtifactResolutionError) Unwrap() error { return e.Err }
