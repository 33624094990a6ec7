// Package domain holds the fleet inventory model. Devices are owned by the
// inventory collaborator; this service only reads them.
package domain

import "time"

// Device is one fleet member as recorded in the inventory.
type Device struct {
	DeviceID    string
	DeviceType  string
	CanaryGroup bool
	CreatedAt   time.Time
}
