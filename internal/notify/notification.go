// Package notify builds the OTA-available message and fans it out to the
// selected devices over the messaging channel.
package notify

// OtaNotification is the wire message telling a device a new firmware build
// is available and where to fetch it. Built once per registration and
// delivered unchanged to every selected device.
type OtaNotification struct {
	Type        string             `json:"type"`
	Firmware    FirmwareDescriptor `json:"firmware"`
	RolloutInfo RolloutInfo        `json:"rollout_info"`
}

// FirmwareDescriptor carries the build identity and the signed download link.
// Size is in bytes; 0 means unknown.
type FirmwareDescriptor struct {
	Version     string `json:"version"`
	Checksum    string `json:"checksum"`
	DownloadURL string `json:"download_url"`
	Size        int64  `json:"size"`
}

// RolloutInfo tells the device which rollout phase the build is in.
type RolloutInfo struct {
	Stage    string `json:"stage"`
	Priority string `json:"priority"`
}

// NewOtaAvailable builds the ota_available message at normal priority.
func NewOtaAvailable(version, checksum, downloadURL string, size int64, stage string) *OtaNotification {
	return &OtaNotification{
		Type: "ota_available",
		Firmware: FirmwareDescriptor{
			Version:     version,
			Checksum:    checksum,
			DownloadURL: downloadURL,
			Size:        size,
		},
		RolloutInfo: RolloutInfo{
			Stage:    stage,
			Priority: "normal",
		},
	}
}

// TopicFor is the per-device OTA topic.
func TopicFor(deviceID string) string {
	return "devices/" + deviceID + "/ota"
}
