package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ota-control-plane/internal/rollout"
)

type registerRequest struct {
	DeviceType   string         `json:"device_type"`
	Version      string         `json:"version"`
	Checksum     string         `json:"checksum"`
	S3URL        string         `json:"s3_url"`
	BuildInfo    map[string]any `json:"build_info"`
	ReleaseNotes string         `json:"release_notes"`
}

type registerResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	FirmwareID   string `json:"firmware_id"`
	RolloutStage string `json:"rollout_stage"`
}

func (s *Server) handleFirmwareRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		handlePreflight(w)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Success: false, Error: "method not allowed"})
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &rollout.ValidationError{Reason: "invalid json body"})
		return
	}

	result, err := s.svc.Register(r.Context(), rollout.RegisterInput{
		DeviceType:       req.DeviceType,
		Version:          req.Version,
		Checksum:         req.Checksum,
		ArtifactLocation: req.S3URL,
		BuildInfo:        req.BuildInfo,
		ReleaseNotes:     req.ReleaseNotes,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		Success:      true,
		Message:      fmt.Sprintf("Firmware v%s registered and deployed to %d canary devices", result.Record.Version, result.Notified),
		FirmwareID:   result.Record.FirmwareID(),
		RolloutStage: string(result.Record.RolloutStage),
	})
}
