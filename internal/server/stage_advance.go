package server

import (
	"encoding/json"
	"net/http"

	"ota-control-plane/internal/rollout"
)

type advanceRequest struct {
	DeviceType  string `json:"device_type"`
	Version     string `json:"version"`
	TargetStage string `json:"target_stage"`
}

type stageResponse struct {
	Success      bool   `json:"success"`
	FirmwareID   string `json:"firmware_id"`
	RolloutStage string `json:"rollout_stage"`
	Status       string `json:"status"`
}

func (s *Server) handleStageAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		handlePreflight(w)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Success: false, Error: "method not allowed"})
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &rollout.ValidationError{Reason: "invalid json body"})
		return
	}

	rec, err := s.svc.AdvanceStage(r.Context(), req.DeviceType, req.Version, req.TargetStage)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stageResponse{
		Success:      true,
		FirmwareID:   rec.FirmwareID(),
		RolloutStage: string(rec.RolloutStage),
		Status:       string(rec.Status),
	})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		handlePreflight(w)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Success: false, Error: "method not allowed"})
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &rollout.ValidationError{Reason: "invalid json body"})
		return
	}

	rec, err := s.svc.Revoke(r.Context(), req.DeviceType, req.Version)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stageResponse{
		Success:      true,
		FirmwareID:   rec.FirmwareID(),
		RolloutStage: string(rec.RolloutStage),
		Status:       string(rec.Status),
	})
}
