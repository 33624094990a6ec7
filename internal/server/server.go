// Package server exposes the rollout orchestrator over HTTP with JSON bodies.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	firmwaredomain "ota-control-plane/internal/firmware/domain"
	"ota-control-plane/internal/rollout"
)

// RolloutService is the orchestrator surface the HTTP layer needs.
type RolloutService interface {
	Register(ctx context.Context, in rollout.RegisterInput) (*rollout.RegisterResult, error)
	AdvanceStage(ctx context.Context, deviceType, version, targetStage string) (*firmwaredomain.FirmwareRecord, error)
	Revoke(ctx context.Context, deviceType, version string) (*firmwaredomain.FirmwareRecord, error)
}

// Server is the HTTP server for the rollout control plane.
type Server struct {
	httpServer *http.Server
	addr       string
	svc        RolloutService
	log        zerolog.Logger
}

// New creates a server on addr backed by svc.
func New(addr string, svc RolloutService, log zerolog.Logger) *Server {
	s := &Server{
		addr: addr,
		svc:  svc,
		log:  log.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // registration waits for the full fan-out
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/firmware/register", s.handleFirmwareRegister)
	mux.HandleFunc("/api/v1/firmware/advance", s.handleStageAdvance)
	mux.HandleFunc("/api/v1/firmware/revoke", s.handleRevoke)
}

// writeJSON writes v with the open-origin CORS header present on every
// response, success and failure alike.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

/// writeError maps the rollout error taxonomy to HTTP statuses: validation
// errors are the caller's fault, everything else is a 500 with the raw error
// detail, matching the single failure shape.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verr *rollout.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, rollout.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

// handlePreflight answers CORS preflight for the POST endpoints.
func handlePreflight(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}
