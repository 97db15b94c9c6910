// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rcrderby/crg-overlays/internal/view"
)

// OverlayProvider exposes the most recently published overlay model.
type OverlayProvider interface {
	Overlay() view.Overlay
}

// Server wires HTTP routes for the overlay API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	overlayHandler *OverlayHandler
	streamHub      *StreamHub
}

// NewServer creates a new API server with all handlers.
func NewServer(provider OverlayProvider, statsProvider StatsProvider, hub *StreamHub) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		overlayHandler: NewOverlayHandler(provider),
		streamHub:      hub,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/v1/overlay", MetricsMiddleware(s.overlayHandler.HandleGetOverlay, "overlay"))
	mux.HandleFunc("/api/v1/stream", s.streamHub.HandleStream)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
