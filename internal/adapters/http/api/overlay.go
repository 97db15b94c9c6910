// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// OverlayHandler handles overlay snapshot requests.
type OverlayHandler struct {
	provider OverlayProvider
}

// NewOverlayHandler creates a new overlay handler.
func NewOverlayHandler(provider OverlayProvider) *OverlayHandler {
	return &OverlayHandler{provider: provider}
}

// HandleGetOverlay handles GET /api/v1/overlay requests. It returns the most
// recently published overlay model, which may be a zero model before the
// first render pass.
func (h *OverlayHandler) HandleGetOverlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Overlay())
}
