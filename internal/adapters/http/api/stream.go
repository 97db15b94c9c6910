// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/rcrderby/crg-overlays/internal/view"
	"github.com/rcrderby/crg-overlays/pkg/metrics"
)

// Per-client buffer. A browser that cannot keep up skips intermediate
// overlays rather than stalling publishing; every model is a full snapshot
// so skipping is lossless.
const streamClientBuffer = 8

// StreamHub fans published overlay models out to connected SSE clients. It
// implements the projector's publish sink.
type StreamHub struct {
	mu      sync.Mutex
	clients map[string]chan view.Overlay
}

// NewStreamHub creates an empty hub.
func NewStreamHub() *StreamHub {
	return &StreamHub{
		clients: make(map[string]chan view.Overlay),
	}
}

// Publish broadcasts an overlay model to every connected client. Slow
// clients drop the oldest pending model.
func (h *StreamHub) Publish(o view.Overlay) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.clients {
		select {
		case ch <- o:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- o:
			default:
			}
		}
	}
}

// HandleStream handles GET /api/v1/stream requests as a Server-Sent Events
// stream of overlay models.
func (h *StreamHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", ErrStreamUnsupported)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := h.add()
	defer h.remove(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case o := <-ch:
			data, err := json.Marshal(o)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (h *StreamHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *StreamHub) add() (string, chan view.Overlay) {
	id := uuid.NewString()
	ch := make(chan view.Overlay, streamClientBuffer)

	h.mu.Lock()
	h.clients[id] = ch
	n := len(h.clients)
	h.mu.Unlock()

	metrics.UpdateStreamClients(n)
	return id, ch
}

func (h *StreamHub) remove(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	n := len(h.clients)
	h.mu.Unlock()

	metrics.UpdateStreamClients(n)
}
