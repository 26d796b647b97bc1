package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	streamMaxDuration = 30 * time.Minute
	streamKeepAlive   = 15 * time.Second
)

// handleDebateStream pushes a session snapshot every time the session
// changes, using Server-Sent Events.
func (h *Handler) handleDebateStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slog.Debug("New debate stream connection", "debate_id", id, "remote_addr", r.RemoteAddr)

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Streaming unsupported: ResponseWriter does not implement http.Flusher")
		h.jsonError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	s, err := h.engine.Open(r.Context(), id)
	if err != nil {
		h.engineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithTimeout(r.Context(), streamMaxDuration)
	defer cancel()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	var lastVersion uint64
	first := true
	for {
		// Take the channel before the snapshot so no change slips between them.
		changed := s.Changed()
		snap := s.Snapshot()
		if first || snap.Version != lastVersion {
			if err := sendSSEEvent(w, flusher, "snapshot", snap); err != nil {
				slog.Debug("Stream write failed", "debate_id", id, "error", err)
				return
			}
			lastVersion = snap.Version
			first = false
		}

		select {
		case <-ctx.Done():
			slog.Debug("Stream context done", "debate_id", id)
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-changed:
		}
	}
}

// sendSSEEvent sends a server-sent event.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	flusher.Flush()
	return nil
}
