package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/frametech/leads-dashboard/internal/leads"
)

type refreshEvent struct {
	KPI         leads.Summary `json:"kpi"`
	Error       string        `json:"error,omitempty"`
	RefreshedAt time.Time     `json:"refreshed_at"`
}

// GET /api/events
// Streams one "refresh" event per replaced overview. The watch is
// dropped when the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	updates, stop := s.Dashboard.Watch()
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ov := <-updates:
			data, err := json.Marshal(refreshEvent{KPI: ov.KPI, Error: ov.Error, RefreshedAt: ov.RefreshedAt})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: refresh\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
