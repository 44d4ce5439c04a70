package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/slate/internal/events"
)

// keepAliveInterval is how often an idle SSE stream gets a comment line.
var keepAliveInterval = 15 * time.Second

// handleEvents streams Hub records as server-sent events. Clients resume
// with Last-Event-ID, which carries the record sequence number.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := s.deps.Hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	lastSeq := parseLastEventID(r.Header.Get("Last-Event-ID"))
	for _, rec := range s.deps.Hub.Since(lastSeq) {
		if err := writeSSE(w, rec); err != nil {
			return
		}
		lastSeq = rec.Seq
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if rec.Seq <= lastSeq {
				continue
			}
			if err := writeSSE(w, rec); err != nil {
				return
			}
			lastSeq = rec.Seq
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeSSE(w http.ResponseWriter, rec events.Record) error {
	if _, err := fmt.Fprintf(w, "id: %d\n", rec.Seq); err != nil {
		return err
	}
	if rec.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", rec.Type); err != nil {
			return err
		}
	}
	// Payloads are compact JSON, so one data line is enough.
	_, err := fmt.Fprintf(w, "data: %s\n\n", rec.Data)
	return err
}
