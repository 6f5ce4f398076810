package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// isJobTerminal reports whether a session can no longer change state. A
// stopping session is not terminal: its camera is still open.
func isJobTerminal(status JobStatus) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

var errStreamingUnsupported = errors.New("streaming not supported")

// eventStream writes text/event-stream frames and flushes after each one.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &eventStream{w: w, flusher: flusher}, nil
}

// send writes one named event with a JSON payload.
func (s *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// ping writes a comment line, ignored by EventSource clients.
func (s *eventStream) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// streamSSEEvents sends the session snapshot as a "status" event, then relays
// session events until the session ends or the client goes away.
func streamSSEEvents(w http.ResponseWriter, r *http.Request, lookupJob func(string) SSEJob, snapshot func(SSEJob) any) {
	id := chi.URLParam(r, "sessionId")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return
	}
	job := lookupJob(id)
	if job == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		respondError(w, http.StatusInternalServerError, errStreamingUnsupported.Error())
		return
	}

	events := job.AddListener()
	defer job.RemoveListener(events)

	stream, err := newEventStream(w)
	if err != nil {
		return
	}
	if err := stream.send("status", snapshot(job)); err != nil || isJobTerminal(job.GetStatus()) {
		return
	}

	keepAlive := time.NewTicker(constants.SSEKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if err := stream.ping(); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := stream.send(event.Type, event); err != nil {
				return
			}
			if isJobTerminal(job.GetStatus()) {
				return
			}
		}
	}
}
