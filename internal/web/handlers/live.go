package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/provider"
)

// CameraOpener opens a live frame source for a device.
type CameraOpener func(device string) (capture.Source, error)

// LiveHandler runs camera attendance sessions in the background.
type LiveHandler struct {
	config     *config.Config
	gallery    *gallery.Holder
	provider   provider.Provider
	recorder   attendance.Recorder
	manager    *LiveManager
	openCamera CameraOpener
	upgrader   websocket.Upgrader
}

// NewLiveHandler creates a new live session handler.
func NewLiveHandler(cfg *config.Config, holder *gallery.Holder, p provider.Provider, r attendance.Recorder, m *LiveManager, open CameraOpener) *LiveHandler {
	return &LiveHandler{
		config:     cfg,
		gallery:    holder,
		provider:   p,
		recorder:   r,
		manager:    m,
		openCamera: open,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			// Browsers on other origins are still subject to the API token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// LiveStartRequest is the optional body of Start.
type LiveStartRequest struct {
	Device string `json:"device"`
}

// Start opens the camera and starts a live session.
func (h *LiveHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req LiveStartRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}
	if req.Device == "" {
		req.Device = h.config.Camera.Device
	}

	session := h.manager.Create(uuid.NewString(), req.Device)
	if session == nil {
		msg := "a live session is already running"
		if active := h.manager.Active(); active != nil {
			msg = fmt.Sprintf("live session %s is still %s", active.ID, active.GetStatus())
		}
		respondError(w, http.StatusConflict, msg)
		return
	}

	src, err := h.openCamera(req.Device)
	if err != nil {
		h.manager.Delete(session.ID)
		log.Printf("Failed to open camera %s: %v", sanitizeForLog(req.Device), err)
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to open camera: %v", err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	session.mu.Lock()
	if session.Status != JobStatusPending {
		// Cancelled while the camera was opening.
		session.mu.Unlock()
		cancel()
		_ = src.Close()
		respondError(w, http.StatusConflict, "live session was cancelled")
		return
	}
	session.cancel = cancel
	session.Status = JobStatusRunning
	session.mu.Unlock()

	go h.run(ctx, session, src)

	respondJSON(w, http.StatusAccepted, session.Snapshot())
}

func (h *LiveHandler) run(ctx context.Context, session *LiveSession, src capture.Source) {
	defer session.closeFrameListeners()

	g := h.gallery.Get()
	if g.Len() == 0 {
		session.SendEvent(JobEvent{Type: "warning", Message: "No enrolled faces found"})
	}

	opts := append(pipelineOptions(h.config), pipeline.WithOnMarked(func(rec attendance.Record) {
		session.mu.Lock()
		session.Marked = append(session.Marked, rec.Name)
		session.mu.Unlock()
		session.SendEvent(JobEvent{Type: "marked", Message: rec.Name, Data: rec})
	}))
	p := pipeline.New(g, h.provider, h.recorder, opts...)

	result, err := p.ProcessLive(ctx, src, func(frame *imaging.Frame, fr pipeline.FrameResult) {
		session.mu.Lock()
		session.Frames++
		session.mu.Unlock()

		if len(fr.Faces) > 0 {
			session.SendEvent(JobEvent{Type: "frame", Data: fr})
		}
		if session.hasFrameListeners() {
			data, err := imaging.JPEGBytes(frame, 80)
			if err != nil {
				log.Printf("Failed to encode live frame: %v", err)
				return
			}
			session.sendFrame(data)
		}
	})

	now := time.Now()
	session.mu.Lock()
	session.Result = &result
	session.CompletedAt = &now
	switch {
	case err != nil:
		session.Status = JobStatusFailed
		session.Error = err.Error()
	case session.Status == JobStatusStopping:
		session.Status = JobStatusCancelled
	default:
		session.Status = JobStatusCompleted
	}
	status := session.Status
	session.mu.Unlock()

	if err != nil {
		log.Printf("Live session %s ended: %v", session.ID, err)
		if errors.Is(err, capture.ErrStreamEnded) {
			session.SendEvent(JobEvent{Type: "failed", Message: "camera stream ended", Data: result})
			return
		}
		session.SendEvent(JobEvent{Type: "failed", Message: err.Error(), Data: result})
		return
	}
	session.SendEvent(JobEvent{Type: string(status), Data: result})
}

// Status returns a live session.
func (h *LiveHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.manager.Get(chi.URLParam(r, "sessionId"))
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, session.Snapshot())
}

// Stop cancels a live session.
func (h *LiveHandler) Stop(w http.ResponseWriter, r *http.Request) {
	session := h.manager.Get(chi.URLParam(r, "sessionId"))
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	session.Cancel()
	respondJSON(w, http.StatusOK, map[string]string{"status": string(session.GetStatus())})
}

// Events streams session events via SSE.
func (h *LiveHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, func(id string) SSEJob {
		if s := h.manager.Get(id); s != nil {
			return s
		}
		return nil
	}, func(job SSEJob) any {
		return job.(*LiveSession).Snapshot()
	})
}

// Frames streams annotated JPEG frames over a WebSocket as binary messages.
func (h *LiveHandler) Frames(w http.ResponseWriter, r *http.Request) {
	session := h.manager.Get(chi.URLParam(r, "sessionId"))
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if isJobTerminal(session.GetStatus()) {
		respondError(w, http.StatusGone, "session has ended")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	frames := session.AddFrameListener()
	defer session.RemoveFrameListener(frames)

	// Reader goroutine notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case data, ok := <-frames:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}
}
