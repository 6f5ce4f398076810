package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// JobStatus represents the status of a live session.
type JobStatus string

// JobStatus constants define the lifecycle states of a live session.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusStopping  JobStatus = "stopping"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobEvent represents an event from a live session.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting.
// Embed this in session structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners. Slow listeners miss events.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
		}
	}
}

// Cancel cancels the session context.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// SSEJob is the interface required by streamSSEEvents to stream events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// LiveSession is one running camera attendance session.
type LiveSession struct {
	EventBroadcaster

	ID          string           `json:"id"`
	Device      string           `json:"device"`
	Status      JobStatus        `json:"status"`
	Marked      []string         `json:"marked"`
	Frames      int              `json:"frames"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Result      *pipeline.Result `json:"result,omitempty"`

	frameMu        sync.Mutex
	frameListeners []chan []byte
	framesClosed   bool
}

// GetStatus returns the current session status (implements SSEJob).
func (s *LiveSession) GetStatus() JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Cancel stops the session. A running session stays "stopping" until its run
// loop has released the camera; the run loop then records it as cancelled.
func (s *LiveSession) Cancel() {
	s.mu.Lock()
	switch s.Status {
	case JobStatusPending:
		now := time.Now()
		s.Status = JobStatusCancelled
		s.CompletedAt = &now
	case JobStatusRunning:
		s.Status = JobStatusStopping
	}
	s.mu.Unlock()
	s.EventBroadcaster.Cancel()
}

// Snapshot returns a copy safe to encode while the session runs.
func (s *LiveSession) Snapshot() LiveSessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	marked := make([]string, len(s.Marked))
	copy(marked, s.Marked)
	return LiveSessionView{
		ID:          s.ID,
		Device:      s.Device,
		Status:      s.Status,
		Marked:      marked,
		Frames:      s.Frames,
		Error:       s.Error,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		Result:      s.Result,
	}
}

// LiveSessionView is the JSON form of a live session.
type LiveSessionView struct {
	ID          string           `json:"id"`
	Device      string           `json:"device"`
	Status      JobStatus        `json:"status"`
	Marked      []string         `json:"marked"`
	Frames      int              `json:"frames"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Result      *pipeline.Result `json:"result,omitempty"`
}

// AddFrameListener subscribes to annotated JPEG frames. After the session
// ended the returned channel is already closed.
func (s *LiveSession) AddFrameListener() chan []byte {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	ch := make(chan []byte, constants.FrameChannelBuffer)
	if s.framesClosed {
		close(ch)
		return ch
	}
	s.frameListeners = append(s.frameListeners, ch)
	return ch
}

// RemoveFrameListener unsubscribes and closes ch.
func (s *LiveSession) RemoveFrameListener(ch chan []byte) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	for i, listener := range s.frameListeners {
		if listener == ch {
			s.frameListeners = append(s.frameListeners[:i], s.frameListeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (s *LiveSession) hasFrameListeners() bool {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return len(s.frameListeners) > 0
}

// sendFrame delivers a JPEG to every frame listener, dropping it for slow ones.
func (s *LiveSession) sendFrame(jpeg []byte) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	for _, listener := range s.frameListeners {
		select {
		case listener <- jpeg:
		default:
		}
	}
}

// closeFrameListeners ends every frame subscription.
func (s *LiveSession) closeFrameListeners() {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	for _, listener := range s.frameListeners {
		close(listener)
	}
	s.frameListeners = nil
	s.framesClosed = true
}

// LiveManager tracks live sessions. Only one session may hold the camera at a time.
type LiveManager struct {
	sessions map[string]*LiveSession
	mu       sync.RWMutex
}

// NewLiveManager creates a new live session manager.
func NewLiveManager() *LiveManager {
	return &LiveManager{
		sessions: make(map[string]*LiveSession),
	}
}

// Create registers a new pending session. It returns nil when another session
// is still pending, running or stopping.
func (m *LiveManager) Create(id, device string) *LiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if !isJobTerminal(s.GetStatus()) {
			return nil
		}
	}

	session := &LiveSession{
		ID:        id,
		Device:    device,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
	m.sessions[id] = session
	return session
}

// Get retrieves a session by ID.
func (m *LiveManager) Get(id string) *LiveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Delete removes a session.
func (m *LiveManager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Active returns the session holding the camera, if any.
func (m *LiveManager) Active() *LiveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if !isJobTerminal(s.GetStatus()) {
			return s
		}
	}
	return nil
}

// List returns all sessions.
func (m *LiveManager) List() []*LiveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*LiveSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// CancelAll stops every session, used on server shutdown.
func (m *LiveManager) CancelAll() {
	for _, s := range m.List() {
		s.Cancel()
	}
}
