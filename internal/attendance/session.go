package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a session processes.
type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
	KindLive  Kind = "live"
)

// Session tracks the names already credited during one run (one photo, one video
// or one live camera session). It is owned by a single goroutine and not locked.
type Session struct {
	ID        string
	Kind      Kind
	StartedAt time.Time

	marked map[string]struct{}
	order  []string
}

// NewSession starts an empty session with a fresh ID.
func NewSession(kind Kind) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now(),
		marked:    make(map[string]struct{}),
	}
}

// ShouldRecord reports whether name has not been credited in this session yet.
func (s *Session) ShouldRecord(name string) bool {
	_, ok := s.marked[name]
	return !ok
}

// MarkRecorded credits name. Marking twice is a no-op.
func (s *Session) MarkRecorded(name string) {
	if _, ok := s.marked[name]; ok {
		return
	}
	s.marked[name] = struct{}{}
	s.order = append(s.order, name)
}

// Marked returns the credited names in the order they were first marked.
func (s *Session) Marked() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// RecordOnce records rec.Name unless it was already credited in this session.
// The name is marked only after the recorder succeeds, so a failed write is retried
// on the next detection. Returns true when the name was newly credited.
func (s *Session) RecordOnce(ctx context.Context, r Recorder, rec Record) (bool, error) {
	if !s.ShouldRecord(rec.Name) {
		return false, nil
	}

	rec.SessionID = s.ID
	rec.Source = string(s.Kind)
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	if _, err := r.Record(ctx, rec); err != nil {
		return false, err
	}

	s.MarkRecorded(rec.Name)
	return true, nil
}
