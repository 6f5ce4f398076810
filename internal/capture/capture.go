// Package capture provides frame sources for video files and live cameras.
package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// ErrStreamEnded is returned when a live source stops delivering frames.
var ErrStreamEnded = errors.New("stream ended")

// Source yields frames in order. File sources return io.EOF after the last frame.
type Source interface {
	Read(ctx context.Context) (*imaging.Frame, error)
	Close() error
}

// Counter is implemented by sources that know their frame count up front.
type Counter interface {
	FrameCount() int
}

// SliceSource serves frames from memory. After the frames run out it returns Err,
// or io.EOF when Err is nil.
type SliceSource struct {
	mu     sync.Mutex
	frames []*imaging.Frame
	pos    int
	closed bool

	Err error
}

// NewSliceSource creates a source that yields the given frames.
func NewSliceSource(frames ...*imaging.Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Read(ctx context.Context) (*imaging.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("source closed")
	}
	if s.pos >= len(s.frames) {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *SliceSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SliceSource) FrameCount() int {
	return len(s.frames)
}

// Loop serves the same frame forever, like a camera pointed at a still scene.
type Loop struct {
	Frame *imaging.Frame

	mu     sync.Mutex
	reads  int
	closed bool
}

func (l *Loop) Read(ctx context.Context) (*imaging.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, errors.New("source closed")
	}
	l.reads++
	return l.Frame, nil
}

func (l *Loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Loop) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}
