// Package mock provides a scripted embedding provider for testing.
package mock

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// Face is one scripted detection.
type Face struct {
	Box       image.Rectangle
	Embedding facematch.Embedding
}

// MockProvider returns scripted faces. FacesFunc, when set, is called with the
// zero-based detect call number and wins over Faces.
type MockProvider struct {
	mu sync.Mutex

	Order     imaging.ChannelOrder
	Faces     []Face
	FacesFunc func(call int, frame *imaging.Frame) []Face

	// Error injection
	DetectError error
	EmbedError  error

	// Recorded inputs
	Frames      []*imaging.Frame
	DetectCalls int
	EmbedCalls  int

	last []Face
}

// NewMockProvider creates a provider that finds the given faces in every frame.
func NewMockProvider(faces ...Face) *MockProvider {
	return &MockProvider{Order: imaging.RGB, Faces: faces}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) ChannelOrder() imaging.ChannelOrder { return m.Order }

func (m *MockProvider) DetectFaces(ctx context.Context, frame *imaging.Frame) ([]image.Rectangle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.DetectCalls
	m.DetectCalls++
	m.Frames = append(m.Frames, frame)

	if m.DetectError != nil {
		return nil, m.DetectError
	}

	faces := m.Faces
	if m.FacesFunc != nil {
		faces = m.FacesFunc(call, frame)
	}
	m.last = faces

	boxes := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		boxes[i] = f.Box
	}
	return boxes, nil
}

// ComputeEmbeddings returns the embeddings of the faces found by the last DetectFaces call,
// looked up by box.
func (m *MockProvider) ComputeEmbeddings(ctx context.Context, frame *imaging.Frame, boxes []image.Rectangle) ([]facematch.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EmbedCalls++
	if m.EmbedError != nil {
		return nil, m.EmbedError
	}

	embeddings := make([]facematch.Embedding, len(boxes))
	for i, b := range boxes {
		found := false
		for _, f := range m.last {
			if f.Box == b {
				embeddings[i] = f.Embedding
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no scripted face at %v", b)
		}
	}
	return embeddings, nil
}

// ReceivedFrames returns a copy of the frames passed to DetectFaces.
func (m *MockProvider) ReceivedFrames() []*imaging.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*imaging.Frame, len(m.Frames))
	copy(out, m.Frames)
	return out
}
