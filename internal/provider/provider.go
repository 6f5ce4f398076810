// Package provider defines the face detection and embedding backends used by
// the gallery loader and the frame pipeline.
package provider

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// ErrNoFace is returned when an image that must contain a face has none.
var ErrNoFace = errors.New("no face detected")

// Provider detects faces and computes their embeddings.
// Frames passed in must already be in the provider's ChannelOrder.
type Provider interface {
	Name() string
	ChannelOrder() imaging.ChannelOrder
	DetectFaces(ctx context.Context, frame *imaging.Frame) ([]image.Rectangle, error)
	// ComputeEmbeddings returns one embedding per box, in box order.
	ComputeEmbeddings(ctx context.Context, frame *imaging.Frame, boxes []image.Rectangle) ([]facematch.Embedding, error)
}

// Factory builds a provider from configuration.
type Factory func(cfg config.EmbeddingConfig, model string) (Provider, error)

var factories = map[string]Factory{
	"http": func(cfg config.EmbeddingConfig, model string) (Provider, error) {
		return NewHTTPClient(cfg.URL, model), nil
	},
}

// Register adds a named provider factory. Providers behind build tags call this from init.
func Register(name string, f Factory) {
	factories[name] = f
}

// Available lists registered provider names.
func Available() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the provider selected by cfg.Provider.
func New(cfg config.EmbeddingConfig, model string) (Provider, error) {
	name := cfg.Provider
	if name == "" {
		name = "http"
	}
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider %q (available: %v)", name, Available())
	}
	return f(cfg, model)
}

// EmbedFirstFace detects faces and returns the embedding of the first one.
// Used for enrollment images which are expected to show a single person.
func EmbedFirstFace(ctx context.Context, p Provider, frame *imaging.Frame) (facematch.Embedding, image.Rectangle, error) {
	frame = frame.Convert(p.ChannelOrder())
	boxes, err := p.DetectFaces(ctx, frame)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("detect faces: %w", err)
	}
	if len(boxes) == 0 {
		return nil, image.Rectangle{}, ErrNoFace
	}
	embeddings, err := p.ComputeEmbeddings(ctx, frame, boxes[:1])
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("compute embedding: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, image.Rectangle{}, errors.New("empty embedding returned")
	}
	return embeddings[0], boxes[0], nil
}
