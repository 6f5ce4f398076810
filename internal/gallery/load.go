package gallery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/provider"
)

// EmbeddingCache stores enrollment embeddings keyed by image content hash and
// model, so unchanged images are not re-embedded on every load.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, imageHash, model string) (facematch.Embedding, bool, error)
	SaveEmbedding(ctx context.Context, imageHash, model, name, path string, emb facematch.Embedding) error
}

// LoadOptions configures Load.
type LoadOptions struct {
	Model string         // cache key component, usually the detection model
	Cache EmbeddingCache // optional
}

// Skipped is an enrollment image that did not make it into the gallery.
type Skipped struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// LoadReport summarizes a gallery load.
type LoadReport struct {
	Loaded  int       `json:"loaded"`
	Cached  int       `json:"cached"`
	Skipped []Skipped `json:"skipped"`
}

// Load embeds every enrollment image in the store. Images without a usable face
// are skipped and reported; only failing to list the store is an error.
func Load(ctx context.Context, store Store, p provider.Provider, opts LoadOptions) (*Gallery, LoadReport, error) {
	var report LoadReport

	refs, err := store.List(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("list enrollment images: %w", err)
	}

	entries := make([]Entry, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		emb, cached, err := embedImage(ctx, store, p, ref, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, report, err
			}
			report.Skipped = append(report.Skipped, Skipped{Name: ref.Name, Path: ref.Path, Reason: err.Error()})
			continue
		}
		if cached {
			report.Cached++
		}
		entries = append(entries, Entry{Name: ref.Name, Embedding: emb, Source: ref.Path})
	}

	g, rejected := New(entries)
	for _, e := range rejected {
		report.Skipped = append(report.Skipped, Skipped{
			Name:   e.Name,
			Path:   e.Source,
			Reason: g.RejectReason(e),
		})
	}
	report.Loaded = g.Len()
	return g, report, nil
}

func embedImage(ctx context.Context, store Store, p provider.Provider, ref ImageRef, opts LoadOptions) (facematch.Embedding, bool, error) {
	data, err := store.Read(ctx, ref)
	if err != nil {
		return nil, false, err
	}

	var hash string
	if opts.Cache != nil {
		sum := sha256.Sum256(data)
		hash = hex.EncodeToString(sum[:])
		emb, ok, err := opts.Cache.GetEmbedding(ctx, hash, opts.Model)
		if err != nil {
			log.Printf("Warning: embedding cache lookup for %s failed: %v", ref.Path, err)
		} else if ok && len(emb) > 0 {
			return emb, true, nil
		}
	}

	frame, err := imaging.Decode(data)
	if err != nil {
		return nil, false, err
	}

	emb, _, err := provider.EmbedFirstFace(ctx, p, frame)
	if err != nil {
		return nil, false, err
	}

	if opts.Cache != nil {
		if err := opts.Cache.SaveEmbedding(ctx, hash, opts.Model, ref.Name, ref.Path, emb); err != nil {
			log.Printf("Warning: caching embedding for %s failed: %v", ref.Path, err)
		}
	}
	return emb, false, nil
}
