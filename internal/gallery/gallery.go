// Package gallery loads enrolled face embeddings and matches queries against them.
package gallery

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Entry is one enrolled embedding. Names are not unique: a person enrolled
// with several images has several entries.
type Entry struct {
	Name      string              `json:"name"`
	Embedding facematch.Embedding `json:"-"`
	Source    string              `json:"source"`
}

// Gallery is an ordered, read-only set of entries sharing one dimensionality.
// It is safe for concurrent use once built.
type Gallery struct {
	entries    []Entry
	names      []string
	embeddings []facematch.Embedding
	dim        int
}

// New builds a gallery from entries. Empty embeddings and embeddings holding
// NaN or Inf are rejected; the first accepted embedding then fixes the
// dimensionality and entries that disagree are rejected too.
func New(entries []Entry) (*Gallery, []Entry) {
	g := &Gallery{}
	var rejected []Entry
	for _, e := range entries {
		if len(e.Embedding) == 0 || !finite(e.Embedding) {
			rejected = append(rejected, e)
			continue
		}
		if g.dim == 0 {
			g.dim = len(e.Embedding)
		}
		if len(e.Embedding) != g.dim {
			rejected = append(rejected, e)
			continue
		}
		g.entries = append(g.entries, e)
		g.names = append(g.names, e.Name)
		g.embeddings = append(g.embeddings, e.Embedding)
	}
	return g, rejected
}

func finite(emb facematch.Embedding) bool {
	for _, v := range emb {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// RejectReason explains why New left e out of g.
func (g *Gallery) RejectReason(e Entry) string {
	switch {
	case len(e.Embedding) == 0:
		return "empty embedding"
	case !finite(e.Embedding):
		return "embedding contains NaN or Inf"
	default:
		return fmt.Sprintf("embedding dimension %d does not match gallery dimension %d", len(e.Embedding), g.Dim())
	}
}

// Empty returns a gallery with no entries.
func Empty() *Gallery {
	return &Gallery{}
}

func (g *Gallery) Len() int { return len(g.entries) }

// Dim is the shared embedding length, 0 for an empty gallery.
func (g *Gallery) Dim() int { return g.dim }

// Names returns the identity of every entry, parallel to the entries.
func (g *Gallery) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Entries returns a copy of the entries.
func (g *Gallery) Entries() []Entry {
	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Identities returns distinct names with their entry counts, in first-seen order.
func (g *Gallery) Identities() []Identity {
	var out []Identity
	pos := make(map[string]int)
	for _, name := range g.names {
		if i, ok := pos[name]; ok {
			out[i].Images++
			continue
		}
		pos[name] = len(out)
		out = append(out, Identity{Name: name, Images: 1})
	}
	return out
}

// Identity summarizes one enrolled person.
type Identity struct {
	Name   string `json:"name"`
	Images int    `json:"images"`
}

// Match finds the best entry for query within tolerance.
func (g *Gallery) Match(query facematch.Embedding, tolerance float64) facematch.MatchResult {
	return facematch.Match(query, g.embeddings, g.names, tolerance)
}
