// Package facematch provides face matching utilities shared between the CLI, the
// frame pipeline and the web handlers.
package facematch

import (
	"encoding/json"
	"math"
)

// Embedding is a fixed-length face vector produced by an embedding provider.
// Embeddings are never mutated after creation.
type Embedding []float32

// MatchResult is the outcome of matching one query embedding against a gallery.
// Index and Distance refer to the closest gallery entry even when Matched is false,
// except for an empty gallery where Index is -1.
type MatchResult struct {
	Matched  bool
	Name     string
	Index    int
	Distance float64
}

// MarshalJSON writes a non-finite Distance, which a dimension mismatch
// produces, as null.
func (m MatchResult) MarshalJSON() ([]byte, error) {
	type fields MatchResult
	out := struct {
		fields
		Distance *float64
	}{fields: fields(m)}
	if !math.IsInf(m.Distance, 0) && !math.IsNaN(m.Distance) {
		out.Distance = &m.Distance
	}
	return json.Marshal(out)
}

// Unmatched is returned for empty galleries and queries outside the tolerance.
var Unmatched = MatchResult{Index: -1}
