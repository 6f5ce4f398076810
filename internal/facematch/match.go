package facematch

import "math"

// Match finds the closest known embedding to query and accepts it when the
// distance is within tolerance (inclusive). names is parallel to known.
// Ties resolve to the first occurrence and a NaN distance never stays best.
// An empty gallery is always Unmatched.
func Match(query Embedding, known []Embedding, names []string, tolerance float64) MatchResult {
	if len(known) == 0 {
		return Unmatched
	}

	bestIdx := -1
	bestDist := 0.0
	for i, k := range known {
		d := EuclideanDistance(k, query)
		if bestIdx == -1 || d < bestDist || math.IsNaN(bestDist) {
			bestIdx = i
			bestDist = d
		}
	}

	result := MatchResult{Index: bestIdx, Distance: bestDist}
	if bestDist <= tolerance && bestIdx < len(names) {
		result.Matched = true
		result.Name = names[bestIdx]
	}
	return result
}
