package gallery

import (
	"errors"
	"sort"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

const indexMaxNeighbors = 16

// Neighbor is a gallery entry close to a query embedding.
type Neighbor struct {
	Entry    Entry   `json:"entry"`
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

// Index is an HNSW graph over a gallery using Euclidean distance. It answers
// "who is close to this face" for enrollment conflict checks; attendance
// matching uses the exact scan in Gallery.Match.
type Index struct {
	graph   *hnsw.Graph[int]
	gallery *Gallery
}

// NewIndex builds the graph. An empty gallery gives an empty index.
func NewIndex(g *Gallery) *Index {
	idx := &Index{gallery: g}
	if g.Len() == 0 {
		return idx
	}

	graph := hnsw.NewGraph[int]()
	graph.M = indexMaxNeighbors
	graph.Ml = 1.0 / float64(indexMaxNeighbors)
	graph.Distance = hnsw.EuclideanDistance

	for i, e := range g.entries {
		graph.Add(hnsw.MakeNode(i, []float32(e.Embedding)))
	}
	idx.graph = graph
	return idx
}

// Nearest returns up to k entries closest to query, nearest first.
func (x *Index) Nearest(query facematch.Embedding, k int) ([]Neighbor, error) {
	if x.graph == nil || k <= 0 {
		return nil, nil
	}
	if len(query) != x.gallery.Dim() {
		return nil, errors.New("query dimension does not match gallery")
	}

	nodes := x.graph.Search([]float32(query), k)
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Neighbor{
			Entry:    x.gallery.entries[n.Key],
			Index:    n.Key,
			Distance: facematch.EuclideanDistance(query, x.gallery.entries[n.Key].Embedding),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// Conflicts returns entries within tolerance of query that belong to someone other than name.
func (x *Index) Conflicts(name string, query facematch.Embedding, k int, tolerance float64) ([]Neighbor, error) {
	neighbors, err := x.Nearest(query, k)
	if err != nil {
		return nil, err
	}
	var out []Neighbor
	for _, n := range neighbors {
		if n.Distance > tolerance {
			continue
		}
		if facematch.SamePerson(n.Entry.Name, name) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
