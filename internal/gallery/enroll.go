package gallery

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/provider"
)

// EnrollResult describes a saved enrollment image.
type EnrollResult struct {
	Image     ImageRef        `json:"image"`
	Box       image.Rectangle `json:"box"`
	Conflicts []Neighbor      `json:"conflicts,omitempty"` // other people already within tolerance
	// Duplicates are this person's existing images that look like the same photo.
	Duplicates []string `json:"duplicates,omitempty"`
}

// Enroll saves frame as a new enrollment image for name. The frame must contain
// a face; conflicts with other enrolled people in current are reported, not rejected.
func Enroll(ctx context.Context, store Store, p provider.Provider, current *Gallery, name string, frame *imaging.Frame, suffix string, tolerance float64) (EnrollResult, error) {
	var result EnrollResult
	if err := ValidateName(name); err != nil {
		return result, err
	}

	emb, box, err := provider.EmbedFirstFace(ctx, p, frame)
	if err != nil {
		return result, fmt.Errorf("enroll %s: %w", name, err)
	}
	result.Box = box

	if current != nil && current.Len() > 0 {
		conflicts, err := NewIndex(current).Conflicts(name, emb, constants.DefaultConflictNeighbors, tolerance)
		if err != nil {
			log.Printf("Warning: conflict check for %s skipped: %v", name, err)
		}
		result.Conflicts = conflicts
	}

	result.Duplicates = findDuplicates(ctx, store, name, frame)

	ref, err := store.Save(ctx, name, frame, suffix)
	if err != nil {
		return result, err
	}
	result.Image = ref
	return result, nil
}

// findDuplicates compares the difference hash of frame with the images already
// enrolled for name.
func findDuplicates(ctx context.Context, store Store, name string, frame *imaging.Frame) []string {
	refs, err := store.List(ctx)
	if err != nil {
		log.Printf("Warning: duplicate check for %s skipped: %v", name, err)
		return nil
	}

	hash := fingerprint.DHash(frame)
	var dups []string
	for _, ref := range refs {
		if ref.Name != name {
			continue
		}
		data, err := store.Read(ctx, ref)
		if err != nil {
			continue
		}
		existing, err := imaging.Decode(data)
		if err != nil {
			continue
		}
		if fingerprint.Similar(hash, fingerprint.DHash(existing), constants.DuplicateHashThreshold) {
			dups = append(dups, ref.Path)
		}
	}
	return dups
}
