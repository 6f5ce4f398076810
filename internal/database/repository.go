package database

import (
	"context"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// AttendanceStore persists attendance records, one per (name, calendar day).
// It is an attendance.Store that can also summarize days.
type AttendanceStore interface {
	attendance.Store
	attendance.DayLister
}

// EnrollmentCache stores enrollment embeddings so unchanged images are not
// re-embedded on every gallery load.
type EnrollmentCache interface {
	// GetEmbedding returns the cached embedding for an image hash and model
	GetEmbedding(ctx context.Context, imageHash, model string) (facematch.Embedding, bool, error)
	// SaveEmbedding stores or replaces a cached embedding
	SaveEmbedding(ctx context.Context, imageHash, model, name, path string, emb facematch.Embedding) error
	// List returns all cached embeddings, ordered by name
	List(ctx context.Context) ([]StoredEnrollment, error)
	// Count returns the number of cached embeddings
	Count(ctx context.Context) (int, error)
	// DeleteOlderThan removes cache entries not refreshed since the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
