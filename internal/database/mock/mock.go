// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// MockRecorder is an in-memory database.AttendanceStore keeping one record per (name, day).
type MockRecorder struct {
	mu      sync.Mutex
	records []attendance.Record
	seen    map[string]struct{}

	// Error injection
	RecordError error
	ListError   error
	// FailNames makes Record fail with RecordError only for these names
	FailNames map[string]bool

	RecordCalls int
	Closed      bool
}

// NewMockRecorder creates a new mock recorder
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{seen: make(map[string]struct{})}
}

func recordKey(rec attendance.Record) string {
	return rec.Day() + "\x00" + rec.Name
}

// Record stores rec unless the name is already recorded that day.
func (m *MockRecorder) Record(ctx context.Context, rec attendance.Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordCalls++

	if m.RecordError != nil && (m.FailNames == nil || m.FailNames[rec.Name]) {
		return false, m.RecordError
	}
	key := recordKey(rec)
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	m.records = append(m.records, rec)
	return true, nil
}

// List returns the records of day in insertion order.
func (m *MockRecorder) List(ctx context.Context, day time.Time) ([]attendance.Record, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	want := day.Format(attendance.DateLayout)
	var out []attendance.Record
	for _, rec := range m.records {
		if rec.Day() == want {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Days returns per-day counts, newest first.
func (m *MockRecorder) Days(ctx context.Context, limit int) ([]attendance.DaySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, rec := range m.records {
		counts[rec.Day()]++
	}
	days := make([]attendance.DaySummary, 0, len(counts))
	for day, n := range counts {
		days = append(days, attendance.DaySummary{Day: day, Count: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day > days[j].Day })
	if limit > 0 && len(days) > limit {
		days = days[:limit]
	}
	return days, nil
}

// Records returns every stored record.
func (m *MockRecorder) Records() []attendance.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attendance.Record, len(m.records))
	copy(out, m.records)
	return out
}

// Names returns the names of every stored record, in insertion order.
func (m *MockRecorder) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.records))
	for i, rec := range m.records {
		names[i] = rec.Name
	}
	return names
}

func (m *MockRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// MockEnrollmentCache is an in-memory database.EnrollmentCache.
type MockEnrollmentCache struct {
	mu      sync.RWMutex
	entries map[string]database.StoredEnrollment

	// Error injection
	GetError  error
	SaveError error

	GetCalls  int
	SaveCalls int
}

// NewMockEnrollmentCache creates a new mock enrollment cache
func NewMockEnrollmentCache() *MockEnrollmentCache {
	return &MockEnrollmentCache{entries: make(map[string]database.StoredEnrollment)}
}

func cacheKey(hash, model string) string {
	return model + "\x00" + hash
}

// AddEnrollment seeds the cache.
func (m *MockEnrollmentCache) AddEnrollment(e database.StoredEnrollment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cacheKey(e.ImageHash, e.Model)] = e
}

func (m *MockEnrollmentCache) GetEmbedding(ctx context.Context, imageHash, model string) (facematch.Embedding, bool, error) {
	m.mu.Lock()
	m.GetCalls++
	m.mu.Unlock()
	if m.GetError != nil {
		return nil, false, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[cacheKey(imageHash, model)]
	if !ok {
		return nil, false, nil
	}
	return facematch.Embedding(e.Embedding), true, nil
}

func (m *MockEnrollmentCache) SaveEmbedding(ctx context.Context, imageHash, model, name, path string, emb facematch.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.entries[cacheKey(imageHash, model)] = database.StoredEnrollment{
		ImageHash: imageHash,
		Model:     model,
		Name:      name,
		Path:      path,
		Embedding: []float32(emb),
		Dim:       len(emb),
		CreatedAt: time.Now(),
	}
	return nil
}

func (m *MockEnrollmentCache) List(ctx context.Context) ([]database.StoredEnrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.StoredEnrollment, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

func (m *MockEnrollmentCache) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MockEnrollmentCache) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.entries {
		if e.CreatedAt.Before(before) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

var (
	_ database.AttendanceStore = (*MockRecorder)(nil)
	_ attendance.Store         = (*MockRecorder)(nil)
	_ database.EnrollmentCache = (*MockEnrollmentCache)(nil)
)
