package gallery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Holder shares the current gallery between concurrent sessions. Reload swaps
// in a new gallery; sessions that already took a gallery keep using it.
type Holder struct {
	current  atomic.Pointer[Gallery]
	reloadMu sync.Mutex

	mu         sync.RWMutex
	lastReport LoadReport
	loadedAt   time.Time
}

// NewHolder creates a holder with an initial gallery (nil means empty).
func NewHolder(g *Gallery) *Holder {
	h := &Holder{}
	if g == nil {
		g = Empty()
	}
	h.current.Store(g)
	return h
}

// Get returns the current gallery.
func (h *Holder) Get() *Gallery {
	return h.current.Load()
}

// Set replaces the current gallery.
func (h *Holder) Set(g *Gallery, report LoadReport) {
	h.current.Store(g)
	h.mu.Lock()
	h.lastReport = report
	h.loadedAt = time.Now()
	h.mu.Unlock()
}

// LastReport returns the report of the most recent Set and when it happened.
func (h *Holder) LastReport() (LoadReport, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReport, h.loadedAt
}

// Reload runs load and installs its result. Concurrent reloads are serialized;
// on error the current gallery is kept.
func (h *Holder) Reload(ctx context.Context, load func(ctx context.Context) (*Gallery, LoadReport, error)) (LoadReport, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	g, report, err := load(ctx)
	if err != nil {
		return report, err
	}
	h.Set(g, report)
	return report, nil
}
