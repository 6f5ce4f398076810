package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/provider"
)

// backends bundles what the commands need: the embedding provider, enrollment
// storage with its optional embedding cache, and the attendance recorder.
type backends struct {
	cfg      *config.Config
	provider provider.Provider
	store    *gallery.DirStore
	cache    database.EnrollmentCache
	recorder attendance.Store
	closers  []func() error
}

// openBackends connects everything a command needs. The recorder is only
// opened when withRecorder is set.
func openBackends(cfg *config.Config, withRecorder bool) (*backends, error) {
	p, err := provider.New(cfg.Embedding, cfg.Recognition.DetectionModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	b := &backends{
		cfg:      cfg,
		provider: p,
		store:    gallery.NewDirStore(cfg.Enrollment.Dir),
	}
	if c, ok := p.(interface{ Close() }); ok {
		b.closers = append(b.closers, func() error { c.Close(); return nil })
	}

	if withRecorder {
		if err := b.openRecorder(); err != nil {
			b.Close()
			return nil, err
		}
	}

	if cfg.Database.CacheEmbeddings {
		if err := initPostgres(cfg, b); err != nil {
			fmt.Printf("Warning: embedding cache disabled: %v\n", err)
		} else if cache, err := database.GetEnrollmentCache(context.Background()); err == nil {
			b.cache = cache
		}
	}
	return b, nil
}

// openRecorder opens the configured attendance backend.
func (b *backends) openRecorder() error {
	switch b.cfg.Recorder.Backend {
	case "", "csv":
		r, err := attendance.NewCSVRecorder(b.cfg.Recorder.CSVPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", b.cfg.Recorder.CSVPath, err)
		}
		b.recorder = r
		b.closers = append(b.closers, r.Close)
		return nil
	case "postgres":
		if err := initPostgres(b.cfg, b); err != nil {
			return err
		}
		return b.useRegisteredRecorder()
	case "mariadb":
		if b.cfg.MariaDB.DSN == "" {
			return errors.New("MARIADB_DSN environment variable is required for the mariadb recorder")
		}
		pool, err := mariadb.Initialize(b.cfg.MariaDB.DSN)
		if err != nil {
			return fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.recorder = mariadb.NewAttendanceRepository(pool)
		return nil
	default:
		return fmt.Errorf("unknown recorder backend %q (csv, postgres, mariadb)", b.cfg.Recorder.Backend)
	}
}

// useRegisteredRecorder takes the attendance store a SQL backend registered
// with the database package.
func (b *backends) useRegisteredRecorder() error {
	store, err := database.GetAttendanceStore(context.Background())
	if err != nil {
		return err
	}
	b.recorder = store
	return nil
}

// initPostgres connects to PostgreSQL once and runs migrations.
func initPostgres(cfg *config.Config, b *backends) error {
	if postgres.Initialized() {
		return nil
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	fmt.Printf("Connecting to PostgreSQL database...\n")
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	b.closers = append(b.closers, postgres.Shared().Close)
	return nil
}

// loadGallery embeds every enrollment image, using the cache when configured.
func (b *backends) loadGallery(ctx context.Context) (*gallery.Gallery, gallery.LoadReport, error) {
	opts := gallery.LoadOptions{Model: b.provider.Name() + "/" + b.cfg.Recognition.DetectionModel}
	if b.cache != nil {
		opts.Cache = b.cache
	}
	return gallery.Load(ctx, b.store, b.provider, opts)
}

// Close releases every opened backend.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}
}

// printLoadReport prints a gallery load summary with the skipped images.
func printLoadReport(g *gallery.Gallery, report gallery.LoadReport) {
	fmt.Printf("Gallery: %d embeddings of %d people", g.Len(), len(g.Identities()))
	if report.Cached > 0 {
		fmt.Printf(" (%d from cache)", report.Cached)
	}
	fmt.Println()
	for _, s := range report.Skipped {
		fmt.Printf("  Skipped %s: %s\n", s.Path, s.Reason)
	}
}
