// Package postgres stores attendance and cached enrollment embeddings in
// PostgreSQL with pgvector.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	_ "github.com/lib/pq"
)

const (
	connectTimeout  = 10 * time.Second
	connMaxLifetime = time.Hour
	connMaxIdleTime = 10 * time.Minute
	defaultMaxOpen  = 25
	defaultMaxIdle  = 5
)

var (
	_ database.AttendanceStore = (*AttendanceRepository)(nil)
	_ database.EnrollmentCache = (*EnrollmentRepository)(nil)
)

// Pool wraps the PostgreSQL connections shared by the repositories.
type Pool struct {
	db *sql.DB
}

var (
	shared   *Pool
	sharedMu sync.RWMutex
)

// NewPool opens and pings a pool for cfg. Unset pool sizes fall back to 25 open
// and 5 idle connections.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpen
	}
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdle
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(maxIdle, maxOpen))
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres at %s: %w", redactURL(cfg.URL), err)
	}

	return &Pool{db: db}, nil
}

// redactURL hides the password of a connection URL for log output.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(unparsable url)"
	}
	return u.Redacted()
}

// Close releases every connection.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return result, nil
}

// Shared returns the pool installed by Initialize, or nil.
func Shared() *Pool {
	sharedMu.RLock()
	defer sharedMu.RUnlock()
	return shared
}

// Initialized reports whether Initialize has succeeded in this process.
func Initialized() bool {
	return Shared() != nil
}

// install makes p the shared pool and registers its repositories with the
// database package.
func install(p *Pool) {
	sharedMu.Lock()
	shared = p
	sharedMu.Unlock()

	database.RegisterAttendanceBackend("postgres", func() database.AttendanceStore {
		return NewAttendanceRepository(p)
	})
	database.RegisterEnrollmentCache(func() database.EnrollmentCache {
		return NewEnrollmentRepository(p)
	})
}

// Initialize connects, migrates and registers PostgreSQL as the "postgres"
// attendance backend and as the enrollment cache.
func Initialize(cfg *config.DatabaseConfig) error {
	pool, err := NewPool(cfg)
	if err != nil {
		return err
	}

	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	install(pool)
	log.Printf("PostgreSQL ready at %s", redactURL(cfg.URL))
	return nil
}
