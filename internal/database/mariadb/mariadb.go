// Package mariadb is an attendance backend for MariaDB and MySQL.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const (
	maxOpenConns  = 5
	maxIdleConns  = 2
	pingTimeout   = 10 * time.Second
	connLifetime  = time.Hour
	schemaTimeout = 30 * time.Second
)

const createAttendanceTable = `
	CREATE TABLE IF NOT EXISTS attendance (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		day         DATE NOT NULL,
		marked_at   DATETIME(6) NOT NULL,
		session_id  VARCHAR(64) NOT NULL DEFAULT '',
		source      VARCHAR(16) NOT NULL DEFAULT '',
		distance    DOUBLE NOT NULL DEFAULT 0,
		UNIQUE KEY uniq_attendance_name_day (name, day),
		KEY idx_attendance_day (day)
	)
`

var _ database.AttendanceStore = (*AttendanceRepository)(nil)

// Pool holds the MariaDB connections of the attendance repository.
type Pool struct {
	db *sql.DB
}

// NewPool opens a pool for dsn. The DSN is parsed by the driver first so that
// parseTime can be forced on; DATE and DATETIME columns scan into time.Time.
// clientFoundRows is forced off so an unchanged duplicate affects 0 rows.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = false
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create MariaDB connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping MariaDB at %s/%s: %w", cfg.Addr, cfg.DBName, err)
	}
	return &Pool{db: db}, nil
}

// Close releases the pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close MariaDB: %w", err)
	}
	return nil
}

// EnsureSchema creates the attendance table when missing.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createAttendanceTable); err != nil {
		return fmt.Errorf("create attendance table: %w", err)
	}
	return nil
}

// Initialize opens dsn, creates the schema and registers the "mariadb"
// attendance backend.
func Initialize(dsn string) (*Pool, error) {
	pool, err := NewPool(dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := pool.EnsureSchema(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	database.RegisterAttendanceBackend("mariadb", func() database.AttendanceStore {
		return NewAttendanceRepository(pool)
	})
	log.Printf("MariaDB attendance backend ready")
	return pool, nil
}
