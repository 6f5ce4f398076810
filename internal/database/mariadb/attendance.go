package mariadb

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

var _ attendance.Store = (*AttendanceRepository)(nil)

// AttendanceRepository stores attendance in MariaDB.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new MariaDB attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// maxNameLength is the width of the name column, in characters.
const maxNameLength = 255

// Record inserts the record unless the name is already present for that day.
// The no-op update leaves a duplicate unchanged, which MariaDB reports as 0
// affected rows; other errors still surface.
func (r *AttendanceRepository) Record(ctx context.Context, rec attendance.Record) (bool, error) {
	if rec.Name == "" {
		return false, errors.New("attendance name is required")
	}
	if n := utf8.RuneCountInString(rec.Name); n > maxNameLength {
		return false, fmt.Errorf("attendance name is %d characters, limit is %d", n, maxNameLength)
	}
	query := `
		INSERT INTO attendance (name, day, marked_at, session_id, source, distance)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id
	`
	result, err := r.pool.db.ExecContext(ctx, query,
		rec.Name, rec.Day(), rec.Time.UTC(), rec.SessionID, rec.Source, rec.Distance)
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// List returns the records of one calendar day, oldest first.
func (r *AttendanceRepository) List(ctx context.Context, day time.Time) ([]attendance.Record, error) {
	query := `
		SELECT name, marked_at, session_id, source, distance
		FROM attendance
		WHERE day = ?
		ORDER BY marked_at, id
	`
	rows, err := r.pool.db.QueryContext(ctx, query, day.Format(attendance.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var rec attendance.Record
		if err := rows.Scan(&rec.Name, &rec.Time, &rec.SessionID, &rec.Source, &rec.Distance); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

// Days returns per-day counts, newest first.
func (r *AttendanceRepository) Days(ctx context.Context, limit int) ([]attendance.DaySummary, error) {
	if limit <= 0 {
		limit = 30
	}
	query := `
		SELECT DATE_FORMAT(day, '%Y-%m-%d'), COUNT(*)
		FROM attendance
		GROUP BY day
		ORDER BY day DESC
		LIMIT ?
	`
	rows, err := r.pool.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query attendance days: %w", err)
	}
	defer rows.Close()

	var days []attendance.DaySummary
	for rows.Next() {
		var d attendance.DaySummary
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, fmt.Errorf("scan day summary: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day summaries: %w", err)
	}
	return days, nil
}

// Close is a no-op; the pool is owned by the caller of Initialize.
func (r *AttendanceRepository) Close() error {
	return nil
}
