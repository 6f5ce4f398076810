package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

var _ attendance.Store = (*AttendanceRepository)(nil)

// AttendanceRepository stores attendance in the attendance table.
// The (name, day) unique constraint keeps one row per person and day.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Record inserts the record unless the name is already present for that day.
func (r *AttendanceRepository) Record(ctx context.Context, rec attendance.Record) (bool, error) {
	query := `
		INSERT INTO attendance (name, day, marked_at, session_id, source, distance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name, day) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		rec.Name, rec.Day(), rec.Time, rec.SessionID, rec.Source, rec.Distance)
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
		WHERE day = $1
		ORDER BY marked_at, id
	`
	rows, err := r.pool.Query(ctx, query, day.Format(attendance.DateLayout))
	if err != nil {
		return nil, err
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
		SELECT to_char(day, 'YYYY-MM-DD'), COUNT(*)
		FROM attendance
		GROUP BY day
		ORDER BY day DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
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
