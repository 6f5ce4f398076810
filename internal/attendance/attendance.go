// Package attendance decides when a recognized face becomes an attendance record
// and persists those records.
package attendance

import (
	"context"
	"time"
)

// DateLayout is the calendar-day key used by every recorder backend.
const DateLayout = "2006-01-02"

// Record is one attendance event.
type Record struct {
	Name      string    `json:"name"`
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id,omitempty"`
	Source    string    `json:"source,omitempty"` // photo, video, live
	Distance  float64   `json:"distance"`
}

// Day returns the calendar day of the record in its own location.
func (r Record) Day() string {
	return r.Time.Format(DateLayout)
}

// Recorder persists attendance. At most one record is kept per (name, calendar day):
// recording a name again on the same day succeeds with created == false.
// A nil error means the name is recorded for that day.
type Recorder interface {
	Record(ctx context.Context, rec Record) (created bool, err error)
}

// Reader lists the records of one calendar day, oldest first.
type Reader interface {
	List(ctx context.Context, day time.Time) ([]Record, error)
}

// DaySummary counts attendance for one calendar day.
type DaySummary struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// DayLister is implemented by stores that can summarize attendance per day.
type DayLister interface {
	// Days returns per-day record counts, newest first, limited to the given number of days
	Days(ctx context.Context, limit int) ([]DaySummary, error)
}

// Store is a recorder backend that can also be read back.
type Store interface {
	Recorder
	Reader
	Close() error
}
