package attendance

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"Name", "Date", "Time", "Session", "Source", "Distance"}

const csvTimeLayout = "15:04:05"

// CSVRecorder appends attendance to a CSV file, one row per (name, day).
type CSVRecorder struct {
	mu   sync.Mutex
	path string
	days map[string]map[string]struct{} // day -> names
}

// NewCSVRecorder opens path, creating it with a header if missing, and indexes
// the rows already present.
func NewCSVRecorder(path string) (*CSVRecorder, error) {
	r := &CSVRecorder{
		path: path,
		days: make(map[string]map[string]struct{}),
	}

	rows, err := r.readAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range rows {
		r.index(rec.Day(), rec.Name)
	}
	return r, nil
}

func (r *CSVRecorder) index(day, name string) {
	names, ok := r.days[day]
	if !ok {
		names = make(map[string]struct{})
		r.days[day] = names
	}
	names[name] = struct{}{}
}

func (r *CSVRecorder) readAll() ([]Record, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open attendance file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var records []Record
	first := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read attendance file: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == csvHeader[0] {
				continue
			}
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("attendance file %s: %w", r.path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (Record, error) {
	if len(row) < 3 {
		return Record{}, fmt.Errorf("row has %d fields, need at least 3", len(row))
	}
	t, err := time.ParseInLocation(DateLayout+" "+csvTimeLayout, row[1]+" "+row[2], time.Local)
	if err != nil {
		return Record{}, fmt.Errorf("parse time: %w", err)
	}
	rec := Record{Name: row[0], Time: t}
	if len(row) > 3 {
		rec.SessionID = row[3]
	}
	if len(row) > 4 {
		rec.Source = row[4]
	}
	if len(row) > 5 && row[5] != "" {
		if d, err := strconv.ParseFloat(row[5], 64); err == nil {
			rec.Distance = d
		}
	}
	return rec, nil
}

// Record appends rec unless its name is already recorded for that day.
func (r *CSVRecorder) Record(ctx context.Context, rec Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if rec.Name == "" {
		return false, errors.New("empty name")
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	day := rec.Day()
	if _, ok := r.days[day][rec.Name]; ok {
		return false, nil
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // path is from trusted config
	if err != nil {
		return false, fmt.Errorf("open attendance file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat attendance file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return false, fmt.Errorf("write header: %w", err)
		}
	}
	row := []string{
		rec.Name,
		day,
		rec.Time.Format(csvTimeLayout),
		rec.SessionID,
		rec.Source,
		strconv.FormatFloat(rec.Distance, 'f', 4, 64),
	}
	if err := w.Write(row); err != nil {
		return false, fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, fmt.Errorf("flush record: %w", err)
	}

	r.index(day, rec.Name)
	return true, nil
}

// List returns the records of the given day in file order.
func (r *CSVRecorder) List(ctx context.Context, day time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.readAll()
	if err != nil {
		return nil, err
	}
	key := day.Format(DateLayout)
	var out []Record
	for _, rec := range all {
		if rec.Day() == key {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Days returns per-day counts from the in-memory index, newest first.
func (r *CSVRecorder) Days(ctx context.Context, limit int) ([]DaySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	days := make([]DaySummary, 0, len(r.days))
	for day, names := range r.days {
		days = append(days, DaySummary{Day: day, Count: len(names)})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day > days[j].Day })
	if limit > 0 && len(days) > limit {
		days = days[:limit]
	}
	return days, nil
}

func (r *CSVRecorder) Close() error { return nil }
