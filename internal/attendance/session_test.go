package attendance

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRecorder struct {
	calls   []Record
	failFor map[string]error
}

func (f *fakeRecorder) Record(ctx context.Context, rec Record) (bool, error) {
	f.calls = append(f.calls, rec)
	if err := f.failFor[rec.Name]; err != nil {
		return false, err
	}
	return true, nil
}

func TestSession_ShouldRecord(t *testing.T) {
	s := NewSession(KindPhoto)

	if !s.ShouldRecord("Alice") {
		t.Error("expected new name to be recordable")
	}
	s.MarkRecorded("Alice")
	if s.ShouldRecord("Alice") {
		t.Error("expected marked name to be skipped")
	}
	if !s.ShouldRecord("Bob") {
		t.Error("expected other names to stay recordable")
	}
}

func TestSession_MarkRecordedIdempotent(t *testing.T) {
	s := NewSession(KindVideo)

	s.MarkRecorded("Alice")
	s.MarkRecorded("Bob")
	s.MarkRecorded("Alice")

	marked := s.Marked()
	if len(marked) != 2 || marked[0] != "Alice" || marked[1] != "Bob" {
		t.Errorf("expected [Alice Bob], got %v", marked)
	}
}

func TestSession_RecordOnce(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewSession(KindVideo)
	ctx := context.Background()

	for range 5 {
		if _, err := s.RecordOnce(ctx, rec, Record{Name: "Alice", Distance: 0.3}); err != nil {
			t.Fatalf("RecordOnce: %v", err)
		}
	}

	if len(rec.calls) != 1 {
		t.Fatalf("expected 1 recorder call, got %d", len(rec.calls))
	}
	call := rec.calls[0]
	if call.SessionID != s.ID {
		t.Errorf("expected session ID %s, got %s", s.ID, call.SessionID)
	}
	if call.Source != "video" {
		t.Errorf("expected source video, got %s", call.Source)
	}
	if call.Time.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}

func TestSession_RecordOnceReportsNewMarks(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewSession(KindPhoto)
	ctx := context.Background()

	first, err := s.RecordOnce(ctx, rec, Record{Name: "Alice"})
	if err != nil || !first {
		t.Fatalf("expected first record to be new, got %v, %v", first, err)
	}
	second, err := s.RecordOnce(ctx, rec, Record{Name: "Alice"})
	if err != nil || second {
		t.Fatalf("expected repeated record to be skipped, got %v, %v", second, err)
	}
}

func TestSession_RecorderFailureLeavesUnmarked(t *testing.T) {
	diskFull := errors.New("disk full")
	rec := &fakeRecorder{failFor: map[string]error{"Alice": diskFull}}
	s := NewSession(KindLive)
	ctx := context.Background()

	ok, err := s.RecordOnce(ctx, rec, Record{Name: "Alice"})
	if !errors.Is(err, diskFull) {
		t.Fatalf("expected recorder error, got %v", err)
	}
	if ok {
		t.Error("expected failed record not to be reported as marked")
	}
	if !s.ShouldRecord("Alice") {
		t.Error("expected Alice to stay recordable after failure")
	}

	// Recovers on the next detection.
	delete(rec.failFor, "Alice")
	if ok, err := s.RecordOnce(ctx, rec, Record{Name: "Alice"}); err != nil || !ok {
		t.Fatalf("expected retry to succeed, got %v, %v", ok, err)
	}
	if len(rec.calls) != 2 {
		t.Errorf("expected 2 recorder calls, got %d", len(rec.calls))
	}
}

func TestSession_IndependentSessions(t *testing.T) {
	rec := &fakeRecorder{}
	ctx := context.Background()
	a := NewSession(KindPhoto)
	b := NewSession(KindPhoto)

	if a.ID == b.ID {
		t.Fatal("expected distinct session IDs")
	}

	if _, err := a.RecordOnce(ctx, rec, Record{Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.RecordOnce(ctx, rec, Record{Name: "Alice"}); err != nil {
		t.Fatal(err)
	}

	// Each session checks with the recorder; per-day dedup is the recorder's job.
	if len(rec.calls) != 2 {
		t.Errorf("expected 2 recorder calls across sessions, got %d", len(rec.calls))
	}
}

func TestRecord_Day(t *testing.T) {
	rec := Record{Time: time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)}
	if rec.Day() != "2024-03-09" {
		t.Errorf("expected 2024-03-09, got %s", rec.Day())
	}
}
