package postgres

import (
	"strings"
	"testing"
)

func TestBundledMigrations_Ordered(t *testing.T) {
	names, err := bundledMigrations()
	if err != nil {
		t.Fatalf("bundledMigrations() error = %v", err)
	}
	if len(names) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for i, name := range names {
		if !strings.HasSuffix(name, ".sql") {
			t.Errorf("unexpected file %q", name)
		}
		if i > 0 && names[i-1] >= name {
			t.Errorf("migrations out of order: %q before %q", names[i-1], name)
		}
	}
	if names[0] != "001_attendance.sql" {
		t.Errorf("first migration = %q, want 001_attendance.sql", names[0])
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://user:secret@db:5432/attendance", "postgres://user:xxxxx@db:5432/attendance"},
		{"postgres://db/attendance", "postgres://db/attendance"},
		{"host=db user=x", "(unparsable url)"},
	}
	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewPool_RequiresURL(t *testing.T) {
	if _, err := NewPool(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
