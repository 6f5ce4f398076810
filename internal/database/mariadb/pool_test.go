package mariadb

import (
	"context"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

func TestNewPool_RejectsBadDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{"empty", ""},
		{"missing slash", "user:pass@tcp(localhost:3306)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPool(tt.dsn); err == nil {
				t.Errorf("NewPool(%q) succeeded, want error", tt.dsn)
			}
		})
	}
}

func TestPoolClose_Nil(t *testing.T) {
	var p *Pool
	if err := p.Close(); err != nil {
		t.Errorf("Close() on nil pool = %v", err)
	}
}

func TestAttendanceRepository_RecordRejectsInvalidName(t *testing.T) {
	// Validation runs before any query, so no pool is needed.
	repo := NewAttendanceRepository(nil)
	tests := []struct {
		name    string
		rec     string
		wantErr string
	}{
		{"empty", "", "required"},
		{"too long", strings.Repeat("é", maxNameLength+1), "limit is 255"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := repo.Record(context.Background(), attendance.Record{Name: tt.rec})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Record() error = %v, want %q", err, tt.wantErr)
			}
			if created {
				t.Error("invalid record must not be created")
			}
		})
	}
}
