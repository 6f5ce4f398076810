package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func TestUseRegisteredRecorder(t *testing.T) {
	database.Reset()
	t.Cleanup(database.Reset)

	store := mock.NewMockRecorder()
	database.RegisterAttendanceBackend("postgres", func() database.AttendanceStore { return store })

	b := &backends{cfg: config.Defaults()}
	if err := b.useRegisteredRecorder(); err != nil {
		t.Fatalf("useRegisteredRecorder: %v", err)
	}
	if b.recorder != attendance.Store(store) {
		t.Error("expected the registered store to become the recorder")
	}
}

func TestUseRegisteredRecorder_NothingRegistered(t *testing.T) {
	database.Reset()

	b := &backends{cfg: config.Defaults()}
	if err := b.useRegisteredRecorder(); err == nil {
		t.Error("expected error without a registered backend")
	}
}

func TestOpenRecorder(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		wantErr string
	}{
		{"csv", "csv", ""},
		{"default is csv", "", ""},
		{"postgres without url", "postgres", "DATABASE_URL"},
		{"mariadb without dsn", "mariadb", "MARIADB_DSN"},
		{"unknown", "sqlite", "unknown recorder backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Recorder.Backend = tt.backend
			cfg.Recorder.CSVPath = filepath.Join(t.TempDir(), "Attendance.csv")
			cfg.Database.URL = ""
			cfg.MariaDB.DSN = ""

			b := &backends{cfg: cfg}
			defer b.Close()

			err := b.openRecorder()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("openRecorder: %v", err)
				}
				if b.recorder == nil {
					t.Error("expected a recorder")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("openRecorder error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
