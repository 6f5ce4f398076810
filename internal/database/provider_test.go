package database_test

import (
	"context"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func TestGetAttendanceStore_NotInitialized(t *testing.T) {
	database.Reset()

	if database.IsInitialized() {
		t.Error("expected backend not to be initialized")
	}
	if _, err := database.GetAttendanceStore(context.Background()); err == nil {
		t.Error("expected error without registered backend")
	}
	if _, err := database.GetEnrollmentCache(context.Background()); err == nil {
		t.Error("expected error without registered cache")
	}
}

func TestRegisterAttendanceBackend(t *testing.T) {
	database.Reset()
	t.Cleanup(database.Reset)

	store := mock.NewMockRecorder()
	database.RegisterAttendanceBackend("mariadb", func() database.AttendanceStore { return store })

	got, err := database.GetAttendanceStore(context.Background())
	if err != nil {
		t.Fatalf("GetAttendanceStore: %v", err)
	}
	if got != store {
		t.Error("expected registered store")
	}
	if database.AttendanceBackend() != "mariadb" {
		t.Errorf("expected backend name mariadb, got %s", database.AttendanceBackend())
	}
}

func TestRegisterEnrollmentCache(t *testing.T) {
	database.Reset()
	t.Cleanup(database.Reset)

	cache := mock.NewMockEnrollmentCache()
	database.RegisterEnrollmentCache(func() database.EnrollmentCache { return cache })

	got, err := database.GetEnrollmentCache(context.Background())
	if err != nil {
		t.Fatalf("GetEnrollmentCache: %v", err)
	}
	if got != cache {
		t.Error("expected registered cache")
	}
}
