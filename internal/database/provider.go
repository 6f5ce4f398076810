package database

import (
	"context"
	"errors"
	"sync"
)

var (
	mu                 sync.RWMutex
	attendanceStore    func() AttendanceStore
	enrollmentCache    func() EnrollmentCache
	attendanceBackend  string
	postgresRegistered bool
)

// RegisterAttendanceBackend registers the attendance store constructor of a SQL backend.
// This is called by the postgres and mariadb packages to avoid import cycles.
func RegisterAttendanceBackend(name string, store func() AttendanceStore) {
	mu.Lock()
	defer mu.Unlock()
	attendanceBackend = name
	attendanceStore = store
}

// RegisterEnrollmentCache registers the enrollment cache constructor.
// Only the PostgreSQL backend provides one (it needs pgvector).
func RegisterEnrollmentCache(cache func() EnrollmentCache) {
	mu.Lock()
	defer mu.Unlock()
	enrollmentCache = cache
	postgresRegistered = true
}

// AttendanceBackend returns the name of the registered attendance backend, or "".
func AttendanceBackend() string {
	mu.RLock()
	defer mu.RUnlock()
	return attendanceBackend
}

// IsInitialized returns whether a SQL attendance backend has been registered.
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return attendanceStore != nil
}

// GetAttendanceStore returns the registered SQL attendance store.
func GetAttendanceStore(ctx context.Context) (AttendanceStore, error) {
	mu.RLock()
	defer mu.RUnlock()
	if attendanceStore == nil {
		return nil, errors.New("attendance database not initialized: DATABASE_URL or MARIADB_DSN is required")
	}
	return attendanceStore(), nil
}

// GetEnrollmentCache returns the registered enrollment cache.
func GetEnrollmentCache(ctx context.Context) (EnrollmentCache, error) {
	mu.RLock()
	defer mu.RUnlock()
	if !postgresRegistered || enrollmentCache == nil {
		return nil, errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	return enrollmentCache(), nil
}

// Reset clears all registrations. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	attendanceStore = nil
	enrollmentCache = nil
	attendanceBackend = ""
	postgresRegistered = false
}
