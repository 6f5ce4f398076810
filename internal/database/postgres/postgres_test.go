//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewAttendanceRepository(pool)
	morning := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	t.Run("RecordOncePerDay", func(t *testing.T) {
		created, err := repo.Record(ctx, attendance.Record{Name: "Alice", Time: morning, SessionID: "s1", Source: "photo", Distance: 0.3})
		if err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
		if !created {
			t.Error("Expected first record to be created")
		}

		created, err = repo.Record(ctx, attendance.Record{Name: "Alice", Time: morning.Add(2 * time.Hour), SessionID: "s2", Source: "live"})
		if err != nil {
			t.Fatalf("Failed to record again: %v", err)
		}
		if created {
			t.Error("Expected second record on the same day not to be created")
		}

		created, err = repo.Record(ctx, attendance.Record{Name: "Alice", Time: morning.AddDate(0, 0, 1)})
		if err != nil {
			t.Fatalf("Failed to record next day: %v", err)
		}
		if !created {
			t.Error("Expected record on the next day to be created")
		}
	})

	t.Run("List", func(t *testing.T) {
		if _, err := repo.Record(ctx, attendance.Record{Name: "Bob", Time: morning.Add(time.Minute)}); err != nil {
			t.Fatalf("Failed to record Bob: %v", err)
		}

		records, err := repo.List(ctx, morning)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}
		if records[0].Name != "Alice" || records[1].Name != "Bob" {
			t.Errorf("Expected Alice then Bob, got %s then %s", records[0].Name, records[1].Name)
		}
		if records[0].SessionID != "s1" {
			t.Errorf("Expected first session to be kept, got %q", records[0].SessionID)
		}
	})

	t.Run("Days", func(t *testing.T) {
		days, err := repo.Days(ctx, 10)
		if err != nil {
			t.Fatalf("Failed to list days: %v", err)
		}
		if len(days) != 2 {
			t.Fatalf("Expected 2 days, got %d", len(days))
		}
		if days[0].Day != "2024-03-05" || days[0].Count != 1 {
			t.Errorf("Unexpected newest day: %+v", days[0])
		}
		if days[1].Day != "2024-03-04" || days[1].Count != 2 {
			t.Errorf("Unexpected oldest day: %+v", days[1])
		}
	})
}

func TestEnrollmentRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewEnrollmentRepository(pool)

	emb := make(facematch.Embedding, 128)
	for i := range emb {
		emb[i] = float32(i) / 128.0
	}

	t.Run("Miss", func(t *testing.T) {
		_, ok, err := repo.GetEmbedding(ctx, "nohash", "hog")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if ok {
			t.Error("Expected cache miss")
		}
	})

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := repo.SaveEmbedding(ctx, "abc", "hog", "Alice", "Alice/1.jpg", emb); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		got, ok, err := repo.GetEmbedding(ctx, "abc", "hog")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if !ok {
			t.Fatal("Expected cache hit")
		}
		if len(got) != 128 {
			t.Errorf("Expected 128 dimensions, got %d", len(got))
		}

		// Same image under another model is a separate entry.
		if _, ok, _ := repo.GetEmbedding(ctx, "abc", "cnn"); ok {
			t.Error("Expected miss for other model")
		}
	})

	t.Run("Replace", func(t *testing.T) {
		if err := repo.SaveEmbedding(ctx, "abc", "hog", "Alice", "Alice/2.jpg", emb); err != nil {
			t.Fatalf("Failed to replace: %v", err)
		}
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1, got %d", count)
		}
		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(list) != 1 || list[0].Path != "Alice/2.jpg" || list[0].Dim != 128 {
			t.Errorf("Unexpected list: %+v", list)
		}
	})

	t.Run("DeleteOlderThan", func(t *testing.T) {
		n, err := repo.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 deleted, got %d", n)
		}
	})
}

func TestAppliedMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	migrations, err := pool.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	bundled, err := bundledMigrations()
	if err != nil {
		t.Fatalf("Failed to list bundled migrations: %v", err)
	}
	if len(migrations) != len(bundled) {
		t.Fatalf("Expected %d migrations, got %v", len(bundled), migrations)
	}
	if migrations[0].Version != "001_attendance.sql" {
		t.Errorf("Unexpected first migration %s", migrations[0].Version)
	}
	if migrations[0].AppliedAt.IsZero() {
		t.Error("Expected applied_at to be set")
	}

	// A second run finds nothing to do.
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
	again, err := pool.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	if len(again) != len(migrations) {
		t.Errorf("Expected %d migrations after rerun, got %d", len(migrations), len(again))
	}
}
