//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/ledger/ledgertest"
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

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open pool: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	// A second run must be a no-op.
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("Failed to re-run migrations: %v", err)
	}

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	if len(versions) != 2 || versions[0] != "001_identities.sql" || versions[1] != "002_attendance.sql" {
		t.Errorf("Unexpected migrations: %v", versions)
	}
}

func TestIdentityRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewIdentityRepository(pool)

	vec := func(x float64) embedding.Vector {
		v := make(embedding.Vector, 128)
		for i := range v {
			v[i] = x
		}
		return v
	}

	for _, id := range []string{"carol", "alice", "bob"} {
		if err := repo.Upsert(ctx, id, vec(0.25)); err != nil {
			t.Fatalf("Failed to upsert %s: %v", id, err)
		}
	}

	t.Run("UpsertKeepsPosition", func(t *testing.T) {
		if err := repo.Upsert(ctx, "carol", vec(0.5)); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}

		entries, err := repo.LoadEntries(ctx)
		if err != nil {
			t.Fatalf("Failed to load entries: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("Expected 3 entries, got %d", len(entries))
		}
		if entries[0].Identity != "carol" || entries[1].Identity != "alice" || entries[2].Identity != "bob" {
			t.Errorf("Unexpected order: %v, %v, %v", entries[0].Identity, entries[1].Identity, entries[2].Identity)
		}
		if entries[0].Embedding[0] != 0.5 {
			t.Errorf("Expected updated embedding, got %v", entries[0].Embedding[0])
		}
		if len(entries[0].Embedding) != 128 {
			t.Errorf("Expected 128 dimensions, got %d", len(entries[0].Embedding))
		}
	})

	t.Run("DeleteAndCount", func(t *testing.T) {
		if err := repo.Delete(ctx, "alice"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if err := repo.Delete(ctx, "nobody"); err != nil {
			t.Fatalf("Deleting unknown identity should not fail: %v", err)
		}

		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2, got %d", count)
		}
	})
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ledgertest.Run(t, func(t *testing.T, period ledger.PeriodFunc) ledger.Ledger {
		if _, err := pool.Exec(context.Background(), "TRUNCATE attendance"); err != nil {
			t.Fatalf("Failed to truncate attendance: %v", err)
		}
		return NewAttendanceRepository(pool, period)
	})
}
