package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/biofleet/biofleet-core/internal/infrastructure/config"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "biofleet.db"),
		WALMode:     true,
		BusyTimeout: 5,
	}
}

func TestOpen_CreatesDatabase(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer db.Close()

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck returned error: %v", err)
	}
}

func TestOpen_CreatesMissingDirectory(t *testing.T) {
	cfg := config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "nested", "dir", "biofleet.db"),
		BusyTimeout: 5,
	}

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer db.Close()

	if db.Path() != cfg.Path {
		t.Errorf("Path() = %q, want %q", db.Path(), cfg.Path)
	}
}

func TestMigrate(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	// The audit table exists and accepts writes.
	_, err = db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, entity_type, created_at) VALUES (?, ?, ?, ?)`,
		"aud-test", "create", "device", "2024-01-01T00:00:00Z",
	)
	if err != nil {
		t.Errorf("inserting into migrated table: %v", err)
	}

	// Migrate is idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Errorf("second Migrate returned error: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d applied migrations, got %d", len(migrations), count)
	}
}

func TestClose_Idempotent(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("first Close returned error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}
