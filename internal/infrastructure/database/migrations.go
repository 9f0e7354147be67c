package database

import (
	"context"
	"fmt"
	"time"
)

// Migration is one schema change, applied in version order.
type Migration struct {
	// Version orders migrations and keys the schema_migrations table.
	// Format: YYYYMMDD_HHMMSS.
	Version string

	// Name is the human-readable migration name.
	Name string

	// SQL is the statement batch applying this migration.
	SQL string
}

// migrations is the full ordered schema history. Append only; never edit
// an entry that has shipped.
var migrations = []Migration{
	{
		Version: "20250614_120000",
		Name:    "audit_log",
		SQL: `
			CREATE TABLE audit_log (
				id          TEXT PRIMARY KEY,
				action      TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id   TEXT,
				remote_addr TEXT,
				details     TEXT,
				created_at  TEXT NOT NULL
			);
			CREATE INDEX idx_audit_log_created_at ON audit_log(created_at);
			CREATE INDEX idx_audit_log_entity ON audit_log(entity_type, entity_id);
		`,
	},
}

// Migrate applies all pending migrations, oldest first.
//
// Each migration runs in its own transaction: if migration N fails, 1..N-1
// stay committed, N rolls back, and N+1 onwards are not attempted.
// Re-running Migrate after fixing the issue continues from N.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If any migration fails (that migration is rolled back)
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist.
func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// appliedVersions returns the set of migration versions already applied.
func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return applied, nil
}

// applyMigration applies a single migration within a transaction.
func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}
