// Package postgres implements the scheduling subsystem's stores on top of
// PostgreSQL via pgx. It owns three groups of tables: schedule records,
// execution credentials, and the external periodic-task scheduler's rows
// (crontabs, tasks and the shared change marker its poll loop watches).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool against dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the subsystem's tables if they do not exist. The
// periodic-task table cascades on schedule deletion, which is what lets the
// reconciler remove a schedule without talking to the beat store directly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schedules (
			id TEXT PRIMARY KEY,
			uuid UUID NOT NULL UNIQUE,
			organization_id TEXT NOT NULL,
			project_id TEXT,
			type TEXT NOT NULL,
			cron_expression TEXT NOT NULL,
			timezone TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			trigger_node_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_project ON schedules (project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_org ON schedules (organization_id)`,
		`CREATE TABLE IF NOT EXISTS execution_credentials (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			encrypted_secret BYTEA NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			revoked_at TIMESTAMPTZ,
			revocation_reason TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_project ON execution_credentials (project_id)`,
		`CREATE TABLE IF NOT EXISTS beat_crontabs (
			id TEXT PRIMARY KEY,
			minute TEXT NOT NULL,
			hour TEXT NOT NULL,
			day_of_month TEXT NOT NULL,
			month TEXT NOT NULL,
			day_of_week TEXT NOT NULL,
			timezone TEXT NOT NULL,
			UNIQUE (minute, hour, day_of_month, month, day_of_week, timezone)
		)`,
		`CREATE TABLE IF NOT EXISTS beat_periodic_tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			task TEXT NOT NULL,
			crontab_id TEXT NOT NULL REFERENCES beat_crontabs (id),
			kwargs JSONB NOT NULL DEFAULT '{}',
			queue TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			schedule_uuid UUID NOT NULL UNIQUE REFERENCES schedules (uuid) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS beat_change_marker (
			id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			last_changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`INSERT INTO beat_change_marker (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}
