package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, pgx.Tx and *pgx.Conn.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema is applied in order. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS incident_reports (
		id          TEXT PRIMARY KEY,
		user_id     TEXT,
		type        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		lat         DOUBLE PRECISION NOT NULL,
		lon         DOUBLE PRECISION NOT NULL,
		photo_url   TEXT,
		audio_url   TEXT,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS incident_reports_created_at_idx
		ON incident_reports (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS incident_reports_lat_lon_idx
		ON incident_reports (lat, lon)`,
	`CREATE TABLE IF NOT EXISTS trusted_contacts (
		user_id  TEXT NOT NULL,
		position INTEGER NOT NULL,
		type     TEXT NOT NULL,
		value    TEXT NOT NULL,
		PRIMARY KEY (user_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS panic_alerts (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		lat        DOUBLE PRECISION NOT NULL,
		lon        DOUBLE PRECISION NOT NULL,
		message    TEXT NOT NULL,
		audio_url  TEXT,
		contacts   JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS panic_alerts_user_id_idx
		ON panic_alerts (user_id, created_at DESC)`,
}

// Migrate creates the tables used by the report and emergency repositories.
func Migrate(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
