// Package persistence owns the single SQLite database the bot uses for the
// contact catalog, mesh graph, observed paths, capture stream and stats.
package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	// Single-writer pattern (writer.go) still benefits from a generous
	// busy timeout: SQLite itself may briefly contend with WAL checkpoints.
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS complete_contact_tracking (
			public_key TEXT PRIMARY KEY,
			name TEXT,
			role TEXT NOT NULL,
			first_heard INTEGER NOT NULL,
			last_heard INTEGER NOT NULL,
			last_advert_timestamp INTEGER NULL,
			latitude REAL NULL,
			longitude REAL NULL,
			city TEXT NULL,
			state TEXT NULL,
			country TEXT NULL,
			is_starred INTEGER NOT NULL DEFAULT 0,
			last_snr REAL NULL,
			last_rssi INTEGER NULL
		);`,
		`CREATE INDEX IF NOT EXISTS contact_last_heard_idx ON complete_contact_tracking(last_heard DESC);`,
		`CREATE INDEX IF NOT EXISTS contact_role_idx ON complete_contact_tracking(role);`,

		`CREATE TABLE IF NOT EXISTS observed_paths (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			public_key TEXT NULL,
			packet_hash TEXT NULL,
			from_prefix TEXT NULL,
			to_prefix TEXT NULL,
			path_hex TEXT NOT NULL,
			path_length INTEGER NOT NULL,
			packet_type TEXT NOT NULL,
			first_seen INTEGER NOT NULL,
			last_seen INTEGER NOT NULL,
			observation_count INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS observed_paths_advert_unique_idx
			ON observed_paths(public_key, path_hex, packet_type)
			WHERE public_key IS NOT NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS observed_paths_other_unique_idx
			ON observed_paths(from_prefix, to_prefix, path_hex, packet_type)
			WHERE public_key IS NULL;`,

		`CREATE TABLE IF NOT EXISTS mesh_graph_edges (
			from_prefix TEXT NOT NULL,
			to_prefix TEXT NOT NULL,
			hop_position INTEGER NOT NULL,
			geographic_distance_km REAL NULL,
			from_public_key TEXT NULL,
			to_public_key TEXT NULL,
			first_seen INTEGER NOT NULL,
			last_seen INTEGER NOT NULL,
			PRIMARY KEY (from_prefix, to_prefix)
		);`,
		`CREATE INDEX IF NOT EXISTS mesh_graph_last_seen_idx ON mesh_graph_edges(last_seen DESC);`,

		`CREATE TABLE IF NOT EXISTS command_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command_name TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			is_dm INTEGER NOT NULL,
			success INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS command_stats_name_idx ON command_stats(command_name);`,
		`CREATE INDEX IF NOT EXISTS command_stats_timestamp_idx ON command_stats(timestamp DESC);`,

		`CREATE TABLE IF NOT EXISTS message_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			sender_id TEXT NOT NULL,
			is_dm INTEGER NOT NULL,
			channel TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS message_stats_timestamp_idx ON message_stats(timestamp DESC);`,

		`CREATE TABLE IF NOT EXISTS packet_stream (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			data_json TEXT NOT NULL,
			type TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS packet_stream_timestamp_idx ON packet_stream(timestamp);`,
		`CREATE INDEX IF NOT EXISTS packet_stream_type_idx ON packet_stream(type);`,

		`CREATE TABLE IF NOT EXISTS channel_operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			channel_idx INTEGER NULL,
			channel_name TEXT NULL,
			channel_key_hex TEXT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			result_json TEXT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS channel_operations_status_idx ON channel_operations(status);`,

		`CREATE TABLE IF NOT EXISTS purging_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			action TEXT NOT NULL,
			details TEXT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,

		fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion),
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}
