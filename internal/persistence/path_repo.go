package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meshbot/internal/topology"
)

// PathRepo implements topology.PathRepository using SQLite.
type PathRepo struct {
	db *sql.DB
}

func NewPathRepo(db *sql.DB) *PathRepo {
	return &PathRepo{db: db}
}

func (r *PathRepo) RecordAdvertPath(ctx context.Context, publicKey, pathHex string, pathLen int, typ topology.PacketType, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO observed_paths(public_key, from_prefix, to_prefix, path_hex, path_length, packet_type, first_seen, last_seen, observation_count)
		VALUES (?, NULL, NULL, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(public_key, path_hex, packet_type) WHERE public_key IS NOT NULL DO UPDATE SET
			last_seen = excluded.last_seen,
			observation_count = observed_paths.observation_count + 1
	`, publicKey, pathHex, pathLen, string(typ), timeToUnixMillis(now), timeToUnixMillis(now))
	if err != nil {
		return fmt.Errorf("record advert path: %w", err)
	}
	return nil
}

func (r *PathRepo) RecordRoutePath(ctx context.Context, fromPrefix, toPrefix, pathHex string, pathLen int, typ topology.PacketType, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO observed_paths(public_key, from_prefix, to_prefix, path_hex, path_length, packet_type, first_seen, last_seen, observation_count)
		VALUES (NULL, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(from_prefix, to_prefix, path_hex, packet_type) WHERE public_key IS NULL DO UPDATE SET
			last_seen = excluded.last_seen,
			observation_count = observed_paths.observation_count + 1
	`, fromPrefix, toPrefix, pathHex, pathLen, string(typ), timeToUnixMillis(now), timeToUnixMillis(now))
	if err != nil {
		return fmt.Errorf("record route path: %w", err)
	}
	return nil
}
