package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meshbot/internal/topology"
)

// GraphRepo implements topology.GraphRepository using SQLite.
type GraphRepo struct {
	db *sql.DB
}

func NewGraphRepo(db *sql.DB) *GraphRepo {
	return &GraphRepo{db: db}
}

func (r *GraphRepo) UpsertEdge(ctx context.Context, e topology.Edge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mesh_graph_edges(from_prefix, to_prefix, hop_position, geographic_distance_km, from_public_key, to_public_key, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_prefix, to_prefix) DO UPDATE SET
			hop_position = excluded.hop_position,
			geographic_distance_km = COALESCE(excluded.geographic_distance_km, mesh_graph_edges.geographic_distance_km),
			from_public_key = COALESCE(excluded.from_public_key, mesh_graph_edges.from_public_key),
			to_public_key = COALESCE(excluded.to_public_key, mesh_graph_edges.to_public_key),
			last_seen = excluded.last_seen
	`, e.FromPrefix, e.ToPrefix, e.HopPosition, nullableFloat(e.GeographicDistanceKM),
		nullableString(e.FromPublicKey), nullableString(e.ToPublicKey),
		timeToUnixMillis(e.FirstSeen), timeToUnixMillis(e.LastSeen))
	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}

func (r *GraphRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mesh_graph_edges WHERE last_seen < ?`, timeToUnixMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune edges: %w", err)
	}
	return res.RowsAffected()
}

func (r *GraphRepo) Edges(ctx context.Context) ([]topology.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT from_prefix, to_prefix, hop_position, geographic_distance_km, from_public_key, to_public_key, first_seen, last_seen
		FROM mesh_graph_edges`)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []topology.Edge
	for rows.Next() {
		var (
			e        topology.Edge
			dist     sql.NullFloat64
			fromKey  sql.NullString
			toKey    sql.NullString
			firstMs  int64
			lastMs   int64
		)
		if err := rows.Scan(&e.FromPrefix, &e.ToPrefix, &e.HopPosition, &dist, &fromKey, &toKey, &firstMs, &lastMs); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if dist.Valid {
			v := dist.Float64
			e.GeographicDistanceKM = &v
		}
		e.FromPublicKey = fromKey.String
		e.ToPublicKey = toKey.String
		e.FirstSeen = unixMillisToTime(firstMs)
		e.LastSeen = unixMillisToTime(lastMs)
		out = append(out, e)
	}
	return out, rows.Err()
}
