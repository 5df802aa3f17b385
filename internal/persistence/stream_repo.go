package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"meshbot/internal/capture"
)

// StreamRepo implements capture.StreamWriter, appending JSON rows to
// packet_stream — the raw feed consumed by capture.StoreTarget and, via
// HTTPForwarder, any external web-viewer.
type StreamRepo struct {
	db *sql.DB
}

func NewStreamRepo(db *sql.DB) *StreamRepo {
	return &StreamRepo{db: db}
}

func (r *StreamRepo) AppendStreamEntry(ctx context.Context, typ capture.StreamType, payload any, at time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stream entry: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO packet_stream(timestamp, data_json, type)
		VALUES (?, ?, ?)`, timeToUnixMillis(at), string(raw), string(typ))
	if err != nil {
		return fmt.Errorf("insert stream entry: %w", err)
	}
	return nil
}

// UpdateRepeatState implements tracker.RepeatPersister: it rewrites the most
// recent packet_stream row whose JSON command_id matches, merging in the
// current repeat state and bumping the row's timestamp so downstream
// viewers notice the change (spec.md §4.6).
func (r *StreamRepo) UpdateRepeatState(ctx context.Context, commandID string, repeatCount int, repeaterPrefixes []string, repeaterCounts map[string]int, now time.Time) error {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, data_json FROM packet_stream
		WHERE json_extract(data_json, '$.command_id') = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`, commandID)

	var (
		id  int64
		raw string
	)
	if err := row.Scan(&id, &raw); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("find stream entry for command %q: %w", commandID, err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("unmarshal stream entry %d: %w", id, err)
	}
	payload["repeat_count"] = repeatCount
	payload["repeater_prefixes"] = repeaterPrefixes
	payload["repeater_counts"] = repeaterCounts

	updated, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal updated stream entry: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE packet_stream SET data_json = ?, timestamp = ?
		WHERE id = ?`, string(updated), timeToUnixMillis(now), id)
	if err != nil {
		return fmt.Errorf("update stream entry %d: %w", id, err)
	}
	return nil
}

// StreamEntry is one packet_stream row as read back for replay or export.
type StreamEntry struct {
	ID        int64
	Timestamp time.Time
	DataJSON  string
	Type      string
}

// Recent returns the most recently captured entries, newest first, optionally
// filtered by type ("" means any type).
func (r *StreamRepo) Recent(ctx context.Context, typ string, limit int) ([]StreamEntry, error) {
	query := `SELECT id, timestamp, data_json, type FROM packet_stream`
	args := []any{}
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stream entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StreamEntry
	for rows.Next() {
		var (
			e  StreamEntry
			ms int64
		)
		if err := rows.Scan(&e.ID, &ms, &e.DataJSON, &e.Type); err != nil {
			return nil, fmt.Errorf("scan stream entry: %w", err)
		}
		e.Timestamp = unixMillisToTime(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}
