package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StatsRepo writes the command_stats and message_stats write-through tables.
type StatsRepo struct {
	db *sql.DB
}

func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

func (r *StatsRepo) RecordCommand(ctx context.Context, commandName, senderID string, isDM, success bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO command_stats(command_name, sender_id, timestamp, is_dm, success)
		VALUES (?, ?, ?, ?, ?)`,
		commandName, senderID, timeToUnixMillis(at), boolToInt(isDM), boolToInt(success))
	if err != nil {
		return fmt.Errorf("record command stat: %w", err)
	}
	return nil
}

func (r *StatsRepo) RecordMessage(ctx context.Context, senderID string, isDM bool, channel string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_stats(timestamp, sender_id, is_dm, channel)
		VALUES (?, ?, ?, ?)`,
		timeToUnixMillis(at), senderID, boolToInt(isDM), nullableString(channel))
	if err != nil {
		return fmt.Errorf("record message stat: %w", err)
	}
	return nil
}

// CommandPopularity is one row of a help-popularity ranking.
type CommandPopularity struct {
	CommandName string
	Count       int
}

// PopularCommands returns command names ordered by usage count descending,
// the primary input to help-popularity ordering (spec.md §6.4).
func (r *StatsRepo) PopularCommands(ctx context.Context, since time.Time, limit int) ([]CommandPopularity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT command_name, COUNT(*) AS n
		FROM command_stats
		WHERE timestamp >= ?
		GROUP BY command_name
		ORDER BY n DESC
		LIMIT ?`, timeToUnixMillis(since), limit)
	if err != nil {
		return nil, fmt.Errorf("query popular commands: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CommandPopularity
	for rows.Next() {
		var p CommandPopularity
		if err := rows.Scan(&p.CommandName, &p.Count); err != nil {
			return nil, fmt.Errorf("scan popular command: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
