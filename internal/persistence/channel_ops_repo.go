package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ChannelOpType distinguishes an add from a remove channel request.
type ChannelOpType string

const (
	ChannelOpAdd    ChannelOpType = "add"
	ChannelOpRemove ChannelOpType = "remove"
)

// ChannelOpStatus tracks a queued channel operation through to completion.
type ChannelOpStatus string

const (
	ChannelOpPending   ChannelOpStatus = "pending"
	ChannelOpCompleted ChannelOpStatus = "completed"
	ChannelOpFailed    ChannelOpStatus = "failed"
)

// ChannelOp is one row of the channel_operations queue (spec.md §4.9): the
// scheduler polls for pending rows every 5s, executes them against the
// device, and writes back status and a result blob.
type ChannelOp struct {
	ID            int64
	Type          ChannelOpType
	ChannelIdx    int
	ChannelName   string
	ChannelKeyHex string
	Status        ChannelOpStatus
	ResultJSON    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ChannelOpsRepo implements the channel_operations queue.
type ChannelOpsRepo struct {
	db *sql.DB
}

func NewChannelOpsRepo(db *sql.DB) *ChannelOpsRepo {
	return &ChannelOpsRepo{db: db}
}

func (r *ChannelOpsRepo) Enqueue(ctx context.Context, typ ChannelOpType, channelIdx int, channelName, channelKeyHex string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO channel_operations(type, channel_idx, channel_name, channel_key_hex, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
		string(typ), channelIdx, channelName, channelKeyHex, timeToUnixMillis(now), timeToUnixMillis(now))
	if err != nil {
		return 0, fmt.Errorf("enqueue channel op: %w", err)
	}
	return res.LastInsertId()
}

// Pending returns queued operations awaiting execution, oldest first.
func (r *ChannelOpsRepo) Pending(ctx context.Context) ([]ChannelOp, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, channel_idx, channel_name, channel_key_hex, status, result_json, created_at, updated_at
		FROM channel_operations
		WHERE status = 'pending'
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending channel ops: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ChannelOp
	for rows.Next() {
		op, err := scanChannelOp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (r *ChannelOpsRepo) MarkCompleted(ctx context.Context, id int64, resultJSON string, now time.Time) error {
	return r.setStatus(ctx, id, ChannelOpCompleted, resultJSON, now)
}

func (r *ChannelOpsRepo) MarkFailed(ctx context.Context, id int64, resultJSON string, now time.Time) error {
	return r.setStatus(ctx, id, ChannelOpFailed, resultJSON, now)
}

func (r *ChannelOpsRepo) setStatus(ctx context.Context, id int64, status ChannelOpStatus, resultJSON string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE channel_operations SET status = ?, result_json = ?, updated_at = ?
		WHERE id = ?`, string(status), nullableString(resultJSON), timeToUnixMillis(now), id)
	if err != nil {
		return fmt.Errorf("update channel op status: %w", err)
	}
	return nil
}

func scanChannelOp(rows *sql.Rows) (ChannelOp, error) {
	var (
		op         ChannelOp
		typ        string
		status     string
		resultJSON sql.NullString
		createdMs  int64
		updatedMs  int64
	)
	if err := rows.Scan(&op.ID, &typ, &op.ChannelIdx, &op.ChannelName, &op.ChannelKeyHex,
		&status, &resultJSON, &createdMs, &updatedMs); err != nil {
		return ChannelOp{}, fmt.Errorf("scan channel op: %w", err)
	}
	op.Type = ChannelOpType(typ)
	op.Status = ChannelOpStatus(status)
	op.ResultJSON = resultJSON.String
	op.CreatedAt = unixMillisToTime(createdMs)
	op.UpdatedAt = unixMillisToTime(updatedMs)
	return op, nil
}
