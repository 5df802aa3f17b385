package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// KVRepo implements kv_store, a small key/value table used for bot start
// time and periodic system health snapshots (spec.md §6.4).
type KVRepo struct {
	db *sql.DB
}

func NewKVRepo(db *sql.DB) *KVRepo {
	return &KVRepo{db: db}
}

func (r *KVRepo) Set(ctx context.Context, key, value string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv_store(key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, timeToUnixMillis(now))
	if err != nil {
		return fmt.Errorf("set kv %q: %w", key, err)
	}
	return nil
}

func (r *KVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get kv %q: %w", key, err)
	}
	return value, true, nil
}

const kvKeyBotStartTime = "bot_start_time"

// SetBotStartTime records when the current process came up; BotStartTime
// reads it back.
func (r *KVRepo) SetBotStartTime(ctx context.Context, at time.Time) error {
	return r.Set(ctx, kvKeyBotStartTime, fmt.Sprintf("%d", at.UnixMilli()), at)
}

func (r *KVRepo) BotStartTime(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := r.Get(ctx, kvKeyBotStartTime)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	var ms int64
	if _, err := fmt.Sscanf(raw, "%d", &ms); err != nil {
		return time.Time{}, false, fmt.Errorf("parse bot start time: %w", err)
	}
	return unixMillisToTime(ms), true, nil
}
