package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

//goland:noinspection SqlWithoutWhere
var clearDatabaseStatements = []string{
	`DELETE FROM complete_contact_tracking;`,
	`DELETE FROM observed_paths;`,
	`DELETE FROM mesh_graph_edges;`,
	`DELETE FROM command_stats;`,
	`DELETE FROM message_stats;`,
	`DELETE FROM packet_stream;`,
	`DELETE FROM channel_operations;`,
	`DELETE FROM purging_log;`,
}

// ClearDatabase wipes every data table except kv_store; cmd/meshbot's
// -clear-database flag uses it to reset local state without deleting the
// database file itself.
func ClearDatabase(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear database tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range clearDatabaseStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear database tables: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear database tx: %w", err)
	}

	return nil
}

// PurgeOldestContacts removes the least-recently-heard companion contacts
// once the catalog exceeds maxContacts, logging each purge to purging_log.
// Repeaters and room servers are never purged this way: the cap only bounds
// the device's own contact list, and repeaters never occupy it (spec.md
// §4.8's device contact list policy).
func PurgeOldestContacts(ctx context.Context, db *sql.DB, maxContacts int, nowUnix int64) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("database is not initialized")
	}
	if maxContacts <= 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM complete_contact_tracking WHERE role = 'companion';`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count companion contacts: %w", err)
	}
	if total <= maxContacts {
		return 0, tx.Commit()
	}

	excess := total - maxContacts
	rows, err := tx.QueryContext(ctx, `
		SELECT public_key, name FROM complete_contact_tracking
		WHERE role = 'companion'
		ORDER BY last_heard ASC
		LIMIT ?;`, excess)
	if err != nil {
		return 0, fmt.Errorf("select purge candidates: %w", err)
	}

	type candidate struct {
		publicKey string
		name      sql.NullString
	}
	var purged []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.publicKey, &c.name); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan purge candidate: %w", err)
		}
		purged = append(purged, c)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate purge candidates: %w", err)
	}
	_ = rows.Close()

	for _, c := range purged {
		if _, err := tx.ExecContext(ctx, `DELETE FROM complete_contact_tracking WHERE public_key = ?;`, c.publicKey); err != nil {
			return 0, fmt.Errorf("delete purged contact: %w", err)
		}
		details := fmt.Sprintf("purged companion %s (%s): catalog exceeded %d entries", c.publicKey, c.name.String, maxContacts)
		if _, err := tx.ExecContext(ctx, `INSERT INTO purging_log(timestamp, action, details) VALUES (?, 'purge_contact', ?);`, nowUnix, details); err != nil {
			return 0, fmt.Errorf("log purge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge tx: %w", err)
	}

	return len(purged), nil
}
