package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meshbot/internal/catalog"
)

// ContactRepo implements catalog.Repository using SQLite.
type ContactRepo struct {
	db *sql.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

// Upsert applies the monotonic invariants from spec.md §3.6: first_heard
// never moves, last_heard/last_advert_timestamp only advance, role only
// upgrades, and location/signal fields only overwrite when freshly supplied.
func (r *ContactRepo) Upsert(ctx context.Context, c catalog.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO complete_contact_tracking(
			public_key, name, role, first_heard, last_heard, last_advert_timestamp,
			latitude, longitude, city, state, country, is_starred, last_snr, last_rssi
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(public_key) DO UPDATE SET
			name = CASE WHEN excluded.name IS NOT NULL AND excluded.name <> '' THEN excluded.name ELSE complete_contact_tracking.name END,
			role = CASE WHEN excluded.role = 'repeater' OR excluded.role = 'roomserver' THEN excluded.role
				WHEN complete_contact_tracking.role = 'repeater' OR complete_contact_tracking.role = 'roomserver' THEN complete_contact_tracking.role
				WHEN excluded.role = 'sensor' THEN excluded.role
				ELSE complete_contact_tracking.role END,
			last_heard = MAX(complete_contact_tracking.last_heard, excluded.last_heard),
			last_advert_timestamp = MAX(COALESCE(complete_contact_tracking.last_advert_timestamp, 0), COALESCE(excluded.last_advert_timestamp, 0)),
			latitude = COALESCE(excluded.latitude, complete_contact_tracking.latitude),
			longitude = COALESCE(excluded.longitude, complete_contact_tracking.longitude),
			city = CASE WHEN excluded.city IS NOT NULL AND excluded.city <> '' THEN excluded.city ELSE complete_contact_tracking.city END,
			state = CASE WHEN excluded.state IS NOT NULL AND excluded.state <> '' THEN excluded.state ELSE complete_contact_tracking.state END,
			country = CASE WHEN excluded.country IS NOT NULL AND excluded.country <> '' THEN excluded.country ELSE complete_contact_tracking.country END,
			last_snr = COALESCE(excluded.last_snr, complete_contact_tracking.last_snr),
			last_rssi = COALESCE(excluded.last_rssi, complete_contact_tracking.last_rssi)
	`,
		c.PublicKey, c.Name, string(c.Role),
		timeToUnixMillis(c.FirstHeard), timeToUnixMillis(c.LastHeard), nullableUnixMillis(c.LastAdvertTimestamp),
		nullableFloat(c.Latitude), nullableFloat(c.Longitude),
		nullableString(c.City), nullableString(c.State), nullableString(c.Country),
		boolToInt(c.IsStarred), nullableFloat(c.LastSNR), nullableIntPtr(c.LastRSSI),
	)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) ByPublicKey(ctx context.Context, publicKey string) (catalog.Contact, bool, error) {
	row := r.db.QueryRowContext(ctx, contactSelectColumns+` WHERE public_key = ?`, publicKey)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return catalog.Contact{}, false, nil
	}
	if err != nil {
		return catalog.Contact{}, false, fmt.Errorf("lookup contact: %w", err)
	}
	return c, true, nil
}

func (r *ContactRepo) ByPrefix(ctx context.Context, prefix string, since time.Time) ([]catalog.Contact, error) {
	rows, err := r.db.QueryContext(ctx, contactSelectColumns+`
		WHERE substr(public_key, 1, 2) = ? AND last_heard >= ?
		ORDER BY last_heard DESC`, prefix, timeToUnixMillis(since))
	if err != nil {
		return nil, fmt.Errorf("list contacts by prefix: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []catalog.Contact
	for rows.Next() {
		c, err := scanContactRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PublicKeysForPrefix lists every distinct public key recently heard for a
// prefix; topology.Learner uses the count to enforce the uniqueness rule.
func (r *ContactRepo) PublicKeysForPrefix(ctx context.Context, prefix string, since time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT public_key FROM complete_contact_tracking
		WHERE substr(public_key, 1, 2) = ? AND last_heard >= ?
		AND role IN ('repeater', 'roomserver')`, prefix, timeToUnixMillis(since))
	if err != nil {
		return nil, fmt.Errorf("list public keys for prefix: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan public key: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (r *ContactRepo) CountByRole(ctx context.Context, role catalog.Role) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complete_contact_tracking WHERE role = ?`, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count by role: %w", err)
	}
	return n, nil
}

func (r *ContactRepo) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complete_contact_tracking WHERE last_heard >= ?`, timeToUnixMillis(since)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}

func (r *ContactRepo) CountNewSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complete_contact_tracking WHERE first_heard >= ?`, timeToUnixMillis(since)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count new: %w", err)
	}
	return n, nil
}

func (r *ContactRepo) ListSortedByLastHeard(ctx context.Context) ([]catalog.Contact, error) {
	rows, err := r.db.QueryContext(ctx, contactSelectColumns+` ORDER BY last_heard DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []catalog.Contact
	for rows.Next() {
		c, err := scanContactRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const contactSelectColumns = `
	SELECT public_key, name, role, first_heard, last_heard, last_advert_timestamp,
		latitude, longitude, city, state, country, is_starred, last_snr, last_rssi
	FROM complete_contact_tracking`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row *sql.Row) (catalog.Contact, error) {
	return scanContactFrom(row)
}

func scanContactRows(rows *sql.Rows) (catalog.Contact, error) {
	return scanContactFrom(rows)
}

func scanContactFrom(s rowScanner) (catalog.Contact, error) {
	var (
		c         catalog.Contact
		role      string
		firstMs   int64
		lastMs    int64
		advertMs  sql.NullInt64
		lat, lon  sql.NullFloat64
		city      sql.NullString
		state     sql.NullString
		country   sql.NullString
		starred   int64
		snr       sql.NullFloat64
		rssi      sql.NullInt64
	)
	if err := s.Scan(&c.PublicKey, &c.Name, &role, &firstMs, &lastMs, &advertMs,
		&lat, &lon, &city, &state, &country, &starred, &snr, &rssi); err != nil {
		return catalog.Contact{}, err
	}

	c.Role = catalog.Role(role)
	c.FirstHeard = unixMillisToTime(firstMs)
	c.LastHeard = unixMillisToTime(lastMs)
	if advertMs.Valid {
		c.LastAdvertTimestamp = unixMillisToTime(advertMs.Int64)
	}
	if lat.Valid {
		v := lat.Float64
		c.Latitude = &v
	}
	if lon.Valid {
		v := lon.Float64
		c.Longitude = &v
	}
	c.City = city.String
	c.State = state.String
	c.Country = country.String
	c.IsStarred = starred != 0
	if snr.Valid {
		v := snr.Float64
		c.LastSNR = &v
	}
	if rssi.Valid {
		v := int(rssi.Int64)
		c.LastRSSI = &v
	}

	return c, nil
}
