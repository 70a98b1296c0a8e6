package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrMigration wraps any failure while bringing the schema up to date.
var ErrMigration = errors.New("migration failed")

type DB struct {
	sql  *sql.DB
	path string
}

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS price (
  id           INTEGER PRIMARY KEY,
  name         TEXT NOT NULL,
  price        REAL NOT NULL,
  revision     INTEGER NOT NULL,
  fully_linked INTEGER NOT NULL DEFAULT 0 CHECK (fully_linked IN (0,1)),
  timestamp    TEXT NOT NULL,
  league       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_lookup ON price(revision, league, name);
CREATE INDEX IF NOT EXISTS idx_price_time ON price(timestamp);

CREATE TABLE IF NOT EXISTS profiles (
  id             INTEGER PRIMARY KEY,
  name           TEXT NOT NULL,
  league_id      TEXT NOT NULL,
  pricing_league TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stashes (
  id     TEXT PRIMARY KEY,
  name   TEXT NOT NULL,
  type   TEXT NOT NULL,
  league TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS profile_stash_assoc (
  profile_id INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
  stash_id   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assoc_profile ON profile_stash_assoc(profile_id);

CREATE TABLE IF NOT EXISTS snapshots (
  id               INTEGER PRIMARY KEY,
  profile_id       INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
  timestamp        TEXT NOT NULL,
  pricing_revision INTEGER NOT NULL,
  value            REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_snapshots_profile ON snapshots(profile_id);

CREATE TABLE IF NOT EXISTS item (
  id          INTEGER PRIMARY KEY,
  snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  stash_id    TEXT NOT NULL,
  data        TEXT NOT NULL,
  value       REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_item_snapshot ON item(snapshot_id);
`,
	`ALTER TABLE price ADD COLUMN category TEXT NOT NULL DEFAULT '';`,
}

// Open opens (creating if needed) the SQLite database at path and migrates it.
func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps pragmas and transactions on one handle.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	d := &DB{sql: db, path: path}
	if err := d.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	var version int
	if err := d.sql.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("%w: read schema version: %v", ErrMigration, err)
	}
	for i := version; i < len(migrations); i++ {
		tx, err := d.sql.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMigration, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: step %d: %v", ErrMigration, i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: step %d: %v", ErrMigration, i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: step %d: %v", ErrMigration, i+1, err)
		}
	}
	return nil
}

// Path returns the file the database was opened from.
func (d *DB) Path() string {
	return d.path
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// withTx runs fn inside a transaction, rolling back if fn fails.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// GetStats returns observation counts per revision and league, newest first.
func (d *DB) GetStats(ctx context.Context) ([]RevisionStats, error) {
	query := `
		SELECT
			revision,
			league,
			COUNT(*),
			MAX(timestamp)
		FROM
			price
		GROUP BY
			revision, league
		ORDER BY
			revision DESC, league;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []RevisionStats{}
	for rows.Next() {
		var s RevisionStats
		var ts string
		if err := rows.Scan(&s.Revision, &s.League, &s.Count, &ts); err != nil {
			return nil, err
		}
		s.Timestamp = parseTime(ts)
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
