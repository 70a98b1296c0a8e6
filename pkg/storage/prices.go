package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const priceColumns = "id, name, price, revision, fully_linked, timestamp, league, category"

// InsertPrices writes every observation of one fetched document under the
// given revision in a single transaction.
func (d *DB) InsertPrices(ctx context.Context, revision int64, league, category string, ts time.Time, obs []Observation) error {
	if len(obs) == 0 {
		return nil
	}
	stamp := formatTime(ts)
	return d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO price(name, price, revision, fully_linked, timestamp, league, category) VALUES(?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, o := range obs {
			if _, err := stmt.ExecContext(ctx, o.Name, o.Price, revision, boolToInt(o.FullyLinked), stamp, league, category); err != nil {
				return fmt.Errorf("insert price %q: %w", o.Name, err)
			}
		}
		return nil
	})
}

// MaxRevision returns the highest revision in the catalog. ok is false when
// the catalog is empty.
func (d *DB) MaxRevision(ctx context.Context) (rev int64, ok bool, err error) {
	var n sql.NullInt64
	if err := d.sql.QueryRowContext(ctx, "SELECT MAX(revision) FROM price").Scan(&n); err != nil {
		return 0, false, err
	}
	return n.Int64, n.Valid, nil
}

// LookupPrice finds the observation whose name matches name (SQLite LIKE
// semantics, so ASCII case-insensitive) at revision and league. Unlike a plain
// `name LIKE ?` bound to the raw name, '%', '_' and '\' in name are escaped
// and match only themselves. Duplicates resolve to the highest id.
func (d *DB) LookupPrice(ctx context.Context, name string, revision int64, league string) (Price, bool, error) {
	q := "SELECT " + priceColumns + ` FROM price WHERE name LIKE ? ESCAPE '\' AND revision = ? AND league = ? ORDER BY id DESC LIMIT 1`
	return d.priceRow(ctx, q, escapeLike(name), revision, league)
}

// LookupExactPrice is LookupPrice with exact name equality.
func (d *DB) LookupExactPrice(ctx context.Context, name string, revision int64, league string) (Price, bool, error) {
	q := "SELECT " + priceColumns + " FROM price WHERE name = ? AND revision = ? AND league = ? ORDER BY id DESC LIMIT 1"
	return d.priceRow(ctx, q, name, revision, league)
}

// LookupLatestRevisionPrice finds name in any league at the current maximum
// revision.
func (d *DB) LookupLatestRevisionPrice(ctx context.Context, name string) (Price, bool, error) {
	q := "SELECT " + priceColumns + " FROM price WHERE name = ? AND revision = (SELECT MAX(revision) FROM price) ORDER BY id DESC LIMIT 1"
	return d.priceRow(ctx, q, name)
}

// NewestPrice returns the most recently timestamped observation.
func (d *DB) NewestPrice(ctx context.Context) (Price, bool, error) {
	q := "SELECT " + priceColumns + " FROM price ORDER BY timestamp DESC, id DESC LIMIT 1"
	return d.priceRow(ctx, q)
}

// ListPrices returns every observation of a revision ordered by id.
func (d *DB) ListPrices(ctx context.Context, revision int64) ([]Price, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+priceColumns+" FROM price WHERE revision = ? ORDER BY id", revision)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Price
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) priceRow(ctx context.Context, query string, args ...interface{}) (Price, bool, error) {
	p, err := scanPrice(d.sql.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Price{}, false, nil
	}
	if err != nil {
		return Price{}, false, err
	}
	return p, true, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPrice(s scanner) (Price, error) {
	var (
		p      Price
		linked int
		ts     string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Price, &p.Revision, &linked, &ts, &p.League, &p.Category); err != nil {
		return Price{}, err
	}
	p.FullyLinked = linked == 1
	p.Timestamp = parseTime(ts)
	return p, nil
}
