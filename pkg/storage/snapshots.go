package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const snapshotColumns = "id, profile_id, timestamp, pricing_revision, value"

// InsertSnapshot creates a snapshot bound to revision with a zero value and
// returns the stored row.
func (d *DB) InsertSnapshot(ctx context.Context, profileID, revision int64, ts time.Time) (Snapshot, error) {
	q := "INSERT INTO snapshots(profile_id, timestamp, pricing_revision, value) VALUES(?,?,?,0) RETURNING " + snapshotColumns
	return scanSnapshot(d.sql.QueryRowContext(ctx, q, profileID, formatTime(ts), revision))
}

// GetSnapshot returns sql.ErrNoRows when id does not exist.
func (d *DB) GetSnapshot(ctx context.Context, id int64) (Snapshot, error) {
	return scanSnapshot(d.sql.QueryRowContext(ctx, "SELECT "+snapshotColumns+" FROM snapshots WHERE id = ?", id))
}

func (d *DB) ListSnapshots(ctx context.Context, profileID int64) ([]Snapshot, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+snapshotColumns+" FROM snapshots WHERE profile_id = ? ORDER BY id", profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) SetSnapshotValue(ctx context.Context, id int64, value float64) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE snapshots SET value = ? WHERE id = ?", value, id)
	return err
}

// SnapshotValue re-reads the persisted total of a snapshot.
func (d *DB) SnapshotValue(ctx context.Context, id int64) (float64, error) {
	var v float64
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM snapshots WHERE id = ?", id).Scan(&v)
	return v, err
}

// DeleteSnapshot removes the snapshot and its items in one transaction.
func (d *DB) DeleteSnapshot(ctx context.Context, id int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM item WHERE snapshot_id = ?", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
		return err
	})
}

// NewItemRow is an item about to be attached to a snapshot.
type NewItemRow struct {
	Data  json.RawMessage
	Value float64
}

// AppendItems inserts items for a snapshot and overwrites the snapshot's total
// in the same transaction. Existing item rows are kept.
func (d *DB) AppendItems(ctx context.Context, snapshotID int64, stashID string, items []NewItemRow, total float64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO item(snapshot_id, stash_id, data, value) VALUES(?,?,?,?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, it := range items {
			if _, err := stmt.ExecContext(ctx, snapshotID, stashID, string(it.Data), it.Value); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, "UPDATE snapshots SET value = ? WHERE id = ?", total, snapshotID)
		return err
	})
}

// ListItems returns the item rows of a snapshot in insertion order.
func (d *DB) ListItems(ctx context.Context, snapshotID int64) ([]ItemRow, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, snapshot_id, stash_id, data, value FROM item WHERE snapshot_id = ? ORDER BY id", snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ItemRow{}
	for rows.Next() {
		var (
			r    ItemRow
			data string
		)
		if err := rows.Scan(&r.ID, &r.SnapshotID, &r.StashID, &data, &r.Value); err != nil {
			return nil, err
		}
		r.Data = json.RawMessage(data)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSnapshot(s scanner) (Snapshot, error) {
	var (
		snap Snapshot
		ts   string
	)
	if err := s.Scan(&snap.ID, &snap.ProfileID, &ts, &snap.PricingRevision, &snap.Value); err != nil {
		return Snapshot{}, err
	}
	snap.Timestamp = parseTime(ts)
	return snap, nil
}
