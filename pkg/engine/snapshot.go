package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loothound/loothound/pkg/inventory"
	"github.com/loothound/loothound/pkg/storage"
)

var errNoRows = sql.ErrNoRows

// NewSnapshot creates a snapshot for profileID bound to the catalog's current
// maximum revision. It fails with a store error wrapping sql.ErrNoRows when
// the catalog is empty.
//
// Reading the revision and inserting the snapshot are separate statements.
// A writer in another process may append a revision in between; the snapshot
// stays bound to the revision that was read.
func (e *Engine) NewSnapshot(ctx context.Context, profileID int64) (storage.Snapshot, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return storage.Snapshot{}, err
	}

	revision, ok, err := db.MaxRevision(ctx)
	if err != nil {
		return storage.Snapshot{}, storeErr(err)
	}
	if !ok {
		return storage.Snapshot{}, storeErr(fmt.Errorf("price catalog is empty: %w", errNoRows))
	}

	if e.afterRevisionRead != nil {
		e.afterRevisionRead()
	}

	snap, err := db.InsertSnapshot(ctx, profileID, revision, e.now())
	if err != nil {
		return storage.Snapshot{}, storeErr(err)
	}
	e.log.Debugf("Snapshot %d for profile %d bound to revision %d", snap.ID, profileID, revision)
	return snap, nil
}

// SnapshotSetValue overwrites a snapshot's total without valuing its items.
func (e *Engine) SnapshotSetValue(ctx context.Context, snapshot storage.Snapshot, value int64) error {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return err
	}
	return storeErr(db.SetSnapshotValue(ctx, snapshot.ID, float64(value)))
}

func (e *Engine) ListSnapshots(ctx context.Context, profileID int64) ([]storage.Snapshot, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	snaps, err := db.ListSnapshots(ctx, profileID)
	return snaps, storeErr(err)
}

// GetSnapshot returns the stored row for id.
func (e *Engine) GetSnapshot(ctx context.Context, id int64) (storage.Snapshot, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return storage.Snapshot{}, err
	}
	snap, err := db.GetSnapshot(ctx, id)
	return snap, storeErr(err)
}

// DeleteSnapshot removes a snapshot and its items.
func (e *Engine) DeleteSnapshot(ctx context.Context, id int64) error {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return err
	}
	return storeErr(db.DeleteSnapshot(ctx, id))
}

// SnapshotFetchItems returns the raw items attached to a snapshot.
func (e *Engine) SnapshotFetchItems(ctx context.Context, snapshot storage.Snapshot) ([]inventory.Item, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	rows, err := db.ListItems(ctx, snapshot.ID)
	if err != nil {
		return nil, storeErr(err)
	}
	items := make([]inventory.Item, 0, len(rows))
	for _, r := range rows {
		it, err := inventory.Parse(r.Data)
		if err != nil {
			return nil, storeErr(fmt.Errorf("item %d: %w", r.ID, err))
		}
		items = append(items, it)
	}
	return items, nil
}
