package engine

import (
	"context"

	"github.com/loothound/loothound/pkg/storage"
)

// CreateProfile stores a profile and its stash associations in one
// transaction.
func (e *Engine) CreateProfile(ctx context.Context, name string, stashIDs []string, leagueID, pricingLeague string) (storage.Profile, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return storage.Profile{}, err
	}
	p, err := db.CreateProfile(ctx, name, leagueID, pricingLeague, stashIDs)
	return p, storeErr(err)
}

func (e *Engine) ListProfiles(ctx context.Context) ([]storage.ProfileWithStashes, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	profiles, err := db.ListProfiles(ctx)
	return profiles, storeErr(err)
}

func (e *Engine) UpdateProfile(ctx context.Context, p storage.Profile, stashIDs []string) (storage.ProfileWithStashes, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return storage.ProfileWithStashes{}, err
	}
	out, err := db.UpdateProfile(ctx, p, stashIDs)
	return out, storeErr(err)
}

// DeleteProfile removes a profile, its snapshots and their items.
func (e *Engine) DeleteProfile(ctx context.Context, id int64) error {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return err
	}
	return storeErr(db.DeleteProfile(ctx, id))
}

func (e *Engine) InsertStash(ctx context.Context, s storage.Stash) (storage.Stash, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return storage.Stash{}, err
	}
	out, err := db.UpsertStash(ctx, s)
	return out, storeErr(err)
}

func (e *Engine) ListStashes(ctx context.Context) ([]storage.Stash, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	stashes, err := db.ListStashes(ctx)
	return stashes, storeErr(err)
}

func (e *Engine) StashByID(ctx context.Context, id string) (storage.Stash, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return storage.Stash{}, err
	}
	s, err := db.GetStash(ctx, id)
	return s, storeErr(err)
}
