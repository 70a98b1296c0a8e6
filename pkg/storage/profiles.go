package storage

import (
	"context"
	"database/sql"
)

// CreateProfile inserts a profile and its stash associations atomically.
func (d *DB) CreateProfile(ctx context.Context, name, leagueID, pricingLeague string, stashIDs []string) (Profile, error) {
	var p Profile
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "INSERT INTO profiles(name, league_id, pricing_league) VALUES(?,?,?) RETURNING id, name, league_id, pricing_league", name, leagueID, pricingLeague)
		if err := row.Scan(&p.ID, &p.Name, &p.LeagueID, &p.PricingLeague); err != nil {
			return err
		}
		return insertAssoc(ctx, tx, p.ID, stashIDs)
	})
	return p, err
}

// GetProfile returns sql.ErrNoRows when id does not exist.
func (d *DB) GetProfile(ctx context.Context, id int64) (Profile, error) {
	var p Profile
	err := d.sql.QueryRowContext(ctx, "SELECT id, name, league_id, pricing_league FROM profiles WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.LeagueID, &p.PricingLeague)
	return p, err
}

// ListProfiles returns every profile with its associated stash ids.
func (d *DB) ListProfiles(ctx context.Context) ([]ProfileWithStashes, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, name, league_id, pricing_league FROM profiles ORDER BY id")
	if err != nil {
		return nil, err
	}
	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.LeagueID, &p.PricingLeague); err != nil {
			rows.Close()
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	out := make([]ProfileWithStashes, 0, len(profiles))
	for _, p := range profiles {
		stashes, err := d.profileStashes(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ProfileWithStashes{Profile: p, Stashes: stashes})
	}
	return out, nil
}

func (d *DB) profileStashes(ctx context.Context, profileID int64) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT stash_id FROM profile_stash_assoc WHERE profile_id = ? ORDER BY rowid", profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stashes := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		stashes = append(stashes, s)
	}
	return stashes, rows.Err()
}

// UpdateProfile rewrites a profile and replaces its stash associations.
func (d *DB) UpdateProfile(ctx context.Context, p Profile, stashIDs []string) (ProfileWithStashes, error) {
	var updated Profile
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "UPDATE profiles SET name = ?, league_id = ?, pricing_league = ? WHERE id = ? RETURNING id, name, league_id, pricing_league", p.Name, p.LeagueID, p.PricingLeague, p.ID)
		if err := row.Scan(&updated.ID, &updated.Name, &updated.LeagueID, &updated.PricingLeague); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM profile_stash_assoc WHERE profile_id = ?", p.ID); err != nil {
			return err
		}
		return insertAssoc(ctx, tx, p.ID, stashIDs)
	})
	if err != nil {
		return ProfileWithStashes{}, err
	}
	if stashIDs == nil {
		stashIDs = []string{}
	}
	return ProfileWithStashes{Profile: updated, Stashes: stashIDs}, nil
}

// DeleteProfile removes a profile together with its snapshots and items.
func (d *DB) DeleteProfile(ctx context.Context, id int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			"DELETE FROM item WHERE snapshot_id IN (SELECT id FROM snapshots WHERE profile_id = ?)",
			"DELETE FROM snapshots WHERE profile_id = ?",
			"DELETE FROM profile_stash_assoc WHERE profile_id = ?",
			"DELETE FROM profiles WHERE id = ?",
		}
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertAssoc(ctx context.Context, tx *sql.Tx, profileID int64, stashIDs []string) error {
	for _, s := range stashIDs {
		if _, err := tx.ExecContext(ctx, "INSERT INTO profile_stash_assoc(profile_id, stash_id) VALUES(?,?)", profileID, s); err != nil {
			return err
		}
	}
	return nil
}

// UpsertStash inserts a stash or refreshes its metadata.
func (d *DB) UpsertStash(ctx context.Context, s Stash) (Stash, error) {
	var out Stash
	err := d.sql.QueryRowContext(ctx, `INSERT INTO stashes(id, name, type, league) VALUES(?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, type = excluded.type, league = excluded.league
RETURNING id, name, type, league`, s.ID, s.Name, s.Type, s.League).Scan(&out.ID, &out.Name, &out.Type, &out.League)
	return out, err
}

func (d *DB) ListStashes(ctx context.Context) ([]Stash, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, name, type, league FROM stashes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Stash{}
	for rows.Next() {
		var s Stash
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &s.League); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetStash returns sql.ErrNoRows when id does not exist.
func (d *DB) GetStash(ctx context.Context, id string) (Stash, error) {
	var s Stash
	err := d.sql.QueryRowContext(ctx, "SELECT id, name, type, league FROM stashes WHERE id = ?", id).Scan(&s.ID, &s.Name, &s.Type, &s.League)
	return s, err
}
