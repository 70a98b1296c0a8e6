package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/loothound/loothound/pkg/engine"
	"github.com/loothound/loothound/pkg/inventory"
	"github.com/loothound/loothound/pkg/storage"
)

// maxBodyBytes bounds a command body; stash tabs with every item are large.
const maxBodyBytes = 32 << 20

var errUnknownCommand = errors.New("unknown command")

type commandFunc func(ctx context.Context, e *engine.Engine, args json.RawMessage) (interface{}, error)

type commandResponse struct {
	Result interface{} `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Engine.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cmd, ok := commands[name]
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %s", errUnknownCommand, name))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, engine.InvalidArgument(err))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	s.logger(r.Context()).WithField("command", name).Debug("Running command")
	result, err := cmd(r.Context(), s.Engine, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Result: result})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	s.logger(r.Context()).WithError(err).WithField("kind", kind).Warn("Command failed")
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func statusFor(err error) (int, string) {
	if errors.Is(err, errUnknownCommand) {
		return http.StatusNotFound, "invalid_argument"
	}
	kind := engine.KindOf(err)
	switch kind {
	case engine.KindInvalidArgument:
		return http.StatusBadRequest, kind.String()
	case engine.KindDatabaseNotLoaded:
		return http.StatusServiceUnavailable, kind.String()
	case engine.KindNetwork:
		return http.StatusBadGateway, kind.String()
	}
	return http.StatusInternalServerError, kind.String()
}

// decode unmarshals args into v, rejecting unknown fields.
func decode(args json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return engine.InvalidArgument(fmt.Errorf("bad arguments: %w", err))
	}
	return nil
}

type profileIDArgs struct {
	ProfileID int64 `json:"profileId"`
}

type snapshotArgs struct {
	Snapshot storage.Snapshot `json:"snapshot"`
}

type addItemsArgs struct {
	Snapshot storage.Snapshot `json:"snapshot"`
	Items    []inventory.Item `json:"items"`
	StashID  string           `json:"stashId"`
}

type setValueArgs struct {
	Snapshot storage.Snapshot `json:"snapshot"`
	Value    int64            `json:"value"`
}

type snapshotIDArgs struct {
	SnapshotID int64 `json:"snapshotId"`
}

type nameArgs struct {
	Name string `json:"name"`
}

type createProfileArgs struct {
	Name          string   `json:"name"`
	StashIDs      []string `json:"stashIds"`
	LeagueID      string   `json:"leagueId"`
	PricingLeague string   `json:"pricingLeague"`
}

type updateProfileArgs struct {
	Profile  storage.Profile `json:"profile"`
	StashIDs []string        `json:"stashIds"`
}

type idArgs struct {
	ID string `json:"id"`
}

var commands = map[string]commandFunc{
	"fetch_prices": func(ctx context.Context, e *engine.Engine, _ json.RawMessage) (interface{}, error) {
		return e.FetchPrices(ctx)
	},
	"has_recent_prices": func(ctx context.Context, e *engine.Engine, _ json.RawMessage) (interface{}, error) {
		return e.HasRecentPrices(ctx)
	},
	"new_snapshot": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a profileIDArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return e.NewSnapshot(ctx, a.ProfileID)
	},
	"add_items_to_snapshot": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a addItemsArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return e.AddItemsToSnapshot(ctx, a.Snapshot, a.Items, a.StashID)
	},
	"snapshot_set_value": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a setValueArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return nil, e.SnapshotSetValue(ctx, a.Snapshot, a.Value)
	},
	"list_snapshots": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a profileIDArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return e.ListSnapshots(ctx, a.ProfileID)
	},
	"delete_snapshot": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a snapshotIDArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return nil, e.DeleteSnapshot(ctx, a.SnapshotID)
	},
	"snapshot_fetch_items": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a snapshotArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return e.SnapshotFetchItems(ctx, a.Snapshot)
	},
	"snapshot_valuation": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a snapshotArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return e.SnapshotValuation(ctx, a.Snapshot)
	},
	"check_price": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a nameArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if a.Name == "" {
			return nil, engine.InvalidArgument(errors.New("name is required"))
		}
		return e.CheckPrice(ctx, a.Name)
	},
	"get_pricing_leagues": func(_ context.Context, e *engine.Engine, _ json.RawMessage) (interface{}, error) {
		return e.PricingLeagues(), nil
	},
	"create_profile": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a createProfileArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if a.Name == "" {
			return nil, engine.InvalidArgument(errors.New("name is required"))
		}
		return e.CreateProfile(ctx, a.Name, a.StashIDs, a.LeagueID, a.PricingLeague)
	},
	"get_profiles": func(ctx context.Context, e *engine.Engine, _ json.RawMessage) (interface{}, error) {
		return e.ListProfiles(ctx)
	},
	"update_profile": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a updateProfileArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return e.UpdateProfile(ctx, a.Profile, a.StashIDs)
	},
	"delete_profile": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a profileIDArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return nil, e.DeleteProfile(ctx, a.ProfileID)
	},
	"insert_stash": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a storage.Stash
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if a.ID == "" {
			return nil, engine.InvalidArgument(errors.New("id is required"))
		}
		return e.InsertStash(ctx, a)
	},
	"get_stashes": func(ctx context.Context, e *engine.Engine, _ json.RawMessage) (interface{}, error) {
		return e.ListStashes(ctx)
	},
	"stash_from_id": func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (interface{}, error) {
		var a idArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return e.StashByID(ctx, a.ID)
	},
}
