package engine

import (
	"context"
	"fmt"

	"github.com/loothound/loothound/pkg/market"
	"github.com/loothound/loothound/pkg/storage"
)

// FetchPrices ingests one new revision of the catalog and returns its number.
//
// Every configured (league, category) document is fetched sequentially and
// its observations are written under max(revision)+1, or 1 for an empty
// catalog. Each document is written in its own transaction. A fetch or
// decode failure aborts the call with KindNetwork; documents written before
// the failure are kept, so the revision may be incomplete.
//
// The engine lock is held for the whole call, including HTTP round trips.
func (e *Engine) FetchPrices(ctx context.Context) (int64, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if e.source == nil {
		return 0, networkErr(fmt.Errorf("no market source configured"))
	}

	current, _, err := db.MaxRevision(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	revision := current + 1
	ts := e.now()

	e.log.Infof("Fetching prices for revision %d (%d documents)", revision, len(e.targets))

	var total int
	for _, t := range e.targets {
		lines, err := e.source.FetchLines(ctx, t.League, t.Category)
		if err != nil {
			e.log.Errorf("Fetching %s %s failed: %v", t.League, t.Category.Name, err)
			return 0, networkErr(err)
		}

		obs := observations(lines)
		if err := db.InsertPrices(ctx, revision, t.League, t.Category.Name, ts, obs); err != nil {
			return 0, storeErr(err)
		}
		total += len(obs)
		e.log.Debugf("Stored %d prices for %s %s", len(obs), t.League, t.Category.Name)
	}

	e.log.Infof("Revision %d stored with %d prices", revision, total)
	return revision, nil
}

func observations(lines []market.Line) []storage.Observation {
	out := make([]storage.Observation, 0, len(lines))
	for _, l := range lines {
		out = append(out, storage.Observation{
			Name:        l.Name,
			Price:       l.UnitPrice,
			FullyLinked: l.FullyLinked(),
		})
	}
	return out
}
