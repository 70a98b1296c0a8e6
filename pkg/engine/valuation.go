package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/loothound/loothound/pkg/inventory"
	"github.com/loothound/loothound/pkg/storage"
)

// resolveUnitPrice prices one lookup name at a revision and league. found is
// false when the catalog has no matching observation; the caller decides
// whether that is a zero price or an error. The base currency is always 1.
func resolveUnitPrice(ctx context.Context, db *storage.DB, name string, revision int64, league string) (price float64, found bool, err error) {
	if name == BaseCurrency {
		return 1, true, nil
	}
	p, ok, err := db.LookupPrice(ctx, name, revision, league)
	if err != nil || !ok {
		return 0, false, err
	}
	return p.Price, true, nil
}

// AddItemsToSnapshot values items at the snapshot's bound revision, attaches
// them to the snapshot under stashID and stores the new total, which it
// returns as re-read from the store. The revision and profile come from the
// stored snapshot row, not from the argument.
//
// Items without a catalog match are worth 0. Each call appends item rows;
// only the total is overwritten. Rows and total are written in one
// transaction, so a failure leaves the previous total in place.
func (e *Engine) AddItemsToSnapshot(ctx context.Context, snapshot storage.Snapshot, items []inventory.Item, stashID string) (float64, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return 0, err
	}

	snap, err := db.GetSnapshot(ctx, snapshot.ID)
	if err != nil {
		return 0, storeErr(fmt.Errorf("snapshot %d: %w", snapshot.ID, err))
	}
	profile, err := db.GetProfile(ctx, snap.ProfileID)
	if err != nil {
		return 0, storeErr(fmt.Errorf("profile %d: %w", snap.ProfileID, err))
	}
	league := profile.PricingLeague

	total := decimal.Zero
	rows := make([]storage.NewItemRow, 0, len(items))
	var misses int
	for _, it := range items {
		name := it.LookupName()
		unit, found, err := resolveUnitPrice(ctx, db, name, snap.PricingRevision, league)
		if err != nil {
			return 0, storeErr(err)
		}
		if !found {
			misses++
			e.log.Debugf("No price for %q at revision %d in %s", name, snap.PricingRevision, league)
		}

		line := unit * float64(it.Quantity())
		total = total.Add(decimal.NewFromFloat(line))
		rows = append(rows, storage.NewItemRow{Data: it.Raw(), Value: line})
	}

	if err := db.AppendItems(ctx, snap.ID, stashID, rows, total.InexactFloat64()); err != nil {
		return 0, storeErr(err)
	}
	e.log.Debugf("Snapshot %d: %d items valued, %d without price", snap.ID, len(items), misses)

	value, err := db.SnapshotValue(ctx, snap.ID)
	return value, storeErr(err)
}

// PricedItem is a stored item together with its valuation.
type PricedItem struct {
	Item      inventory.Item `json:"item"`
	StashID   string         `json:"stashId"`
	UnitPrice float64        `json:"unitPrice"`
	Price     float64        `json:"price"`
}

// Valuation is a snapshot's value in both numeraires.
type Valuation struct {
	Items       []PricedItem `json:"items"`
	TotalChaos  float64      `json:"totalChaos"`
	TotalDivine float64      `json:"totalDiv"`
	DivinePrice float64      `json:"divinePrice"`
}

// SnapshotValuation reports a snapshot's stored items and total, and converts
// the total to divine orbs at the snapshot's revision and pricing league.
// Unlike item valuation, a missing divine price is an error.
func (e *Engine) SnapshotValuation(ctx context.Context, snapshot storage.Snapshot) (Valuation, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return Valuation{}, err
	}

	snap, err := db.GetSnapshot(ctx, snapshot.ID)
	if err != nil {
		return Valuation{}, storeErr(fmt.Errorf("snapshot %d: %w", snapshot.ID, err))
	}
	profile, err := db.GetProfile(ctx, snap.ProfileID)
	if err != nil {
		return Valuation{}, storeErr(fmt.Errorf("profile %d: %w", snap.ProfileID, err))
	}

	rows, err := db.ListItems(ctx, snap.ID)
	if err != nil {
		return Valuation{}, storeErr(err)
	}

	divine, ok, err := db.LookupExactPrice(ctx, DivineCurrency, snap.PricingRevision, profile.PricingLeague)
	if err != nil {
		return Valuation{}, storeErr(err)
	}
	if !ok {
		return Valuation{}, storeErr(fmt.Errorf("no %s price at revision %d in %s: %w", DivineCurrency, snap.PricingRevision, profile.PricingLeague, errNoRows))
	}

	v := Valuation{
		Items:       make([]PricedItem, 0, len(rows)),
		TotalChaos:  snap.Value,
		DivinePrice: divine.Price,
	}
	for _, r := range rows {
		it, err := inventory.Parse(r.Data)
		if err != nil {
			return Valuation{}, storeErr(fmt.Errorf("item %d: %w", r.ID, err))
		}
		unit := decimal.NewFromFloat(r.Value).Div(decimal.NewFromInt(it.Quantity()))
		v.Items = append(v.Items, PricedItem{
			Item:      it,
			StashID:   r.StashID,
			UnitPrice: unit.InexactFloat64(),
			Price:     r.Value,
		})
	}
	if divine.Price != 0 {
		v.TotalDivine = decimal.NewFromFloat(snap.Value).Div(decimal.NewFromFloat(divine.Price)).InexactFloat64()
	}
	return v, nil
}

// CheckPrice looks name up by exact match in any league at the current
// maximum revision. A miss is a store error.
func (e *Engine) CheckPrice(ctx context.Context, name string) (float64, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if name == BaseCurrency {
		return 1, nil
	}

	p, ok, err := db.LookupLatestRevisionPrice(ctx, name)
	if err != nil {
		return 0, storeErr(err)
	}
	if !ok {
		return 0, storeErr(fmt.Errorf("no price for %q: %w", name, errNoRows))
	}
	return p.Price, nil
}
