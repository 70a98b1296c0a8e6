package engine

import (
	"context"
)

// HasRecentPrices reports whether the newest observation is at most
// FreshnessWindow old. An empty catalog is never recent.
func (e *Engine) HasRecentPrices(ctx context.Context) (bool, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return false, err
	}

	newest, ok, err := db.NewestPrice(ctx)
	if err != nil {
		return false, storeErr(err)
	}
	if !ok {
		return false, nil
	}
	return e.now().Sub(newest.Timestamp) <= FreshnessWindow, nil
}
