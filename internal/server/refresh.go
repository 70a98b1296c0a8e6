package server

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loothound/loothound/pkg/engine"
)

// Locker is the cross-process lock taken around each ingestion.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// Refresher keeps the catalog fresh by ingesting a new revision whenever the
// newest observation falls out of the freshness window.
type Refresher struct {
	Engine   *engine.Engine
	Lock     Locker
	Interval time.Duration
	Log      logrus.FieldLogger
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.RunOnce(ctx)
	if r.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce ingests a revision unless prices are recent or another process
// holds the lock. It reports whether a revision was written.
func (r *Refresher) RunOnce(ctx context.Context) bool {
	if r.recent(ctx) {
		return false
	}

	if r.Lock != nil {
		ok, err := r.Lock.TryLock()
		if err != nil {
			r.Log.WithError(err).Error("Could not take database lock")
			return false
		}
		if !ok {
			r.Log.Info("Another process is fetching prices, skipping refresh")
			return false
		}
		defer r.Lock.Unlock()

		// A writer may have finished between the check and the lock.
		if r.recent(ctx) {
			return false
		}
	}

	rev, err := r.Engine.FetchPrices(ctx)
	if err != nil {
		r.Log.WithError(err).WithField("kind", engine.KindOf(err).String()).Error("Refreshing prices failed")
		return false
	}
	r.Log.WithField("revision", rev).Info("Prices refreshed")
	return true
}

// recent reports whether the catalog is fresh. Errors count as fresh so no
// fetch is attempted against a failing store.
func (r *Refresher) recent(ctx context.Context) bool {
	recent, err := r.Engine.HasRecentPrices(ctx)
	if err != nil {
		r.Log.WithError(err).Error("Checking price freshness failed")
		return true
	}
	if recent {
		r.Log.Debug("Prices are recent, skipping refresh")
	}
	return recent
}
