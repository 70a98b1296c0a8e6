// Package engine is the revisioned price catalog and valuation engine.
//
// An Engine owns the store handle and serializes every operation on it with a
// single mutex, so callers never touch the store concurrently. Multi-step
// operations are not one transaction unless documented: a crash or another
// process can observe a partly written revision between documents.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/loothound/loothound/pkg/market"
	"github.com/loothound/loothound/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

const (
	// FreshnessWindow is how old the newest observation may be for the
	// catalog to count as recent.
	FreshnessWindow = time.Hour

	BaseCurrency   = "Chaos Orb"
	DivineCurrency = "Divine Orb"
)

// Config holds everything New needs.
type Config struct {
	Source  market.Source
	Targets []market.Target
	Leagues []string         // reported by PricingLeagues
	Clock   func() time.Time // defaults to time.Now
	Log     Logger           // optional; nil = no logging
}

type Engine struct {
	mu      sync.Mutex
	db      *storage.DB
	source  market.Source
	targets []market.Target
	leagues []string
	now     func() time.Time
	log     Logger

	// afterRevisionRead runs inside NewSnapshot between reading the maximum
	// revision and inserting the snapshot. Tests use it to interleave writers.
	afterRevisionRead func()
}

// New returns an Engine without a store; operations fail with
// ErrDatabaseNotLoaded until Load is called.
func New(cfg Config) *Engine {
	e := &Engine{
		source:  cfg.Source,
		targets: cfg.Targets,
		leagues: cfg.Leagues,
		now:     cfg.Clock,
		log:     cfg.Log,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = nopLogger{}
	}
	if e.leagues == nil {
		e.leagues = uniqueLeagues(cfg.Targets)
	}
	return e
}

func uniqueLeagues(targets []market.Target) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, t := range targets {
		if !seen[t.League] {
			seen[t.League] = true
			out = append(out, t.League)
		}
	}
	return out
}

// Load hands an opened store to the engine.
func (e *Engine) Load(db *storage.DB) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.db = db
}

// Open opens the store at path and loads it. Schema failures are reported as
// KindMigration.
func (e *Engine) Open(path string) error {
	db, err := storage.Open(path)
	if err != nil {
		if errors.Is(err, storage.ErrMigration) {
			return &Error{Kind: KindMigration, Err: err}
		}
		return storeErr(err)
	}
	e.Load(db)
	return nil
}

// Close closes the loaded store, if any.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

// Reset deletes the database file and starts over with an empty schema.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return &Error{Kind: KindDatabaseNotLoaded, Err: ErrDatabaseNotLoaded}
	}
	path := e.db.Path()
	if err := e.db.Close(); err != nil {
		return storeErr(err)
	}
	e.db = nil
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return storeErr(fmt.Errorf("remove %s: %w", p, err))
		}
	}
	db, err := storage.Open(path)
	if err != nil {
		if errors.Is(err, storage.ErrMigration) {
			return &Error{Kind: KindMigration, Err: err}
		}
		return storeErr(err)
	}
	e.db = db
	e.log.Infof("Database %s reset", path)
	return nil
}

// PricingLeagues returns the leagues prices are ingested for.
func (e *Engine) PricingLeagues() []string {
	return append([]string(nil), e.leagues...)
}

// lock acquires the engine mutex and returns the loaded store. The caller
// must call e.mu.Unlock even when err is non-nil.
func (e *Engine) lock() (*storage.DB, error) {
	e.mu.Lock()
	if e.db == nil {
		return nil, &Error{Kind: KindDatabaseNotLoaded, Err: ErrDatabaseNotLoaded}
	}
	return e.db, nil
}

// Stats returns per-revision catalog statistics.
func (e *Engine) Stats(ctx context.Context) ([]storage.RevisionStats, error) {
	db, err := e.lock()
	defer e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	stats, err := db.GetStats(ctx)
	return stats, storeErr(err)
}
