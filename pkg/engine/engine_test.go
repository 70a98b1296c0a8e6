package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loothound/loothound/pkg/inventory"
	"github.com/loothound/loothound/pkg/market"
	"github.com/loothound/loothound/pkg/storage"
)

// fakeSource serves canned lines per "league/category" key.
type fakeSource struct {
	mu    sync.Mutex
	lines map[string][]market.Line
	fail  map[string]error
	calls []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{lines: map[string][]market.Line{}, fail: map[string]error{}}
}

func (f *fakeSource) set(league, category string, lines ...market.Line) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines[league+"/"+category] = lines
}

func (f *fakeSource) FetchLines(ctx context.Context, league string, category market.Category) ([]market.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := league + "/" + category.Name
	f.calls = append(f.calls, key)
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return f.lines[key], nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

var testTargets = []market.Target{
	{League: "Standard", Category: market.Category{Name: "Currency", Kind: market.KindCurrency}},
	{League: "Standard", Category: market.Category{Name: "UniqueArmour", Kind: market.KindItem}},
}

func newTestEngine(t *testing.T, src market.Source) (*Engine, *testClock) {
	t.Helper()
	clock := &testClock{t: t0}
	e := New(Config{Source: src, Targets: testTargets, Clock: clock.Now})
	require.NoError(t, e.Open(filepath.Join(t.TempDir(), "engine.sqlite")))
	t.Cleanup(func() { e.Close() })
	return e, clock
}

func item(raw string) inventory.Item { return inventory.MustParse(raw) }

func seedProfile(t *testing.T, e *Engine, pricingLeague string) storage.Profile {
	t.Helper()
	p, err := e.CreateProfile(context.Background(), "main", []string{"tab1"}, pricingLeague, pricingLeague)
	require.NoError(t, err)
	return p
}

func TestOperationsRequireLoadedDatabase(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()

	_, err := e.FetchPrices(ctx)
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)
	require.Equal(t, KindDatabaseNotLoaded, KindOf(err))

	_, err = e.HasRecentPrices(ctx)
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)

	_, err = e.NewSnapshot(ctx, 1)
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)

	_, err = e.AddItemsToSnapshot(ctx, storage.Snapshot{ID: 1}, nil, "tab")
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)

	// The lock must have been released on every error path.
	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		e.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine lock was not released")
	}
}

func TestFetchPricesAssignsIncreasingRevisions(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	e, clock := newTestEngine(t, src)

	var revisions []int64
	for i := 0; i < 3; i++ {
		clock.Set(t0.Add(time.Duration(i) * time.Minute))
		rev, err := e.FetchPrices(ctx)
		require.NoError(t, err)
		revisions = append(revisions, rev)

		src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: float64(160 + i)})
	}
	require.Equal(t, []int64{1, 2, 3}, revisions)

	first, err := e.db.ListPrices(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 150.0, first[0].Price)
	require.Equal(t, int64(1), first[0].Revision)
	require.Equal(t, t0, first[0].Timestamp)

	require.Equal(t, []string{
		"Standard/Currency", "Standard/UniqueArmour",
		"Standard/Currency", "Standard/UniqueArmour",
		"Standard/Currency", "Standard/UniqueArmour",
	}, src.calls)
}

func TestFetchPricesFlagsSixLinks(t *testing.T) {
	ctx := context.Background()
	five, six := 5, 6
	src := newFakeSource()
	src.set("Standard", "UniqueArmour",
		market.Line{Name: "Tabula Rasa", UnitPrice: 10, Links: &six},
		market.Line{Name: "Belly of the Beast", UnitPrice: 2, Links: &five},
		market.Line{Name: "Kaom's Heart", UnitPrice: 30},
	)
	e, _ := newTestEngine(t, src)

	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)

	prices, err := e.db.ListPrices(ctx, 1)
	require.NoError(t, err)
	linked := map[string]bool{}
	for _, p := range prices {
		linked[p.Name] = p.FullyLinked
		require.Equal(t, "UniqueArmour", p.Category)
	}
	require.Equal(t, map[string]bool{"Tabula Rasa": true, "Belly of the Beast": false, "Kaom's Heart": false}, linked)
}

func TestFetchPricesNetworkFailureKeepsEarlierDocuments(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	src.fail["Standard/UniqueArmour"] = errors.New("connection reset")
	e, _ := newTestEngine(t, src)

	_, err := e.FetchPrices(ctx)
	require.Error(t, err)
	require.Equal(t, KindNetwork, KindOf(err))
	require.Contains(t, err.Error(), "connection reset")

	partial, err := e.db.ListPrices(ctx, 1)
	require.NoError(t, err)
	require.Len(t, partial, 1)

	delete(src.fail, "Standard/UniqueArmour")
	rev, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), rev)
}

func TestHasRecentPricesBoundary(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	e, clock := newTestEngine(t, src)

	recent, err := e.HasRecentPrices(ctx)
	require.NoError(t, err)
	require.False(t, recent, "empty catalog is never recent")

	_, err = e.FetchPrices(ctx)
	require.NoError(t, err)

	tests := []struct {
		age  time.Duration
		want bool
	}{
		{0, true},
		{59 * time.Minute, true},
		{time.Hour, true},
		{time.Hour + time.Second, false},
		{24 * time.Hour, false},
	}
	for _, tt := range tests {
		clock.Set(t0.Add(tt.age))
		got, err := e.HasRecentPrices(ctx)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "age %s", tt.age)
	}
}

func TestNewSnapshotOnEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, newFakeSource())
	p := seedProfile(t, e, "Standard")

	_, err := e.NewSnapshot(ctx, p.ID)
	require.Error(t, err)
	require.Equal(t, KindStore, KindOf(err))
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestNewSnapshotBindsRevisionReadBeforeConcurrentIngest(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")

	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)

	// Another process appends revision 2 between the binder's read and its
	// insert.
	e.afterRevisionRead = func() {
		err := e.db.InsertPrices(ctx, 2, "Standard", "Currency", t0, []storage.Observation{{Name: "Divine Orb", Price: 200}})
		require.NoError(t, err)
	}
	snap, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), snap.PricingRevision)

	latest, _, err := e.db.MaxRevision(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), latest)
}

func TestEndToEndValuation(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency",
		market.Line{Name: "Chaos Orb", UnitPrice: 1},
		market.Line{Name: "Divine Orb", UnitPrice: 150},
	)
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")

	rev, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), rev)

	snap, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), snap.PricingRevision)
	require.Zero(t, snap.Value)

	items := []inventory.Item{
		item(`{"name":"Chaos Orb","typeLine":"Chaos Orb","stackSize":10}`),
		item(`{"name":"Unknown Item","typeLine":"Iron Ring","stackSize":1}`),
	}
	total, err := e.AddItemsToSnapshot(ctx, snap, items, "tab1")
	require.NoError(t, err)
	require.Equal(t, 10.0, total)

	v, err := e.SnapshotValuation(ctx, snap)
	require.NoError(t, err)
	require.Equal(t, 10.0, v.TotalChaos)
	require.Equal(t, 150.0, v.DivinePrice)
	require.InDelta(t, 10.0/150.0, v.TotalDivine, 1e-9)
	require.Len(t, v.Items, 2)
	require.Equal(t, 10.0, v.Items[0].Price)
	require.Equal(t, 1.0, v.Items[0].UnitPrice)
	require.Equal(t, 0.0, v.Items[1].Price)
	require.Equal(t, "tab1", v.Items[1].StashID)

	stored, err := e.SnapshotFetchItems(ctx, snap)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.JSONEq(t, string(items[0].Raw()), string(stored[0].Raw()))
}

func TestChaosOrbIsAlwaysPinned(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency",
		market.Line{Name: "Chaos Orb", UnitPrice: 7.5},
		market.Line{Name: "Divine Orb", UnitPrice: 150},
	)
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")

	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	snap, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)

	total, err := e.AddItemsToSnapshot(ctx, snap, []inventory.Item{item(`{"typeLine":"Chaos Orb","stackSize":3}`)}, "tab1")
	require.NoError(t, err)
	require.Equal(t, 3.0, total)

	price, err := e.CheckPrice(ctx, "Chaos Orb")
	require.NoError(t, err)
	require.Equal(t, 1.0, price)

	// Also without any catalog row for it.
	other := seedProfile(t, e, "Hardcore")
	snap, err = e.NewSnapshot(ctx, other.ID)
	require.NoError(t, err)
	total, err = e.AddItemsToSnapshot(ctx, snap, []inventory.Item{item(`{"typeLine":"Chaos Orb","stackSize":4}`)}, "tab1")
	require.NoError(t, err)
	require.Equal(t, 4.0, total)
}

func TestLineValueStacking(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency",
		market.Line{Name: "Divine Orb", UnitPrice: 150},
		market.Line{Name: "Orb of Alteration", UnitPrice: 0.1},
	)
	src.set("Standard", "UniqueArmour", market.Line{Name: "Tabula Rasa", UnitPrice: 12.5})
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")
	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)

	tests := []struct {
		raw  string
		unit float64
		qty  int64
	}{
		{`{"typeLine":"Divine Orb","stackSize":4}`, 150, 4},
		{`{"typeLine":"Divine Orb","stackSize":1}`, 150, 1},
		{`{"typeLine":"Divine Orb"}`, 150, 1},
		{`{"typeLine":"Divine Orb","stackSize":0}`, 150, 1},
		{`{"typeLine":"Orb of Alteration","stackSize":3}`, 0.1, 3},
		{`{"name":"Tabula Rasa","typeLine":"Simple Robe"}`, 12.5, 1},
		{`{"name":"","typeLine":"Unpriced Thing","stackSize":40}`, 0, 40},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			// Computed at run time so the product is rounded like the
			// engine's, e.g. 0.1*3 == 0.30000000000000004.
			want := tt.unit * float64(tt.qty)

			snap, err := e.NewSnapshot(ctx, p.ID)
			require.NoError(t, err)
			total, err := e.AddItemsToSnapshot(ctx, snap, []inventory.Item{item(tt.raw)}, "tab1")
			require.NoError(t, err)
			require.Equal(t, want, total)

			rows, err := e.db.ListItems(ctx, snap.ID)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			require.Equal(t, want, rows[0].Value)
		})
	}
}

func TestValuationIsReproducibleAcrossLaterRevisions(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	src.set("Standard", "UniqueArmour", market.Line{Name: "Tabula Rasa", UnitPrice: 12})
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")

	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	snap, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)

	items := []inventory.Item{
		item(`{"typeLine":"Divine Orb","stackSize":2}`),
		item(`{"name":"Tabula Rasa","typeLine":"Simple Robe"}`),
	}
	first, err := e.AddItemsToSnapshot(ctx, snap, items, "tab1")
	require.NoError(t, err)
	require.Equal(t, 312.0, first)

	for i := 0; i < 3; i++ {
		src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: float64(200 + i)})
		src.set("Standard", "UniqueArmour", market.Line{Name: "Tabula Rasa", UnitPrice: float64(50 + i)})
		_, err := e.FetchPrices(ctx)
		require.NoError(t, err)

		again, err := e.AddItemsToSnapshot(ctx, snap, items, "tab1")
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	// Re-valuation appends rows rather than replacing them.
	rows, err := e.db.ListItems(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, rows, 8)
}

func TestSnapshotValuationWithoutDivinePrice(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "UniqueArmour", market.Line{Name: "Tabula Rasa", UnitPrice: 12})
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")

	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	snap, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)

	// Missing prices are zero while valuing items ...
	total, err := e.AddItemsToSnapshot(ctx, snap, []inventory.Item{item(`{"typeLine":"Divine Orb"}`)}, "tab1")
	require.NoError(t, err)
	require.Zero(t, total)

	// ... but an error when converting to divines.
	_, err = e.SnapshotValuation(ctx, snap)
	require.Error(t, err)
	require.Equal(t, KindStore, KindOf(err))
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAddItemsToUnknownSnapshot(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, newFakeSource())

	_, err := e.AddItemsToSnapshot(ctx, storage.Snapshot{ID: 42, ProfileID: 99, PricingRevision: 1}, []inventory.Item{item(`{"typeLine":"Chaos Orb"}`)}, "tab1")
	require.Error(t, err)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAddItemsUsesStoredBinding(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")
	other := seedProfile(t, e, "Hardcore")

	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	snap, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)

	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 300})
	_, err = e.FetchPrices(ctx)
	require.NoError(t, err)

	// A stale or edited copy must not re-bind the snapshot.
	edited := snap
	edited.PricingRevision = 2
	edited.ProfileID = other.ID
	total, err := e.AddItemsToSnapshot(ctx, edited, []inventory.Item{item(`{"typeLine":"Divine Orb"}`)}, "tab1")
	require.NoError(t, err)
	require.Equal(t, 150.0, total)

	stored, err := e.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.PricingRevision)
	require.Equal(t, p.ID, stored.ProfileID)
}

func TestFailedValuationKeepsPreviousTotal(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")

	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	snap, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)

	total, err := e.AddItemsToSnapshot(ctx, snap, []inventory.Item{item(`{"typeLine":"Divine Orb","stackSize":2}`)}, "tab1")
	require.NoError(t, err)
	require.Equal(t, 300.0, total)

	// Make the total update fail after the item rows went in.
	raw, err := sql.Open("sqlite", e.db.Path())
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TRIGGER reject_total BEFORE UPDATE OF value ON snapshots BEGIN SELECT RAISE(ABORT, 'total rejected'); END`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = e.AddItemsToSnapshot(ctx, snap, []inventory.Item{
		item(`{"typeLine":"Divine Orb"}`),
		item(`{"typeLine":"Chaos Orb","stackSize":5}`),
	}, "tab2")
	require.Error(t, err)
	require.Equal(t, KindStore, KindOf(err))
	require.Contains(t, err.Error(), "total rejected")

	value, err := e.db.SnapshotValue(ctx, snap.ID)
	require.NoError(t, err)
	require.Equal(t, 300.0, value)

	rows, err := e.db.ListItems(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "tab1", rows[0].StashID)
}

func TestSnapshotBookkeeping(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")
	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)

	a, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)
	b, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, e.SnapshotSetValue(ctx, a, 1234))
	got, err := e.GetSnapshot(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 1234.0, got.Value)

	snaps, err := e.ListSnapshots(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, a.ID, snaps[0].ID)

	require.NoError(t, e.DeleteSnapshot(ctx, a.ID))
	snaps, err = e.ListSnapshots(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, b.ID, snaps[0].ID)
}

func TestCheckPrice(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	e, _ := newTestEngine(t, src)

	_, err := e.CheckPrice(ctx, "Divine Orb")
	require.ErrorIs(t, err, sql.ErrNoRows)

	_, err = e.FetchPrices(ctx)
	require.NoError(t, err)
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 175})
	_, err = e.FetchPrices(ctx)
	require.NoError(t, err)

	price, err := e.CheckPrice(ctx, "Divine Orb")
	require.NoError(t, err)
	require.Equal(t, 175.0, price)
}

func TestConcurrentValuationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	e, _ := newTestEngine(t, src)
	p := seedProfile(t, e, "Standard")
	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	snap, err := e.NewSnapshot(ctx, p.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.AddItemsToSnapshot(ctx, snap, []inventory.Item{item(`{"typeLine":"Divine Orb"}`)}, fmt.Sprintf("tab%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	items, err := e.SnapshotFetchItems(ctx, snap)
	require.NoError(t, err)
	require.Len(t, items, 10)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.set("Standard", "Currency", market.Line{Name: "Divine Orb", UnitPrice: 150})
	e, _ := newTestEngine(t, src)

	_, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	require.NoError(t, e.Reset(ctx))

	recent, err := e.HasRecentPrices(ctx)
	require.NoError(t, err)
	require.False(t, recent)

	rev, err := e.FetchPrices(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), rev)
}

func TestPricingLeaguesDefaultsToTargets(t *testing.T) {
	e := New(Config{Targets: market.BuildTargets([]string{"Standard", "Ancestor"}, []string{"Currency"}, []string{"Oil"})})
	require.Equal(t, []string{"Standard", "Ancestor"}, e.PricingLeagues())
}
