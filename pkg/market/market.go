// Package market fetches price overviews from a poe.ninja compatible
// market-data API.
package market

import (
	"context"
)

// Kind selects which overview endpoint and line shape a category uses.
type Kind int

const (
	KindCurrency Kind = iota
	KindItem
)

func (k Kind) String() string {
	switch k {
	case KindCurrency:
		return "currency"
	case KindItem:
		return "item"
	}
	return "unknown"
}

// Category is one overview document type, e.g. "Currency" or "UniqueWeapon".
type Category struct {
	Name string
	Kind Kind
}

// Target is one (league, category) pair to ingest.
type Target struct {
	League   string
	Category Category
}

// Line is a single priced entry of an overview document.
type Line struct {
	Name      string
	UnitPrice float64
	// Links is nil when the upstream did not report a link count.
	Links *int
}

// FullyLinked reports whether the line describes a six-link item.
func (l Line) FullyLinked() bool {
	return l.Links != nil && *l.Links == 6
}

// Source abstracts the upstream so the ingestion pipeline can be driven by a
// fake in tests.
type Source interface {
	FetchLines(ctx context.Context, league string, category Category) ([]Line, error)
}

var (
	DefaultLeagues            = []string{"Standard", "Ancestor"}
	DefaultCurrencyCategories = []string{"Currency", "Fragment"}
	DefaultItemCategories     = []string{
		"DivinationCard",
		"Artifact",
		"Oil",
		"Incubator",
		"UniqueWeapon",
		"UniqueArmour",
		"UniqueAccessory",
		"UniqueFlask",
		"UniqueJewel",
		"UniqueMap",
		"DeliriumOrb",
		"Invitation",
		"Scarab",
		"Fossil",
		"Resonator",
		"Beast",
		"Essence",
		"Vial",
	}
)

// BuildTargets expands leagues × categories in fetch order: for each league,
// currency categories first, then item categories.
func BuildTargets(leagues, currencyCategories, itemCategories []string) []Target {
	targets := make([]Target, 0, len(leagues)*(len(currencyCategories)+len(itemCategories)))
	for _, l := range leagues {
		for _, c := range currencyCategories {
			targets = append(targets, Target{League: l, Category: Category{Name: c, Kind: KindCurrency}})
		}
		for _, c := range itemCategories {
			targets = append(targets, Target{League: l, Category: Category{Name: c, Kind: KindItem}})
		}
	}
	return targets
}
