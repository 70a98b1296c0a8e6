package storage

import (
	"encoding/json"
	"time"
)

// Price is a single market observation. Rows are never updated once written.
type Price struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Revision    int64     `json:"revision"`
	FullyLinked bool      `json:"fullyLinked"`
	Timestamp   time.Time `json:"timestamp"`
	League      string    `json:"league"`
	Category    string    `json:"category"`
}

// Snapshot is a point-in-time record of a profile's inventory, bound to one
// pricing revision for its whole life.
type Snapshot struct {
	ID              int64     `json:"id"`
	ProfileID       int64     `json:"profileId"`
	Timestamp       time.Time `json:"timestamp"`
	PricingRevision int64     `json:"pricingRevision"`
	Value           float64   `json:"value"`
}

// ItemRow is a persisted inventory item. Data holds the raw item document.
type ItemRow struct {
	ID         int64           `json:"id"`
	SnapshotID int64           `json:"snapshotId"`
	StashID    string          `json:"stashId"`
	Data       json.RawMessage `json:"data"`
	Value      float64         `json:"value"`
}

type Profile struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LeagueID      string `json:"leagueId"`
	PricingLeague string `json:"pricingLeague"`
}

// ProfileWithStashes pairs a profile with the stash ids associated to it.
type ProfileWithStashes struct {
	Profile Profile  `json:"profile"`
	Stashes []string `json:"stashes"`
}

type Stash struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	League string `json:"league"`
}

// Observation is a light wrapper for building price rows.
type Observation struct {
	Name        string
	Price       float64
	FullyLinked bool
}

// RevisionStats summarizes one revision of the catalog for one league.
type RevisionStats struct {
	Revision  int64     `json:"revision"`
	League    string    `json:"league"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}
