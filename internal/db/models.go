package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// Catalog sources.
const (
	SourceJellyfin = "jellyfin"
	SourceSpotify  = "spotify"
)

// Item is a synced catalog entry.
type Item struct {
	Source         string
	ID             string
	Name           string
	Type           string
	Artist         string
	Genres         []string
	ProductionYear *int   // nullable
	RuntimeTicks   *int64 // nullable
	SyncedAt       time.Time
}

// ItemFromRanking wraps a ranking item for storage under source.
func ItemFromRanking(source string, it ranking.Item) Item {
	genres := it.Genres
	if genres == nil {
		genres = []string{}
	}
	return Item{
		Source:         source,
		ID:             it.ID,
		Name:           it.Name,
		Type:           it.Type,
		Artist:         it.Artist,
		Genres:         genres,
		ProductionYear: it.ProductionYear,
		RuntimeTicks:   it.RuntimeTicks,
	}
}

// Ranking converts a stored item back to the scoring model.
func (i Item) Ranking() ranking.Item {
	return ranking.Item{
		ID:             i.ID,
		Name:           i.Name,
		Type:           i.Type,
		Artist:         i.Artist,
		Genres:         i.Genres,
		ProductionYear: i.ProductionYear,
		RuntimeTicks:   i.RuntimeTicks,
	}
}

// Library tracks sync state for one catalog source.
type Library struct {
	Source     string
	ItemCount  int
	LastSyncAt *time.Time // nullable
}

// Mix is a persisted, ranked playlist.
type Mix struct {
	ID            uuid.UUID
	Name          string
	Source        string
	Mood          string
	MoodMode      string
	SeedID        *string // nullable
	TargetMinutes float64
	TotalMinutes  float64
	ItemCount     int
	ExportTarget  *string // nullable - set once exported
	PlaylistID    *string // nullable - remote playlist ID once exported
	CreatedAt     time.Time
}

// Exported reports whether the mix has been pushed to a remote playlist.
func (m Mix) Exported() bool {
	return m.PlaylistID != nil && *m.PlaylistID != ""
}

// MixItem is one ranked entry of a mix. Item fields are snapshotted so a
// mix survives its items disappearing from the catalog.
type MixItem struct {
	MixID        uuid.UUID
	Position     int
	ItemID       string
	Name         string
	Type         string
	Artist       string
	RuntimeTicks *int64 // nullable
	Score        float64
	MoodMatches  int
}

// Minutes returns the entry runtime in float minutes.
func (m MixItem) Minutes() float64 {
	return ranking.Item{RuntimeTicks: m.RuntimeTicks}.Minutes()
}

// CachedTag is one cached genre tag with its popularity weight.
type CachedTag struct {
	Name  string
	Count int
}

// GenreCacheEntry holds the tags fetched for an artist/track pair.
type GenreCacheEntry struct {
	Artist    string
	Track     string
	Tags      []CachedTag
	FetchedAt time.Time
}
