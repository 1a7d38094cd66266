// Package ranking scores and orders catalog items into mood and seed based playlists.
//
// Everything in this package is a pure function of its inputs: nothing is cached,
// no input item is modified, and every function is safe for concurrent use.
package ranking

import "strings"

// Item is the subset of a catalog item that the scoring functions read.
// Items are owned by the catalog; this package never mutates them.
type Item struct {
	ID     string
	Name   string
	Type   string // movie, episode, track, ...
	Artist string // Tracks only, used for genre enrichment
	Genres []string
	// Optional fields (nil when the catalog does not provide them)
	ProductionYear *int
	RuntimeTicks   *int64 // 100ns units
}

// Minutes returns the item's runtime in float minutes, or 0 without a runtime.
func (i Item) Minutes() float64 {
	if i.RuntimeTicks == nil {
		return 0
	}
	return float64(*i.RuntimeTicks) / TicksPerMinute
}

// genreSet returns the distinct, normalized genres of an item.
func genreSet(genres []string) map[string]struct{} {
	set := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		if key := normalizeGenre(g); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// normalizeGenre lowercases and trims a genre tag so "Rock" and " rock" compare equal.
func normalizeGenre(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}
