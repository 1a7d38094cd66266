package jellyfin

import (
	"strings"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// Item is a library entry as returned by GET /Items.
type Item struct {
	ID             string   `json:"Id"`
	Name           string   `json:"Name"`
	Type           string   `json:"Type"`
	Genres         []string `json:"Genres"`
	ProductionYear *int     `json:"ProductionYear,omitempty"`
	RunTimeTicks   *int64   `json:"RunTimeTicks,omitempty"`
	AlbumArtist    string   `json:"AlbumArtist,omitempty"`
	Artists        []string `json:"Artists,omitempty"`
}

// ItemsPage is one page of GET /Items.
type ItemsPage struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
	StartIndex       int    `json:"StartIndex"`
}

// ItemQuery selects a page of library items.
type ItemQuery struct {
	StartIndex       int
	Limit            int
	IncludeItemTypes []string
	ParentID         string // Restrict to one library folder
}

// SystemInfo is the subset of GET /System/Info the mixer reports.
type SystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

type createPlaylistRequest struct {
	Name   string   `json:"Name"`
	Ids    []string `json:"Ids"`
	UserID string   `json:"UserId,omitempty"`
}

type createPlaylistResponse struct {
	ID string `json:"Id"`
}

// itemTypes maps Jellyfin item types to ranking discriminators.
var itemTypes = map[string]string{
	"Movie":   "movie",
	"Episode": "episode",
	"Audio":   "track",
}

// NormalizeType maps a Jellyfin item type to the ranking discriminator.
// Unmapped types are lowercased.
func NormalizeType(jellyfinType string) string {
	if t, ok := itemTypes[jellyfinType]; ok {
		return t
	}
	return strings.ToLower(jellyfinType)
}

// ToRankingItem converts a Jellyfin item into the scoring model.
func (i Item) ToRankingItem() ranking.Item {
	artist := i.AlbumArtist
	if artist == "" && len(i.Artists) > 0 {
		artist = i.Artists[0]
	}

	var genres []string
	if len(i.Genres) > 0 {
		genres = make([]string, len(i.Genres))
		copy(genres, i.Genres)
	}

	return ranking.Item{
		ID:             i.ID,
		Name:           i.Name,
		Type:           NormalizeType(i.Type),
		Artist:         artist,
		Genres:         genres,
		ProductionYear: i.ProductionYear,
		RuntimeTicks:   i.RunTimeTicks,
	}
}
