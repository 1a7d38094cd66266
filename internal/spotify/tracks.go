package spotify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

const (
	pageSize             = 50 // max liked songs per request
	maxArtistsPerRequest = 50
	ticksPerMillisecond  = 10_000
)

// FetchAllItems retrieves every liked song as a track item. Genres come from
// the track's artists since Spotify does not tag individual tracks.
func (c *Client) FetchAllItems(ctx context.Context) ([]ranking.Item, error) {
	var items []ranking.Item
	var artistIDs [][]spotify.ID

	page, err := c.api.CurrentUsersTracks(ctx, spotify.Limit(pageSize))
	if err != nil {
		return nil, fmt.Errorf("fetching liked songs: %w", err)
	}

	for {
		for _, saved := range page.Tracks {
			items = append(items, convertTrack(saved))
			artistIDs = append(artistIDs, trackArtistIDs(saved))
		}

		c.log.Debug().Int("tracks", len(items)).Msg("fetched liked songs page")

		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetching next page: %w", err)
		}
	}

	genresByArtist, err := c.fetchArtistGenres(ctx, uniqueIDs(artistIDs))
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Genres = mergeGenres(artistIDs[i], genresByArtist)
	}

	c.log.Info().
		Int("tracks", len(items)).
		Int("artists", len(genresByArtist)).
		Msg("fetched liked songs")
	return items, nil
}

// fetchArtistGenres looks up artist genres in batches of 50.
func (c *Client) fetchArtistGenres(ctx context.Context, ids []spotify.ID) (map[spotify.ID][]string, error) {
	genres := make(map[spotify.ID][]string, len(ids))

	for batch := range slices.Chunk(ids, maxArtistsPerRequest) {
		artists, err := c.api.GetArtists(ctx, batch...)
		if err != nil {
			return nil, fmt.Errorf("fetching %d artists: %w", len(batch), err)
		}
		for _, a := range artists {
			// Unknown IDs come back as null entries
			if a == nil {
				continue
			}
			genres[a.ID] = a.Genres
		}
	}

	return genres, nil
}

// convertTrack converts a Spotify SavedTrack to a ranking item.
// The first artist is kept for genre lookups.
func convertTrack(saved spotify.SavedTrack) ranking.Item {
	item := ranking.Item{
		ID:             saved.ID.String(),
		Name:           saved.Name,
		Type:           "track",
		ProductionYear: releaseYear(saved.Album.ReleaseDate),
	}
	if len(saved.Artists) > 0 {
		item.Artist = saved.Artists[0].Name
	}
	if saved.Duration > 0 {
		ticks := int64(saved.Duration) * ticksPerMillisecond
		item.RuntimeTicks = &ticks
	}
	return item
}

// releaseYear parses the year of a "2006", "2006-03" or "2006-03-14" release date.
func releaseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return nil
	}
	return &year
}

func trackArtistIDs(saved spotify.SavedTrack) []spotify.ID {
	ids := make([]spotify.ID, 0, len(saved.Artists))
	for _, a := range saved.Artists {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func uniqueIDs(groups [][]spotify.ID) []spotify.ID {
	seen := make(map[spotify.ID]struct{})
	var ids []spotify.ID
	for _, group := range groups {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// mergeGenres unions the genres of a track's artists, first occurrence wins.
func mergeGenres(artists []spotify.ID, genresByArtist map[spotify.ID][]string) []string {
	seen := make(map[string]struct{})
	var genres []string
	for _, id := range artists {
		for _, g := range genresByArtist[id] {
			key := strings.ToLower(strings.TrimSpace(g))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			genres = append(genres, g)
		}
	}
	return genres
}
