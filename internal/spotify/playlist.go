package spotify

import (
	"context"
	"fmt"
	"slices"

	"github.com/zmb3/spotify/v2"
)

const (
	maxTracksPerRequest = 100
	playlistDescription = "Generated by mood-mixer"
)

// CreatePlaylist exports a mix as a private playlist of the current user,
// keeping the order of trackIDs. A playlist left half filled by a failed
// batch is unfollowed again.
func (c *Client) CreatePlaylist(ctx context.Context, name string, trackIDs []string) (string, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return "", err
	}

	playlist, err := c.api.CreatePlaylistForUser(ctx, userID, name, playlistDescription, false, false)
	if err != nil {
		return "", fmt.Errorf("creating playlist: %w", err)
	}

	if err := c.addTracks(ctx, playlist.ID, trackIDs); err != nil {
		if uerr := c.api.UnfollowPlaylist(ctx, playlist.ID); uerr != nil {
			c.log.Warn().Err(uerr).Str("playlist_id", playlist.ID.String()).Msg("removing incomplete playlist")
		}
		return "", err
	}

	c.log.Info().
		Str("playlist_id", playlist.ID.String()).
		Int("tracks", len(trackIDs)).
		Msg("created spotify playlist")
	return playlist.ID.String(), nil
}

// addTracks appends trackIDs in request-sized batches.
func (c *Client) addTracks(ctx context.Context, playlistID spotify.ID, trackIDs []string) error {
	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	added := 0
	for batch := range slices.Chunk(ids, maxTracksPerRequest) {
		if _, err := c.api.AddTracksToPlaylist(ctx, playlistID, batch...); err != nil {
			return fmt.Errorf("adding tracks %d-%d of %d: %w", added+1, added+len(batch), len(ids), err)
		}
		added += len(batch)
	}
	return nil
}
