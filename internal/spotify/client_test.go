package spotify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/")))
}

func TestConvertTrack(t *testing.T) {
	year := 1959
	runtime := int64(545_000 * ticksPerMillisecond)

	tests := []struct {
		name  string
		saved spotify.SavedTrack
		want  ranking.Item
	}{
		{
			name: "full metadata",
			saved: spotify.SavedTrack{
				AddedAt: "2024-01-15T10:30:00Z",
				FullTrack: spotify.FullTrack{
					SimpleTrack: spotify.SimpleTrack{
						ID:       "track123",
						Name:     "So What",
						Duration: 545_000,
						Artists: []spotify.SimpleArtist{
							{Name: "Miles Davis", ID: "ar1"},
							{Name: "John Coltrane", ID: "ar2"},
						},
					},
					Album: spotify.SimpleAlbum{ReleaseDate: "1959-08-17"},
				},
			},
			want: ranking.Item{
				ID:             "track123",
				Name:           "So What",
				Type:           "track",
				Artist:         "Miles Davis",
				ProductionYear: &year,
				RuntimeTicks:   &runtime,
			},
		},
		{
			name: "no artists or album",
			saved: spotify.SavedTrack{
				FullTrack: spotify.FullTrack{
					SimpleTrack: spotify.SimpleTrack{
						ID:   "track000",
						Name: "Unknown Track",
					},
				},
			},
			want: ranking.Item{
				ID:   "track000",
				Name: "Unknown Track",
				Type: "track",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertTrack(tt.saved))
		})
	}
}

func TestReleaseYear(t *testing.T) {
	tests := []struct {
		date string
		want int
		ok   bool
	}{
		{"2006-03-14", 2006, true},
		{"2006-03", 2006, true},
		{"1987", 1987, true},
		{"", 0, false},
		{"87", 0, false},
		{"0000", 0, false},
		{"abcd-01-01", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			got := releaseYear(tt.date)
			if !tt.ok {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestMergeGenres(t *testing.T) {
	genres := map[spotify.ID][]string{
		"ar1": {"jazz", "bebop"},
		"ar2": {"Jazz", "hard bop", " "},
	}

	assert.Equal(t, []string{"jazz", "bebop", "hard bop"}, mergeGenres([]spotify.ID{"ar1", "ar2"}, genres))
	assert.Nil(t, mergeGenres([]spotify.ID{"unknown"}, genres))
	assert.Nil(t, mergeGenres(nil, genres))
}

func TestUniqueIDs(t *testing.T) {
	got := uniqueIDs([][]spotify.ID{{"a", "b"}, {"b", "c"}, nil, {"a"}})
	assert.Equal(t, []spotify.ID{"a", "b", "c"}, got)
}

const likedSongsJSON = `{
	"items": [
		{
			"added_at": "2024-01-15T10:30:00Z",
			"track": {
				"id": "t1",
				"name": "So What",
				"duration_ms": 545000,
				"artists": [{"id": "ar1", "name": "Miles Davis"}],
				"album": {"name": "Kind of Blue", "release_date": "1959-08-17"}
			}
		},
		{
			"added_at": "2024-01-16T10:30:00Z",
			"track": {
				"id": "t2",
				"name": "Unknown",
				"duration_ms": 180000,
				"artists": [{"id": "ar9", "name": "Nobody"}],
				"album": {"name": "Demo", "release_date": "2020"}
			}
		}
	],
	"limit": 50,
	"offset": 0,
	"total": 2,
	"next": null
}`

func TestFetchAllItems(t *testing.T) {
	var artistQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me/tracks", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, likedSongsJSON)
	})
	mux.HandleFunc("GET /artists", func(w http.ResponseWriter, r *http.Request) {
		artistQuery = r.URL.Query().Get("ids")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"artists": [{"id": "ar1", "name": "Miles Davis", "genres": ["jazz", "bebop"]}, null]}`)
	})

	c := newTestClient(t, mux)
	items, err := c.FetchAllItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "ar1,ar9", artistQuery)

	assert.Equal(t, "t1", items[0].ID)
	assert.Equal(t, "Miles Davis", items[0].Artist)
	assert.Equal(t, []string{"jazz", "bebop"}, items[0].Genres)
	require.NotNil(t, items[0].ProductionYear)
	assert.Equal(t, 1959, *items[0].ProductionYear)
	assert.InDelta(t, 9.0833, items[0].Minutes(), 1e-3)

	// No artist genres leaves the track for Last.fm enrichment
	assert.Empty(t, items[1].Genres)
	assert.InDelta(t, 3.0, items[1].Minutes(), 1e-9)
}

func TestFetchAllItemsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me/tracks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error": {"status": 403, "message": "Insufficient client scope"}}`)
	})

	c := newTestClient(t, mux)
	_, err := c.FetchAllItems(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching liked songs")
}

func TestCreatePlaylist(t *testing.T) {
	var (
		mu      sync.Mutex
		batches []int
		created string
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "user1", "display_name": "User"}`)
	})
	mux.HandleFunc("POST /users/user1/playlists", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		created = string(body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": "pl1", "name": "Chill mix"}`)
	})
	mux.HandleFunc("POST /playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		batches = append(batches, strings.Count(string(body), "spotify:track:"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"snapshot_id": "snap"}`)
	})

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = "track"
	}

	c := newTestClient(t, mux)
	playlistID, err := c.CreatePlaylist(context.Background(), "Chill mix", ids)
	require.NoError(t, err)

	assert.Equal(t, "pl1", playlistID)
	assert.Contains(t, created, `"name":"Chill mix"`)
	assert.Contains(t, created, `"public":false`)
	assert.Equal(t, []int{100, 100, 50}, batches)
}

func TestCreatePlaylistRemovesIncompletePlaylist(t *testing.T) {
	var unfollowed atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "user1"}`)
	})
	mux.HandleFunc("POST /users/user1/playlists", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": "pl1"}`)
	})
	mux.HandleFunc("POST /playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"status": 400, "message": "Invalid track uri"}}`)
	})
	mux.HandleFunc("DELETE /playlists/pl1/followers", func(w http.ResponseWriter, r *http.Request) {
		unfollowed.Store(true)
	})

	c := newTestClient(t, mux)
	_, err := c.CreatePlaylist(context.Background(), "Dark mix", []string{"a", "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "adding tracks 1-2 of 2")
	assert.True(t, unfollowed.Load())
}
