package lastfm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagsBody(tags ...Tag) tagsResponse {
	if tags == nil {
		tags = []Tag{}
	}
	return tagsResponse{TopTags: topTags{Tag: tags}}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(
		Config{APIKey: "test-api-key", RequestsPerSec: 1000},
		WithBaseURL(server.URL+"/"),
		WithHTTPClient(server.Client()),
		WithRetryDelays(time.Millisecond, time.Millisecond, time.Millisecond),
	)
	require.NoError(t, err)
	return client
}

func TestGetTags(t *testing.T) {
	tests := []struct {
		name           string
		trackResponse  any
		artistResponse any
		wantTags       []string
		wantErr        error
	}{
		{
			name: "track has tags",
			trackResponse: tagsBody(
				Tag{Name: "alternative", Count: 100},
				Tag{Name: "rock", Count: 80},
			),
			wantTags: []string{"alternative", "rock"},
		},
		{
			name:           "track empty falls back to artist",
			trackResponse:  tagsBody(),
			artistResponse: tagsBody(Tag{Name: "pop"}, Tag{Name: "dance"}),
			wantTags:       []string{"pop", "dance"},
		},
		{
			name:           "both empty returns empty slice",
			trackResponse:  tagsBody(),
			artistResponse: tagsBody(),
			wantTags:       []string{},
		},
		{
			name:          "invalid API key",
			trackResponse: apiError{Error: 10, Message: "Invalid API key"},
			wantErr:       ErrInvalidAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "test-api-key", r.URL.Query().Get("api_key"))
				assert.Equal(t, "json", r.URL.Query().Get("format"))

				var resp any
				switch r.URL.Query().Get("method") {
				case "track.getTopTags":
					resp = tt.trackResponse
				case "artist.getTopTags":
					resp = tt.artistResponse
				default:
					t.Errorf("unexpected method: %s", r.URL.Query().Get("method"))
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			})

			tags, err := client.GetTags(context.Background(), "Radiohead", "Paranoid Android")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tags)

			names := make([]string, len(tags))
			for i, tag := range tags {
				names[i] = tag.Name
			}
			assert.Equal(t, tt.wantTags, names)
		})
	}
}

func TestGetTagsCaching(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_ = json.NewEncoder(w).Encode(tagsBody(Tag{Name: "rock", Count: 100}))
	})

	for i := 0; i < 3; i++ {
		tags, err := client.GetTags(context.Background(), "Artist", "Track")
		require.NoError(t, err)
		require.Len(t, tags, 1)
	}

	// Cache keys ignore case
	_, err := client.GetTags(context.Background(), "ARTIST", "track")
	require.NoError(t, err)

	assert.EqualValues(t, 1, requests.Load())
}

func TestGetTagsRateLimitRetry(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			_ = json.NewEncoder(w).Encode(apiError{Error: 29, Message: "Rate limit exceeded"})
			return
		}
		_ = json.NewEncoder(w).Encode(tagsBody(Tag{Name: "rock", Count: 100}))
	})

	tags, err := client.GetTags(context.Background(), "Artist", "Track")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "rock", tags[0].Name)
	assert.EqualValues(t, 3, requests.Load())
}

func TestGetTagsRateLimitExhausted(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_ = json.NewEncoder(w).Encode(apiError{Error: 29, Message: "Rate limit exceeded"})
	})

	_, err := client.GetTags(context.Background(), "Artist", "Track")
	assert.ErrorIs(t, err, ErrRateLimited)
	// One initial attempt plus three retries
	assert.EqualValues(t, 4, requests.Load())
}

func TestGetTagsOtherAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(apiError{Error: 6, Message: "Track not found"})
	})

	_, err := client.GetTags(context.Background(), "Artist", "Track")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 6: Track not found")
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	client, err := NewClient(Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "test-key", client.apiKey)
	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.cache)
	assert.Len(t, client.retryDelay, 3)
}
