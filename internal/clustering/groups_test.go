package clustering

import (
	"fmt"
	"testing"

	"github.com/muesli/clusters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

func makeItems(prefix string, n int, genres ...string) []ranking.Item {
	items := make([]ranking.Item, n)
	for i := range items {
		runtime := int64(3 * ranking.TicksPerMinute)
		items[i] = ranking.Item{
			ID:           fmt.Sprintf("%s-%d", prefix, i),
			Name:         fmt.Sprintf("%s %d", prefix, i),
			Type:         "track",
			Genres:       genres,
			RuntimeTicks: &runtime,
		}
	}
	return items
}

func countItems(groups []Group, outliers []ranking.Item) int {
	n := len(outliers)
	for _, g := range groups {
		n += len(g.Items)
	}
	return n
}

func TestDetectGroupsEdgeCases(t *testing.T) {
	tests := []struct {
		name         string
		items        []ranking.Item
		cfg          Config
		wantGroups   int
		wantOutliers int
	}{
		{
			name:         "empty input",
			items:        nil,
			cfg:          DefaultConfig(),
			wantGroups:   0,
			wantOutliers: 0,
		},
		{
			name:         "items without genres are outliers",
			items:        makeItems("bare", 6),
			cfg:          DefaultConfig(),
			wantGroups:   0,
			wantOutliers: 6,
		},
		{
			name:         "fewer items than clusters",
			items:        makeItems("jazz", 2, "Jazz"),
			cfg:          Config{NumClusters: 3, MinGroupSize: 1},
			wantGroups:   0,
			wantOutliers: 2,
		},
		{
			name:         "blank genres count as none",
			items:        makeItems("blank", 4, " ", ""),
			cfg:          Config{NumClusters: 1, MinGroupSize: 1},
			wantGroups:   0,
			wantOutliers: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, outliers := DetectGroups(tt.items, tt.cfg)
			assert.Len(t, groups, tt.wantGroups)
			assert.Len(t, outliers, tt.wantOutliers)
		})
	}
}

func TestDetectGroupsSingleCluster(t *testing.T) {
	items := makeItems("jazz", 5, "Jazz", "Ambient")

	groups, outliers := DetectGroups(items, Config{NumClusters: 1, MinGroupSize: 3})

	require.Len(t, groups, 1)
	assert.Empty(t, outliers)

	g := groups[0]
	assert.Equal(t, ranking.MoodChill, g.Mood)
	assert.ElementsMatch(t, []string{"jazz", "ambient"}, g.TopGenres)
	assert.Len(t, g.Items, 5)
	assert.InDelta(t, 15.0, g.Minutes, 1e-9)
	assert.Equal(t, "15m", g.Duration())

	// Members keep library order
	for i, item := range g.Items {
		assert.Equal(t, fmt.Sprintf("jazz-%d", i), item.ID)
	}
}

func TestDetectGroupsConservesItems(t *testing.T) {
	var items []ranking.Item
	items = append(items, makeItems("jazz", 6, "Jazz", "Lo-Fi")...)
	items = append(items, makeItems("metal", 6, "Metal", "Horror")...)
	items = append(items, makeItems("bare", 2)...)

	groups, outliers := DetectGroups(items, Config{NumClusters: 2, MinGroupSize: 2})

	assert.Equal(t, len(items), countItems(groups, outliers))
	for i := 1; i < len(groups); i++ {
		assert.GreaterOrEqual(t, len(groups[i-1].Items), len(groups[i].Items))
	}
}

func TestDetectGroupsSmallClustersBecomeOutliers(t *testing.T) {
	items := makeItems("pop", 4, "Pop")

	groups, outliers := DetectGroups(items, Config{NumClusters: 1, MinGroupSize: 10})

	assert.Empty(t, groups)
	assert.Len(t, outliers, 4)
}

func TestBuildGenreVocabulary(t *testing.T) {
	items := []ranking.Item{
		{Genres: []string{"Rock", "rock", "Pop"}},
		{Genres: []string{"Rock", "Jazz"}},
		{Genres: []string{"Pop", "Rock"}},
	}

	vocab := buildGenreVocabulary(items, []int{0, 1, 2}, 10)
	assert.Equal(t, []string{"rock", "pop", "jazz"}, vocab)

	vocab = buildGenreVocabulary(items, []int{0, 1, 2}, 2)
	assert.Equal(t, []string{"rock", "pop"}, vocab)
}

func TestBuildGenreVector(t *testing.T) {
	vocab := []string{"rock", "pop", "jazz"}
	item := ranking.Item{Genres: []string{"Jazz", "Rock", "Polka"}}

	vector := buildGenreVector(item, vocab)

	assert.Equal(t, clusters.Coordinates{1, 0, 1}, vector)
}

func TestExtractTopGenres(t *testing.T) {
	vocab := []string{"rock", "pop", "jazz", "metal"}

	tests := []struct {
		name     string
		centroid clusters.Coordinates
		n        int
		want     []string
	}{
		{"ordered by weight", clusters.Coordinates{0.2, 0.9, 0.5, 0.1}, 3, []string{"pop", "jazz", "rock"}},
		{"zero weights skipped", clusters.Coordinates{0, 0.4, 0, 0}, 3, []string{"pop"}},
		{"empty centroid", nil, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTopGenres(tt.centroid, vocab, tt.n))
		})
	}
}

func TestDetectGroupsDoesNotMutateInput(t *testing.T) {
	items := makeItems("jazz", 4, "Jazz")
	items[0].Genres = []string{"Jazz", "JAZZ"}

	_, _ = DetectGroups(items, Config{NumClusters: 1, MinGroupSize: 1})

	assert.Equal(t, []string{"Jazz", "JAZZ"}, items[0].Genres)
	assert.Equal(t, "jazz-0", items[0].ID)
}
