package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous from 1")
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, strings.TrimSpace(m.Up))
		assert.NotEmpty(t, strings.TrimSpace(m.Down))
	}

	first := migrations[0]
	assert.Equal(t, "init", first.Name)
	for _, table := range []string{"items", "libraries", "mixes", "mix_items", "genre_cache"} {
		assert.Contains(t, first.Up, "CREATE TABLE "+table+" ")
		assert.Contains(t, first.Down, "DROP TABLE IF EXISTS "+table+";")
	}
}

func TestItemRankingRoundTrip(t *testing.T) {
	year := 1999
	ticks := int64(3 * ranking.TicksPerMinute)
	src := ranking.Item{
		ID:             "a1",
		Name:           "Windowlicker",
		Type:           "track",
		Artist:         "Aphex Twin",
		Genres:         []string{"Electronic"},
		ProductionYear: &year,
		RuntimeTicks:   &ticks,
	}

	stored := ItemFromRanking(SourceJellyfin, src)
	assert.Equal(t, SourceJellyfin, stored.Source)
	assert.Equal(t, src, stored.Ranking())
}

func TestItemFromRankingNilGenres(t *testing.T) {
	stored := ItemFromRanking(SourceSpotify, ranking.Item{ID: "x"})
	assert.NotNil(t, stored.Genres)
	assert.Empty(t, stored.Genres)
}

func TestMixExported(t *testing.T) {
	empty := ""
	id := "pl-1"

	assert.False(t, Mix{}.Exported())
	assert.False(t, Mix{PlaylistID: &empty}.Exported())
	assert.True(t, Mix{PlaylistID: &id}.Exported())
}

func TestMixItemMinutes(t *testing.T) {
	ticks := int64(90 * ranking.TicksPerMinute)
	assert.InDelta(t, 90.0, MixItem{RuntimeTicks: &ticks}.Minutes(), 1e-9)
	assert.Zero(t, MixItem{}.Minutes())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "massive attack", cacheKey("  Massive Attack "))
}
