package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoodGenres(t *testing.T) {
	for _, m := range Moods() {
		t.Run(string(m), func(t *testing.T) {
			genres := MoodGenres(m)
			assert.GreaterOrEqual(t, len(genres), 3)
			assert.LessOrEqual(t, len(genres), 4)
		})
	}
}

func TestMoodGenresUnknown(t *testing.T) {
	genres := MoodGenres("brooding")
	require.NotNil(t, genres)
	assert.Empty(t, genres)

	assert.Empty(t, MoodGenres(""))
}

func TestMoodGenresReturnsCopy(t *testing.T) {
	genres := MoodGenres(MoodChill)
	genres[0] = "Polka"

	assert.Equal(t, "Ambient", MoodGenres(MoodChill)[0])
}

func TestMoodsReturnsCopy(t *testing.T) {
	moods := Moods()
	moods[0] = "changed"

	assert.Equal(t, MoodChill, Moods()[0])
}

func TestParseMood(t *testing.T) {
	tests := []struct {
		in     string
		want   Mood
		wantOK bool
	}{
		{"chill", MoodChill, true},
		{"  Energetic ", MoodEnergetic, true},
		{"DARK", MoodDark, true},
		{"", "", false},
		{"grumpy", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMood(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoodMatches(t *testing.T) {
	item := Item{Genres: []string{"jazz", "Ambient", "Rock", "Jazz"}}

	assert.Equal(t, 2, MoodMatches(item, MoodChill))
	assert.Equal(t, 1, MoodMatches(item, MoodEnergetic))
	assert.Equal(t, 0, MoodMatches(item, MoodDark))
	assert.Equal(t, 0, MoodMatches(item, "unknown"))
}

func TestMoodTitle(t *testing.T) {
	assert.Equal(t, "Chill", MoodChill.Title())
	assert.Equal(t, "", Mood("").Title())
}
