package clustering

import (
	"fmt"
	"strings"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// NearestMood returns the mood whose genre profile shares the most genres with
// the given list. Ties go to the mood listed first in ranking.Moods; an empty
// mood means nothing overlaps.
func NearestMood(genres []string) ranking.Mood {
	sample := ranking.Item{Genres: genres}

	var best ranking.Mood
	bestMatches := 0
	for _, m := range ranking.Moods() {
		if n := ranking.MoodMatches(sample, m); n > bestMatches {
			best = m
			bestMatches = n
		}
	}
	return best
}

// groupName builds a label such as "Chill: jazz & ambient" from a mood and its top genres.
func groupName(mood ranking.Mood, topGenres []string) string {
	prefix := "Mixed"
	if mood != "" {
		prefix = mood.Title()
	}

	if len(topGenres) == 0 {
		return prefix
	}
	return fmt.Sprintf("%s: %s", prefix, strings.Join(topGenres, " & "))
}
