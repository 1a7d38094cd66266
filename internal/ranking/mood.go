package ranking

import (
	"slices"
	"strings"
)

// Mood is a coarse, user-facing label mapped to a fixed set of genre tags.
type Mood string

// Known moods, in display order.
const (
	MoodChill       Mood = "chill"
	MoodEnergetic   Mood = "energetic"
	MoodHappy       Mood = "happy"
	MoodMelancholic Mood = "melancholic"
	MoodRomantic    Mood = "romantic"
	MoodAdventurous Mood = "adventurous"
	MoodDark        Mood = "dark"
	MoodFocus       Mood = "focus"
)

var moodOrder = []Mood{
	MoodChill,
	MoodEnergetic,
	MoodHappy,
	MoodMelancholic,
	MoodRomantic,
	MoodAdventurous,
	MoodDark,
	MoodFocus,
}

// moodProfiles is read-only after package initialization. Callers only ever
// receive copies through MoodGenres.
var moodProfiles = map[Mood][]string{
	MoodChill:       {"Ambient", "Jazz", "Lo-Fi", "Acoustic"},
	MoodEnergetic:   {"Rock", "Electronic", "Dance", "Hip-Hop"},
	MoodHappy:       {"Pop", "Comedy", "Funk", "Reggae"},
	MoodMelancholic: {"Blues", "Drama", "Indie", "Classical"},
	MoodRomantic:    {"Romance", "R&B", "Soul"},
	MoodAdventurous: {"Action", "Adventure", "Science Fiction", "Fantasy"},
	MoodDark:        {"Horror", "Thriller", "Metal", "Crime"},
	MoodFocus:       {"Classical", "Instrumental", "Documentary", "Ambient"},
}

// Moods returns every known mood in display order.
func Moods() []Mood {
	return slices.Clone(moodOrder)
}

// ParseMood resolves a label case-insensitively.
func ParseMood(s string) (Mood, bool) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := moodProfiles[m]; !ok {
		return "", false
	}
	return m, true
}

// MoodGenres returns the genre tags for a mood, or an empty slice for an unknown mood.
func MoodGenres(m Mood) []string {
	genres, ok := moodProfiles[m]
	if !ok {
		return []string{}
	}
	return slices.Clone(genres)
}

// MoodMatches counts how many of the item's distinct genres belong to the mood.
func MoodMatches(item Item, m Mood) int {
	profile, ok := moodProfiles[m]
	if !ok {
		return 0
	}
	moodSet := genreSet(profile)

	matches := 0
	for g := range genreSet(item.Genres) {
		if _, ok := moodSet[g]; ok {
			matches++
		}
	}
	return matches
}

// String returns the mood label.
func (m Mood) String() string {
	return string(m)
}

// Title returns the mood label with its first letter upper-cased, e.g. "Chill".
func (m Mood) Title() string {
	if m == "" {
		return ""
	}
	return strings.ToUpper(string(m[:1])) + string(m[1:])
}
