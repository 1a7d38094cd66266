// Package clustering groups a library into mood-aligned sets using k-means over genre vectors.
package clustering

import (
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// Config holds genre clustering parameters.
type Config struct {
	NumClusters  int // Number of clusters to create (default: 4)
	MinGroupSize int // Minimum items per group (smaller clusters become outliers)
	MaxGenres    int // Maximum genres in the vector vocabulary (default: 40)
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{
		NumClusters:  4,
		MinGroupSize: 3,
		MaxGenres:    40,
	}
}

// Group is a cluster of library items with similar genres.
type Group struct {
	Name      string         // "Chill: jazz & ambient & lo-fi"
	Items     []ranking.Item // Members in library order
	TopGenres []string       // Up to 3 dominant genres (lowercase)
	Mood      ranking.Mood   // Closest mood profile, empty if none overlaps
	Minutes   float64        // Total runtime of the members
}

// Duration returns the group's formatted runtime.
func (g Group) Duration() string {
	return ranking.FormatDuration(g.Minutes)
}
