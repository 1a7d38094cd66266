package clustering

import (
	"cmp"
	"slices"
	"sort"
	"strings"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// itemObservation wraps an Item to implement clusters.Observation.
type itemObservation struct {
	index  int // Position in the input, used to keep library order
	coords clusters.Coordinates
}

func (o itemObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o itemObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// DetectGroups clusters items by genre similarity.
// Returns the groups and the outlier items that don't fit into any group.
// Items without genres are always outliers. The input is not modified.
func DetectGroups(items []ranking.Item, cfg Config) ([]Group, []ranking.Item) {
	if len(items) == 0 {
		return nil, nil
	}

	defaults := DefaultConfig()
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = defaults.NumClusters
	}
	if cfg.MaxGenres <= 0 {
		cfg.MaxGenres = defaults.MaxGenres
	}

	var valid []int
	var noGenres []ranking.Item
	for i, item := range items {
		if hasGenres(item) {
			valid = append(valid, i)
		} else {
			noGenres = append(noGenres, item)
		}
	}

	allOutliers := func() []ranking.Item {
		out := make([]ranking.Item, 0, len(items))
		for _, i := range valid {
			out = append(out, items[i])
		}
		return append(out, noGenres...)
	}

	if len(valid) < cfg.NumClusters {
		return nil, allOutliers()
	}

	vocabulary := buildGenreVocabulary(items, valid, cfg.MaxGenres)
	if len(vocabulary) == 0 {
		return nil, allOutliers()
	}

	var obs clusters.Observations
	for _, i := range valid {
		obs = append(obs, itemObservation{
			index:  i,
			coords: buildGenreVector(items[i], vocabulary),
		})
	}

	result, err := kmeans.New().Partition(obs, cfg.NumClusters)
	if err != nil {
		return nil, allOutliers()
	}

	var groups []Group
	var outliers []ranking.Item

	for _, cluster := range result {
		var indexes []int
		for _, o := range cluster.Observations {
			if io, ok := o.(itemObservation); ok {
				indexes = append(indexes, io.index)
			}
		}
		slices.Sort(indexes)

		members := make([]ranking.Item, len(indexes))
		for j, i := range indexes {
			members[j] = items[i]
		}

		if len(members) == 0 {
			continue
		}
		if len(members) < cfg.MinGroupSize {
			outliers = append(outliers, members...)
			continue
		}

		topGenres := extractTopGenres(cluster.Center, vocabulary, 3)
		mood := NearestMood(topGenres)

		groups = append(groups, Group{
			Name:      groupName(mood, topGenres),
			Items:     members,
			TopGenres: topGenres,
			Mood:      mood,
			Minutes:   ranking.TotalDuration(members),
		})
	}

	outliers = append(outliers, noGenres...)

	// Largest groups first
	slices.SortStableFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(len(b.Items), len(a.Items)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	return groups, outliers
}

func hasGenres(item ranking.Item) bool {
	for _, g := range item.Genres {
		if strings.TrimSpace(g) != "" {
			return true
		}
	}
	return false
}

// genreCount pairs a genre with the number of items carrying it.
type genreCount struct {
	name  string
	count int
}

// buildGenreVocabulary returns the maxGenres most common genres among the valid items.
func buildGenreVocabulary(items []ranking.Item, valid []int, maxGenres int) []string {
	counts := make(map[string]int)
	for _, i := range valid {
		seen := make(map[string]bool)
		for _, g := range items[i].Genres {
			name := strings.ToLower(strings.TrimSpace(g))
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			counts[name]++
		}
	}

	genreCounts := make([]genreCount, 0, len(counts))
	for name, count := range counts {
		genreCounts = append(genreCounts, genreCount{name: name, count: count})
	}

	// Most common first, alphabetical for equal counts so the vocabulary is stable
	sort.Slice(genreCounts, func(i, j int) bool {
		if genreCounts[i].count != genreCounts[j].count {
			return genreCounts[i].count > genreCounts[j].count
		}
		return genreCounts[i].name < genreCounts[j].name
	})

	n := min(maxGenres, len(genreCounts))
	vocabulary := make([]string, n)
	for i := 0; i < n; i++ {
		vocabulary[i] = genreCounts[i].name
	}
	return vocabulary
}

// buildGenreVector creates a binary genre vector for an item.
func buildGenreVector(item ranking.Item, vocabulary []string) clusters.Coordinates {
	vocabIndex := make(map[string]int, len(vocabulary))
	for i, g := range vocabulary {
		vocabIndex[g] = i
	}

	vector := make(clusters.Coordinates, len(vocabulary))
	for _, g := range item.Genres {
		if idx, ok := vocabIndex[strings.ToLower(strings.TrimSpace(g))]; ok {
			vector[idx] = 1
		}
	}
	return vector
}

// extractTopGenres returns the n heaviest genres of a centroid.
func extractTopGenres(centroid clusters.Coordinates, vocabulary []string, n int) []string {
	if len(centroid) == 0 || len(vocabulary) == 0 {
		return nil
	}

	type genreWeight struct {
		name   string
		weight float64
	}
	weights := make([]genreWeight, len(vocabulary))
	for i, name := range vocabulary {
		weight := 0.0
		if i < len(centroid) {
			weight = centroid[i]
		}
		weights[i] = genreWeight{name: name, weight: weight}
	}

	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].weight > weights[j].weight
	})

	result := make([]string, 0, n)
	for i := 0; i < len(weights) && len(result) < n; i++ {
		if weights[i].weight > 0 {
			result = append(result, weights[i].name)
		}
	}
	return result
}
