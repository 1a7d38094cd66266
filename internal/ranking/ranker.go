package ranking

import "slices"

// MoodMode selects how the mood step treats candidates without matching genres.
type MoodMode int

const (
	// MoodFilter drops candidates that share no genre with the mood.
	MoodFilter MoodMode = iota
	// MoodBoost keeps every candidate and adds a bonus proportional to its mood matches.
	MoodBoost
)

// moodBoostWeight scales the match ratio added in MoodBoost mode.
const moodBoostWeight = 0.25

// Request describes the playlist a caller wants built from a pool.
type Request struct {
	Mood          Mood     // Empty or unknown skips the mood step
	MoodMode      MoodMode // Defaults to MoodFilter
	Seed          *Item    // Reference item for similarity; nil ranks by mood only
	IncludeSeed   bool     // Prepend the seed to the playlist
	TargetMinutes float64  // <= 0 disables duration truncation
	Limit         int      // Max items, <= 0 for no limit
}

// Candidate is a pool item with its ranking score.
type Candidate struct {
	Item        Item
	Score       float64
	MoodMatches int
}

// Playlist is the ordered result of Build.
type Playlist struct {
	Candidates   []Candidate
	TotalMinutes float64
}

// Items returns the playlist items in order.
func (p Playlist) Items() []Item {
	items := make([]Item, len(p.Candidates))
	for i, c := range p.Candidates {
		items[i] = c.Item
	}
	return items
}

// Duration returns the formatted total runtime.
func (p Playlist) Duration() string {
	return FormatDuration(p.TotalMinutes)
}

// isSeed reports whether item is the seed. Items are matched by ID; a seed
// without an ID matches items equal to it field by field.
func isSeed(item, seed Item) bool {
	if seed.ID != "" {
		return item.ID == seed.ID
	}
	return item.ID == "" &&
		item.Name == seed.Name &&
		item.Type == seed.Type &&
		item.Artist == seed.Artist &&
		slices.Equal(item.Genres, seed.Genres) &&
		equalPtr(item.ProductionYear, seed.ProductionYear) &&
		equalPtr(item.RuntimeTicks, seed.RuntimeTicks)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Rank applies the mood step to pool and orders the survivors by score.
//
// With a seed, the score is Similarity(seed, candidate) and the seed itself is
// removed from the pool. Without one, the score is the mood match ratio.
// Equal scores keep their pool order.
func Rank(pool []Item, req Request) []Candidate {
	moodGenres := len(MoodGenres(req.Mood))

	candidates := make([]Candidate, 0, len(pool))
	for _, item := range pool {
		if req.Seed != nil && isSeed(item, *req.Seed) {
			continue
		}

		c := Candidate{Item: item}
		if moodGenres > 0 {
			c.MoodMatches = MoodMatches(item, req.Mood)
			if req.MoodMode == MoodFilter && c.MoodMatches == 0 {
				continue
			}
		}

		ratio := 0.0
		if moodGenres > 0 {
			ratio = float64(c.MoodMatches) / float64(moodGenres)
		}

		switch {
		case req.Seed != nil:
			c.Score = Similarity(*req.Seed, item)
			if req.MoodMode == MoodBoost {
				c.Score += moodBoostWeight * ratio
			}
		default:
			c.Score = ratio
		}

		candidates = append(candidates, c)
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	return candidates
}

// Truncate returns the shortest prefix whose cumulative runtime reaches targetMinutes.
// A non-positive target, or one the candidates cannot reach, returns all of them.
func Truncate(candidates []Candidate, targetMinutes float64) []Candidate {
	if targetMinutes <= 0 {
		return candidates
	}

	var total float64
	for i, c := range candidates {
		total += c.Item.Minutes()
		if total >= targetMinutes {
			return candidates[:i+1]
		}
	}
	return candidates
}

// Build ranks pool for req and cuts the result down to the requested size.
func Build(pool []Item, req Request) Playlist {
	ranked := Rank(pool, req)

	if req.IncludeSeed && req.Seed != nil {
		seed := Candidate{
			Item:        *req.Seed,
			Score:       Similarity(*req.Seed, *req.Seed),
			MoodMatches: MoodMatches(*req.Seed, req.Mood),
		}
		ranked = append([]Candidate{seed}, ranked...)
	}

	selected := Truncate(ranked, req.TargetMinutes)
	if req.Limit > 0 && len(selected) > req.Limit {
		selected = selected[:req.Limit]
	}

	// Copy so the playlist never aliases the ranking buffer
	result := slices.Clone(selected)
	if result == nil {
		result = []Candidate{}
	}

	var total float64
	for _, c := range result {
		total += c.Item.Minutes()
	}

	return Playlist{
		Candidates:   result,
		TotalMinutes: total,
	}
}
