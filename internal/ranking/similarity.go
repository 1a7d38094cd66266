package ranking

import "math"

// Similarity weights. A perfect match on all three terms sums to 1.0.
const (
	genreWeight = 0.5
	yearWeight  = 0.3
	typeWeight  = 0.2

	// yearSpan is the year distance at which the proximity term reaches zero.
	yearSpan = 50.0
)

// Similarity returns the affinity of b to the reference item a.
//
// The genre term is normalized by a's genre count only, so the score is not
// symmetric: rank a pool by always passing the seed as a. Missing years or
// genres contribute nothing; the total is not clamped.
func Similarity(a, b Item) float64 {
	return genreWeight*genreOverlap(a, b) +
		yearWeight*yearProximity(a, b) +
		typeWeight*typeMatch(a, b)
}

// genreOverlap returns |G(a) ∩ G(b)| / max(|G(a)|, 1).
func genreOverlap(a, b Item) float64 {
	ga := genreSet(a.Genres)
	if len(ga) == 0 {
		return 0
	}
	gb := genreSet(b.Genres)

	shared := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(ga), 1))
}

// yearProximity returns 1 for identical years, falling linearly to 0 at yearSpan apart.
func yearProximity(a, b Item) float64 {
	if a.ProductionYear == nil || b.ProductionYear == nil {
		return 0
	}
	diff := math.Abs(float64(*a.ProductionYear - *b.ProductionYear))
	return math.Max(0, 1-diff/yearSpan)
}

func typeMatch(a, b Item) float64 {
	if a.Type == b.Type {
		return 1
	}
	return 0
}
