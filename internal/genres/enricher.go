// Package genres fills in missing genres for catalog tracks from Last.fm tags.
package genres

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/lastfm"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// Defaults for NewEnricher.
const (
	DefaultConcurrency = 5
	DefaultMinCount    = 50
	DefaultMaxGenres   = 3
)

// ignoredTags are personal-library tags that say nothing about genre.
var ignoredTags = map[string]bool{
	"seen live":            true,
	"favorites":            true,
	"favourites":           true,
	"favorite":             true,
	"albums i own":         true,
	"under 2000 listeners": true,
}

// TagFetcher abstracts the Last.fm client for testing.
type TagFetcher interface {
	GetTags(ctx context.Context, artist, track string) ([]lastfm.Tag, error)
}

// Stats summarizes an Enrich run.
type Stats struct {
	Candidates int // Tracks that had an artist and no genres
	Enriched   int // Candidates that received at least one genre
	Failed     int // Candidates whose lookup returned an error
}

// Enricher assigns Last.fm tags as genres to tracks that have none.
type Enricher struct {
	fetcher     TagFetcher
	concurrency int
	minCount    int
	maxGenres   int
	log         zerolog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithConcurrency sets the number of concurrent lookups.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithMinCount drops tags weighted below n. When no tag in a response
// carries a weight, all of them are kept.
func WithMinCount(n int) Option {
	return func(e *Enricher) {
		if n >= 0 {
			e.minCount = n
		}
	}
}

// WithMaxGenres caps the genres assigned per track.
func WithMaxGenres(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.maxGenres = n
		}
	}
}

// WithLogger sets the enricher logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Enricher) {
		e.log = log
	}
}

// NewEnricher creates an Enricher.
func NewEnricher(fetcher TagFetcher, opts ...Option) *Enricher {
	e := &Enricher{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
		minCount:    DefaultMinCount,
		maxGenres:   DefaultMaxGenres,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// needsGenres reports whether an item is a track we can look up.
func needsGenres(item ranking.Item) bool {
	if item.Type != "track" || strings.TrimSpace(item.Artist) == "" {
		return false
	}
	for _, g := range item.Genres {
		if strings.TrimSpace(g) != "" {
			return false
		}
	}
	return true
}

// Enrich returns a copy of items where tracks without genres carry the
// genres derived from their tags. The input slice is not modified.
// Individual lookup failures are counted, not returned. On cancellation the
// partially enriched copy is returned with ctx.Err().
func (e *Enricher) Enrich(ctx context.Context, items []ranking.Item) ([]ranking.Item, Stats, error) {
	out := make([]ranking.Item, len(items))
	copy(out, items)

	var pending []int
	for i, item := range items {
		if needsGenres(item) {
			pending = append(pending, i)
		}
	}

	stats := Stats{Candidates: len(pending)}
	if len(pending) == 0 {
		return out, stats, nil
	}

	type result struct {
		index int
		tags  []lastfm.Tag
		err   error
	}

	workCh := make(chan int, len(pending))
	for _, i := range pending {
		workCh <- i
	}
	close(workCh)

	resultCh := make(chan result, len(pending))

	var wg sync.WaitGroup
	for w := 0; w < min(e.concurrency, len(pending)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					resultCh <- result{index: i, err: ctx.Err()}
					continue
				}
				tags, err := e.fetcher.GetTags(ctx, items[i].Artist, items[i].Name)
				resultCh <- result{index: i, tags: tags, err: err}
			}
		}()
	}

	wg.Wait()
	close(resultCh)

	// cases.Caser is not safe for concurrent use, so conversion happens here.
	caser := cases.Title(language.English)
	for r := range resultCh {
		if r.err != nil {
			stats.Failed++
			if ctx.Err() == nil {
				e.log.Debug().
					Err(r.err).
					Str("artist", items[r.index].Artist).
					Str("track", items[r.index].Name).
					Msg("genre lookup failed")
			}
			continue
		}

		genres := e.tagsToGenres(caser, r.tags)
		if len(genres) == 0 {
			continue
		}
		out[r.index].Genres = genres
		stats.Enriched++
	}

	if err := ctx.Err(); err != nil {
		return out, stats, err
	}
	return out, stats, nil
}

// tagsToGenres keeps the heaviest usable tags, title-cased and deduplicated.
// Last.fm returns tags sorted by weight.
func (e *Enricher) tagsToGenres(caser cases.Caser, tags []lastfm.Tag) []string {
	weighted := false
	for _, tag := range tags {
		if tag.Count > 0 {
			weighted = true
			break
		}
	}

	seen := make(map[string]bool)
	var genres []string

	for _, tag := range tags {
		if len(genres) >= e.maxGenres {
			break
		}
		name := strings.ToLower(strings.TrimSpace(tag.Name))
		if name == "" || ignoredTags[name] || seen[name] {
			continue
		}
		if weighted && tag.Count < e.minCount {
			continue
		}
		seen[name] = true
		genres = append(genres, caser.String(name))
	}
	return genres
}
