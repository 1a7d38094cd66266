package genres

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/lastfm"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/metrics"
)

// DefaultCacheTTL is the age after which cached tags are fetched again.
const DefaultCacheTTL = 30 * 24 * time.Hour

// CacheStore persists tag lookups. *db.GenreCacheRepository implements it.
type CacheStore interface {
	Get(ctx context.Context, artist, track string) (*db.GenreCacheEntry, error)
	Upsert(ctx context.Context, entry db.GenreCacheEntry) error
}

// CachedFetcher implements TagFetcher with database persistence. Fresh
// entries are served from the store; misses and stale entries go to the
// underlying fetcher and are written back.
type CachedFetcher struct {
	store   CacheStore
	fetcher TagFetcher
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewCachedFetcher wraps fetcher with store. A non-positive ttl uses DefaultCacheTTL.
func NewCachedFetcher(store CacheStore, fetcher TagFetcher, ttl time.Duration, log zerolog.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedFetcher{
		store:   store,
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		log:     log,
	}
}

// GetTags returns cached tags when fresh, otherwise fetches and stores them.
// Store failures are logged and never fail the lookup.
func (c *CachedFetcher) GetTags(ctx context.Context, artist, track string) ([]lastfm.Tag, error) {
	entry, err := c.store.Get(ctx, artist, track)
	switch {
	case err == nil && c.now().Sub(entry.FetchedAt) < c.ttl:
		metrics.GenreLookups.WithLabelValues("hit").Inc()
		return fromCached(entry.Tags), nil
	case err != nil && !errors.Is(err, db.ErrNotFound):
		c.log.Warn().Err(err).Msg("reading genre cache")
	}

	tags, err := c.fetcher.GetTags(ctx, artist, track)
	if err != nil {
		metrics.GenreLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.GenreLookups.WithLabelValues("miss").Inc()

	if err := c.store.Upsert(ctx, db.GenreCacheEntry{
		Artist:    artist,
		Track:     track,
		Tags:      toCached(tags),
		FetchedAt: c.now(),
	}); err != nil {
		c.log.Warn().Err(err).Msg("writing genre cache")
	}

	return tags, nil
}

func fromCached(cached []db.CachedTag) []lastfm.Tag {
	tags := make([]lastfm.Tag, len(cached))
	for i, t := range cached {
		tags[i] = lastfm.Tag{Name: t.Name, Count: t.Count}
	}
	return tags
}

func toCached(tags []lastfm.Tag) []db.CachedTag {
	cached := make([]db.CachedTag, len(tags))
	for i, t := range tags {
		cached[i] = db.CachedTag{Name: t.Name, Count: t.Count}
	}
	return cached
}
