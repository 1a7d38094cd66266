package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GenreCacheRepository persists genre lookups keyed by artist and track.
// Keys are compared case-insensitively.
type GenreCacheRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves a cache entry.
func (r *GenreCacheRepository) Get(ctx context.Context, artist, track string) (*GenreCacheEntry, error) {
	query := `
		SELECT artist, track, tag_names, tag_counts, fetched_at
		FROM genre_cache
		WHERE artist = $1 AND track = $2
	`

	var entry GenreCacheEntry
	var names []string
	var counts []int32
	err := r.pool.QueryRow(ctx, query, cacheKey(artist), cacheKey(track)).Scan(
		&entry.Artist,
		&entry.Track,
		&names,
		&counts,
		&entry.FetchedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying genre cache: %w", err)
	}

	entry.Tags = make([]CachedTag, len(names))
	for i, name := range names {
		entry.Tags[i] = CachedTag{Name: name}
		if i < len(counts) {
			entry.Tags[i].Count = int(counts[i])
		}
	}
	return &entry, nil
}

// Upsert stores or replaces a cache entry.
func (r *GenreCacheRepository) Upsert(ctx context.Context, entry GenreCacheEntry) error {
	query := `
		INSERT INTO genre_cache (artist, track, tag_names, tag_counts, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (artist, track) DO UPDATE SET
			tag_names = EXCLUDED.tag_names,
			tag_counts = EXCLUDED.tag_counts,
			fetched_at = EXCLUDED.fetched_at
	`

	names := make([]string, len(entry.Tags))
	counts := make([]int32, len(entry.Tags))
	for i, t := range entry.Tags {
		names[i] = t.Name
		counts[i] = int32(t.Count)
	}

	_, err := r.pool.Exec(ctx, query, cacheKey(entry.Artist), cacheKey(entry.Track), names, counts, entry.FetchedAt)
	if err != nil {
		return fmt.Errorf("upserting genre cache: %w", err)
	}
	return nil
}

func cacheKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
