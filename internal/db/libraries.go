package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LibraryRepository handles per-source sync state.
type LibraryRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves the sync state of a source.
func (r *LibraryRepository) Get(ctx context.Context, source string) (*Library, error) {
	query := `SELECT source, item_count, last_sync_at FROM libraries WHERE source = $1`

	var lib Library
	err := r.pool.QueryRow(ctx, query, source).Scan(&lib.Source, &lib.ItemCount, &lib.LastSyncAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying library: %w", err)
	}
	return &lib, nil
}

// MarkSynced records a completed sync.
func (r *LibraryRepository) MarkSynced(ctx context.Context, source string, itemCount int, at time.Time) error {
	query := `
		INSERT INTO libraries (source, item_count, last_sync_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source) DO UPDATE SET
			item_count = EXCLUDED.item_count,
			last_sync_at = EXCLUDED.last_sync_at
	`
	if _, err := r.pool.Exec(ctx, query, source, itemCount, at); err != nil {
		return fmt.Errorf("marking library synced: %w", err)
	}
	return nil
}
