package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const itemColumns = `source, id, name, type, artist, genres, production_year, runtime_ticks, synced_at`

// ItemRepository handles catalog item operations.
type ItemRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts or updates items in one round trip, stamping them with syncedAt.
func (r *ItemRepository) UpsertBatch(ctx context.Context, items []Item, syncedAt time.Time) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source, id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			artist = EXCLUDED.artist,
			genres = EXCLUDED.genres,
			production_year = EXCLUDED.production_year,
			runtime_ticks = EXCLUDED.runtime_ticks,
			synced_at = EXCLUDED.synced_at
	`

	batch := &pgx.Batch{}
	for _, it := range items {
		genres := it.Genres
		if genres == nil {
			genres = []string{}
		}
		batch.Queue(query,
			it.Source,
			it.ID,
			it.Name,
			it.Type,
			it.Artist,
			genres,
			it.ProductionYear,
			it.RuntimeTicks,
			syncedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	for i := range items {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upserting item %s: %w", items[i].ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}
	return nil
}

// Get retrieves one item.
func (r *ItemRepository) Get(ctx context.Context, source, id string) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE source = $1 AND id = $2`

	item, err := scanItem(r.pool.QueryRow(ctx, query, source, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return item, nil
}

// List returns the items of a source, optionally restricted to types,
// ordered by name then ID so candidate pools are stable between calls.
func (r *ItemRepository) List(ctx context.Context, source string, types []string) ([]Item, error) {
	if len(types) == 0 {
		query := `SELECT ` + itemColumns + ` FROM items WHERE source = $1 ORDER BY name, id`
		return r.query(ctx, query, source)
	}

	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE source = $1 AND type = ANY($2::text[])
		ORDER BY name, id
	`
	return r.query(ctx, query, source, types)
}

// Count returns the number of items stored for a source.
func (r *ItemRepository) Count(ctx context.Context, source string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE source = $1`, source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return count, nil
}

// DeleteStale removes items of a source not seen since before.
func (r *ItemRepository) DeleteStale(ctx context.Context, source string, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM items WHERE source = $1 AND synced_at < $2`, source, before)
	if err != nil {
		return 0, fmt.Errorf("deleting stale items: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *ItemRepository) query(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	err := row.Scan(
		&item.Source,
		&item.ID,
		&item.Name,
		&item.Type,
		&item.Artist,
		&item.Genres,
		&item.ProductionYear,
		&item.RuntimeTicks,
		&item.SyncedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
