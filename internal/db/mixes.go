package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const mixColumns = `id, name, source, mood, mood_mode, seed_id, target_minutes, total_minutes,
	item_count, export_target, playlist_id, created_at`

// MixRepository handles generated mixes.
type MixRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a mix with its ranked entries. A zero mix ID is replaced by
// a new UUID; entry positions are assigned from slice order.
func (r *MixRepository) Create(ctx context.Context, mix *Mix, items []MixItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if mix.ID == uuid.Nil {
		mix.ID = uuid.New()
	}
	mix.ItemCount = len(items)

	mixQuery := `
		INSERT INTO mixes (id, name, source, mood, mood_mode, seed_id, target_minutes, total_minutes,
			item_count, export_target, playlist_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, mixQuery,
		mix.ID,
		mix.Name,
		mix.Source,
		mix.Mood,
		mix.MoodMode,
		mix.SeedID,
		mix.TargetMinutes,
		mix.TotalMinutes,
		mix.ItemCount,
		mix.ExportTarget,
		mix.PlaylistID,
	).Scan(&mix.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting mix: %w", err)
	}

	if len(items) > 0 {
		positions := make([]int32, len(items))
		itemIDs := make([]string, len(items))
		names := make([]string, len(items))
		types := make([]string, len(items))
		artists := make([]string, len(items))
		runtimes := make([]*int64, len(items))
		scores := make([]float64, len(items))
		matches := make([]int32, len(items))

		for i := range items {
			items[i].MixID = mix.ID
			items[i].Position = i
			positions[i] = int32(i)
			itemIDs[i] = items[i].ItemID
			names[i] = items[i].Name
			types[i] = items[i].Type
			artists[i] = items[i].Artist
			runtimes[i] = items[i].RuntimeTicks
			scores[i] = items[i].Score
			matches[i] = int32(items[i].MoodMatches)
		}

		itemsQuery := `
			INSERT INTO mix_items (mix_id, position, item_id, name, type, artist, runtime_ticks, score, mood_matches)
			SELECT $1, * FROM unnest($2::int[], $3::text[], $4::text[], $5::text[], $6::text[],
				$7::bigint[], $8::float8[], $9::int[])
		`
		_, err = tx.Exec(ctx, itemsQuery, mix.ID, positions, itemIDs, names, types, artists, runtimes, scores, matches)
		if err != nil {
			return fmt.Errorf("inserting mix items: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a mix by ID.
func (r *MixRepository) Get(ctx context.Context, id uuid.UUID) (*Mix, error) {
	query := `SELECT ` + mixColumns + ` FROM mixes WHERE id = $1`

	mix, err := scanMix(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying mix: %w", err)
	}
	return mix, nil
}

// List returns the most recent mixes first. A limit of zero returns all.
func (r *MixRepository) List(ctx context.Context, limit int) ([]Mix, error) {
	query := `SELECT ` + mixColumns + ` FROM mixes ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying mixes: %w", err)
	}
	defer rows.Close()

	mixes := []Mix{}
	for rows.Next() {
		mix, err := scanMix(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning mix: %w", err)
		}
		mixes = append(mixes, *mix)
	}
	return mixes, rows.Err()
}

// GetItems returns a mix's entries in ranked order.
func (r *MixRepository) GetItems(ctx context.Context, mixID uuid.UUID) ([]MixItem, error) {
	query := `
		SELECT mix_id, position, item_id, name, type, artist, runtime_ticks, score, mood_matches
		FROM mix_items
		WHERE mix_id = $1
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query, mixID)
	if err != nil {
		return nil, fmt.Errorf("querying mix items: %w", err)
	}
	defer rows.Close()

	items := []MixItem{}
	for rows.Next() {
		var item MixItem
		if err := rows.Scan(
			&item.MixID,
			&item.Position,
			&item.ItemID,
			&item.Name,
			&item.Type,
			&item.Artist,
			&item.RuntimeTicks,
			&item.Score,
			&item.MoodMatches,
		); err != nil {
			return nil, fmt.Errorf("scanning mix item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdatePlaylistID records the remote playlist a mix was exported to.
// A mix keeps its first playlist: later calls return ErrAlreadyExported.
func (r *MixRepository) UpdatePlaylistID(ctx context.Context, mixID uuid.UUID, target, playlistID string) error {
	query := `UPDATE mixes SET export_target = $2, playlist_id = $3 WHERE id = $1 AND playlist_id IS NULL`
	result, err := r.pool.Exec(ctx, query, mixID, target, playlistID)
	if err != nil {
		return fmt.Errorf("updating playlist ID: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM mixes WHERE id = $1)`, mixID).Scan(&exists); err != nil {
		return fmt.Errorf("checking mix: %w", err)
	}
	if exists {
		return ErrAlreadyExported
	}
	return ErrNotFound
}

// Delete removes a mix and its entries.
func (r *MixRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM mixes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting mix: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMix(row pgx.Row) (*Mix, error) {
	var mix Mix
	err := row.Scan(
		&mix.ID,
		&mix.Name,
		&mix.Source,
		&mix.Mood,
		&mix.MoodMode,
		&mix.SeedID,
		&mix.TargetMinutes,
		&mix.TotalMinutes,
		&mix.ItemCount,
		&mix.ExportTarget,
		&mix.PlaylistID,
		&mix.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &mix, nil
}
