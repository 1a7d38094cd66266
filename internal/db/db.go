// Package db provides PostgreSQL access for synced catalogs, generated mixes
// and the genre lookup cache.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned by repository lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExported is returned when a mix already records a playlist.
	ErrAlreadyExported = errors.New("mix already exported")
)

// Config tunes the connection pool. Zero values keep the pgxpool defaults.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New opens a pool for cfg and verifies it with a ping.
func New(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Ping checks the connection. It backs the /healthz endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Items returns an ItemRepository.
func (db *DB) Items() *ItemRepository {
	return &ItemRepository{pool: db.pool}
}

// Libraries returns a LibraryRepository.
func (db *DB) Libraries() *LibraryRepository {
	return &LibraryRepository{pool: db.pool}
}

// Mixes returns a MixRepository.
func (db *DB) Mixes() *MixRepository {
	return &MixRepository{pool: db.pool}
}

// GenreCache returns a GenreCacheRepository.
func (db *DB) GenreCache() *GenreCacheRepository {
	return &GenreCacheRepository{pool: db.pool}
}
