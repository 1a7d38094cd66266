// Package sync copies remote catalogs into PostgreSQL so mixes can be ranked offline.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/genres"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/metrics"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// Common errors.
var (
	// ErrSyncTooRecent is returned when sync is attempted within the cooldown period.
	ErrSyncTooRecent = errors.New("sync attempted too recently")

	// ErrUnknownSource is returned for a source without a registered catalog.
	ErrUnknownSource = errors.New("unknown catalog source")
)

// DefaultSyncCooldown is the default time between allowed syncs (1 hour).
const DefaultSyncCooldown = 1 * time.Hour

// Catalog lists every item of a remote library.
type Catalog interface {
	FetchAllItems(ctx context.Context) ([]ranking.Item, error)
}

// Enricher fills in missing genres before items are stored.
type Enricher interface {
	Enrich(ctx context.Context, items []ranking.Item) ([]ranking.Item, genres.Stats, error)
}

// ItemStore persists catalog items. *db.ItemRepository implements it.
type ItemStore interface {
	UpsertBatch(ctx context.Context, items []db.Item, syncedAt time.Time) error
	DeleteStale(ctx context.Context, source string, before time.Time) (int64, error)
}

// LibraryStore persists per-source sync state. *db.LibraryRepository implements it.
type LibraryStore interface {
	Get(ctx context.Context, source string) (*db.Library, error)
	MarkSynced(ctx context.Context, source string, itemCount int, at time.Time) error
}

// Service handles syncing remote catalogs into the database.
type Service struct {
	items        ItemStore
	libraries    LibraryStore
	catalogs     map[string]Catalog
	enricher     Enricher
	syncCooldown time.Duration
	now          func() time.Time
	log          zerolog.Logger

	// running serializes syncs per source. Stale-item removal relies on
	// every row of the source carrying the latest syncedAt.
	mu      sync.Mutex
	running map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog registers the catalog synced under source.
func WithCatalog(source string, c Catalog) Option {
	return func(s *Service) {
		s.catalogs[source] = c
	}
}

// WithEnricher enables genre enrichment of synced items.
func WithEnricher(e Enricher) Option {
	return func(s *Service) {
		s.enricher = e
	}
}

// WithSyncCooldown sets the minimum time between syncs.
func WithSyncCooldown(d time.Duration) Option {
	return func(s *Service) {
		s.syncCooldown = d
	}
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// New creates a new sync service.
func New(items ItemStore, libraries LibraryStore, opts ...Option) *Service {
	s := &Service{
		items:        items,
		libraries:    libraries,
		catalogs:     make(map[string]Catalog),
		running:      make(map[string]*sync.Mutex),
		syncCooldown: DefaultSyncCooldown,
		now:          time.Now,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	Source     string    `json:"source"`
	ItemsCount int       `json:"items_count"`
	Enriched   int       `json:"enriched"`
	Removed    int64     `json:"removed"`
	SyncedAt   time.Time `json:"synced_at"`
}

// Sources returns the registered catalog sources, sorted.
func (s *Service) Sources() []string {
	sources := make([]string, 0, len(s.catalogs))
	for src := range s.catalogs {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	return sources
}

// CanSync checks if enough time has passed since the last sync of source.
// Also returns the time when the next sync will be available.
func (s *Service) CanSync(ctx context.Context, source string) (bool, time.Time, error) {
	last, err := s.LastSyncTime(ctx, source)
	if err != nil {
		return false, time.Time{}, err
	}
	if last == nil {
		return true, time.Time{}, nil
	}

	next := last.Add(s.syncCooldown)
	if s.now().Before(next) {
		return false, next, nil
	}
	return true, time.Time{}, nil
}

// LastSyncTime returns when source was last synced, or nil if never.
func (s *Service) LastSyncTime(ctx context.Context, source string) (*time.Time, error) {
	lib, err := s.libraries.Get(ctx, source)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting library: %w", err)
	}
	return lib.LastSyncAt, nil
}

// sourceLock returns the mutex guarding syncs of source.
func (s *Service) sourceLock(source string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.running[source]
	if !ok {
		l = &sync.Mutex{}
		s.running[source] = l
	}
	return l
}

// SyncLibrary fetches every item of source, enriches genres when configured,
// upserts the items and removes those no longer present remotely.
// Syncs of the same source run one at a time; a waiting sync re-checks the
// cooldown once it gets its turn.
// Returns ErrSyncTooRecent within the cooldown unless force is set.
func (s *Service) SyncLibrary(ctx context.Context, source string, force bool) (result *SyncResult, err error) {
	catalog, ok := s.catalogs[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	lock := s.sourceLock(source)
	lock.Lock()
	defer lock.Unlock()

	if !force {
		canSync, next, err := s.CanSync(ctx, source)
		if err != nil {
			return nil, err
		}
		if !canSync {
			return nil, fmt.Errorf("%w: next sync available at %s", ErrSyncTooRecent, next.Format(time.RFC3339))
		}
	}

	start := time.Now()
	defer func() {
		count := 0
		if result != nil {
			count = result.ItemsCount
		}
		metrics.RecordSync(source, time.Since(start), count, err)
	}()

	log := s.log.With().Str("source", source).Logger()
	log.Info().Bool("force", force).Msg("sync started")

	items, err := catalog.FetchAllItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s catalog: %w", source, err)
	}

	enriched := 0
	if s.enricher != nil {
		var stats genres.Stats
		items, stats, err = s.enricher.Enrich(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("enriching genres: %w", err)
		}
		enriched = stats.Enriched
		log.Info().
			Int("candidates", stats.Candidates).
			Int("enriched", stats.Enriched).
			Int("failed", stats.Failed).
			Msg("genre enrichment finished")
	}

	syncedAt := s.now()
	dbItems := make([]db.Item, len(items))
	for i, it := range items {
		dbItems[i] = db.ItemFromRanking(source, it)
	}

	if err := s.items.UpsertBatch(ctx, dbItems, syncedAt); err != nil {
		return nil, fmt.Errorf("upserting items: %w", err)
	}

	removed, err := s.items.DeleteStale(ctx, source, syncedAt)
	if err != nil {
		return nil, fmt.Errorf("removing stale items: %w", err)
	}

	if err := s.libraries.MarkSynced(ctx, source, len(items), syncedAt); err != nil {
		return nil, fmt.Errorf("updating last sync: %w", err)
	}

	log.Info().
		Int("items", len(items)).
		Int64("removed", removed).
		Dur("took", time.Since(start)).
		Msg("sync finished")

	return &SyncResult{
		Source:     source,
		ItemsCount: len(items),
		Enriched:   enriched,
		Removed:    removed,
		SyncedAt:   syncedAt,
	}, nil
}
