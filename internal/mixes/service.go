// Package mixes generates, persists and exports ranked playlists.
package mixes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/clustering"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/metrics"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// Common errors.
var (
	ErrInvalidRequest  = errors.New("invalid mix request")
	ErrSeedNotFound    = errors.New("seed item not found")
	ErrMixNotFound     = errors.New("mix not found")
	ErrUnknownTarget   = errors.New("unknown export target")
	ErrAlreadyExported = errors.New("mix already exported")
	ErrTargetMismatch  = errors.New("export target does not match mix source")
	ErrInvalidMixID    = errors.New("invalid mix ID")
)

// ItemStore reads synced catalog items. *db.ItemRepository implements it.
type ItemStore interface {
	Get(ctx context.Context, source, id string) (*db.Item, error)
	List(ctx context.Context, source string, types []string) ([]db.Item, error)
}

// MixStore persists mixes. *db.MixRepository implements it.
type MixStore interface {
	Create(ctx context.Context, mix *db.Mix, items []db.MixItem) error
	Get(ctx context.Context, id uuid.UUID) (*db.Mix, error)
	List(ctx context.Context, limit int) ([]db.Mix, error)
	GetItems(ctx context.Context, mixID uuid.UUID) ([]db.MixItem, error)
	UpdatePlaylistID(ctx context.Context, mixID uuid.UUID, target, playlistID string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Exporter creates a remote playlist and returns its ID.
type Exporter interface {
	CreatePlaylist(ctx context.Context, name string, itemIDs []string) (string, error)
}

// Service handles mix generation and persistence.
type Service struct {
	items     ItemStore
	mixes     MixStore
	exporters map[string]Exporter
	validate  *validator.Validate
	log       zerolog.Logger

	mu        sync.Mutex
	exporting map[uuid.UUID]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithExporter registers the exporter used for target.
func WithExporter(target string, e Exporter) Option {
	return func(s *Service) {
		s.exporters[target] = e
	}
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// New creates a new mix service.
func New(items ItemStore, mixes MixStore, opts ...Option) *Service {
	s := &Service{
		items:     items,
		mixes:     mixes,
		exporters: make(map[string]Exporter),
		exporting: make(map[uuid.UUID]struct{}),
		validate:  newValidator(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detail is a mix together with its ranked entries.
type Detail struct {
	Mix   db.Mix
	Items []db.MixItem
}

// Duration returns the formatted total runtime of the mix.
func (d Detail) Duration() string {
	return ranking.FormatDuration(d.Mix.TotalMinutes)
}

// Generate ranks the synced catalog of req.Source and persists the result.
// A request that matches nothing still produces an empty mix.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Detail, error) {
	if err := req.validate(s.validate); err != nil {
		return nil, err
	}
	req.normalize()

	var seed *ranking.Item
	if req.SeedID != "" {
		item, err := s.items.Get(ctx, req.Source, req.SeedID)
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrSeedNotFound, req.Source, req.SeedID)
		}
		if err != nil {
			return nil, fmt.Errorf("loading seed: %w", err)
		}
		r := item.Ranking()
		seed = &r
	}

	stored, err := s.items.List(ctx, req.Source, req.Types)
	if err != nil {
		return nil, fmt.Errorf("loading candidate pool: %w", err)
	}
	pool := make([]ranking.Item, len(stored))
	for i, it := range stored {
		pool[i] = it.Ranking()
	}

	start := time.Now()
	playlist := ranking.Build(pool, ranking.Request{
		Mood:          ranking.Mood(req.Mood),
		MoodMode:      req.moodMode(),
		Seed:          seed,
		IncludeSeed:   req.IncludeSeed,
		TargetMinutes: req.TargetMinutes,
		Limit:         req.Limit,
	})
	rankTime := time.Since(start)

	mix := db.Mix{
		Name:          mixName(req, seed),
		Source:        req.Source,
		Mood:          req.Mood,
		MoodMode:      req.MoodMode,
		TargetMinutes: req.TargetMinutes,
		TotalMinutes:  playlist.TotalMinutes,
	}
	if seed != nil {
		mix.SeedID = &seed.ID
	}

	entries := toMixItems(playlist.Candidates)
	if err := s.mixes.Create(ctx, &mix, entries); err != nil {
		return nil, fmt.Errorf("saving mix: %w", err)
	}

	metrics.RecordMix(req.Source, req.Mood, len(entries), rankTime)
	s.log.Info().
		Str("mix_id", mix.ID.String()).
		Str("source", req.Source).
		Str("mood", req.Mood).
		Int("pool", len(pool)).
		Int("items", len(entries)).
		Str("duration", playlist.Duration()).
		Msg("mix generated")

	return &Detail{Mix: mix, Items: entries}, nil
}

// Get returns a mix with its entries.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	mixID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	mix, err := s.mixes.Get(ctx, mixID)
	if err != nil {
		return nil, notFound(err, id)
	}

	items, err := s.mixes.GetItems(ctx, mixID)
	if err != nil {
		return nil, fmt.Errorf("getting mix items: %w", err)
	}
	return &Detail{Mix: *mix, Items: items}, nil
}

// List returns the most recent mixes, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]db.Mix, error) {
	mixes, err := s.mixes.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing mixes: %w", err)
	}
	return mixes, nil
}

// Delete removes a mix.
func (s *Service) Delete(ctx context.Context, id string) error {
	mixID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.mixes.Delete(ctx, mixID); err != nil {
		return notFound(err, id)
	}
	return nil
}

// Export pushes a mix to target as a playlist. An empty target means the
// mix's own source. A mix can only be exported once; a second export of the
// same mix while the first is running fails with ErrAlreadyExported.
func (s *Service) Export(ctx context.Context, id, target string) (*db.Mix, error) {
	mixID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if !s.claimExport(mixID) {
		return nil, fmt.Errorf("%w: export in progress", ErrAlreadyExported)
	}
	defer s.releaseExport(mixID)

	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mix := d.Mix

	if target == "" {
		target = mix.Source
	}
	exporter, ok := s.exporters[target]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	if target != mix.Source {
		return nil, fmt.Errorf("%w: %s mix cannot be exported to %s", ErrTargetMismatch, mix.Source, target)
	}
	if mix.Exported() {
		return nil, fmt.Errorf("%w: playlist %s", ErrAlreadyExported, *mix.PlaylistID)
	}

	ids := make([]string, len(d.Items))
	for i, it := range d.Items {
		ids[i] = it.ItemID
	}

	playlistID, err := exporter.CreatePlaylist(ctx, mix.Name, ids)
	if err != nil {
		return nil, fmt.Errorf("creating %s playlist: %w", target, err)
	}

	if err := s.mixes.UpdatePlaylistID(ctx, mix.ID, target, playlistID); err != nil {
		s.log.Error().Err(err).
			Str("mix_id", mix.ID.String()).
			Str("target", target).
			Str("playlist_id", playlistID).
			Msg("export not recorded, remote playlist left behind")
		if errors.Is(err, db.ErrAlreadyExported) {
			return nil, fmt.Errorf("%w: duplicate playlist %s", ErrAlreadyExported, playlistID)
		}
		return nil, fmt.Errorf("recording playlist %s: %w", playlistID, err)
	}
	mix.ExportTarget = &target
	mix.PlaylistID = &playlistID

	metrics.MixesExported.WithLabelValues(target).Inc()
	s.log.Info().
		Str("mix_id", mix.ID.String()).
		Str("target", target).
		Str("playlist_id", playlistID).
		Int("items", len(ids)).
		Msg("mix exported")

	return &mix, nil
}

// GroupsResult holds library groups detected by clustering.
type GroupsResult struct {
	Groups   []clustering.Group
	Outliers []ranking.Item
	Total    int
}

// Groups clusters the synced catalog of source by genre.
func (s *Service) Groups(ctx context.Context, source string, cfg clustering.Config) (*GroupsResult, error) {
	if source == "" {
		source = db.SourceJellyfin
	}
	stored, err := s.items.List(ctx, source, nil)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}

	items := make([]ranking.Item, len(stored))
	for i, it := range stored {
		items[i] = it.Ranking()
	}

	groups, outliers := clustering.DetectGroups(items, cfg)
	return &GroupsResult{
		Groups:   groups,
		Outliers: outliers,
		Total:    len(items),
	}, nil
}

// claimExport marks mixID as being exported. It returns false when another
// export of the mix is already running.
func (s *Service) claimExport(mixID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.exporting[mixID]; busy {
		return false
	}
	s.exporting[mixID] = struct{}{}
	return true
}

func (s *Service) releaseExport(mixID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.exporting, mixID)
}

func parseID(id string) (uuid.UUID, error) {
	mixID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidMixID, id)
	}
	return mixID, nil
}

func notFound(err error, id string) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrMixNotFound, id)
	}
	return fmt.Errorf("getting mix: %w", err)
}

// mixName derives a display name when the request does not carry one.
func mixName(req GenerateRequest, seed *ranking.Item) string {
	if req.Name != "" {
		return req.Name
	}
	mood := ranking.Mood(req.Mood).Title()
	switch {
	case seed != nil && mood != "":
		return fmt.Sprintf("%s mix like %s", mood, seed.Name)
	case seed != nil:
		return "Mix like " + seed.Name
	default:
		return mood + " mix"
	}
}

func toMixItems(cands []ranking.Candidate) []db.MixItem {
	items := make([]db.MixItem, len(cands))
	for i, c := range cands {
		items[i] = db.MixItem{
			Position:     i,
			ItemID:       c.Item.ID,
			Name:         c.Item.Name,
			Type:         c.Item.Type,
			Artist:       c.Item.Artist,
			RuntimeTicks: c.Item.RuntimeTicks,
			Score:        c.Score,
			MoodMatches:  c.MoodMatches,
		}
	}
	return items
}
