package mixes

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/clustering"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

type fakeItems struct {
	items   []db.Item
	listErr error
}

func (f *fakeItems) Get(_ context.Context, source, id string) (*db.Item, error) {
	for _, it := range f.items {
		if it.Source == source && it.ID == id {
			return &it, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeItems) List(_ context.Context, source string, types []string) ([]db.Item, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []db.Item
	for _, it := range f.items {
		if it.Source != source {
			continue
		}
		if len(types) > 0 && !contains(types, it.Type) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeMixes struct {
	mixes map[uuid.UUID]db.Mix
	items map[uuid.UUID][]db.MixItem
	order []uuid.UUID

	updateErr error
}

func newFakeMixes() *fakeMixes {
	return &fakeMixes{
		mixes: make(map[uuid.UUID]db.Mix),
		items: make(map[uuid.UUID][]db.MixItem),
	}
}

func (f *fakeMixes) Create(_ context.Context, mix *db.Mix, items []db.MixItem) error {
	if mix.ID == uuid.Nil {
		mix.ID = uuid.New()
	}
	mix.ItemCount = len(items)
	for i := range items {
		items[i].MixID = mix.ID
		items[i].Position = i
	}
	f.mixes[mix.ID] = *mix
	f.items[mix.ID] = items
	f.order = append([]uuid.UUID{mix.ID}, f.order...)
	return nil
}

func (f *fakeMixes) Get(_ context.Context, id uuid.UUID) (*db.Mix, error) {
	mix, ok := f.mixes[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &mix, nil
}

func (f *fakeMixes) List(_ context.Context, limit int) ([]db.Mix, error) {
	out := []db.Mix{}
	for _, id := range f.order {
		if mix, ok := f.mixes[id]; ok {
			out = append(out, mix)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMixes) GetItems(_ context.Context, mixID uuid.UUID) ([]db.MixItem, error) {
	return f.items[mixID], nil
}

func (f *fakeMixes) UpdatePlaylistID(_ context.Context, mixID uuid.UUID, target, playlistID string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	mix, ok := f.mixes[mixID]
	if !ok {
		return db.ErrNotFound
	}
	if mix.Exported() {
		return db.ErrAlreadyExported
	}
	mix.ExportTarget = &target
	mix.PlaylistID = &playlistID
	f.mixes[mixID] = mix
	return nil
}

func (f *fakeMixes) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.mixes[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.mixes, id)
	delete(f.items, id)
	return nil
}

type fakeExporter struct {
	name  string
	ids   []string
	calls int
	err   error

	// onCreate runs inside CreatePlaylist before it returns.
	onCreate func()
}

func (e *fakeExporter) CreatePlaylist(_ context.Context, name string, ids []string) (string, error) {
	e.calls++
	if e.onCreate != nil {
		e.onCreate()
	}
	if e.err != nil {
		return "", e.err
	}
	e.name = name
	e.ids = ids
	return "pl-1", nil
}

func intPtr(v int) *int { return &v }

func minutes(m float64) *int64 {
	t := int64(m * ranking.TicksPerMinute)
	return &t
}

// library mirrors the five-item ranking scenario, stored under jellyfin.
func library() *fakeItems {
	return &fakeItems{items: []db.Item{
		{Source: db.SourceJellyfin, ID: "seed", Name: "Seed", Type: "movie", Genres: []string{"Action", "Adventure"}, ProductionYear: intPtr(2020), RuntimeTicks: minutes(120)},
		{Source: db.SourceJellyfin, ID: "a", Name: "A", Type: "movie", Genres: []string{"Action"}, ProductionYear: intPtr(2019), RuntimeTicks: minutes(100)},
		{Source: db.SourceJellyfin, ID: "b", Name: "B", Type: "movie", Genres: []string{"Comedy"}, ProductionYear: intPtr(2020), RuntimeTicks: minutes(90)},
		{Source: db.SourceJellyfin, ID: "c", Name: "C", Type: "episode", Genres: []string{"Action", "Drama"}, ProductionYear: intPtr(2021), RuntimeTicks: minutes(45)},
		{Source: db.SourceJellyfin, ID: "d", Name: "D", Type: "movie", Genres: []string{"Horror"}, ProductionYear: intPtr(1980), RuntimeTicks: minutes(95)},
		{Source: db.SourceSpotify, ID: "s1", Name: "Song", Type: "track", Genres: []string{"Action"}, RuntimeTicks: minutes(3)},
	}}
}

func itemIDs(items []db.MixItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ItemID
	}
	return ids
}

func TestGenerateMoodAndSeed(t *testing.T) {
	mixes := newFakeMixes()
	svc := New(library(), mixes)

	d, err := svc.Generate(context.Background(), GenerateRequest{
		Mood:   "Adventurous",
		SeedID: "seed",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, itemIDs(d.Items))
	assert.Equal(t, "adventurous", d.Mix.Mood)
	assert.Equal(t, ModeFilter, d.Mix.MoodMode)
	assert.Equal(t, db.SourceJellyfin, d.Mix.Source)
	assert.Equal(t, "Adventurous mix like Seed", d.Mix.Name)
	require.NotNil(t, d.Mix.SeedID)
	assert.Equal(t, "seed", *d.Mix.SeedID)
	assert.InDelta(t, 145.0, d.Mix.TotalMinutes, 1e-9)
	assert.Equal(t, "2h 25m", d.Duration())
	assert.Equal(t, 2, d.Mix.ItemCount)
	assert.NotEqual(t, uuid.Nil, d.Mix.ID)

	stored, ok := mixes.mixes[d.Mix.ID]
	require.True(t, ok)
	assert.Equal(t, d.Mix.Name, stored.Name)
}

func TestGenerateTargetMinutes(t *testing.T) {
	svc := New(library(), newFakeMixes())

	d, err := svc.Generate(context.Background(), GenerateRequest{
		Mood:          "adventurous",
		SeedID:        "seed",
		TargetMinutes: 60,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, itemIDs(d.Items))
	assert.InDelta(t, 100.0, d.Mix.TotalMinutes, 1e-9)
}

func TestGenerateBoostIncludeSeedAndLimit(t *testing.T) {
	svc := New(library(), newFakeMixes())

	d, err := svc.Generate(context.Background(), GenerateRequest{
		Mood:        "dark",
		MoodMode:    ModeBoost,
		SeedID:      "seed",
		IncludeSeed: true,
		Limit:       3,
	})
	require.NoError(t, err)

	require.Len(t, d.Items, 3)
	assert.Equal(t, "seed", d.Items[0].ItemID)
	assert.Equal(t, ModeBoost, d.Mix.MoodMode)
}

func TestGenerateMoodOnly(t *testing.T) {
	svc := New(library(), newFakeMixes())

	d, err := svc.Generate(context.Background(), GenerateRequest{Mood: "dark"})
	require.NoError(t, err)

	assert.Equal(t, []string{"d"}, itemIDs(d.Items))
	assert.Equal(t, "Dark mix", d.Mix.Name)
	assert.Nil(t, d.Mix.SeedID)
}

func TestGenerateTypesAndSource(t *testing.T) {
	svc := New(library(), newFakeMixes())

	d, err := svc.Generate(context.Background(), GenerateRequest{
		Mood:  "adventurous",
		Types: []string{"episode"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, itemIDs(d.Items))

	d, err = svc.Generate(context.Background(), GenerateRequest{
		Source: db.SourceSpotify,
		Mood:   "adventurous",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, itemIDs(d.Items))
}

func TestGenerateEmptyResultIsPersisted(t *testing.T) {
	mixes := newFakeMixes()
	svc := New(library(), mixes)

	d, err := svc.Generate(context.Background(), GenerateRequest{Mood: "romantic"})
	require.NoError(t, err)

	assert.Empty(t, d.Items)
	assert.Equal(t, 0, d.Mix.ItemCount)
	assert.Equal(t, "0m", d.Duration())
	assert.Len(t, mixes.mixes, 1)
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     GenerateRequest
		wantMsg string
	}{
		{"no mood or seed", GenerateRequest{}, "a mood or a seed_id is required"},
		{"unknown mood", GenerateRequest{Mood: "grumpy"}, "unknown mood"},
		{"bad source", GenerateRequest{Mood: "chill", Source: "plex"}, "source"},
		{"bad mood mode", GenerateRequest{Mood: "chill", MoodMode: "sort"}, "mood_mode"},
		{"negative target", GenerateRequest{Mood: "chill", TargetMinutes: -1}, "target_minutes"},
		{"target too large", GenerateRequest{Mood: "chill", TargetMinutes: 1441}, "target_minutes"},
		{"limit too large", GenerateRequest{Mood: "chill", Limit: 501}, "limit"},
		{"bad type", GenerateRequest{Mood: "chill", Types: []string{"podcast"}}, "types[0]"},
	}

	svc := New(library(), newFakeMixes())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestGenerateSeedNotFound(t *testing.T) {
	mixes := newFakeMixes()
	svc := New(library(), mixes)

	_, err := svc.Generate(context.Background(), GenerateRequest{SeedID: "missing"})
	assert.ErrorIs(t, err, ErrSeedNotFound)
	assert.Empty(t, mixes.mixes)
}

func TestGeneratePoolError(t *testing.T) {
	items := library()
	items.listErr = errors.New("connection reset")
	svc := New(items, newFakeMixes())

	_, err := svc.Generate(context.Background(), GenerateRequest{Mood: "chill"})
	assert.ErrorIs(t, err, items.listErr)
}

func TestGetListDelete(t *testing.T) {
	ctx := context.Background()
	svc := New(library(), newFakeMixes())

	first, err := svc.Generate(ctx, GenerateRequest{Mood: "dark"})
	require.NoError(t, err)
	second, err := svc.Generate(ctx, GenerateRequest{Mood: "adventurous"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, first.Mix.ID.String())
	require.NoError(t, err)
	assert.Equal(t, first.Mix.Name, got.Mix.Name)
	assert.Equal(t, []string{"d"}, itemIDs(got.Items))

	other, err := svc.Get(ctx, second.Mix.ID.String())
	require.NoError(t, err)
	assert.Len(t, other.Items, 3)

	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Mix.ID, list[0].ID)

	require.NoError(t, svc.Delete(ctx, first.Mix.ID.String()))
	_, err = svc.Get(ctx, first.Mix.ID.String())
	assert.ErrorIs(t, err, ErrMixNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, first.Mix.ID.String()), ErrMixNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "not-a-uuid"), ErrInvalidMixID)
	_, err = svc.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidMixID)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	exporter := &fakeExporter{}
	mixes := newFakeMixes()
	svc := New(library(), mixes, WithExporter(db.SourceJellyfin, exporter))

	d, err := svc.Generate(ctx, GenerateRequest{Mood: "adventurous", SeedID: "seed", Name: "Weekend"})
	require.NoError(t, err)
	id := d.Mix.ID.String()

	mix, err := svc.Export(ctx, id, "")
	require.NoError(t, err)

	assert.Equal(t, "Weekend", exporter.name)
	assert.Equal(t, []string{"a", "c"}, exporter.ids)
	require.NotNil(t, mix.PlaylistID)
	assert.Equal(t, "pl-1", *mix.PlaylistID)
	require.NotNil(t, mix.ExportTarget)
	assert.Equal(t, db.SourceJellyfin, *mix.ExportTarget)
	assert.True(t, mixes.mixes[d.Mix.ID].Exported())

	_, err = svc.Export(ctx, id, db.SourceJellyfin)
	assert.ErrorIs(t, err, ErrAlreadyExported)
	assert.Equal(t, 1, exporter.calls)
}

func TestExportErrors(t *testing.T) {
	ctx := context.Background()
	spotifyExporter := &fakeExporter{}
	failing := &fakeExporter{err: errors.New("server unavailable")}
	mixes := newFakeMixes()
	svc := New(library(), mixes,
		WithExporter(db.SourceJellyfin, failing),
		WithExporter(db.SourceSpotify, spotifyExporter),
	)

	d, err := svc.Generate(ctx, GenerateRequest{Mood: "dark"})
	require.NoError(t, err)
	id := d.Mix.ID.String()

	_, err = svc.Export(ctx, id, "plex")
	assert.ErrorIs(t, err, ErrUnknownTarget)

	_, err = svc.Export(ctx, id, db.SourceSpotify)
	assert.ErrorIs(t, err, ErrTargetMismatch)
	assert.Zero(t, spotifyExporter.calls)

	_, err = svc.Export(ctx, id, "")
	assert.ErrorIs(t, err, failing.err)
	assert.False(t, mixes.mixes[d.Mix.ID].Exported())

	_, err = svc.Export(ctx, uuid.NewString(), "")
	assert.ErrorIs(t, err, ErrMixNotFound)
}

func TestExportSameMixConcurrently(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	exporter := &fakeExporter{onCreate: func() {
		close(entered)
		<-release
	}}
	mixes := newFakeMixes()
	svc := New(library(), mixes, WithExporter(db.SourceJellyfin, exporter))

	d, err := svc.Generate(ctx, GenerateRequest{Mood: "adventurous"})
	require.NoError(t, err)
	id := d.Mix.ID.String()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Export(ctx, id, "")
		done <- err
	}()
	<-entered

	_, err = svc.Export(ctx, id, "")
	assert.ErrorIs(t, err, ErrAlreadyExported)
	assert.Equal(t, 1, exporter.calls)

	close(release)
	require.NoError(t, <-done)
	assert.True(t, mixes.mixes[d.Mix.ID].Exported())

	// the claim is released once the export finishes
	_, err = svc.Export(ctx, id, "")
	assert.ErrorIs(t, err, ErrAlreadyExported)
	assert.Equal(t, 1, exporter.calls)
}

func TestExportLogsUnrecordedPlaylist(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	mixes := newFakeMixes()
	svc := New(library(), mixes,
		WithExporter(db.SourceJellyfin, &fakeExporter{}),
		WithLogger(zerolog.New(&logs)),
	)

	d, err := svc.Generate(ctx, GenerateRequest{Mood: "adventurous"})
	require.NoError(t, err)

	mixes.updateErr = errors.New("connection reset")
	_, err = svc.Export(ctx, d.Mix.ID.String(), "")
	require.ErrorIs(t, err, mixes.updateErr)
	assert.Contains(t, err.Error(), "pl-1")
	assert.Contains(t, logs.String(), `"playlist_id":"pl-1"`)
	assert.False(t, mixes.mixes[d.Mix.ID].Exported())
}

func TestExportKeepsPlaylistRecordedFirst(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	mixes := newFakeMixes()
	exporter := &fakeExporter{}
	svc := New(library(), mixes,
		WithExporter(db.SourceJellyfin, exporter),
		WithLogger(zerolog.New(&logs)),
	)

	d, err := svc.Generate(ctx, GenerateRequest{Mood: "adventurous"})
	require.NoError(t, err)

	// another process records its playlist while this export is running
	exporter.onCreate = func() {
		require.NoError(t, mixes.UpdatePlaylistID(ctx, d.Mix.ID, db.SourceJellyfin, "pl-0"))
	}

	_, err = svc.Export(ctx, d.Mix.ID.String(), "")
	require.ErrorIs(t, err, ErrAlreadyExported)
	assert.Equal(t, "pl-0", *mixes.mixes[d.Mix.ID].PlaylistID)
	assert.Contains(t, logs.String(), `"playlist_id":"pl-1"`)
}

func TestGroups(t *testing.T) {
	svc := New(library(), newFakeMixes())

	res, err := svc.Groups(context.Background(), "", clustering.Config{NumClusters: 1, MinGroupSize: 1, MaxGenres: 10})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Total)
	count := len(res.Outliers)
	for _, g := range res.Groups {
		count += len(g.Items)
	}
	assert.Equal(t, 5, count)
}
