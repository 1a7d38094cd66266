package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/auth"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/config"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/genres"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/jellyfin"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/lastfm"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/logging"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/mixes"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/spotify"
	catalogsync "github.com/justestif/go-jellyfin-mood-mixer/internal/sync"
)

// app holds the configuration and shared clients of one command invocation.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	db  *db.DB

	jellyfin *jellyfin.BreakerClient
	spotify  *spotify.Client
}

// newApp loads configuration and connects to the database.
func newApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Logging)

	dc := cfg.Database
	database, err := db.New(ctx, db.Config{
		URL:             dc.URL,
		MaxConns:        dc.MaxConns,
		MinConns:        dc.MinConns,
		MaxConnLifetime: dc.MaxConnLifetime,
		ConnectTimeout:  dc.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &app{cfg: cfg, log: log, db: database}, nil
}

func (a *app) Close() {
	a.db.Close()
}

// connectCatalogs connects Jellyfin and, when enabled, Spotify.
func (a *app) connectCatalogs(ctx context.Context) error {
	if err := a.connectJellyfin(); err != nil {
		return err
	}
	return a.connectSpotify(ctx)
}

// connectJellyfin builds the Jellyfin client when an API key is configured.
func (a *app) connectJellyfin() error {
	jc := a.cfg.Jellyfin
	if jc.APIKey == "" {
		a.log.Warn().Msg("jellyfin api_key not set, jellyfin catalog disabled")
		return nil
	}

	client, err := jellyfin.NewClient(jellyfin.Config{
		URL:              jc.URL,
		APIKey:           jc.APIKey,
		UserID:           jc.UserID,
		IncludeItemTypes: jc.IncludeItemTypes,
		PageSize:         jc.PageSize,
		Timeout:          jc.Timeout,
		RequestsPerSec:   jc.RequestsPerSec,
	}, jellyfin.WithLogger(logging.Component(a.log, "jellyfin")))
	if err != nil {
		return fmt.Errorf("creating jellyfin client: %w", err)
	}
	a.jellyfin = jellyfin.NewBreakerClient(client, 0)
	return nil
}

// connectSpotify authenticates with Spotify when it is enabled. A cached
// token is reused; otherwise the OAuth flow runs in the browser.
func (a *app) connectSpotify(ctx context.Context) error {
	if !a.cfg.Spotify.Enabled {
		return nil
	}
	authenticator, err := a.authenticator()
	if err != nil {
		return err
	}
	api, err := authenticator.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("spotify authentication: %w", err)
	}
	a.spotify = spotify.New(api, spotify.WithLogger(logging.Component(a.log, "spotify")))
	return nil
}

func (a *app) authenticator() (*auth.Authenticator, error) {
	sc := a.cfg.Spotify
	authenticator, err := auth.New(auth.Config{
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		RedirectURL:  sc.RedirectURL,
		TokenPath:    sc.TokenPath,
	}, auth.WithLogger(logging.Component(a.log, "auth")))
	if err != nil {
		return nil, fmt.Errorf("creating spotify authenticator: %w", err)
	}
	return authenticator, nil
}

// syncService wires every connected catalog and, with a Last.fm key, the
// cached genre enricher.
func (a *app) syncService() (*catalogsync.Service, error) {
	opts := []catalogsync.Option{
		catalogsync.WithSyncCooldown(a.cfg.Sync.Cooldown),
		catalogsync.WithLogger(logging.Component(a.log, "sync")),
	}
	if a.jellyfin != nil {
		opts = append(opts, catalogsync.WithCatalog(db.SourceJellyfin, a.jellyfin))
	}
	if a.spotify != nil {
		opts = append(opts, catalogsync.WithCatalog(db.SourceSpotify, a.spotify))
	}

	if a.cfg.LastFMEnabled() {
		lc := a.cfg.LastFM
		client, err := lastfm.NewClient(lastfm.Config{
			APIKey:         lc.APIKey,
			RequestsPerSec: lc.RequestsPerSec,
		}, lastfm.WithLogger(logging.Component(a.log, "lastfm")))
		if err != nil {
			return nil, fmt.Errorf("creating lastfm client: %w", err)
		}

		genreLog := logging.Component(a.log, "genres")
		fetcher := genres.NewCachedFetcher(a.db.GenreCache(), client, lc.CacheTTL, genreLog)
		enricher := genres.NewEnricher(fetcher,
			genres.WithConcurrency(lc.Concurrency),
			genres.WithMinCount(lc.MinCount),
			genres.WithMaxGenres(lc.MaxGenres),
			genres.WithLogger(genreLog),
		)
		opts = append(opts, catalogsync.WithEnricher(enricher))
	}

	return catalogsync.New(a.db.Items(), a.db.Libraries(), opts...), nil
}

// mixService wires every connected catalog as an export target.
func (a *app) mixService() *mixes.Service {
	opts := []mixes.Option{
		mixes.WithLogger(logging.Component(a.log, "mixes")),
	}
	if a.jellyfin != nil {
		opts = append(opts, mixes.WithExporter(db.SourceJellyfin, a.jellyfin))
	}
	if a.spotify != nil {
		opts = append(opts, mixes.WithExporter(db.SourceSpotify, a.spotify))
	}
	return mixes.New(a.db.Items(), a.db.Mixes(), opts...)
}
