package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/clustering"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/logging"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/mixes"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/web"
	assets "github.com/justestif/go-jellyfin-mood-mixer/web"
)

func sourceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "source",
		Usage: "Catalog source (jellyfin or spotify)",
		Value: db.SourceJellyfin,
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the web UI and JSON API",
		Action: serve,
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connectCatalogs(ctx); err != nil {
		return err
	}
	syncer, err := a.syncService()
	if err != nil {
		return err
	}

	templates, err := fs.Sub(assets.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}
	static, err := fs.Sub(assets.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	sc := a.cfg.Server
	server, err := web.NewServer(web.ServerConfig{
		Addr:            sc.Addr,
		ShutdownTimeout: sc.ShutdownTimeout,
		CORSOrigins:     sc.CORSOrigins,
		RateLimit:       sc.RateLimit,
		RateWindow:      sc.RateWindow,
		TemplatesFS:     templates,
		StaticFS:        static,
	}, a.mixService(), syncer, a.db, logging.Component(a.log, "web"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run(ctx)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "down",
				Usage: "Roll back the latest applied migration",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.Root().Writer

			if cmd.Bool("down") {
				version, err := a.db.Rollback(ctx)
				if err != nil {
					return err
				}
				if version == 0 {
					fmt.Fprintln(out, "Nothing to roll back")
					return nil
				}
				fmt.Fprintf(out, "Rolled back migration %04d\n", version)
				return nil
			}

			applied, err := a.db.Migrate(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "Database is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(out, "Applied migration %04d\n", v)
			}
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Copy remote catalogs into the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "Catalog source to sync (every connected catalog when empty)",
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Ignore the sync cooldown",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.connectCatalogs(ctx); err != nil {
				return err
			}
			syncer, err := a.syncService()
			if err != nil {
				return err
			}

			sources := syncer.Sources()
			if source := cmd.String("source"); source != "" {
				sources = []string{source}
			}
			if len(sources) == 0 {
				return errors.New("no catalog configured: set jellyfin.api_key or enable spotify")
			}

			for _, source := range sources {
				result, err := syncer.SyncLibrary(ctx, source, cmd.Bool("force"))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "Synced %d %s items (%d enriched, %d removed)\n",
					result.ItemsCount, result.Source, result.Enriched, result.Removed)
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show stored items, last sync per source and Jellyfin reachability",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.Root().Writer

			for _, source := range []string{db.SourceJellyfin, db.SourceSpotify} {
				count, err := a.db.Items().Count(ctx, source)
				if err != nil {
					return err
				}

				last := "never"
				lib, err := a.db.Libraries().Get(ctx, source)
				switch {
				case errors.Is(err, db.ErrNotFound):
				case err != nil:
					return err
				case lib.LastSyncAt != nil:
					last = lib.LastSyncAt.Local().Format(time.DateTime)
				}

				fmt.Fprintf(out, "%-9s %6d items, last sync %s\n", source, count, last)
			}

			if err := a.connectJellyfin(); err != nil {
				return err
			}
			if a.jellyfin != nil {
				info, err := a.jellyfin.SystemInfo(ctx)
				if err != nil {
					fmt.Fprintf(out, "jellyfin server unreachable: %v\n", err)
					return nil
				}
				fmt.Fprintf(out, "jellyfin server %s (version %s)\n", info.ServerName, info.Version)
			}
			return nil
		},
	}
}

func mixCommand() *cli.Command {
	return &cli.Command{
		Name:  "mix",
		Usage: "Generate a mix from a mood, a seed item or both",
		Flags: []cli.Flag{
			sourceFlag(),
			&cli.StringFlag{
				Name:    "mood",
				Aliases: []string{"m"},
				Usage:   "Mood profile (see 'moods')",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Mood mode: filter drops non-matching items, boost only reorders",
				Value: mixes.ModeFilter,
			},
			&cli.StringFlag{
				Name:  "seed",
				Usage: "ID of the item to build the mix around",
			},
			&cli.BoolFlag{
				Name:  "include-seed",
				Usage: "Start the mix with the seed item",
			},
			&cli.FloatFlag{
				Name:  "minutes",
				Usage: "Target runtime in minutes (0 for no limit)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of items (0 for no limit)",
			},
			&cli.StringSliceFlag{
				Name:  "type",
				Usage: "Restrict candidates to item types (movie, episode, track)",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Mix name (derived from mood and seed when empty)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			detail, err := a.mixService().Generate(ctx, mixes.GenerateRequest{
				Name:          cmd.String("name"),
				Source:        cmd.String("source"),
				Mood:          cmd.String("mood"),
				MoodMode:      cmd.String("mode"),
				SeedID:        cmd.String("seed"),
				IncludeSeed:   cmd.Bool("include-seed"),
				TargetMinutes: cmd.Float("minutes"),
				Limit:         cmd.Int("limit"),
				Types:         cmd.StringSlice("type"),
			})
			if err != nil {
				return err
			}

			printMix(cmd.Root().Writer, detail)
			return nil
		},
	}
}

func printMix(out io.Writer, d *mixes.Detail) {
	fmt.Fprintf(out, "%s (%s)\n", d.Mix.Name, d.Mix.ID)
	fmt.Fprintf(out, "%d items, %s\n", d.Mix.ItemCount, d.Duration())
	if len(d.Items) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, it := range d.Items {
		name := it.Name
		if it.Artist != "" {
			name = it.Artist + " - " + it.Name
		}
		fmt.Fprintf(out, "%3d. %-50s %8s  %.3f\n",
			it.Position+1, name, ranking.FormatDuration(it.Minutes()), it.Score)
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "mixes",
		Usage: "List saved mixes, or show one with --id",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Mix ID to show",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of mixes to list",
				Value: 20,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.Root().Writer
			svc := a.mixService()

			if id := cmd.String("id"); id != "" {
				detail, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				printMix(out, detail)
				return nil
			}

			list, err := svc.List(ctx, cmd.Int("limit"))
			if err != nil {
				return err
			}
			for _, m := range list {
				exported := ""
				if m.Exported() {
					exported = " [exported to " + *m.ExportTarget + "]"
				}
				fmt.Fprintf(out, "%s  %-40s %4d items  %s%s\n",
					m.ID, m.Name, m.ItemCount, ranking.FormatDuration(m.TotalMinutes), exported)
			}
			return nil
		},
	}
}

func moodsCommand() *cli.Command {
	return &cli.Command{
		Name:  "moods",
		Usage: "List mood profiles and their genres",
		Action: func(_ context.Context, cmd *cli.Command) error {
			out := cmd.Root().Writer
			for _, m := range ranking.Moods() {
				fmt.Fprintf(out, "%-12s %s\n", m, strings.Join(ranking.MoodGenres(m), ", "))
			}
			return nil
		},
	}
}

func groupsCommand() *cli.Command {
	defaults := clustering.DefaultConfig()
	return &cli.Command{
		Name:  "groups",
		Usage: "Cluster a synced catalog into genre groups",
		Flags: []cli.Flag{
			sourceFlag(),
			&cli.IntFlag{
				Name:    "clusters",
				Aliases: []string{"k"},
				Usage:   "Number of clusters",
				Value:   defaults.NumClusters,
			},
			&cli.IntFlag{
				Name:  "min-size",
				Usage: "Minimum items per group",
				Value: defaults.MinGroupSize,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := defaults
			cfg.NumClusters = cmd.Int("clusters")
			cfg.MinGroupSize = cmd.Int("min-size")

			result, err := a.mixService().Groups(ctx, cmd.String("source"), cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.Root().Writer, clustering.FormatGroupSummary(result.Groups, result.Outliers))
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Create a remote playlist from a saved mix",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "Mix ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "target",
				Usage: "Export target (defaults to the mix source)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.connectCatalogs(ctx); err != nil {
				return err
			}

			mix, err := a.mixService().Export(ctx, cmd.String("id"), cmd.String("target"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "Exported %q to %s playlist %s\n",
				mix.Name, *mix.ExportTarget, *mix.PlaylistID)
			return nil
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the cached Spotify login",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify and cache the token",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := newApp(ctx, cmd)
					if err != nil {
						return err
					}
					defer a.Close()

					authenticator, err := a.authenticator()
					if err != nil {
						return err
					}
					if _, err := authenticator.Authenticate(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.Root().Writer, "Spotify token cached")
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Delete the cached Spotify token",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := newApp(ctx, cmd)
					if err != nil {
						return err
					}
					defer a.Close()

					authenticator, err := a.authenticator()
					if err != nil {
						return err
					}
					if err := authenticator.Logout(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.Root().Writer, "Spotify token removed")
					return nil
				},
			},
		},
	}
}
