// Command mood-mixer syncs media catalogs and builds mood and seed based mixes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	if err := run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	app := &cli.Command{
		Name:    "mood-mixer",
		Usage:   "Build mood playlists from a Jellyfin or Spotify library",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			syncCommand(),
			statusCommand(),
			mixCommand(),
			listCommand(),
			moodsCommand(),
			groupsCommand(),
			exportCommand(),
			authCommand(),
		},
	}
	return app.Run(ctx, args)
}
