package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/trelay/railstream/cli/render"
	"github.com/trelay/railstream/client"
)

// CacheCommand returns the cache command group: inspect and clear the
// server's upstream cache.
func CacheCommand() *cli.Command {
	flags := append([]cli.Flag{ServerFlag}, OutputFlags()...)
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the server's upstream cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache hit/miss counters and entry count",
				Flags:  flags,
				Action: cacheStatsAction,
			},
			{
				Name:   "clear",
				Usage:  "Remove all cached upstream entries",
				Flags:  flags,
				Action: cacheClearAction,
			},
		},
	}
}

func cacheStatsAction(c *cli.Context) error {
	renderer, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cl, err := serverClient(c)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	stats, err := cl.CacheStats(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	return renderer.Render(stats)
}

func cacheClearAction(c *cli.Context) error {
	renderer, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cl, err := serverClient(c)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	removed, err := cl.ClearCache(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	return renderer.Render(map[string]int64{"removed": removed})
}

func serverClient(c *cli.Context) (*client.Client, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	baseURL, err := serverURL(c, cfg)
	if err != nil {
		return nil, err
	}
	cl, err := client.New(client.Config{BaseURL: baseURL, Headers: cfg.Client.Headers})
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return cl, nil
}
