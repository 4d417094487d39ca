package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/trelay/railstream/cli/render"
	"github.com/trelay/railstream/config"
	"github.com/trelay/railstream/stations"
)

// StationsCommand returns the stations command group: search and lookup
// against the station directory.
func StationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stations",
		Usage: "Search the station directory",
		Subcommands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Autocomplete stations by code or name",
				ArgsUsage: "<query>",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches",
						Value: stations.DefaultSearchLimit,
					},
				}, OutputFlags()...),
				Action: stationsSearchAction,
			},
			{
				Name:      "lookup",
				Usage:     "Resolve a CRS code to a station name",
				ArgsUsage: "<crs>",
				Flags:     OutputFlags(),
				Action:    stationsLookupAction,
			},
		},
	}
}

func stationsSearchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: railstream stations search <query>", exitFailure)
	}
	renderer, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	directory, err := directoryFromConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	matches := directory.Search(c.Args().First(), c.Int("limit"))
	return renderer.Render(matches)
}

func stationsLookupAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: railstream stations lookup <crs>", exitFailure)
	}
	renderer, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	directory, err := directoryFromConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	crs := strings.ToUpper(c.Args().First())
	station, ok := directory.Lookup(crs)
	if !ok {
		return cli.Exit(fmt.Sprintf("unknown station code %q", crs), exitFailure)
	}
	return renderer.Render(station)
}

func directoryFromConfig(c *cli.Context) (*stations.Directory, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return directoryFor(cfg)
}

func directoryFor(cfg *config.Config) (*stations.Directory, error) {
	if cfg.Stations.Path == "" {
		return stations.Default(), nil
	}
	return stations.LoadDirectory(cfg.Stations.Path)
}
