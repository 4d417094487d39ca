// Package cmd provides CLI commands for the railstream binary.
package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/trelay/railstream/config"
)

// Exit codes: a session that settles cancelled is not a failure.
const (
	exitSuccess   = 0
	exitFailure   = 1
	exitCancelled = 2
)

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// ConfigFlag points at a railstream.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to railstream.yaml",
		EnvVars: []string{"RAILSTREAM_CONFIG"},
	}

	// ServerFlag points commands at a running analysis server.
	ServerFlag = &cli.StringFlag{
		Name:  "server",
		Usage: "Base URL of the analysis server, e.g. http://localhost:8080",
	}
)

// OutputFlags returns the flags shared by commands that render output.
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, ConfigFlag}
}

// loadConfig reads the config file named by --config. A missing flag loads
// nothing; flag values always override whatever the file provides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// serverURL resolves the server base URL from the flag or config.
func serverURL(c *cli.Context, cfg *config.Config) (string, error) {
	if url := c.String("server"); url != "" {
		return url, nil
	}
	if cfg.Client.ServerURL != "" {
		return cfg.Client.ServerURL, nil
	}
	return "", fmt.Errorf("no server URL: pass --server or set client.server_url in the config")
}

// isStderrTTY reports whether stderr is attached to a terminal, gating the
// interactive progress output.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
