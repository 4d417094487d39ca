package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trelay/railstream/analysis"
	"github.com/trelay/railstream/cache"
	"github.com/trelay/railstream/config"
	"github.com/trelay/railstream/history"
	"github.com/trelay/railstream/hsp"
	"github.com/trelay/railstream/log"
	"github.com/trelay/railstream/server"
	"github.com/trelay/railstream/stations"
)

// DefaultAddr is the listen address when neither flag nor config set one.
const DefaultAddr = ":8080"

const shutdownTimeout = 10 * time.Second

// ServeCommand returns the serve command: run the analysis API server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the analysis API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, e.g. :8080",
			},
			&cli.StringFlag{
				Name:    "hsp-email",
				Usage:   "HSP data portal email",
				EnvVars: []string{"RAIL_EMAIL"},
			},
			&cli.StringFlag{
				Name:    "hsp-password",
				Usage:   "HSP data portal password",
				EnvVars: []string{"RAIL_PWORD"},
			},
			ConfigFlag,
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := log.NewLogger()

	srv, store, err := buildServer(c, cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	addr := c.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if addr == "" {
		addr = DefaultAddr
	}

	httpSrv := &http.Server{Addr: addr, Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", map[string]any{"addr": addr})
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return cli.Exit(err.Error(), exitFailure)
		}
		return nil
	case sig := <-sigCh:
		logger.Info("shutting down", map[string]any{"signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			return cli.Exit(err.Error(), exitFailure)
		}
		return nil
	}
}

// buildServer assembles the full producer stack from config and flags.
func buildServer(c *cli.Context, cfg *config.Config, logger *log.Logger) (*server.Server, *cache.Store, error) {
	email := c.String("hsp-email")
	if email == "" {
		email = cfg.Upstream.Email
	}
	password := c.String("hsp-password")
	if password == "" {
		password = cfg.Upstream.Password
	}

	var store *cache.Store
	if cfg.Cache.URL != "" {
		var err error
		store, err = cache.New(cache.Config{
			URL:       cfg.Cache.URL,
			TTL:       cfg.Cache.TTL.Duration,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
	}

	hspClient, err := hsp.New(hsp.Config{
		BaseURL:  cfg.Upstream.BaseURL,
		Email:    email,
		Password: password,
		Timeout:  cfg.Upstream.Timeout.Duration,
		Cache:    store,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}

	directory := stations.Default()
	if cfg.Stations.Path != "" {
		directory, err = stations.LoadDirectory(cfg.Stations.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("stations: %w", err)
		}
	}

	sink, err := buildHistorySink(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	srv, err := server.New(server.Config{
		Engine:   analysis.NewEngine(hspClient, directory, logger),
		Stations: directory,
		Cache:    store,
		History:  sink,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return srv, store, nil
}

func buildHistorySink(cfg *config.Config, logger *log.Logger) (*history.Sink, error) {
	sinkCfg := history.Config{Logger: logger}
	switch cfg.History.Backend {
	case "":
		return nil, nil
	case "fs":
		if cfg.History.Path == "" {
			return nil, errors.New("history: fs backend requires a path")
		}
		return history.NewFSSink(sinkCfg, cfg.History.Path)
	case "s3":
		bucket, prefix := history.ParseS3Path(cfg.History.Path)
		return history.NewS3Sink(sinkCfg, history.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.History.Region,
			Endpoint:     cfg.History.Endpoint,
			UsePathStyle: cfg.History.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("history: unknown backend %q (must be fs or s3)", cfg.History.Backend)
	}
}
