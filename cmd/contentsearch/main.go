package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dshills/contentsearch/internal/config"
	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/internal/searcher"
	"github.com/dshills/contentsearch/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "contentsearch\n")
		fmt.Fprintf(c.App.Writer, "Version: %s\n", version)
		fmt.Fprintf(c.App.Writer, "Build Time: %s\n", buildTime)
		fmt.Fprintf(c.App.Writer, "Build Mode: %s\n", storage.BuildMode)
		fmt.Fprintf(c.App.Writer, "SQLite Driver: %s\n", storage.DriverName)
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "contentsearch",
		Usage:                  "Parallel content search over folder trees",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file path",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Number of search workers (0 = half the CPUs)",
			},
			&cli.StringFlag{
				Name:  "worker-mode",
				Usage: "Worker mode: process or local",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Usage: "Search history database path",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record search runs",
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			serveCommand(),
			historyCommand(),
			workerCommand(),
		},
	}
}

// loadConfig reads the config file and environment, then applies global flags
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("workers") {
		cfg.Engine.Workers = c.Int("workers")
	}
	if c.IsSet("worker-mode") {
		cfg.Engine.WorkerMode = c.String("worker-mode")
	}
	if c.IsSet("db-path") {
		cfg.Storage.DBPath = c.String("db-path")
	}
	if c.Bool("no-history") {
		cfg.Storage.Disabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStorage opens the history database unless history is disabled
func openStorage(cfg *config.Config) (*storage.SQLiteStorage, error) {
	if cfg.Storage.Disabled {
		return nil, nil
	}
	dbPath, err := config.ExpandHome(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history at %s: %w", dbPath, err)
	}
	return store, nil
}

// setup loads config, logger and history, and builds a searcher. The returned
// cleanup closes the history database.
func setup(c *cli.Context) (*config.Config, *searcher.Searcher, *slog.Logger, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	// a nil *SQLiteStorage must not become a non-nil interface
	var history storage.Storage
	cleanup := func() {}
	if store != nil {
		history = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close history", "error", err)
			}
		}
	}

	srch := searcher.New(cfg, history, searcher.Options{Logger: logger})
	return cfg, srch, logger, cleanup, nil
}
