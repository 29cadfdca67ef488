package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dshills/contentsearch/internal/config"
	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/internal/searcher"
	"github.com/dshills/contentsearch/internal/worker"
)

// workerCommand is the hidden entry point spawned by process-mode pools
func workerCommand() *cli.Command {
	return &cli.Command{
		Name:   searcher.WorkerSubcommand,
		Usage:  "Serve search requests on stdin/stdout (internal)",
		Hidden: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Batches searched at once",
				Value: 1,
			},
		},
		Action: runWorker,
	}
}

func runWorker(c *cli.Context) error {
	// Only the environment applies here: the parent does not forward flags.
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("worker started", "pid", os.Getpid())
	return worker.Serve(ctx, os.Stdin, os.Stdout, worker.ServeOptions{
		Concurrency: c.Int("concurrency"),
		Logger:      logger.With("worker_pid", os.Getpid()),
	})
}
