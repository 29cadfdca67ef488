package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/dshills/contentsearch/internal/storage"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded search runs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Max runs to show",
						Value:   storage.DefaultListLimit,
					},
					&cli.StringFlag{
						Name:  "pattern",
						Usage: "Only runs whose pattern contains this text",
					},
					&cli.DurationFlag{
						Name:  "since",
						Usage: "Only runs started within this duration (e.g. 24h)",
					},
				},
				Action: runHistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one run and the files it matched",
				ArgsUsage: "<run-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: runHistoryShow,
			},
			{
				Name:  "prune",
				Usage: "Delete runs older than a duration",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:     "older-than",
						Usage:    "Age of runs to delete (e.g. 720h)",
						Required: true,
					},
				},
				Action: runHistoryPrune,
			},
			{
				Name:   "stats",
				Usage:  "Show history database statistics",
				Action: runHistoryStats,
			},
		},
	}
}

// openHistory opens the history database for the history subcommands
func openHistory(c *cli.Context) (*storage.SQLiteStorage, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Disabled {
		return nil, cli.Exit("search history is disabled", 1)
	}
	return openStorage(cfg)
}

func runHistoryList(c *cli.Context) error {
	store, err := openHistory(c)
	if err != nil {
		return err
	}
	defer store.Close()

	filter := storage.ListFilter{
		Limit:   c.Int("limit"),
		Pattern: c.String("pattern"),
	}
	if d := c.Duration("since"); d > 0 {
		filter.Since = time.Now().Add(-d)
	}

	runs, err := store.ListRuns(c.Context, filter)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(c.App.Writer, "No runs recorded")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(c.App.Writer, "%s  %-14s  %-30q  %d files, %d matches%s\n",
			run.ID,
			humanize.Time(run.StartedAt),
			run.Pattern,
			run.FilesMatched,
			run.LineMatches,
			runFlags(run))
	}
	return nil
}

func runHistoryShow(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("history show requires a run id", 2)
	}
	store, err := openHistory(c)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Pattern:   %q (regexp=%v, case=%v, word=%v)\n", run.Pattern, run.IsRegExp, run.CaseSensitive, run.WordMatch)
	fmt.Fprintf(w, "Roots:     %s\n", strings.Join(run.Roots, ", "))
	fmt.Fprintf(w, "Started:   %s (%s)\n", run.StartedAt.Format(time.RFC3339), humanize.Time(run.StartedAt))
	fmt.Fprintf(w, "Duration:  %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Scanned:   %s files, %s\n", humanize.Comma(run.FilesScanned), humanize.Bytes(uint64(run.BytesSearched)))
	fmt.Fprintf(w, "Matched:   %d files, %d matches%s\n", run.FilesMatched, run.LineMatches, runFlags(run))
	if run.Failed() {
		fmt.Fprintf(w, "Error:     %s\n", run.Error)
	}
	for _, f := range run.Files {
		fmt.Fprintf(w, "  %4d  %s\n", f.Matches, f.Path)
	}
	return nil
}

func runHistoryPrune(c *cli.Context) error {
	store, err := openHistory(c)
	if err != nil {
		return err
	}
	defer store.Close()

	cutoff := time.Now().Add(-c.Duration("older-than"))
	n, err := store.DeleteRunsBefore(c.Context, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %d runs started before %s\n", n, cutoff.Format(time.RFC3339))
	return nil
}

func runHistoryStats(c *cli.Context) error {
	store, err := openHistory(c)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(c.Context)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Runs:           %d (%d failed, %d canceled)\n", stats.TotalRuns, stats.FailedRuns, stats.CanceledRuns)
	fmt.Fprintf(w, "Files recorded: %d\n", stats.FilesRecorded)
	if !stats.LastRunAt.IsZero() {
		fmt.Fprintf(w, "Last run:       %s\n", humanize.Time(stats.LastRunAt))
	}
	fmt.Fprintf(w, "Database size:  %s\n", humanize.Bytes(uint64(stats.SizeBytes)))
	fmt.Fprintf(w, "Schema version: %s\n", stats.SchemaVersion)
	fmt.Fprintf(w, "Build mode:     %s\n", stats.BuildMode)
	return nil
}

func runFlags(run *storage.Run) string {
	var flags []string
	if run.LimitHit {
		flags = append(flags, "limit")
	}
	if run.Canceled {
		flags = append(flags, "canceled")
	}
	if run.Failed() {
		flags = append(flags, "failed")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ",") + "]"
}
