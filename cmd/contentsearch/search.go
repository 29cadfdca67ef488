package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/dshills/contentsearch/internal/config"
	"github.com/dshills/contentsearch/internal/searcher"
	"github.com/dshills/contentsearch/pkg/types"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Search file contents under one or more folders",
		ArgsUsage: "<pattern> [folder...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "regexp",
				Aliases: []string{"e"},
				Usage:   "Treat the pattern as a regular expression",
			},
			&cli.BoolFlag{
				Name:    "case-sensitive",
				Aliases: []string{"s"},
				Usage:   "Case-sensitive search",
			},
			&cli.BoolFlag{
				Name:    "word",
				Aliases: []string{"x"},
				Usage:   "Match whole words only",
			},
			&cli.StringFlag{
				Name:  "encoding",
				Usage: "Content encoding label (e.g. windows-1252, shift_jis)",
			},
			&cli.IntFlag{
				Name:    "max-results",
				Aliases: []string{"n"},
				Usage:   "Max number of matching files (0 = unlimited)",
			},
			&cli.StringSliceFlag{
				Name:  "file",
				Usage: "Extra file to search in addition to the folders",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns (e.g., --include '**/*.go')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns",
			},
			&cli.BoolFlag{
				Name:  "hidden",
				Usage: "Search hidden files and folders",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output matches as JSON lines",
			},
			&cli.BoolFlag{
				Name:    "progress",
				Aliases: []string{"p"},
				Usage:   "Report progress on stderr",
			},
		},
		Action: runSearch,
	}
}

func runSearch(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("search requires a pattern", 2)
	}

	cfg, srch, logger, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	folders := c.Args().Tail()
	if len(folders) == 0 && len(c.StringSlice("file")) == 0 {
		folders = []string{"."}
	}
	roots, err := absPaths(folders)
	if err != nil {
		return err
	}
	extra, err := absPaths(c.StringSlice("file"))
	if err != nil {
		return err
	}

	req := searcher.Request{
		Search: config.Search{
			Roots:         roots,
			ExtraFiles:    extra,
			Pattern:       c.Args().First(),
			IsRegExp:      c.Bool("regexp"),
			CaseSensitive: c.Bool("case-sensitive"),
			WordMatch:     c.Bool("word"),
			Encoding:      c.String("encoding"),
			MaxResults:    c.Int("max-results"),
		},
		StreamOnly: true,
	}
	if c.IsSet("include") || c.IsSet("exclude") || c.IsSet("hidden") {
		walker := cfg.Walker
		if c.IsSet("include") {
			walker.Include = c.StringSlice("include")
		}
		if c.IsSet("exclude") {
			walker.Exclude = c.StringSlice("exclude")
		}
		if c.IsSet("hidden") {
			walker.IncludeHidden = c.Bool("hidden")
		}
		req.Walker = &walker
	}

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		req.OnResult = func(fm types.FileMatch) {
			if err := enc.Encode(fm); err != nil {
				logger.Warn("failed to write match", "path", fm.Path, "error", err)
			}
		}
	} else {
		req.OnResult = func(fm types.FileMatch) {
			for _, lm := range fm.LineMatches {
				fmt.Fprintf(out, "%s:%d: %s\n", fm.Path, lm.LineNumber, lm.Text)
			}
		}
	}
	if c.Bool("progress") {
		req.OnProgress = func(p types.ProgressEvent) {
			fmt.Fprintf(os.Stderr, "\r%5.1f%% of %s", p.Percent(), humanize.Bytes(uint64(p.Total)))
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := srch.Search(ctx, req)
	if c.Bool("progress") {
		fmt.Fprintln(os.Stderr)
	}
	if resp != nil {
		printSummary(resp)
	}
	if err != nil {
		return err
	}
	if resp.NumFiles == 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func printSummary(resp *searcher.Response) {
	status := ""
	switch {
	case resp.Completion.Canceled:
		status = " (canceled)"
	case resp.Completion.LimitHit:
		status = " (limit reached)"
	}
	fmt.Fprintf(os.Stderr, "%s matches in %s files, searched %s in %s files with %d %s workers%s\n",
		humanize.Comma(int64(resp.NumMatches)),
		humanize.Comma(int64(resp.NumFiles)),
		humanize.Bytes(uint64(resp.Completion.Bytes.Total)),
		humanize.Comma(resp.Completion.Stats.FilesScanned),
		resp.WorkerCount,
		resp.WorkerMode,
		status,
	)
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %q: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}
