// Package searcher is the blocking entry point used by the CLI and the MCP
// server.
//
// For each request it builds a fresh walker, worker pool and engine from the
// configuration, runs the callback-driven engine to completion and records
// the run in the history store.
//
// # Basic Usage
//
//	s := searcher.New(cfg, store, searcher.Options{Logger: logger})
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    Search: config.Search{Roots: []string{"."}, Pattern: "TODO"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, fm := range resp.Matches {
//	    fmt.Println(fm.Path, fm.NumMatches())
//	}
//
// # Streaming
//
// Set OnResult to receive matches as batches finish, and StreamOnly to skip
// collecting them into the response:
//
//	s.Search(ctx, searcher.Request{
//	    Search:     search,
//	    OnResult:   func(fm types.FileMatch) { print(fm) },
//	    StreamOnly: true,
//	})
//
// # Cancellation
//
// Canceling ctx cancels the engine. Search still waits for outstanding
// batches, then returns the partial response with Completion.Canceled set.
//
// # Workers
//
// In process mode (the default) each search starts its own worker processes
// by running this executable with the "worker" subcommand; they exit when
// the search completes. Local mode runs the workers as goroutines.
package searcher
