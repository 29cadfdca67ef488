// Package storage provides SQLite-based persistence for search history.
//
// The search engine itself is stateless. The searcher records every finished
// run here so the CLI and MCP server can show what was searched, when, and
// what came back.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations
//   - search_runs: one row per finished search (pattern, roots, counters, outcome)
//   - run_files: matched files of a run, deleted with the run
//
// Timestamps are stored as unix milliseconds.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.contentsearch/history.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	run := &storage.Run{Pattern: "TODO", Roots: []string{"/src"}, StartedAt: start, FinishedAt: time.Now()}
//	if err := db.RecordRun(ctx, run); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(run.ID) // a fresh UUID
//
//	recent, _ := db.ListRuns(ctx, storage.ListFilter{Limit: 10, Pattern: "TODO"})
//
// # Drivers
//
// The default build uses modernc.org/sqlite, a pure Go driver. Building with
// the sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
//
// BuildMode reports which one is compiled in.
//
// # Migrations
//
// Migrations are ordered by semantic version and applied on open. Each
// applied version is recorded in schema_version; RollbackMigration undoes the
// newest one.
//
// # Concurrency
//
// The database runs in WAL mode with a single open connection, so writes are
// serialized by database/sql and a Storage is safe for concurrent use.
package storage
