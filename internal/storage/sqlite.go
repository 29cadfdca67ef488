package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the history database at dbPath
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const runColumns = `id, pattern, is_regexp, case_sensitive, word_match, encoding, roots,
	max_results, started_at, finished_at, files_matched, line_matches, files_scanned,
	bytes_searched, limit_hit, canceled, error`

// RecordRun stores the run and its files in one transaction
func (s *SQLiteStorage) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRunWithQuerier(ctx, tx, run); err != nil {
		return err
	}
	if err := insertRunFilesWithQuerier(ctx, tx, run.ID, run.Files); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func insertRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	roots, err := json.Marshal(nonNil(run.Roots))
	if err != nil {
		return fmt.Errorf("failed to encode roots: %w", err)
	}

	query := `INSERT INTO search_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.ExecContext(ctx, query,
		run.ID, run.Pattern, run.IsRegExp, run.CaseSensitive, run.WordMatch,
		nullString(run.Encoding), string(roots), run.MaxResults,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.FilesMatched, run.LineMatches, run.FilesScanned, run.BytesSearched,
		run.LimitHit, run.Canceled, nullString(run.Error))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func insertRunFilesWithQuerier(ctx context.Context, q querier, runID string, files []RunFile) error {
	for _, f := range files {
		_, err := q.ExecContext(ctx,
			`INSERT INTO run_files (run_id, path, match_count) VALUES (?, ?, ?)`,
			runID, f.Path, f.Matches)
		if err != nil {
			return fmt.Errorf("failed to insert run file %s: %w", f.Path, err)
		}
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                 Run
		encoding, errText   sql.NullString
		roots               string
		startedAt, finished int64
	)
	err := row.Scan(&run.ID, &run.Pattern, &run.IsRegExp, &run.CaseSensitive, &run.WordMatch,
		&encoding, &roots, &run.MaxResults, &startedAt, &finished,
		&run.FilesMatched, &run.LineMatches, &run.FilesScanned, &run.BytesSearched,
		&run.LimitHit, &run.Canceled, &errText)
	if err != nil {
		return nil, err
	}

	run.Encoding = encoding.String
	run.Error = errText.String
	run.StartedAt = time.UnixMilli(startedAt)
	run.FinishedAt = time.UnixMilli(finished)
	if err := json.Unmarshal([]byte(roots), &run.Roots); err != nil {
		return nil, fmt.Errorf("failed to decode roots of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// GetRun returns the run and its matched files
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM search_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, match_count FROM run_files WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f RunFile
		if err := rows.Scan(&f.Path, &f.Matches); err != nil {
			return nil, err
		}
		run.Files = append(run.Files, f)
	}
	return run, rows.Err()
}

// ListRuns returns runs newest first
func (s *SQLiteStorage) ListRuns(ctx context.Context, filter ListFilter) ([]*Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + runColumns + ` FROM search_runs WHERE 1=1`
	var args []interface{}
	if filter.Pattern != "" {
		query += ` AND instr(pattern, ?) > 0`
		args = append(args, filter.Pattern)
	}
	if !filter.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.Since.UnixMilli())
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRunsBefore removes runs started before t; their files cascade
func (s *SQLiteStorage) DeleteRunsBefore(ctx context.Context, t time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM search_runs WHERE started_at < ?`, t.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Stats summarizes the stored history
func (s *SQLiteStorage) Stats(ctx context.Context) (*HistoryStats, error) {
	stats := &HistoryStats{BuildMode: BuildMode}

	var lastRun sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN error IS NOT NULL AND error != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN canceled THEN 1 ELSE 0 END), 0),
		       MAX(started_at)
		FROM search_runs`).Scan(&stats.TotalRuns, &stats.FailedRuns, &stats.CanceledRuns, &lastRun)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	if lastRun.Valid {
		stats.LastRunAt = time.UnixMilli(lastRun.Int64)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_files`).Scan(&stats.FilesRecorded); err != nil {
		return nil, fmt.Errorf("failed to count run files: %w", err)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("failed to read page size: %w", err)
	}
	stats.SizeBytes = pageCount * pageSize

	version, err := schemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version.String()

	return stats, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
