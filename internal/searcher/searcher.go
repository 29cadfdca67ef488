package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/contentsearch/internal/config"
	"github.com/dshills/contentsearch/internal/engine"
	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/internal/matcher"
	"github.com/dshills/contentsearch/internal/storage"
	"github.com/dshills/contentsearch/internal/walker"
	"github.com/dshills/contentsearch/internal/worker"
	"github.com/dshills/contentsearch/pkg/types"
)

var (
	// ErrInvalidRequest wraps every validation failure of a Request
	ErrInvalidRequest = errors.New("invalid search request")
	// ErrHistoryDisabled is returned by History when no storage is configured
	ErrHistoryDisabled = errors.New("search history is disabled")
)

// MaxRecordedFiles caps how many matched files are stored with a run
const MaxRecordedFiles = 1000

// WorkerSubcommand is the argument that turns the binary into a worker process
const WorkerSubcommand = "worker"

// Request is one search. Walker, when set, replaces the configured walker
// settings for this search only.
type Request struct {
	Search config.Search
	Walker *config.Walker

	// OnResult and OnProgress, when set, are called as the search runs
	OnResult   func(types.FileMatch)
	OnProgress func(types.ProgressEvent)
	// StreamOnly stops matches from being collected into the Response
	StreamOnly bool
}

// Response is the outcome of a finished search
type Response struct {
	RunID       string            `json:"run_id,omitempty"`
	Matches     []types.FileMatch `json:"matches"`
	NumFiles    int               `json:"num_files"`
	NumMatches  int               `json:"num_matches"`
	Completion  types.Completion  `json:"completion"`
	Duration    time.Duration     `json:"duration"`
	WorkerMode  string            `json:"worker_mode"`
	WorkerCount int               `json:"worker_count"`
}

// Options configures a Searcher
type Options struct {
	Logger *slog.Logger
	// WorkerCommand launches a worker process; default is this executable
	// followed by WorkerSubcommand
	WorkerCommand []string
	WorkerEnv     []string
}

// Status reports searcher activity
type Status struct {
	ActiveSearches int64     `json:"active_searches"`
	TotalSearches  int64     `json:"total_searches"`
	FailedSearches int64     `json:"failed_searches"`
	LastRunID      string    `json:"last_run_id,omitempty"`
	LastFinishedAt time.Time `json:"last_finished_at,omitempty"`
	WorkerMode     string    `json:"worker_mode"`
	Workers        int       `json:"workers"`
	HistoryEnabled bool      `json:"history_enabled"`
}

// Searcher wires walker, worker pool and engine together for each search and
// blocks until the search completes
type Searcher struct {
	cfg     *config.Config
	storage storage.Storage
	opts    Options
	logger  *slog.Logger

	active atomic.Int64
	total  atomic.Int64
	failed atomic.Int64

	mu             sync.Mutex
	lastRunID      string
	lastFinishedAt time.Time
}

// New creates a Searcher. store may be nil to disable history.
func New(cfg *config.Config, store storage.Storage, opts Options) *Searcher {
	return &Searcher{
		cfg:     cfg,
		storage: store,
		opts:    opts,
		logger:  logging.OrDiscard(opts.Logger),
	}
}

// PatternFor converts the search settings into a worker pattern
func PatternFor(s config.Search) matcher.Pattern {
	return matcher.Pattern{
		Expr:          s.Pattern,
		IsRegExp:      s.IsRegExp,
		CaseSensitive: s.CaseSensitive,
		WordMatch:     s.WordMatch,
		Encoding:      s.Encoding,
	}
}

// DefaultWorkerCommand returns the command that runs this executable as a worker
func DefaultWorkerCommand() ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return []string{exe, WorkerSubcommand}, nil
}

// Search runs one search to completion. Canceling ctx cancels the search;
// the partial response is returned with Completion.Canceled set and no error.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	if err := req.Search.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	pattern := PatternFor(req.Search)
	if _, err := pattern.Compile(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s.active.Add(1)
	defer s.active.Add(-1)
	s.total.Add(1)

	startedAt := time.Now()

	w, err := s.newWalker(req.Walker)
	if err != nil {
		s.failed.Add(1)
		return nil, err
	}
	pool, err := s.newPool(pattern)
	if err != nil {
		s.failed.Add(1)
		return nil, err
	}

	eng, err := engine.New(req.Search, w, pool, engine.Options{
		FlushThreshold: s.cfg.Engine.FlushThreshold,
		ProgressEvery:  s.cfg.Engine.ProgressEvery,
		Logger:         s.logger,
	})
	if err != nil {
		_ = pool.Close()
		s.failed.Add(1)
		return nil, err
	}

	resp := &Response{
		WorkerMode:  s.cfg.Engine.WorkerMode,
		WorkerCount: pool.Size(),
	}
	var (
		searchErr error
		files     []storage.RunFile
		finished  = make(chan struct{})
	)

	eng.Search(
		func(fm types.FileMatch) {
			resp.NumFiles++
			resp.NumMatches += fm.NumMatches()
			if s.storage != nil && len(files) < MaxRecordedFiles {
				files = append(files, storage.RunFile{Path: fm.Path, Matches: fm.NumMatches()})
			}
			if !req.StreamOnly {
				resp.Matches = append(resp.Matches, fm)
			}
			if req.OnResult != nil {
				req.OnResult(fm)
			}
		},
		req.OnProgress,
		func(err error, c types.Completion) {
			searchErr = err
			resp.Completion = c
			close(finished)
		})

	select {
	case <-finished:
	case <-ctx.Done():
		s.logger.Debug("context done, canceling search", "reason", ctx.Err())
		eng.Cancel()
		<-finished
	}
	resp.Duration = time.Since(startedAt)

	if searchErr != nil {
		s.failed.Add(1)
	}
	resp.RunID = s.record(req, resp, files, startedAt, searchErr)

	s.logger.Info("search finished",
		"pattern", req.Search.Pattern,
		"files", resp.NumFiles,
		"matches", resp.NumMatches,
		"duration", resp.Duration,
		"limit_hit", resp.Completion.LimitHit,
		"canceled", resp.Completion.Canceled)

	if searchErr != nil {
		return resp, fmt.Errorf("search failed: %w", searchErr)
	}
	return resp, nil
}

func (s *Searcher) newWalker(override *config.Walker) (*walker.FileWalker, error) {
	wc := s.cfg.Walker
	if override != nil {
		wc = *override
	}
	w, err := walker.New(walker.Options{
		Include:        wc.Include,
		Exclude:        wc.Exclude,
		IncludeHidden:  wc.IncludeHidden,
		FollowSymlinks: wc.FollowSymlinks,
		MaxFileSize:    wc.MaxFileSize,
		MaxFiles:       wc.MaxFiles,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid walker settings: %w", ErrInvalidRequest, err)
	}
	return w, nil
}

func (s *Searcher) newPool(pattern matcher.Pattern) (*worker.Pool, error) {
	switch s.cfg.Engine.WorkerMode {
	case config.WorkerModeLocal:
		return worker.NewLocalPool(s.cfg.Engine.Workers, pattern, s.logger)
	case config.WorkerModeProcess, "":
		command := s.opts.WorkerCommand
		if len(command) == 0 {
			var err error
			if command, err = DefaultWorkerCommand(); err != nil {
				return nil, err
			}
		}
		return worker.NewProcessPool(s.cfg.Engine.Workers, worker.ProcessConfig{
			Command: command,
			Env:     s.opts.WorkerEnv,
			Logger:  s.logger,
		}, pattern)
	default:
		return nil, fmt.Errorf("unknown worker mode %q", s.cfg.Engine.WorkerMode)
	}
}

// record stores the run in history. Failures are logged, not returned: a
// search that worked should not fail because history could not be written.
func (s *Searcher) record(req Request, resp *Response, files []storage.RunFile, startedAt time.Time, searchErr error) string {
	finishedAt := startedAt.Add(resp.Duration)

	s.mu.Lock()
	s.lastFinishedAt = finishedAt
	s.mu.Unlock()

	if s.storage == nil {
		return ""
	}

	run := &storage.Run{
		Pattern:       req.Search.Pattern,
		IsRegExp:      req.Search.IsRegExp,
		CaseSensitive: req.Search.CaseSensitive,
		WordMatch:     req.Search.WordMatch,
		Encoding:      req.Search.Encoding,
		Roots:         append(append([]string{}, req.Search.Roots...), req.Search.ExtraFiles...),
		MaxResults:    req.Search.MaxResults,
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
		FilesMatched:  resp.NumFiles,
		LineMatches:   resp.NumMatches,
		FilesScanned:  resp.Completion.Stats.FilesScanned,
		BytesSearched: resp.Completion.Bytes.Total,
		LimitHit:      resp.Completion.LimitHit,
		Canceled:      resp.Completion.Canceled,
		Files:         files,
	}
	if searchErr != nil {
		run.Error = searchErr.Error()
	}

	// history is written even when the caller's context is already done
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.storage.RecordRun(ctx, run); err != nil {
		s.logger.Warn("failed to record search run", "error", err)
		return ""
	}

	s.mu.Lock()
	s.lastRunID = run.ID
	s.mu.Unlock()
	return run.ID
}

// WalkerConfig returns a copy of the configured walker settings, the base
// for per-request overrides
func (s *Searcher) WalkerConfig() config.Walker {
	wc := s.cfg.Walker
	wc.Include = slices.Clone(wc.Include)
	wc.Exclude = slices.Clone(wc.Exclude)
	return wc
}

// History returns the storage backing the searcher, or ErrHistoryDisabled
func (s *Searcher) History() (storage.Storage, error) {
	if s.storage == nil {
		return nil, ErrHistoryDisabled
	}
	return s.storage, nil
}

// Status reports current activity
func (s *Searcher) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	workers := s.cfg.Engine.Workers
	if workers <= 0 {
		workers = worker.DefaultPoolSize()
	}
	return Status{
		ActiveSearches: s.active.Load(),
		TotalSearches:  s.total.Load(),
		FailedSearches: s.failed.Load(),
		LastRunID:      s.lastRunID,
		LastFinishedAt: s.lastFinishedAt,
		WorkerMode:     s.cfg.Engine.WorkerMode,
		Workers:        workers,
		HistoryEnabled: s.storage != nil,
	}
}
