package storage

import (
	"context"
	"time"
)

// Storage persists the history of finished searches
type Storage interface {
	// RecordRun stores a finished run and its matched files. An empty ID is
	// replaced by a fresh UUID.
	RecordRun(ctx context.Context, run *Run) error
	// GetRun returns a run with its matched files, or ErrNotFound
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns runs newest first, without their files
	ListRuns(ctx context.Context, filter ListFilter) ([]*Run, error)
	// DeleteRunsBefore removes runs started before t and reports how many went
	DeleteRunsBefore(ctx context.Context, t time.Time) (int, error)
	// Stats summarizes the stored history
	Stats(ctx context.Context) (*HistoryStats, error)

	Close() error
}

// Run is one finished search
type Run struct {
	ID            string    `json:"id"`
	Pattern       string    `json:"pattern"`
	IsRegExp      bool      `json:"is_regexp"`
	CaseSensitive bool      `json:"case_sensitive"`
	WordMatch     bool      `json:"word_match"`
	Encoding      string    `json:"encoding,omitempty"`
	Roots         []string  `json:"roots"`
	MaxResults    int       `json:"max_results"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	FilesMatched  int       `json:"files_matched"`
	LineMatches   int       `json:"line_matches"`
	FilesScanned  int64     `json:"files_scanned"`
	BytesSearched int64     `json:"bytes_searched"`
	LimitHit      bool      `json:"limit_hit"`
	Canceled      bool      `json:"canceled"`
	Error         string    `json:"error,omitempty"`
	Files         []RunFile `json:"files,omitempty"`
}

// Duration returns how long the run took
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether the run ended with an error
func (r *Run) Failed() bool {
	return r.Error != ""
}

// RunFile is a matched file recorded with a run
type RunFile struct {
	Path    string `json:"path"`
	Matches int    `json:"matches"`
}

// ListFilter narrows ListRuns
type ListFilter struct {
	Limit   int       // default DefaultListLimit
	Pattern string    // substring of the stored pattern
	Since   time.Time // runs started at or after
}

// DefaultListLimit is used when ListFilter.Limit is zero
const DefaultListLimit = 20

// HistoryStats summarizes the stored history
type HistoryStats struct {
	TotalRuns     int       `json:"total_runs"`
	FailedRuns    int       `json:"failed_runs"`
	CanceledRuns  int       `json:"canceled_runs"`
	FilesRecorded int       `json:"files_recorded"`
	LastRunAt     time.Time `json:"last_run_at"`
	SizeBytes     int64     `json:"size_bytes"`
	SchemaVersion string    `json:"schema_version"`
	BuildMode     string    `json:"build_mode"`
}
