// Package config loads contentsearch settings from defaults, an optional TOML
// file and CONTENTSEARCH_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/internal/worker"
)

const (
	// DefaultFlushThreshold is the batch size in bytes that triggers a dispatch
	DefaultFlushThreshold int64 = 5_000_000
	// DefaultProgressEvery is the number of files between progress events
	DefaultProgressEvery = 50
	// DefaultDBPath is where search history is kept
	DefaultDBPath = "~/.contentsearch/history.db"

	WorkerModeProcess = "process"
	WorkerModeLocal   = "local"
)

// Environment variables read by ApplyEnv
const (
	EnvDBPath     = "CONTENTSEARCH_DB_PATH"
	EnvWorkers    = "CONTENTSEARCH_WORKERS"
	EnvLogLevel   = "CONTENTSEARCH_LOG_LEVEL"
	EnvWorkerMode = "CONTENTSEARCH_WORKER_MODE"
)

var (
	ErrNoRoots      = errors.New("at least one root folder or extra file is required")
	ErrEmptyPattern = errors.New("search pattern cannot be empty")
)

type Config struct {
	Search  Search         `toml:"search"`
	Walker  Walker         `toml:"walker"`
	Engine  Engine         `toml:"engine"`
	Storage Storage        `toml:"storage"`
	Log     logging.Config `toml:"log"`
}

// Search describes one content query
type Search struct {
	Roots         []string `toml:"roots"`
	ExtraFiles    []string `toml:"extra_files"`
	Pattern       string   `toml:"pattern"`
	IsRegExp      bool     `toml:"regexp"`
	CaseSensitive bool     `toml:"case_sensitive"`
	WordMatch     bool     `toml:"word_match"`
	Encoding      string   `toml:"encoding"`    // empty means UTF-8
	MaxResults    int      `toml:"max_results"` // 0 means unlimited
}

// Walker controls which files are candidates
type Walker struct {
	Include        []string `toml:"include"`
	Exclude        []string `toml:"exclude"`
	IncludeHidden  bool     `toml:"include_hidden"`
	FollowSymlinks bool     `toml:"follow_symlinks"`
	MaxFileSize    int64    `toml:"max_file_size"` // 0 means no limit
	MaxFiles       int      `toml:"max_files"`     // 0 means no limit
}

// Engine controls batching and the worker pool
type Engine struct {
	FlushThreshold int64  `toml:"flush_threshold"`
	ProgressEvery  int    `toml:"progress_every"`
	Workers        int    `toml:"workers"`     // 0 = ceil(NumCPU/2)
	WorkerMode     string `toml:"worker_mode"` // process or local
}

type Storage struct {
	DBPath   string `toml:"db_path"`
	Disabled bool   `toml:"disabled"`
}

// Default returns sensible defaults
func Default() *Config {
	return &Config{
		Walker: Walker{
			Exclude: []string{"**/.git/**", "**/node_modules/**"},
		},
		Engine: Engine{
			FlushThreshold: DefaultFlushThreshold,
			ProgressEvery:  DefaultProgressEvery,
			Workers:        worker.DefaultPoolSize(),
			WorkerMode:     WorkerModeProcess,
		},
		Storage: Storage{
			DBPath: DefaultDBPath,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads defaults, overlays the TOML file at path (if non-empty) and then
// the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CONTENTSEARCH_* environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, v, err)
		}
		c.Engine.Workers = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvWorkerMode); v != "" {
		c.Engine.WorkerMode = v
	}
	return nil
}

// Validate checks settings that apply to every command
func (c *Config) Validate() error {
	if c.Engine.FlushThreshold <= 0 {
		return fmt.Errorf("engine.flush_threshold must be positive, got %d", c.Engine.FlushThreshold)
	}
	if c.Engine.ProgressEvery <= 0 {
		return fmt.Errorf("engine.progress_every must be positive, got %d", c.Engine.ProgressEvery)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be >= 0, got %d", c.Engine.Workers)
	}
	if c.Engine.Workers == 0 {
		c.Engine.Workers = worker.DefaultPoolSize()
	}
	switch c.Engine.WorkerMode {
	case WorkerModeProcess, WorkerModeLocal:
	default:
		return fmt.Errorf("engine.worker_mode must be %q or %q, got %q", WorkerModeProcess, WorkerModeLocal, c.Engine.WorkerMode)
	}
	if c.Walker.MaxFileSize < 0 {
		return fmt.Errorf("walker.max_file_size must be >= 0, got %d", c.Walker.MaxFileSize)
	}
	if c.Walker.MaxFiles < 0 {
		return fmt.Errorf("walker.max_files must be >= 0, got %d", c.Walker.MaxFiles)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be >= 0, got %d", c.Search.MaxResults)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Validate checks that the search describes something to look for and
// somewhere to look
func (s Search) Validate() error {
	if strings.TrimSpace(s.Pattern) == "" {
		return ErrEmptyPattern
	}
	if len(s.Roots) == 0 && len(s.ExtraFiles) == 0 {
		return ErrNoRoots
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
