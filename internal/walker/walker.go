// Package walker enumerates candidate files for a content search.
//
// FileWalker walks root folders and extra files, applies include/exclude
// globs (doublestar syntax, matched against the slash-separated path relative
// to the root) and reports each accepted file through a synchronous callback.
// A terminal callback reports the first traversal error and whether the file
// limit was hit.
package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/pkg/types"
)

// Options configures the walker behavior
type Options struct {
	Include        []string // empty means everything
	Exclude        []string
	IncludeHidden  bool
	FollowSymlinks bool
	MaxFileSize    int64 // 0 = no limit
	MaxFiles       int   // 0 = no limit; reaching it sets limitHit
	Logger         *slog.Logger
}

// FileWalker implements a cancellable, callback-driven file walk.
// A FileWalker is meant for a single Walk call.
type FileWalker struct {
	opts   Options
	logger *slog.Logger

	canceled atomic.Bool

	filesScanned atomic.Int64
	filesSkipped atomic.Int64
	dirsVisited  atomic.Int64
	errCount     atomic.Int64
	bytesFound   atomic.Int64

	mu       sync.Mutex
	start    time.Time
	duration time.Duration
}

// New creates a walker, rejecting malformed glob patterns up front
func New(opts Options) (*FileWalker, error) {
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return &FileWalker{
		opts:   opts,
		logger: logging.OrDiscard(opts.Logger),
	}, nil
}

// Cancel stops further file discovery. onDone is still called.
func (w *FileWalker) Cancel() {
	w.canceled.Store(true)
}

// Stats returns the counters gathered so far
func (w *FileWalker) Stats() types.SearchStats {
	w.mu.Lock()
	d := w.duration
	if d == 0 && !w.start.IsZero() {
		d = time.Since(w.start)
	}
	w.mu.Unlock()

	return types.SearchStats{
		FilesScanned: w.filesScanned.Load(),
		FilesSkipped: w.filesSkipped.Load(),
		DirsVisited:  w.dirsVisited.Load(),
		Errors:       w.errCount.Load(),
		BytesFound:   w.bytesFound.Load(),
		Duration:     d,
	}
}

// walkState is the per-Walk bookkeeping
type walkState struct {
	onFile   func(types.FileDescriptor)
	firstErr error
	limitHit bool
	emitted  int
}

func (s *walkState) recordErr(err error) {
	if s.firstErr == nil {
		s.firstErr = err
	}
}

// Walk traverses roots then extraFiles, blocking until done. onFile is called
// from the calling goroutine; onDone is called exactly once before Walk returns.
func (w *FileWalker) Walk(roots, extraFiles []string, onFile func(types.FileDescriptor), onDone func(err error, limitHit bool)) {
	w.mu.Lock()
	w.start = time.Now()
	w.mu.Unlock()

	st := &walkState{onFile: onFile}

	for _, root := range roots {
		if w.stopped(st) {
			break
		}
		w.walkRoot(root, st)
	}

	for _, path := range extraFiles {
		if w.stopped(st) {
			break
		}
		w.visitExtraFile(path, st)
	}

	w.mu.Lock()
	w.duration = time.Since(w.start)
	w.mu.Unlock()

	w.logger.Debug("walk finished",
		"files", w.filesScanned.Load(),
		"dirs", w.dirsVisited.Load(),
		"errors", w.errCount.Load(),
		"limit_hit", st.limitHit,
		"canceled", w.canceled.Load())

	onDone(st.firstErr, st.limitHit)
}

func (w *FileWalker) stopped(st *walkState) bool {
	return st.limitHit || w.canceled.Load()
}

func (w *FileWalker) walkRoot(root string, st *walkState) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		w.errCount.Add(1)
		st.recordErr(fmt.Errorf("resolve root %s: %w", root, err))
		return
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if w.stopped(st) {
			return filepath.SkipAll
		}
		if err != nil {
			w.errCount.Add(1)
			st.recordErr(err)
			w.logger.Debug("walk error", "path", path, "error", err)
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == absRoot {
				w.dirsVisited.Add(1)
				return nil
			}
			if !w.opts.IncludeHidden && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			if w.excludedDir(rel) {
				return filepath.SkipDir
			}
			w.dirsVisited.Add(1)
			return nil
		}

		w.visitFile(absRoot, rel, path, d, st)
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		w.errCount.Add(1)
		st.recordErr(err)
	}
}

func (w *FileWalker) visitFile(root, rel, path string, d fs.DirEntry, st *walkState) {
	if !w.opts.IncludeHidden && isHidden(d.Name()) {
		w.filesSkipped.Add(1)
		return
	}

	var size int64
	if d.Type()&fs.ModeSymlink != 0 {
		if !w.opts.FollowSymlinks {
			w.filesSkipped.Add(1)
			return
		}
		info, err := os.Stat(path)
		if err != nil {
			w.errCount.Add(1)
			st.recordErr(err)
			return
		}
		if !info.Mode().IsRegular() {
			w.filesSkipped.Add(1)
			return
		}
		size = info.Size()
	} else {
		if !d.Type().IsRegular() {
			w.filesSkipped.Add(1)
			return
		}
		info, err := d.Info()
		if err != nil {
			w.errCount.Add(1)
			st.recordErr(err)
			return
		}
		size = info.Size()
	}

	if !w.accepts(rel) {
		w.filesSkipped.Add(1)
		return
	}

	w.emit(types.FileDescriptor{Base: root, RelativePath: filepath.FromSlash(rel), Size: size}, st)
}

func (w *FileWalker) visitExtraFile(path string, st *walkState) {
	abs, err := filepath.Abs(path)
	if err != nil {
		w.errCount.Add(1)
		st.recordErr(err)
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		w.errCount.Add(1)
		st.recordErr(err)
		return
	}
	if !info.Mode().IsRegular() {
		w.filesSkipped.Add(1)
		return
	}
	w.emit(types.FileDescriptor{Path: abs, Size: info.Size()}, st)
}

func (w *FileWalker) emit(fd types.FileDescriptor, st *walkState) {
	if w.opts.MaxFileSize > 0 && fd.Size > w.opts.MaxFileSize {
		w.filesSkipped.Add(1)
		return
	}
	if w.opts.MaxFiles > 0 && st.emitted >= w.opts.MaxFiles {
		st.limitHit = true
		return
	}

	st.emitted++
	w.filesScanned.Add(1)
	w.bytesFound.Add(fd.Size)
	st.onFile(fd)
}

// accepts applies include and exclude patterns to a root-relative file path
func (w *FileWalker) accepts(rel string) bool {
	for _, p := range w.opts.Exclude {
		if matchGlob(p, rel) {
			return false
		}
	}
	if len(w.opts.Include) == 0 {
		return true
	}
	for _, p := range w.opts.Include {
		if matchGlob(p, rel) {
			return true
		}
	}
	return false
}

// excludedDir reports whether a directory can be pruned. Patterns ending in
// "/**" prune the directory they name.
func (w *FileWalker) excludedDir(rel string) bool {
	for _, p := range w.opts.Exclude {
		if matchGlob(p, rel) {
			return true
		}
		if strings.HasSuffix(p, "/**") && matchGlob(strings.TrimSuffix(p, "/**"), rel) {
			return true
		}
	}
	return false
}

// matchGlob matches the whole relative path, and the base name for patterns
// without a separator (so "*.go" matches at any depth)
func matchGlob(pattern, rel string) bool {
	if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, err := doublestar.Match(pattern, pathBase(rel)); err == nil && ok {
			return true
		}
	}
	return false
}

func pathBase(rel string) string {
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
