package types

import "path/filepath"

// FileDescriptor describes a candidate file produced by the walker.
// Either Path is absolute, or Base+RelativePath together form the path.
type FileDescriptor struct {
	Base         string
	RelativePath string
	Path         string
	Size         int64
}

// AbsolutePath returns the absolute path of the descriptor
func (fd FileDescriptor) AbsolutePath() string {
	if fd.Path != "" {
		return fd.Path
	}
	if fd.Base != "" {
		return filepath.Join(fd.Base, fd.RelativePath)
	}
	return fd.RelativePath
}

// AccountedSize returns the size used for byte accounting.
// Empty or unknown sizes count as one byte so every file moves progress.
func (fd FileDescriptor) AccountedSize() int64 {
	if fd.Size <= 0 {
		return 1
	}
	return fd.Size
}

// Batch is an ordered group of paths dispatched together to one worker.
// A batch must not be modified once dispatched.
type Batch struct {
	Seq   int      // dispatch sequence number, 0-based
	Paths []string // absolute paths
	Bytes int64    // cumulative accounted size
}

// Len returns the number of paths in the batch
func (b Batch) Len() int {
	return len(b.Paths)
}
