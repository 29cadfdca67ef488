package worker

import (
	"context"
	"errors"
	"runtime"

	"github.com/dshills/contentsearch/internal/matcher"
	"github.com/dshills/contentsearch/pkg/types"
)

// UnboundedResults is the max-result cap sent with every batch. The wire
// protocol requires a cap; the engine never relies on it to limit results.
const UnboundedResults = 1<<31 - 1

var (
	// ErrClosed is returned for requests made to, or pending on, a closed worker
	ErrClosed = errors.New("worker closed")
	// ErrNoWorkers is returned when a pool is built with no workers
	ErrNoWorkers = errors.New("pool requires at least one worker")
)

// Request asks a worker to search a batch of files
type Request struct {
	ID         uint64          `json:"id"`
	Pattern    matcher.Pattern `json:"pattern"`
	Paths      []string        `json:"paths"`
	MaxResults int             `json:"max_results"`
}

// Response carries the matches for one Request. The whole batch returns at once.
type Response struct {
	ID      uint64            `json:"id"`
	Matches []types.FileMatch `json:"matches,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// RemoteError is a failure reported by the worker side of the channel
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "worker: " + e.Message
}

// Worker is an independent search executor reached through request/response.
// Search may be called concurrently; calls beyond the worker's capacity queue.
type Worker interface {
	Search(ctx context.Context, req Request) ([]types.FileMatch, error)
	Close() error
}

// DefaultPoolSize returns ceil(NumCPU/2), leaving headroom for hyperthreading
// and the walker
func DefaultPoolSize() int {
	return (runtime.NumCPU() + 1) / 2
}

// handle runs one request against a matcher cache. Shared by Local and Serve.
func handle(ctx context.Context, cache *matcher.Cache, req Request) Response {
	resp := Response{ID: req.ID}
	if err := ctx.Err(); err != nil {
		resp.Error = err.Error()
		return resp
	}
	m, err := cache.Get(req.Pattern)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Matches = m.SearchFiles(req.Paths, req.MaxResults)
	return resp
}
