package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/internal/matcher"
)

// ServeOptions configures the worker side of the protocol
type ServeOptions struct {
	Concurrency int // batches processed at once; default 1
	CacheSize   int // compiled patterns kept; default matcher.DefaultCacheSize
	Logger      *slog.Logger
}

// Serve reads requests from r and writes responses to w until r reaches EOF.
// In-flight requests finish before Serve returns.
func Serve(ctx context.Context, r io.Reader, w io.Writer, opts ServeOptions) error {
	logger := logging.OrDiscard(opts.Logger)
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	cache := matcher.NewCache(opts.CacheSize)

	var wmu sync.Mutex
	enc := json.NewEncoder(w)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	dec := json.NewDecoder(r)
	var readErr error
	for {
		if err := gctx.Err(); err != nil {
			readErr = err
			break
		}

		var req Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = fmt.Errorf("failed to decode request: %w", err)
			}
			break
		}

		logger.Debug("batch received", "id", req.ID, "paths", len(req.Paths))
		g.Go(func() error {
			resp := handle(gctx, cache, req)

			wmu.Lock()
			defer wmu.Unlock()
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("failed to write response %d: %w", req.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return readErr
}
