package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/internal/matcher"
	"github.com/dshills/contentsearch/pkg/types"
)

// Future is the pending result of one dispatched batch
type Future struct {
	Batch  types.Batch
	Worker int // index of the worker the batch went to

	done    chan struct{}
	matches []types.FileMatch
	err     error
}

func newFuture(batch types.Batch, worker int) *Future {
	return &Future{Batch: batch, Worker: worker, done: make(chan struct{})}
}

func (f *Future) resolve(matches []types.FileMatch, err error) {
	f.matches, f.err = matches, err
	close(f.done)
}

// Done is closed once the batch has a result
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the batch finishes and returns its matches or error
func (f *Future) Result() ([]types.FileMatch, error) {
	<-f.done
	return f.matches, f.err
}

// Pool owns a fixed set of workers and hands batches out round-robin,
// regardless of how busy each worker is.
type Pool struct {
	workers []Worker
	pattern matcher.Pattern
	logger  *slog.Logger

	mu     sync.Mutex
	next   int
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// NewPool wraps existing workers. The pool takes ownership and closes them.
func NewPool(workers []Worker, pattern matcher.Pattern, logger *slog.Logger) (*Pool, error) {
	if len(workers) == 0 {
		return nil, ErrNoWorkers
	}
	return &Pool{
		workers: workers,
		pattern: pattern,
		logger:  logging.OrDiscard(logger),
	}, nil
}

// NewLocalPool creates size in-process workers
func NewLocalPool(size int, pattern matcher.Pattern, logger *slog.Logger) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize()
	}
	workers := make([]Worker, size)
	for i := range workers {
		workers[i] = NewLocal()
	}
	return NewPool(workers, pattern, logger)
}

// NewProcessPool starts size worker processes concurrently. If any fails to
// start, the ones already running are torn down.
func NewProcessPool(size int, pcfg ProcessConfig, pattern matcher.Pattern) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize()
	}
	procs := make([]*Process, size)

	var g errgroup.Group
	for i := range procs {
		g.Go(func() error {
			p, err := StartProcess(pcfg)
			if err != nil {
				return err
			}
			procs[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, p := range procs {
			if p != nil {
				_ = p.Close()
			}
		}
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	workers := make([]Worker, size)
	for i, p := range procs {
		workers[i] = p
	}
	return NewPool(workers, pattern, pcfg.Logger)
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// Dispatch sends the batch to the next worker in round-robin order and
// returns immediately. Failures surface through the future.
func (p *Pool) Dispatch(ctx context.Context, batch types.Batch) *Future {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		f := newFuture(batch, -1)
		f.resolve(nil, ErrClosed)
		return f
	}
	idx := p.next
	p.next = (p.next + 1) % len(p.workers)
	p.mu.Unlock()

	f := newFuture(batch, idx)
	req := Request{
		Pattern:    p.pattern,
		Paths:      batch.Paths,
		MaxResults: UnboundedResults,
	}

	p.logger.Debug("batch dispatched", "seq", batch.Seq, "worker", idx, "files", batch.Len(), "bytes", batch.Bytes)

	go func() {
		matches, err := p.workers[idx].Search(ctx, req)
		if err != nil {
			err = fmt.Errorf("batch %d on worker %d: %w", batch.Seq, idx, err)
		}
		f.resolve(matches, err)
	}()
	return f
}

// Close tears every worker down concurrently and returns the joined errors.
// Later calls return the same result.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		errs := make([]error, len(p.workers))
		var g errgroup.Group
		for i, w := range p.workers {
			g.Go(func() error {
				errs[i] = w.Close()
				return nil
			})
		}
		_ = g.Wait()
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}
