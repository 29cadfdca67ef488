package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/contentsearch/internal/config"
	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/internal/worker"
	"github.com/dshills/contentsearch/pkg/types"
)

// ErrAlreadyStarted is reported through done when Search is called twice
var ErrAlreadyStarted = errors.New("engine: search already started")

// eventBuffer sizes the event queue so the walker and finished batches
// rarely wait on the loop
const eventBuffer = 256

// Walker discovers candidate files. Walk blocks until traversal ends and
// calls onDone exactly once.
type Walker interface {
	Walk(roots, extraFiles []string, onFile func(types.FileDescriptor), onDone func(err error, limitHit bool))
	Cancel()
	Stats() types.SearchStats
}

// Dispatcher sends batches to workers. *worker.Pool implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch types.Batch) *worker.Future
	Close() error
}

// Options tunes batching and progress
type Options struct {
	FlushThreshold int64 // batch size in bytes; default config.DefaultFlushThreshold
	ProgressEvery  int   // files between progress events; default config.DefaultProgressEvery
	Logger         *slog.Logger
}

// ResultFunc receives each file with at least one line match
type ResultFunc func(types.FileMatch)

// ProgressFunc receives coalesced byte progress
type ProgressFunc func(types.ProgressEvent)

// DoneFunc is called exactly once when the search completes
type DoneFunc func(err error, c types.Completion)

type eventKind int

const (
	evFile eventKind = iota
	evWalkerDone
	evBatchDone
)

// event is one entry in the engine's queue
type event struct {
	kind     eventKind
	file     types.FileDescriptor
	err      error
	limitHit bool
	future   *worker.Future
}

// state is owned by the event loop goroutine
type state struct {
	totalBytes     int64
	processedBytes int64
	isDone         bool
	limitReached   bool
	walkerIsDone   bool
	walkerErr      error
	walkerLimitHit bool
	workerErr      error
	numResults     int
	nextSeq        int
}

// Engine runs one content search: it batches the walker's files, fans the
// batches out to workers and folds the responses into a single completion.
// An Engine is not reusable.
type Engine struct {
	search     config.Search
	walker     Walker
	dispatcher Dispatcher
	threshold  int64
	logger     *slog.Logger

	started startLock
	events  chan event

	// dispatchMu serializes Cancel with batch dispatch
	dispatchMu sync.Mutex
	canceled   bool

	st       state
	acc      *batchAccumulator
	progress progressAggregator

	onResult   ResultFunc
	onProgress ProgressFunc
	done       DoneFunc
}

// New creates an engine for one search. The engine takes ownership of the
// dispatcher and closes it before reporting completion.
func New(search config.Search, walker Walker, dispatcher Dispatcher, opts Options) (*Engine, error) {
	if walker == nil {
		return nil, errors.New("engine: walker is required")
	}
	if dispatcher == nil {
		return nil, errors.New("engine: dispatcher is required")
	}
	if opts.FlushThreshold <= 0 {
		opts.FlushThreshold = config.DefaultFlushThreshold
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = config.DefaultProgressEvery
	}

	return &Engine{
		search:     search,
		walker:     walker,
		dispatcher: dispatcher,
		threshold:  opts.FlushThreshold,
		logger:     logging.OrDiscard(opts.Logger),
		events:     make(chan event, eventBuffer),
		acc:        newBatchAccumulator(opts.FlushThreshold),
		progress:   progressAggregator{every: opts.ProgressEvery},
	}, nil
}

// Search starts the search and returns immediately. Callbacks run on the
// engine's own goroutine, one at a time; onResult and onProgress may be nil.
// Calling Search again reports ErrAlreadyStarted to that call's done.
func (e *Engine) Search(onResult ResultFunc, onProgress ProgressFunc, done DoneFunc) {
	if done == nil {
		done = func(error, types.Completion) {}
	}
	if !e.started.TryAcquire() {
		done(ErrAlreadyStarted, types.Completion{})
		return
	}
	if onResult == nil {
		onResult = func(types.FileMatch) {}
	}
	if onProgress == nil {
		onProgress = func(types.ProgressEvent) {}
	}
	e.onResult, e.onProgress, e.done = onResult, onProgress, done

	e.logger.Debug("search started",
		"roots", len(e.search.Roots),
		"extra_files", len(e.search.ExtraFiles),
		"flush_threshold", e.threshold)

	go e.loop()
	go e.walker.Walk(e.search.Roots, e.search.ExtraFiles,
		func(fd types.FileDescriptor) {
			e.events <- event{kind: evFile, file: fd}
		},
		func(err error, limitHit bool) {
			e.events <- event{kind: evWalkerDone, err: err, limitHit: limitHit}
		})
}

// Cancel stops discovery and prevents any further batch from being
// dispatched once it returns. Batches already running finish, but their
// results are dropped. done still fires.
func (e *Engine) Cancel() {
	e.dispatchMu.Lock()
	already := e.canceled
	e.canceled = true
	e.dispatchMu.Unlock()

	if !already {
		e.logger.Debug("search canceled")
	}
	e.walker.Cancel()
}

func (e *Engine) isCanceled() bool {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	return e.canceled
}

// loop is the only goroutine touching e.st
func (e *Engine) loop() {
	for !e.st.isDone {
		ev := <-e.events
		switch ev.kind {
		case evFile:
			e.handleFile(ev.file)
		case evWalkerDone:
			e.handleWalkerDone(ev.err, ev.limitHit)
		case evBatchDone:
			e.handleBatchDone(ev.future)
		}
	}
}

// stopped reports whether new work must not start
func (e *Engine) stopped() bool {
	return e.st.limitReached || e.st.workerErr != nil || e.isCanceled()
}

func (e *Engine) handleFile(fd types.FileDescriptor) {
	size := fd.AccountedSize()
	e.st.totalBytes += size

	if e.stopped() {
		// keep the books balanced without involving a worker
		e.st.processedBytes += size
	} else if batch, ok := e.acc.add(fd.AbsolutePath(), size); ok {
		e.dispatch(batch)
	}

	if e.progress.fileSeen() && !e.stopped() && !e.st.isDone {
		e.onProgress(types.ProgressEvent{Total: e.st.totalBytes, Worked: e.st.processedBytes})
	}
}

func (e *Engine) handleWalkerDone(err error, limitHit bool) {
	e.st.walkerIsDone = true
	e.st.walkerErr = err
	e.st.walkerLimitHit = limitHit
	if err != nil {
		e.logger.Warn("walker reported an error", "error", err)
	}

	if batch, ok := e.acc.flush(); ok {
		e.dispatch(batch)
	}
	e.tryComplete()
}

// dispatch hands a sealed batch to the next worker, or writes it off as
// processed when the search is stopping
func (e *Engine) dispatch(batch types.Batch) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	if e.canceled || e.st.limitReached || e.st.workerErr != nil {
		e.st.processedBytes += batch.Bytes
		return
	}

	batch.Seq = e.st.nextSeq
	e.st.nextSeq++

	fut := e.dispatcher.Dispatch(context.Background(), batch)
	go func() {
		<-fut.Done()
		e.events <- event{kind: evBatchDone, future: fut}
	}()
}

func (e *Engine) handleBatchDone(fut *worker.Future) {
	matches, err := fut.Result()
	e.st.processedBytes += fut.Batch.Bytes

	switch {
	case e.isCanceled():
		e.logger.Debug("discarding batch after cancel", "seq", fut.Batch.Seq, "files", fut.Batch.Len())
	case err != nil:
		if e.st.workerErr == nil {
			e.st.workerErr = err
			e.logger.Error("worker failed, stopping search", "seq", fut.Batch.Seq, "error", err)
			e.walker.Cancel()
		}
	case e.st.workerErr != nil:
		e.logger.Debug("discarding batch after worker failure", "seq", fut.Batch.Seq)
	default:
		e.deliver(matches)
	}

	e.tryComplete()
}

// deliver passes non-empty file matches on until the result limit is hit
// or the search is canceled, which may happen from inside onResult.
func (e *Engine) deliver(matches []types.FileMatch) {
	for i := range matches {
		if e.st.limitReached || e.isCanceled() {
			return
		}
		fm := &matches[i]
		if !fm.HasMatches() {
			continue
		}
		e.onResult(*fm)
		e.st.numResults++

		if limit := e.search.MaxResults; limit > 0 && e.st.numResults >= limit {
			e.st.limitReached = true
			e.logger.Debug("result limit reached", "max_results", limit)
			e.walker.Cancel()
		}
	}
}

// tryComplete fires done once every discovered byte is accounted for and
// the walker has finished. Both the walker and batch paths call it.
func (e *Engine) tryComplete() {
	if e.st.isDone || !e.st.walkerIsDone || e.st.processedBytes != e.st.totalBytes {
		return
	}
	e.st.isDone = true

	err := e.st.workerErr
	if err == nil && e.st.walkerErr != nil {
		err = fmt.Errorf("walk failed: %w", e.st.walkerErr)
	}

	if cerr := e.dispatcher.Close(); cerr != nil {
		e.logger.Warn("failed to close workers", "error", cerr)
	}

	c := types.Completion{
		LimitHit: e.st.limitReached || e.st.walkerLimitHit,
		Canceled: e.isCanceled(),
		Bytes:    types.ProgressEvent{Total: e.st.totalBytes, Worked: e.st.processedBytes},
		Stats:    e.walker.Stats(),
	}

	e.logger.Debug("search finished",
		"batches", e.st.nextSeq,
		"results", e.st.numResults,
		"bytes", e.st.totalBytes,
		"limit_hit", c.LimitHit,
		"canceled", c.Canceled,
		"error", err)

	e.done(err, c)
}
