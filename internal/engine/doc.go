// Package engine orchestrates a parallel, cancellable content search.
//
// The engine consumes the walker's file stream, groups files into batches of
// roughly FlushThreshold bytes and dispatches each batch to the next worker
// in a fixed pool. Worker responses come back as events and are folded into
// a single completion callback.
//
// # Basic Usage
//
//	pool, _ := worker.NewLocalPool(0, pattern, logger)
//	w, _ := walker.New(walker.Options{})
//	eng, _ := engine.New(cfg.Search, w, pool, engine.Options{Logger: logger})
//
//	eng.Search(
//	    func(fm types.FileMatch) { fmt.Println(fm.Path) },
//	    func(p types.ProgressEvent) { fmt.Printf("%.0f%%\n", p.Percent()) },
//	    func(err error, c types.Completion) { close(finished) },
//	)
//
// Search returns immediately. An Engine runs exactly one search and owns the
// pool: it closes the pool right before calling done.
//
// # Event Loop
//
// All engine state belongs to one goroutine draining an event queue:
//
//	file discovered  -> count bytes, add to batch, maybe dispatch, maybe progress
//	walker finished  -> flush the partial batch, check completion
//	batch finished   -> count bytes, deliver results, check completion
//
// done fires when the walker has finished and every discovered byte has been
// processed. The check runs after each batch and again when the walker ends,
// so it fires exactly once whichever happens last.
//
// # Batching
//
// Files count at least one byte. A batch is sealed once it reaches the
// threshold (5,000,000 bytes by default); the remainder is sealed when the
// walk ends. Batches go to workers round-robin without regard for load.
//
// # Cancellation and Limits
//
// Cancel stops the walker, and no batch is dispatched after it returns.
// Batches already running finish; their results are dropped but their bytes
// are counted. Once MaxResults file matches have been delivered the engine
// stops batching in the same way. Files discovered afterwards are counted as
// processed without reaching a worker.
//
// # Errors
//
// A walker error is held until completion. A worker error is fatal: the
// engine stops dispatching, stops the walker and reports the worker error
// once outstanding batches drain. Cancellation is not an error; it is
// reported through Completion.Canceled.
package engine
