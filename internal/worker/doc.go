// Package worker provides the search workers and the pool that feeds them.
//
// A Worker accepts a batch of absolute paths and returns the file matches for
// the whole batch in a single response. Three implementations exist:
//
//   - Local runs the matcher in-process, one batch at a time.
//   - Stream is a client for a worker reached over any byte stream, speaking
//     newline-delimited JSON with request IDs so several batches can be in
//     flight on one connection.
//   - Process starts a child process (normally "contentsearch worker") and
//     talks to it through a Stream on the child's stdin and stdout.
//
// Serve is the worker-process side of the protocol:
//
//	// in the child
//	err := worker.Serve(ctx, os.Stdin, os.Stdout, worker.ServeOptions{})
//
// # Wire Format
//
// Each request and response is one JSON document per line:
//
//	{"id":7,"pattern":{"expr":"TODO"},"paths":["/src/a.go"],"max_results":2147483647}
//	{"id":7,"matches":[{"path":"/src/a.go","line_matches":[...]}]}
//
// A response with a non-empty "error" rejects that request only. A broken
// connection rejects every pending request.
//
// # Pool
//
// Pool hands batches to workers in strict round-robin order with no regard
// for load, so a worker may have several batches queued:
//
//	pool, _ := worker.NewLocalPool(0, pattern, logger) // ceil(NumCPU/2) workers
//	fut := pool.Dispatch(ctx, batch)
//	<-fut.Done()
//	matches, err := fut.Result()
//
// The pool owns its workers; Close tears them all down and reaps processes.
package worker
