package engine

import "github.com/dshills/contentsearch/pkg/types"

// batchAccumulator turns the walker's per-file stream into byte-bounded batches
type batchAccumulator struct {
	threshold int64
	paths     []string
	bytes     int64
}

func newBatchAccumulator(threshold int64) *batchAccumulator {
	return &batchAccumulator{threshold: threshold}
}

// add appends a file. When the batch reaches the threshold it is sealed and
// returned, and the accumulator starts a new one.
func (a *batchAccumulator) add(path string, size int64) (types.Batch, bool) {
	a.paths = append(a.paths, path)
	a.bytes += size
	if a.bytes < a.threshold {
		return types.Batch{}, false
	}
	return a.seal(), true
}

// flush seals whatever is left, reporting false if nothing was pending
func (a *batchAccumulator) flush() (types.Batch, bool) {
	if len(a.paths) == 0 {
		return types.Batch{}, false
	}
	return a.seal(), true
}

func (a *batchAccumulator) seal() types.Batch {
	b := types.Batch{Paths: a.paths, Bytes: a.bytes}
	a.paths = nil
	a.bytes = 0
	return b
}

// progressAggregator coalesces per-file events into one progress
// notification every n files seen
type progressAggregator struct {
	every int
	seen  int
}

// fileSeen counts a file and reports whether a notification is due
func (p *progressAggregator) fileSeen() bool {
	p.seen++
	return p.every > 0 && p.seen%p.every == 0
}
