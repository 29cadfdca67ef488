package engine

import "sync/atomic"

// startLock lets exactly one caller through, without blocking the others.
// An engine runs a single search, so the lock is never released.
type startLock struct {
	state atomic.Int32 // 0 = unused, 1 = taken
}

// TryAcquire reports whether this call took the lock
func (l *startLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}
