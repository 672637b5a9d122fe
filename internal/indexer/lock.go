package indexer

import (
	"errors"
	"sync/atomic"
)

// ErrIndexInProgress is returned when a folder run is already active
var ErrIndexInProgress = errors.New("indexing already in progress")

// IndexLock is a non-blocking lock guarding folder runs. A second caller
// fails fast instead of queueing behind a long run.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire takes the lock and reports whether it succeeded
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a run currently owns the lock
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
