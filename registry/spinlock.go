package registry

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a non-reentrant busy-wait mutual-exclusion primitive. It must
// be held only for short critical sections; there is no queueing and no
// fairness. The zero value is unlocked.
type SpinLock struct {
	v atomic.Int32
}

// Lock busy-waits until the lock is acquired.
func (l *SpinLock) Lock() {
	for !l.v.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

// Unlock releases the lock. Calling Unlock on an unlocked SpinLock leaves it
// unlocked.
func (l *SpinLock) Unlock() {
	l.v.Store(0)
}

// Held reports whether the lock is currently taken, by anyone. It exists so
// operations that require the caller to hold the lock can assert it.
func (l *SpinLock) Held() bool {
	return l.v.Load() == 1
}
