package runtime

import (
	"sync/atomic"

	nativert "github.com/wippyai/native-runtime"
)

// Status is the execution status of an instance.
type Status int32

const (
	// StatusSuspended is the initial status; the instance is not bound to
	// any thread and may be resumed or destroyed.
	StatusSuspended Status = iota

	// StatusRunning means the instance is bound to exactly one thread.
	StatusRunning

	// StatusDestroying is terminal; there is no outgoing transition.
	StatusDestroying
)

func (s Status) String() string {
	switch s {
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusDestroying:
		return "destroying"
	default:
		return "unknown"
	}
}

// InterruptHandler is the embedder-supplied per-instance interrupt callback.
// It runs in signal-handler context and must not lock or allocate.
type InterruptHandler func(*State)

// State is one runtime instance. It is exclusively owned by whichever
// subsystem currently holds it: the attached thread while RUNNING, the
// suspending caller while SUSPENDED. The registry shares it for enumeration
// only.
type State struct {
	core *Core

	// creatingThread is fixed at creation and drives the interrupt
	// fallback lookup.
	creatingThread uint64

	id      uint64
	mem     nativert.MemoryHandle
	status  atomic.Int32
	handler atomic.Pointer[InterruptHandler]
}

func newState(core *Core, id, tid uint64, mem nativert.MemoryHandle) *State {
	s := &State{
		core:           core,
		creatingThread: tid,
		id:             id,
		mem:            mem,
	}
	// Explicit, not zero-value reliance.
	s.status.Store(int32(StatusSuspended))
	return s
}

// transition performs the single compare-and-exchange every lifecycle edge
// is built on.
func (s *State) transition(from, to Status) bool {
	return s.status.CompareAndSwap(int32(from), int32(to))
}

// Status returns the instance's current execution status.
func (s *State) Status() Status {
	return Status(s.status.Load())
}

// ID returns the instance's stable id, used in logs and errors.
func (s *State) ID() uint64 {
	return s.id
}

// MemoryHandle returns the opaque handle owned by the memory subsystem.
func (s *State) MemoryHandle() nativert.MemoryHandle {
	return s.mem
}

// SetInterruptHandler installs fn as the instance's interrupt handler.
// fn must be signal-safe. A nil fn clears the handler; interrupts for this
// instance are then dropped.
func (s *State) SetInterruptHandler(fn InterruptHandler) {
	if fn == nil {
		s.handler.Store(nil)
		return
	}
	s.handler.Store(&fn)
}

// CreatingThread returns the id of the thread that created the instance.
// Part of the interrupt.Target contract.
func (s *State) CreatingThread() uint64 {
	return s.creatingThread
}

// Deliver invokes the interrupt handler if one is set. Part of the
// interrupt.Target contract; runs in signal-handler context.
func (s *State) Deliver() {
	if fn := s.handler.Load(); fn != nil {
		(*fn)(s)
	}
}
