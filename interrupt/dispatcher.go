// Package interrupt routes asynchronous interrupts to the runtime instance
// of the interrupted thread.
//
// Dispatch runs in signal-handler context: it takes no locks, allocates
// nothing, and reads only structures published for lock-free access. The
// lookup is best-effort; an interrupt that finds no instance is silently
// dropped.
package interrupt

// Target is an interruptible runtime instance. Implementations must keep
// both methods safe for signal-handler context.
type Target interface {
	// CreatingThread returns the id of the OS thread that created the
	// instance. The fallback lookup assumes the instance stays associated
	// with this thread while attached; that is a documented limitation,
	// not a migration guarantee.
	CreatingThread() uint64

	// Deliver invokes the instance's interrupt handler, if one is set.
	Deliver()
}

// Dispatcher locates the interrupted thread's instance and delivers to it.
// It is installed once, at first-instance creation, as the process-wide
// interrupt handler.
type Dispatcher[T Target] struct {
	current  func(tid uint64) (T, bool) // thread binding probe
	snapshot func() []T                 // lock-free registry view
}

// New creates a dispatcher over a binding probe and a registry snapshot
// source. Both must be callable from signal-handler context.
func New[T Target](current func(tid uint64) (T, bool), snapshot func() []T) *Dispatcher[T] {
	return &Dispatcher[T]{current: current, snapshot: snapshot}
}

// Dispatch delivers an interrupt to the instance of thread tid. It first
// probes the thread's binding slot; if that is empty it scans the registry
// snapshot for the first entry created by tid. A miss drops the interrupt.
func (d *Dispatcher[T]) Dispatch(tid uint64) {
	if t, ok := d.current(tid); ok {
		t.Deliver()
		return
	}
	for _, t := range d.snapshot() {
		if t.CreatingThread() == tid {
			t.Deliver()
			return
		}
	}
}
