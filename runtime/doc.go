// Package runtime implements the instance state machine, the per-thread
// binding, and the embedder-facing lifecycle API.
//
// # Quick Start
//
//	core := runtime.New(runtime.Config{})
//	defer core.Close()
//
//	platform.RunPinned(func() {
//	    st := core.AttachOrCreate()
//	    st.SetInterruptHandler(func(*runtime.State) {
//	        // signal-safe: no locks, no allocation
//	    })
//	    // ... run managed code ...
//	    core.DetachIfAttached()
//	})
//
// # State machine
//
// An instance is SUSPENDED at creation, moves between SUSPENDED and RUNNING
// through attach/suspend/resume any number of times, and ends in DESTROYING.
// Every transition is a single compare-and-exchange; a failed expected-state
// check is misuse by the embedder or generated code and goes through the
// fatal check collaborator, never an error return. The one recoverable
// failure is memory-subsystem allocation during CreateDetached.
//
// # Scheduling instances across threads
//
// Suspend detaches the current thread's instance and returns its handle;
// Resume binds that handle to whatever thread calls it. This is the only
// supported migration path. The interrupt fallback lookup still matches by
// creating-thread id, so interrupts for a migrated instance are only found
// through the binding slot, not the registry scan.
//
// # Thread identity
//
// All operations key off Config.Platform's ThreadID. Goroutines acting as
// threads must be pinned (runtime.LockOSThread or platform.RunPinned) so
// that identity does not shift between operations.
package runtime
