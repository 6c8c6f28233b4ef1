// Package nativert is the execution-context lifecycle core for a
// managed-language native runtime.
//
// It lets multiple isolated runtime instances coexist in one process, each
// bound to at most one OS thread at a time, coordinates exactly-once global
// initialization and teardown across all instances, supports cooperative
// suspend/resume of an instance, and delivers asynchronous interrupts to the
// correct instance even from restricted signal-handling context where
// thread-local access is unsafe.
//
// # Architecture Overview
//
// The library is organized into per-concern packages:
//
//	native-runtime/      Root package with collaborator interfaces and the check contract
//	├── runtime/         Instance state machine, thread binding, and the embedder API
//	├── registry/        Spinlock-protected live-instance registry with a lock-free snapshot
//	├── initchain/       Append-only global/thread-local initializer chain
//	├── interrupt/       Signal-context interrupt dispatcher
//	├── platform/        Default OS collaborators (thread ids, signals, console, CPU info)
//	├── mem/             Reference memory-subsystem implementations
//	└── errors/          Structured error types
//
// # Quick Start
//
//	core := runtime.New(runtime.Config{})
//	defer core.Close()
//
//	platform.RunPinned(func() {
//	    st := core.AttachOrCreate()
//	    st.SetInterruptHandler(func(*runtime.State) { /* signal-safe */ })
//	    // ... execute managed code ...
//	    core.DetachIfAttached()
//	})
//
// # Lifecycle
//
// An instance is SUSPENDED at creation, RUNNING while attached to a thread,
// and DESTROYING once torn down. Attach, suspend, resume, and destroy are
// single compare-and-exchange transitions; any failed expected-state check is
// an invariant violation and goes through the fatal check collaborator rather
// than an error return. Creation that brings the process alive-count from
// zero to one runs the one-time global work (interrupt handler installation,
// main-thread designation, console setup, INIT_GLOBALS); the destruction that
// brings it back to zero runs DEINIT_GLOBALS.
//
// # Thread Safety
//
// Each instance is exclusively owned by the thread it is attached to; the
// registry and the alive counter are the only cross-thread shared state.
// The interrupt dispatcher runs under signal-handler constraints: it takes no
// locks, allocates nothing, and tolerates a stale view of the registry.
//
// Callers that model OS threads must pin their goroutine with
// runtime.LockOSThread (platform.RunPinned does this) so the thread identity
// observed by attach, suspend, and resume stays stable.
package nativert
