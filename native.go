package nativert

import "github.com/wippyai/native-runtime/errors"

// MemoryHandle is opaque state owned by the external memory subsystem. The
// core never inspects it, only threads it through suspend/resume/destroy.
type MemoryHandle any

// MemorySubsystem is the external memory/garbage-collection collaborator.
// The core drives it through these four entry points and nothing else.
type MemorySubsystem interface {
	// Init allocates the memory state for a new instance. A non-nil error
	// is the recoverable allocation-failure path of instance creation.
	Init() (MemoryHandle, error)

	// Deinit releases the memory state of a destroyed instance.
	Deinit(h MemoryHandle)

	// Suspend prepares the memory state for rescheduling to another thread.
	// The returned handle replaces the stored one and may differ.
	Suspend(h MemoryHandle) MemoryHandle

	// Resume reactivates a previously suspended memory state.
	Resume(h MemoryHandle)
}

// Platform supplies the OS-level collaborators the core depends on.
// The platform package provides the default implementation.
type Platform interface {
	// ThreadID returns a stable identifier for the calling OS thread.
	ThreadID() uint64

	// OnThreadExit registers fn to run when the identified thread is torn
	// down. The core registers its implicit-detach function exactly once
	// per thread, at first attach.
	OnThreadExit(tid uint64, fn func())

	// InstallInterruptHandler installs fn as the process-wide handler for
	// the asynchronous interrupt. fn receives the interrupted thread's id
	// and must be safe to run in signal-handler context.
	InstallInterruptHandler(fn func(tid uint64))

	// ConsoleSetup performs one-time console initialization. Called on the
	// creation that makes the alive-count one.
	ConsoleSetup()
}

// CheckFunc terminates the current flow when cond is false. Every state
// machine and binding invariant goes through a CheckFunc; msg names the
// violated invariant.
type CheckFunc func(cond bool, msg string)

// Check is the default fatal checker. It panics with *errors.Fatal so test
// suites can assert the fatal class distinctly from error results. Embedders
// that need a hard process abort install their own checker via
// runtime.Config.
func Check(cond bool, msg string) {
	if !cond {
		panic(&errors.Fatal{Check: msg})
	}
}
