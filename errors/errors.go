package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which lifecycle operation the error occurred in
type Phase string

const (
	PhaseCreate    Phase = "create"    // detached instance creation
	PhaseAttach    Phase = "attach"    // binding an instance to a thread
	PhaseSuspend   Phase = "suspend"   // RUNNING -> SUSPENDED
	PhaseResume    Phase = "resume"    // SUSPENDED -> RUNNING
	PhaseDestroy   Phase = "destroy"   // instance teardown
	PhaseRegistry  Phase = "registry"  // live-instance registry operations
	PhaseInterrupt Phase = "interrupt" // interrupt dispatch
	PhaseClose     Phase = "close"     // whole-core teardown
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation      Kind = "allocation"       // memory subsystem init failed
	KindInvalidState    Kind = "invalid_state"    // state machine precondition
	KindAlreadyAttached Kind = "already_attached" // thread binding slot occupied
	KindNotAttached     Kind = "not_attached"     // thread binding slot empty
	KindStillRunning    Kind = "still_running"    // instance attached at close
	KindWrongThread     Kind = "wrong_thread"     // main-thread-only access
	KindLockNotHeld     Kind = "lock_not_held"    // registry iterated unlocked
)

// Error is the recoverable structured error type used throughout the core.
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Detail   string
	Thread   uint64 // OS thread id involved, 0 if not applicable
	Instance uint64 // instance id involved, 0 if not applicable
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Instance != 0 {
		fmt.Fprintf(&b, " instance=%d", e.Instance)
	}
	if e.Thread != 0 {
		fmt.Fprintf(&b, " thread=%d", e.Thread)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Convenience constructors for common error patterns

// Allocation creates an allocation failure error for instance creation.
func Allocation(cause error) *Error {
	return &Error{
		Phase:  PhaseCreate,
		Kind:   KindAllocation,
		Detail: "memory subsystem init failed",
		Cause:  cause,
	}
}

// StillRunning reports an instance that is still attached to a thread.
func StillRunning(instance, thread uint64) *Error {
	return &Error{
		Phase:    PhaseClose,
		Kind:     KindStillRunning,
		Instance: instance,
		Thread:   thread,
		Detail:   "instance still attached; detach or suspend before close",
	}
}

// WrongThread reports an access restricted to the main thread.
func WrongThread(thread uint64) *Error {
	return &Error{
		Phase:  PhaseInterrupt,
		Kind:   KindWrongThread,
		Thread: thread,
		Detail: "access restricted to the main thread",
	}
}

// NotAttached reports an operation that requires a bound instance.
func NotAttached(phase Phase, thread uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotAttached,
		Thread: thread,
		Detail: "no instance attached to the current thread",
	}
}

// Wrap wraps an existing error with phase and kind context.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Fatal is the invariant-violation class. It is raised (panicked, or turned
// into a process abort by an embedder-installed checker) rather than
// returned: every Fatal marks misuse by the embedder or generated code, not
// a runtime condition the caller is expected to handle.
type Fatal struct {
	Check string // the violated invariant, as passed to the check collaborator
}

func (f *Fatal) Error() string {
	return "fatal runtime invariant violation: " + f.Check
}

// Is reports whether target matches this error type
func (f *Fatal) Is(target error) bool {
	_, ok := target.(*Fatal)
	return ok
}

// IsFatal reports whether err belongs to the invariant-violation class.
func IsFatal(err error) bool {
	_, ok := err.(*Fatal)
	return ok
}
