// Package errors provides structured error types for the native-runtime core.
//
// Errors are categorized by Phase (which lifecycle operation failed) and Kind
// (error category). Only the recoverable class is represented by Error;
// invariant violations use the distinct Fatal type, raised through the core's
// check collaborator, so callers and tests can tell the two classes apart:
//
//	_, err := core.CreateDetached()
//	var alloc *errors.Error
//	if stderrors.As(err, &alloc) && alloc.Kind == errors.KindAllocation {
//	    // memory subsystem refused the new instance; recoverable
//	}
//
// A wrong-state transition, a double attach, or reading the current instance
// while unattached is never an Error: those are contract violations by the
// embedder and surface as a Fatal.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
