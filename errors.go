package dspcore

import "errors"

// Sentinel errors shared by every unit in this module. Components wrap
// these with fmt.Errorf("%w: ...") when more context helps the caller.
var (
	// ErrOutOfMemory indicates an allocation failed.
	ErrOutOfMemory = errors.New("dspcore: out of memory")

	// ErrInvalidValue indicates a parameter is out of its valid domain,
	// e.g. a sample id outside the loaded range.
	ErrInvalidValue = errors.New("dspcore: invalid value")

	// ErrBadState indicates a unit was used before Init or after it was
	// discarded.
	ErrBadState = errors.New("dspcore: bad state")

	// ErrBadArguments indicates nil buffers, mismatched lengths, or
	// mismatched formats between buffers passed to Process.
	ErrBadArguments = errors.New("dspcore: bad arguments")

	// ErrNotFound indicates an archive entry or sample id could not be
	// located.
	ErrNotFound = errors.New("dspcore: not found")

	// ErrIncompatible indicates a format mismatch in the sample loader.
	ErrIncompatible = errors.New("dspcore: incompatible format")

	// ErrCancelled indicates the ray tracer was cooperatively aborted.
	ErrCancelled = errors.New("dspcore: cancelled")

	// ErrBreakPoint indicates a progress callback requested the ray
	// tracer stop.
	ErrBreakPoint = errors.New("dspcore: breakpoint requested by callback")

	// ErrCorrupted indicates an internal invariant was violated; this
	// should be unreachable and signals a bug rather than bad input.
	ErrCorrupted = errors.New("dspcore: corrupted internal state")
)

// errSkip is internal control flow: a sub-operation had nothing to
// contribute. It never crosses a package boundary.
var errSkip = errors.New("dspcore: skip")
