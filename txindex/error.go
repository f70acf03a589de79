package txindex

import "github.com/pkt-cash/txindex/errs"

// Err is this package's ErrorType, one per package by convention (see
// errs.R).
var Err = errs.NewErrorType("txindex.Err")

// Error codes raised by this package.
var (
	// ErrStore indicates an I/O or serialization fault from the
	// backing store. The in-flight batch session is always dropped
	// before this error is returned.
	ErrStore = Err.Code("ErrStore")

	// ErrData describes a record that is present but cannot be decoded,
	// or is missing when an invariant says it must exist (e.g. a spend
	// record naming a spender that cannot be loaded). This signals
	// either store corruption or a programming error.
	ErrData = Err.Code("ErrData")

	// ErrInput describes a caller-supplied value that is obviously
	// invalid (a transaction that fails to deserialize, an input index
	// past the end of a transaction's inputs).
	ErrInput = Err.Code("ErrInput")

	// ErrProgramming indicates a misuse of this package's API that is
	// always a bug, never a runtime condition a caller should expect to
	// handle: reopening an already-open batch session, releasing a lock
	// token twice, forcing a lock that is not held.
	ErrProgramming = Err.Code("ErrProgramming")

	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = Err.Code("ErrNotFound")

	// ErrCancelled indicates a queued operation was dropped by
	// SerialLock.Destroy before it had a chance to run.
	ErrCancelled = Err.Code("ErrCancelled")
)
