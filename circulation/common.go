package circulation

import (
	"errors"
)

// Error kinds returned by every storage engine. Callers are expected to test
// with errors.Is; engines wrap the underlying storage error so the cause
// stays inspectable.
var (
	// ErrDuplicateKey signals that a create violated a unique constraint
	// (ISBN, barcode or patron identifier already taken).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound signals that a referenced identifier does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrReferentialConflict signals a delete that was blocked because
	// dependent rows still reference the target.
	ErrReferentialConflict = errors.New("referential conflict, dependent rows exist")

	// ErrItemUnavailable signals an IssueLoan against an item that is not
	// in the available state.
	ErrItemUnavailable = errors.New("item is not available")

	// ErrAlreadyReturned signals a ReturnLoan against a loan whose return
	// date is already set.
	ErrAlreadyReturned = errors.New("loan was already returned")

	// ErrInvalidState signals a state transition the state machine does not
	// permit, e.g. settling an already settled fine or writing the on_loan
	// item state directly.
	ErrInvalidState = errors.New("state transition not permitted")

	// ErrStorageUnavailable signals an infrastructure failure (I/O,
	// connection loss). The core never retries; retry policy belongs to the
	// caller.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
