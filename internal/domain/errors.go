package domain

import "errors"

// Construction errors. Window and index violations are programmer errors:
// they indicate a builder invariant was broken, not bad user input.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrWindowOutOfBounds = errors.New("window out of bounds")
	ErrIndexRange        = errors.New("offset range not representable in index register")
)

// Execution errors. These propagate to the caller verbatim and are never
// retried silently. Transpilation failures on simulator-class provider
// backends are a known, unresolved limitation of the assembled circuits.
var (
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrTranspilation      = errors.New("transpilation failed")
	ErrJobTimeout         = errors.New("job timed out")
)
