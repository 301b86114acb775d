package command

// Exit codes of the secallow binary.
const (
	ExitOK       = 0
	ExitRuntime  = 1 // runtime or validation failure, nothing or partially updated
	ExitUsage    = 2 // bad flags or arguments, no external calls made
	ExitInternal = 3 // invariant violation inside the tool itself
)

// usageError marks errors that should exit with ExitUsage.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// internalError marks violated invariants; these should never happen.
type internalError struct {
	err error
}

func (e *internalError) Error() string { return e.err.Error() }
func (e *internalError) Unwrap() error { return e.err }
