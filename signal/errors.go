package signal

import "errors"

// Sentinel error kinds, per spec §7. Recoverable, cooperative mismatches
// (wrong source phase, queue full, duplicate UUID inside the same slot) are
// signalled by boolean/nil returns instead of these errors; these are
// reserved for contract violations that must propagate to the caller,
// mirroring the teacher's engine/models package-level Err* variables.
var (
	ErrInvalidParameter       = errors.New("signal: invalid parameter")
	ErrInvalidName            = errors.New("signal: invalid name")
	ErrInvalidIdentifier      = errors.New("signal: invalid identifier")
	ErrDuplicateInstance      = errors.New("signal: duplicate instance")
	ErrDuplicateSignal        = errors.New("signal: duplicate signal")
	ErrInstanceNotFound       = errors.New("signal: instance not found")
	ErrSignalNotFound         = errors.New("signal: signal not found")
	ErrSignalAlreadyTriggered = errors.New("signal: signal already triggered")
	ErrInvalidTimestamp       = errors.New("signal: invalid timestamp")
)

// SignalError wraps an error kind with the offending name/UUID, mirroring
// the teacher's CrawlError shape (engine/models.CrawlError).
type SignalError struct {
	Op   string // operation that failed, e.g. "registerInstance"
	Name string // offending instance/signal name or UUID
	Err  error
}

func (e *SignalError) Error() string {
	if e.Name == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *SignalError) Unwrap() error { return e.Err }

// newErr constructs a SignalError.
func newErr(op, name string, err error) *SignalError {
	return &SignalError{Op: op, Name: name, Err: err}
}
