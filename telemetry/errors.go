package telemetry

import "errors"

var (
	ErrChannelNotFound             = errors.New("telemetry: channel not found")
	ErrDuplicateChannel            = errors.New("telemetry: channel already registered")
	ErrInvalidIdentifier           = errors.New("telemetry: identifier violates the alphanumeric-path grammar")
	ErrMarkerAlreadyFinished       = errors.New("telemetry: marker already finished")
	ErrUnfinishedMarkerHasNoDuration = errors.New("telemetry: duration requested before marker finished")
	ErrInvalidTimestamp             = errors.New("telemetry: timestamp precedes the reference it is relative to")
)

// Error wraps a sentinel with the operation and subject that triggered it,
// mirroring signal.SignalError so both packages read the same way to a
// caller using errors.Is/errors.As.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(op, name string, err error) *Error {
	return &Error{Op: op, Name: name, Err: err}
}
