package signal

import (
	"sync"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/uuidkit"
)

// Phase is the lifecycle stage of a SignalMessage (spec §3, §4.7).
type Phase int

const (
	PhaseInQueue Phase = iota
	PhaseInProcess
	PhaseHandled
	PhaseFailed
	PhaseTimedOut
	PhaseCleared
)

func (p Phase) String() string {
	switch p {
	case PhaseInQueue:
		return "InQueue"
	case PhaseInProcess:
		return "InProcess"
	case PhaseHandled:
		return "Handled"
	case PhaseFailed:
		return "Failed"
	case PhaseTimedOut:
		return "TimedOut"
	case PhaseCleared:
		return "Cleared"
	default:
		return "Unknown"
	}
}

// ParameterType enumerates the primitive types a SignalParameter may carry.
type ParameterType int

const (
	ParamString ParameterType = iota
	ParamDouble
	ParamInt
	ParamBool
	ParamUUID
)

// SignalParameter is an immutable descriptor shaping a parameter or result
// group (spec §3).
type SignalParameter struct {
	Name     string
	Type     ParameterType
	Required bool
}

// NewSignalParameter validates name against the alphanumeric grammar and
// returns a SignalParameter descriptor.
func NewSignalParameter(name string, typ ParameterType, required bool) (SignalParameter, error) {
	if err := uuidkit.ValidateName(name); err != nil {
		return SignalParameter{}, newErr("newSignalParameter", name, ErrInvalidName)
	}
	return SignalParameter{Name: name, Type: typ, Required: required}, nil
}

// Message is one in-flight signal request (spec §3's SignalMessage).
//
// All mutation happens under the owning SignalSlot's lock. Message also
// carries its own RWMutex, which every accessor and setter takes, so a
// caller holding a *Message can read it without the slot lock.
type Message struct {
	mu sync.RWMutex

	uuid    string
	phase   Phase
	reactionTimeoutMs int64

	creationTimestampUs int64

	usUntilInProcess        int64
	usUntilHandledOrFailed  int64
	usUntilCleared          int64

	parameterDataJSON string
	resultDataJSON    string
	errorMessage      string
}

// NewMessage constructs a Message. Fails if uuid is not a non-empty
// canonical UUID (spec §4.2).
func NewMessage(rawUUID string, parameterDataJSON string, reactionTimeoutMs int64, nowUs int64) (*Message, error) {
	normalized, err := uuidkit.Normalize(rawUUID)
	if err != nil {
		return nil, newErr("newMessage", rawUUID, ErrInvalidParameter)
	}
	return &Message{
		uuid:                normalized,
		phase:               PhaseInQueue,
		reactionTimeoutMs:   reactionTimeoutMs,
		creationTimestampUs: nowUs,
		parameterDataJSON:   parameterDataJSON,
	}, nil
}

// UUID returns the message's canonical UUID.
func (m *Message) UUID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uuid
}

// Phase returns the current lifecycle phase.
func (m *Message) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// ReactionTimeoutMs returns the configured reaction timeout.
func (m *Message) ReactionTimeoutMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reactionTimeoutMs
}

// CreationTimestampUs returns the creation timestamp.
func (m *Message) CreationTimestampUs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creationTimestampUs
}

// ParameterDataJSON returns the opaque parameter payload.
func (m *Message) ParameterDataJSON() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parameterDataJSON
}

// ResultDataJSON returns the opaque result payload, set once a terminal
// phase carrying a result has been reached.
func (m *Message) ResultDataJSON() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resultDataJSON
}

// ErrorMessage returns the error text recorded by transitionToFailed, if any.
func (m *Message) ErrorMessage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorMessage
}

// ElapsedUntilInProcessUs returns the offset recorded when the message
// entered InProcess, or 0 if it never did.
func (m *Message) ElapsedUntilInProcessUs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usUntilInProcess
}

// ElapsedUntilHandledOrFailedUs returns the offset recorded at the
// Handled/Failed transition, or 0 if not yet reached.
func (m *Message) ElapsedUntilHandledOrFailedUs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usUntilHandledOrFailed
}

// ElapsedUntilClearedUs returns the offset recorded at the Cleared
// transition, or 0 if not cleared.
func (m *Message) ElapsedUntilClearedUs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usUntilCleared
}

// HadReactionTimeout reports whether nowUs has passed the message's
// reaction-timeout deadline (spec §4.2).
func (m *Message) HadReactionTimeout(nowUs int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return nowUs >= m.creationTimestampUs+m.reactionTimeoutMs*1000
}

// setPhase records the elapsed offset appropriate to newPhase and updates
// the phase. Callers (SignalSlot, under its own lock) are responsible for
// legality checks; setPhase itself only records timing and never
// second-guesses the transition.
func (m *Message) setPhase(newPhase Phase, nowUs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	elapsed := nowUs - m.creationTimestampUs
	switch newPhase {
	case PhaseInProcess:
		m.usUntilInProcess = elapsed
	case PhaseHandled, PhaseFailed, PhaseTimedOut:
		m.usUntilHandledOrFailed = elapsed
	case PhaseCleared:
		m.usUntilCleared = elapsed
	}
	m.phase = newPhase
}

func (m *Message) setResult(resultJSON string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resultDataJSON = resultJSON
}

func (m *Message) setError(errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMessage = errMsg
}
