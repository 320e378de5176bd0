package telemetry

import (
	"sync/atomic"
	"weak"
)

// Marker is a single telemetry event, instantaneous or an interval with a
// start and (once finished) a finish timestamp (spec's TelemetryMarker).
// The channel back-reference is weak: a channel holds the only strong
// reference to its open interval markers, and the marker holds a weak
// pointer back, so the pair can never keep each other alive past the
// channel's own lifetime (spec §9's marker/channel cycle note).
type Marker struct {
	id      uint64
	channel weak.Pointer[Channel]

	startUs int64
	contextData uint64
	instant     bool

	finishUs atomic.Int64 // 0 == unfinished; acquire/release via atomic ops
}

func newMarker(id uint64, ch *Channel, startUs int64, contextData uint64, instant bool) *Marker {
	return &Marker{
		id:          id,
		channel:     weak.Make(ch),
		startUs:     startUs,
		contextData: contextData,
		instant:     instant,
	}
}

// ID returns the marker's process-wide unique identifier.
func (m *Marker) ID() uint64 { return m.id }

// StartTimestampUs returns the marker's start time.
func (m *Marker) StartTimestampUs() int64 { return m.startUs }

// ContextData returns the opaque context value the caller supplied.
func (m *Marker) ContextData() uint64 { return m.contextData }

// IsFinished reports whether finishMarker has succeeded for this marker.
func (m *Marker) IsFinished() bool {
	return m.finishUs.Load() != 0
}

// FinishTimestampUs returns the finish time, or 0 if unfinished.
func (m *Marker) FinishTimestampUs() int64 {
	return m.finishUs.Load()
}

// Duration returns finish-start. Fails with ErrUnfinishedMarkerHasNoDuration
// if the marker has not finished yet.
func (m *Marker) Duration() (int64, error) {
	finish := m.finishUs.Load()
	if finish == 0 {
		return 0, newErr("duration", "", ErrUnfinishedMarkerHasNoDuration)
	}
	return finish - m.startUs, nil
}

// Finish atomically CASes finishTimestampUs from 0 to nowUs. A second
// attempt (or any attempt on an instant marker, already finished at
// construction) fails with ErrMarkerAlreadyFinished. On success it
// notifies the owning channel (if still alive) so it can drop the marker
// from its open-marker map, update maxDurationUs, and emit the
// IntervalEndMarker chunk entry.
func (m *Marker) Finish(nowUs int64) error {
	if m.instant {
		return newErr("finish", "", ErrMarkerAlreadyFinished)
	}
	if nowUs < m.startUs {
		return newErr("finish", "", ErrInvalidTimestamp)
	}
	if !m.finishUs.CompareAndSwap(0, nowUs) {
		return newErr("finish", "", ErrMarkerAlreadyFinished)
	}
	if ch := m.channel.Value(); ch != nil {
		ch.finishInterval(m, nowUs)
	}
	return nil
}

// Scope is an RAII-style guard around an interval marker: Close finishes
// it. A guarded block that panics still finishes the marker, since the
// caller is expected to `defer scope.Close()` immediately after creation.
type Scope struct {
	marker *Marker
	nowFn  func() int64
}

func newScope(marker *Marker, nowFn func() int64) *Scope {
	return &Scope{marker: marker, nowFn: nowFn}
}

// Marker returns the interval marker the scope guards.
func (s *Scope) Marker() *Marker { return s.marker }

// Close finishes the guarded marker. Safe to call from a defer even when
// the scoped code panicked.
func (s *Scope) Close() error {
	return s.marker.Finish(s.nowFn())
}
