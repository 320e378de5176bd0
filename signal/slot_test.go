package signal_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/signal"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/telemetry"
)

func newTestHandler(t *testing.T) *signal.Handler {
	t.Helper()
	return signal.NewHandler(telemetry.NewHandler(telemetry.NoopSession{}), nil)
}

func uuidN(n int) string {
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
}

// Scenario 2: queue overflow.
func TestSlot_QueueOverflow(t *testing.T) {
	h := newTestHandler(t)
	inst, err := h.RegisterInstance("overflow")
	require.NoError(t, err)
	slot, err := inst.AddSignalDefinition("sig", signal.SlotConfig{
		QueueCapacity:    1,
		DefaultTimeoutMs: 1000,
	})
	require.NoError(t, err)

	msg, err := slot.Enqueue(uuidN(1), "{}", 0, 0)
	require.NoError(t, err)
	require.NotNil(t, msg)

	second, err := slot.Enqueue(uuidN(2), "{}", 0, 0)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, 0, slot.GetAvailable())

	ok := slot.TransitionToHandled(uuidN(1), "{}", 10)
	require.True(t, ok)

	third, err := slot.Enqueue(uuidN(2), "{}", 0, 11)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

// Scenario 3: reaction timeout.
func TestSlot_ReactionTimeout(t *testing.T) {
	h := newTestHandler(t)
	inst, err := h.RegisterInstance("timeout")
	require.NoError(t, err)
	slot, err := inst.AddSignalDefinition("sig", signal.SlotConfig{
		QueueCapacity:    10,
		DefaultTimeoutMs: 50,
	})
	require.NoError(t, err)

	var accepted int
	for i := 0; i < 15; i++ {
		msg, err := slot.Enqueue(uuidN(i), "{}", 0, 0)
		require.NoError(t, err)
		if msg != nil {
			accepted++
		}
	}
	assert.Equal(t, 10, accepted)

	slot.SweepReactionTimeouts(200_000) // 200ms later, in microseconds
	counters := slot.Snapshot()
	assert.Equal(t, uint64(10), counters.TimedOut)
}

// Scenario 4: illegal phase transition.
func TestSlot_IllegalDoubleTransition(t *testing.T) {
	h := newTestHandler(t)
	inst, err := h.RegisterInstance("illegal")
	require.NoError(t, err)
	slot, err := inst.AddSignalDefinition("sig", signal.SlotConfig{QueueCapacity: 10, DefaultTimeoutMs: 1000})
	require.NoError(t, err)

	_, err = slot.Enqueue(uuidN(1), "{}", 0, 0)
	require.NoError(t, err)

	first := slot.TransitionToInProcess(uuidN(1), 1)
	second := slot.TransitionToInProcess(uuidN(1), 2)
	assert.True(t, first)
	assert.False(t, second)

	phase, ok := slot.GetPhase(uuidN(1))
	require.True(t, ok)
	assert.Equal(t, signal.PhaseInProcess, phase)
}

// Scenario 5: clear semantics.
func TestSlot_ClearQueue(t *testing.T) {
	h := newTestHandler(t)
	inst, err := h.RegisterInstance("clear")
	require.NoError(t, err)
	slot, err := inst.AddSignalDefinition("sig", signal.SlotConfig{QueueCapacity: 5, DefaultTimeoutMs: 1000})
	require.NoError(t, err)

	_, err = slot.Enqueue(uuidN(1), "{}", 0, 0)
	require.NoError(t, err)
	_, err = slot.Enqueue(uuidN(2), "{}", 0, 0)
	require.NoError(t, err)

	cleared := slot.ClearQueue(5)
	require.Equal(t, []string{uuidN(1), uuidN(2)}, cleared)
	assert.Equal(t, 5, slot.GetAvailable())

	assert.Nil(t, h.FindSignalSlotOfMessage(uuidN(1)))
	assert.Nil(t, h.FindSignalSlotOfMessage(uuidN(2)))
}

// FIFO ordering property.
func TestSlot_FIFOOrdering(t *testing.T) {
	h := newTestHandler(t)
	inst, err := h.RegisterInstance("fifo")
	require.NoError(t, err)
	slot, err := inst.AddSignalDefinition("sig", signal.SlotConfig{QueueCapacity: 10, DefaultTimeoutMs: 1000})
	require.NoError(t, err)

	_, err = slot.Enqueue(uuidN(1), "{}", 0, 0)
	require.NoError(t, err)
	_, err = slot.Enqueue(uuidN(2), "{}", 0, 0)
	require.NoError(t, err)

	assert.Equal(t, uuidN(1), slot.PeekHead(false, 0))
	first := slot.ClaimFromQueue(0, true)
	require.NotNil(t, first)
	assert.Equal(t, uuidN(1), first.UUID())

	second := slot.ClaimFromQueue(0, true)
	require.NotNil(t, second)
	assert.Equal(t, uuidN(2), second.UUID())
}

// Uniqueness property: a uuid already triggered in any slot cannot be
// enqueued again, even on a different slot.
func TestSlot_UniquenessAcrossSlots(t *testing.T) {
	h := newTestHandler(t)
	instA, err := h.RegisterInstance("a")
	require.NoError(t, err)
	instB, err := h.RegisterInstance("b")
	require.NoError(t, err)
	slotA, err := instA.AddSignalDefinition("sig", signal.SlotConfig{QueueCapacity: 10, DefaultTimeoutMs: 1000})
	require.NoError(t, err)
	slotB, err := instB.AddSignalDefinition("sig", signal.SlotConfig{QueueCapacity: 10, DefaultTimeoutMs: 1000})
	require.NoError(t, err)

	msg, err := slotA.Enqueue(uuidN(42), "{}", 0, 0)
	require.NoError(t, err)
	require.NotNil(t, msg)

	dup, err := slotB.Enqueue(uuidN(42), "{}", 0, 0)
	assert.ErrorIs(t, err, signal.ErrSignalAlreadyTriggered)
	assert.Nil(t, dup)

	countersB := slotB.Snapshot()
	assert.Equal(t, uint64(0), countersB.Triggered)
}

// Counter law: triggered == handled + failed + timedOut + in-flight/cleared.
func TestSlot_CounterLaw(t *testing.T) {
	h := newTestHandler(t)
	inst, err := h.RegisterInstance("counters")
	require.NoError(t, err)
	slot, err := inst.AddSignalDefinition("sig", signal.SlotConfig{QueueCapacity: 10, DefaultTimeoutMs: 1000})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := slot.Enqueue(uuidN(i), "{}", 0, 0)
		require.NoError(t, err)
	}
	slot.TransitionToHandled(uuidN(0), "{}", 1)
	slot.TransitionToFailed(uuidN(1), "{}", "boom", 1)
	cleared := slot.ClearQueue(2)
	assert.Len(t, cleared, 3)

	counters := slot.Snapshot()
	assert.Equal(t, uint64(5), counters.Triggered)
	assert.Equal(t, uint64(1), counters.Handled)
	assert.Equal(t, uint64(1), counters.Failed)
	assert.Equal(t, uint64(0), counters.TimedOut)
}

// Timeout law: after sweepReactionTimeouts, every still-queued message
// satisfies now < creation + timeout.
func TestSlot_TimeoutLaw(t *testing.T) {
	h := newTestHandler(t)
	inst, err := h.RegisterInstance("timeoutlaw")
	require.NoError(t, err)
	slot, err := inst.AddSignalDefinition("sig", signal.SlotConfig{QueueCapacity: 10, DefaultTimeoutMs: 100})
	require.NoError(t, err)

	_, err = slot.Enqueue(uuidN(1), "{}", 50, 0)
	require.NoError(t, err)
	_, err = slot.Enqueue(uuidN(2), "{}", 500, 0)
	require.NoError(t, err)

	now := int64(60_000) // 60ms
	slot.SweepReactionTimeouts(now)

	phase1, ok1 := slot.GetPhase(uuidN(1))
	require.True(t, ok1)
	assert.Equal(t, signal.PhaseTimedOut, phase1)

	phase2, ok2 := slot.GetPhase(uuidN(2))
	require.True(t, ok2)
	assert.Equal(t, signal.PhaseInQueue, phase2)
}

// Round-trip property, small scale: every enqueued uuid is eventually
// observed Handled with the exact result the consumer supplied.
func TestSlot_RoundTrip(t *testing.T) {
	h := newTestHandler(t)
	inst, err := h.RegisterInstance("roundtrip")
	require.NoError(t, err)
	slot, err := inst.AddSignalDefinition("sig", signal.SlotConfig{QueueCapacity: 256, DefaultTimeoutMs: 1000})
	require.NoError(t, err)

	const n = 200
	for i := 0; i < n; i++ {
		_, err := slot.Enqueue(uuidN(i), "{}", 0, 0)
		require.NoError(t, err)
	}
	for i := 0; i < n; i++ {
		msg := slot.ClaimFromQueue(0, true)
		require.NotNil(t, msg)
		result := fmt.Sprintf(`{"echo":%d}`, i)
		ok := slot.TransitionToHandled(msg.UUID(), result, 1)
		require.True(t, ok)
		assert.Equal(t, result, msg.ResultDataJSON())
	}
	counters := slot.Snapshot()
	assert.Equal(t, uint64(n), counters.Handled)
}
