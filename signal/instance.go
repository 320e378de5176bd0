package signal

import (
	"sync"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/telemetry"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/uuidkit"
)

// Instance is a namespace of slots keyed by signal name — one instance per
// logical state machine (spec's SignalInstance, C9).
type Instance struct {
	name string

	mu    sync.RWMutex
	slots map[string]*Slot

	registry  *Handler
	telemetry *telemetry.Handler
}

func newInstance(name string, registry *Handler, telemetryHandler *telemetry.Handler) *Instance {
	return &Instance{
		name:      name,
		slots:     make(map[string]*Slot),
		registry:  registry,
		telemetry: telemetryHandler,
	}
}

// Name returns the instance's name.
func (i *Instance) Name() string { return i.name }

// AddSignalDefinition registers a new slot under signalName. Fails with
// ErrInvalidName if name is not alphanumeric, ErrDuplicateSignal if the
// name is already registered on this instance.
func (i *Instance) AddSignalDefinition(signalName string, cfg SlotConfig) (*Slot, error) {
	if err := uuidkit.ValidateName(signalName); err != nil {
		return nil, newErr("addSignalDefinition", signalName, ErrInvalidName)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.slots[signalName]; exists {
		return nil, newErr("addSignalDefinition", signalName, ErrDuplicateSignal)
	}

	var channel *telemetry.Channel
	if i.telemetry != nil {
		ch, err := i.telemetry.RegisterChannel(i.name+"."+signalName, "signal slot "+signalName, telemetry.ChannelCustomMarker)
		if err == nil {
			channel = ch
		}
	}

	if cfg.Metrics == nil {
		cfg.Metrics = i.registry.defaultMetricsProvider()
	}
	slot := newSlot(i.name, signalName, cfg, i.registry, channel)
	i.slots[signalName] = slot
	return slot, nil
}

// GetSlot looks up a previously registered slot by signal name.
func (i *Instance) GetSlot(signalName string) (*Slot, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	slot, ok := i.slots[signalName]
	return slot, ok
}

// Enqueue delegates to the named slot.
func (i *Instance) Enqueue(signalName, uuid, parameterJSON string, timeoutMs int64, nowUs int64) (*Message, error) {
	slot, ok := i.GetSlot(signalName)
	if !ok {
		return nil, newErr("enqueue", signalName, ErrSignalNotFound)
	}
	return slot.Enqueue(uuid, parameterJSON, timeoutMs, nowUs)
}

// Claim delegates to the named slot.
func (i *Instance) Claim(signalName string, checkTimeouts bool, nowUs int64, changeToInProcess bool) (*Message, error) {
	slot, ok := i.GetSlot(signalName)
	if !ok {
		return nil, newErr("claim", signalName, ErrSignalNotFound)
	}
	if checkTimeouts {
		slot.SweepReactionTimeouts(nowUs)
	}
	return slot.ClaimFromQueue(nowUs, changeToInProcess), nil
}

// CanTrigger reports whether signalName's slot has room for another
// enqueue.
func (i *Instance) CanTrigger(signalName string) bool {
	slot, ok := i.GetSlot(signalName)
	if !ok {
		return false
	}
	return !slot.QueueIsFull()
}

// ClearAll forwards clearQueue to every slot this instance owns.
func (i *Instance) ClearAll(nowUs int64) map[string][]string {
	result := make(map[string][]string)
	for _, slot := range i.slotSnapshot() {
		result[slot.SignalName()] = slot.ClearQueue(nowUs)
	}
	return result
}

// ClearAllOfType forwards clearQueue to a single named slot.
func (i *Instance) ClearAllOfType(signalName string, nowUs int64) ([]string, error) {
	slot, ok := i.GetSlot(signalName)
	if !ok {
		return nil, newErr("clearAllOfType", signalName, ErrSignalNotFound)
	}
	return slot.ClearQueue(nowUs), nil
}

// Slots returns a snapshot of this instance's slots, for monitoring/
// diagnostics callers that want to enumerate without reaching into
// per-signal lookups.
func (i *Instance) Slots() []*Slot { return i.slotSnapshot() }

// slotSnapshot takes a snapshot of slot pointers under the slot-map lock,
// then releases it before per-slot work runs — the same snapshot-then-
// iterate discipline the teacher's AdaptiveRateLimiter.Snapshot() uses for
// its domain shards, avoiding holding the instance's map lock during
// per-slot mutex acquisition.
func (i *Instance) slotSnapshot() []*Slot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	slots := make([]*Slot, 0, len(i.slots))
	for _, s := range i.slots {
		slots = append(slots, s)
	}
	return slots
}

// SweepReactionTimeouts iterates a snapshot of slots and sweeps each.
func (i *Instance) SweepReactionTimeouts(nowUs int64) {
	for _, slot := range i.slotSnapshot() {
		slot.SweepReactionTimeouts(nowUs)
	}
}

// AutoArchive iterates a snapshot of slots and archives each.
func (i *Instance) AutoArchive(nowUs int64) {
	for _, slot := range i.slotSnapshot() {
		slot.AutoArchive(nowUs)
	}
}
