// Package signal implements the in-process signal bus: SignalMessage,
// SignalSlot, SignalInstance and the SignalHandler registry (spec.md §3-§4).
package signal

import (
	"sync"
	"weak"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/logging"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/metrics"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/telemetry"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/uuidkit"
)

// Handler is the global registry (spec's SignalHandler, C10): instance
// tables and a uuid->slot routing map any thread can consult. The routing
// map stores weak references to slots (weak.Pointer[Slot], stdlib) so a
// destroyed slot can never be kept alive by a stale lookup entry — the
// same weak-map-of-dependents idiom used by the retrieval pack's
// go-eventloop registry for its promise table, adapted here to uuid->slot
// routing instead of id->promise.
type Handler struct {
	instMu    sync.RWMutex
	instances map[string]*Instance

	msgMu          sync.Mutex
	messageSlotMap map[string]weak.Pointer[Slot]

	telemetry *telemetry.Handler
	logger    logging.Logger

	metricsMu sync.RWMutex
	metrics   metrics.Provider // optional default applied to every slot that doesn't set its own
}

// NewHandler constructs a Handler that owns telemetryHandler (nil falls back
// to a telemetry.Handler over telemetry.NoopSession) and logger (nil falls
// back to slog.Default()).
func NewHandler(telemetryHandler *telemetry.Handler, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.New(nil)
	}
	if telemetryHandler == nil {
		telemetryHandler = telemetry.NewHandler(nil)
	}
	return &Handler{
		instances:      make(map[string]*Instance),
		messageSlotMap: make(map[string]weak.Pointer[Slot]),
		telemetry:      telemetryHandler,
		logger:         logger,
	}
}

// SetMetricsProvider installs the default metrics.Provider new slots pick up
// (SlotConfig.Metrics still overrides it per-slot) and forwards the same
// provider to the owned telemetry.Handler for its chunk/archive gauges.
// Slots already constructed before this call keep whatever provider (or
// none) they were built with.
func (h *Handler) SetMetricsProvider(p metrics.Provider) {
	h.metricsMu.Lock()
	h.metrics = p
	h.metricsMu.Unlock()
	h.telemetry.SetMetricsProvider(p)
}

func (h *Handler) defaultMetricsProvider() metrics.Provider {
	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()
	return h.metrics
}

// RegisterInstance creates and registers a new Instance. Fails with
// ErrInvalidName or ErrDuplicateInstance.
func (h *Handler) RegisterInstance(name string) (*Instance, error) {
	if err := uuidkit.ValidateName(name); err != nil {
		return nil, newErr("registerInstance", name, ErrInvalidName)
	}
	h.instMu.Lock()
	defer h.instMu.Unlock()
	if _, exists := h.instances[name]; exists {
		return nil, newErr("registerInstance", name, ErrDuplicateInstance)
	}
	inst := newInstance(name, h, h.telemetry)
	h.instances[name] = inst
	return inst, nil
}

// GetInstance looks up a previously registered instance. Fails with
// ErrInstanceNotFound.
func (h *Handler) GetInstance(name string) (*Instance, error) {
	h.instMu.RLock()
	defer h.instMu.RUnlock()
	inst, ok := h.instances[name]
	if !ok {
		return nil, newErr("getInstance", name, ErrInstanceNotFound)
	}
	return inst, nil
}

// registerMessage inserts uuid->slot under messageMapMutex. Duplicate
// insert fails with ErrSignalAlreadyTriggered. Called by slot code while
// already holding the slot's own lock (lock-ordering: Slot -> Handler).
func (h *Handler) registerMessage(uuid string, slot *Slot) error {
	h.msgMu.Lock()
	defer h.msgMu.Unlock()
	if wp, exists := h.messageSlotMap[uuid]; exists {
		if wp.Value() != nil {
			return newErr("registerMessage", uuid, ErrSignalAlreadyTriggered)
		}
	}
	h.messageSlotMap[uuid] = weak.Make(slot)
	return nil
}

// unregisterMessage removes uuid from the routing map.
func (h *Handler) unregisterMessage(uuid string) {
	h.msgMu.Lock()
	defer h.msgMu.Unlock()
	delete(h.messageSlotMap, uuid)
}

// FindSignalSlotOfMessage upgrades the weak routing entry for uuid to a
// strong *Slot; a stale (GC'd) entry is pruned as a side effect.
func (h *Handler) FindSignalSlotOfMessage(uuid string) *Slot {
	normalized, err := uuidkit.Normalize(uuid)
	if err != nil {
		return nil
	}
	h.msgMu.Lock()
	wp, exists := h.messageSlotMap[normalized]
	if !exists {
		h.msgMu.Unlock()
		return nil
	}
	slot := wp.Value()
	if slot == nil {
		delete(h.messageSlotMap, normalized)
	}
	h.msgMu.Unlock()
	return slot
}

// FinalizeSignal removes uuid from the routing map entirely, for callers
// that have already consumed the terminal result and want to release it
// early rather than waiting for auto-archive/GC.
func (h *Handler) FinalizeSignal(uuid string) {
	h.unregisterMessage(uuid)
}

// ChangeSignalPhaseToInProcess routes to the owning slot's
// TransitionToInProcess. Returns false if uuid is unknown or the
// transition is illegal.
func (h *Handler) ChangeSignalPhaseToInProcess(uuid string, nowUs int64) bool {
	slot := h.FindSignalSlotOfMessage(uuid)
	if slot == nil {
		return false
	}
	return slot.TransitionToInProcess(uuid, nowUs)
}

// ChangeSignalPhaseToHandled routes to the owning slot's
// TransitionToHandled.
func (h *Handler) ChangeSignalPhaseToHandled(uuid, resultJSON string, nowUs int64) bool {
	slot := h.FindSignalSlotOfMessage(uuid)
	if slot == nil {
		return false
	}
	return slot.TransitionToHandled(uuid, resultJSON, nowUs)
}

// ChangeSignalPhaseToFailed routes to the owning slot's
// TransitionToFailed.
func (h *Handler) ChangeSignalPhaseToFailed(uuid, resultJSON, errorMessage string, nowUs int64) bool {
	slot := h.FindSignalSlotOfMessage(uuid)
	if slot == nil {
		return false
	}
	return slot.TransitionToFailed(uuid, resultJSON, errorMessage, nowUs)
}

// GetSignalPhase returns the current phase of uuid and whether it is
// currently known to the registry.
func (h *Handler) GetSignalPhase(uuid string) (Phase, bool) {
	slot := h.FindSignalSlotOfMessage(uuid)
	if slot == nil {
		return 0, false
	}
	return slot.GetPhase(uuid)
}

// GetReactionTimeout returns the reaction timeout (ms) configured for
// uuid's message, and whether uuid is currently known.
func (h *Handler) GetReactionTimeout(uuid string) (int64, bool) {
	slot := h.FindSignalSlotOfMessage(uuid)
	if slot == nil {
		return 0, false
	}
	msg, ok := slot.GetMessage(uuid)
	if !ok {
		return 0, false
	}
	return msg.ReactionTimeoutMs(), true
}

// GetResultDataJSON returns the result payload recorded for uuid, and
// whether uuid is currently known.
func (h *Handler) GetResultDataJSON(uuid string) (string, bool) {
	slot := h.FindSignalSlotOfMessage(uuid)
	if slot == nil {
		return "", false
	}
	msg, ok := slot.GetMessage(uuid)
	if !ok {
		return "", false
	}
	return msg.ResultDataJSON(), true
}

// SignalProperties is a read-only projection of a Message used by
// FindSignalPropertiesByUUID.
type SignalProperties struct {
	UUID              string
	Phase             Phase
	ReactionTimeoutMs int64
	ResultDataJSON    string
	ErrorMessage      string
}

// FindSignalPropertiesByUUID returns a snapshot of uuid's message state, and
// whether uuid is currently known.
func (h *Handler) FindSignalPropertiesByUUID(uuid string) (SignalProperties, bool) {
	slot := h.FindSignalSlotOfMessage(uuid)
	if slot == nil {
		return SignalProperties{}, false
	}
	msg, ok := slot.GetMessage(uuid)
	if !ok {
		return SignalProperties{}, false
	}
	return SignalProperties{
		UUID:              msg.UUID(),
		Phase:             msg.Phase(),
		ReactionTimeoutMs: msg.ReactionTimeoutMs(),
		ResultDataJSON:    msg.ResultDataJSON(),
		ErrorMessage:      msg.ErrorMessage(),
	}, true
}

// RegisterTelemetryChannel delegates to the telemetry handler.
func (h *Handler) RegisterTelemetryChannel(identifier, description string, typ telemetry.ChannelType) (*telemetry.Channel, error) {
	return h.telemetry.RegisterChannel(identifier, description, typ)
}

// Instances returns a snapshot of every registered instance, for
// monitoring/diagnostics callers.
func (h *Handler) Instances() []*Instance { return h.instanceSnapshot() }

// instanceSnapshot takes a snapshot of instance pointers under the
// instance-map lock, then releases it — mirrors Instance.slotSnapshot.
func (h *Handler) instanceSnapshot() []*Instance {
	h.instMu.RLock()
	defer h.instMu.RUnlock()
	insts := make([]*Instance, 0, len(h.instances))
	for _, inst := range h.instances {
		insts = append(insts, inst)
	}
	return insts
}

// CheckForReactionTimeouts fans out SweepReactionTimeouts to every
// instance.
func (h *Handler) CheckForReactionTimeouts(nowUs int64) {
	for _, inst := range h.instanceSnapshot() {
		inst.SweepReactionTimeouts(nowUs)
	}
}

// AutoArchiveMessages fans out AutoArchive to every instance.
func (h *Handler) AutoArchiveMessages(nowUs int64) {
	for _, inst := range h.instanceSnapshot() {
		inst.AutoArchive(nowUs)
	}
}

// Telemetry exposes the handler's owned telemetry.Handler for callers that
// need direct channel access beyond RegisterTelemetryChannel.
func (h *Handler) Telemetry() *telemetry.Handler { return h.telemetry }
