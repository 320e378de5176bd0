package signal

import (
	"container/list"
	"sync"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/metrics"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/telemetry"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/uuidkit"
)

// SlotConfig is the immutable schema for a SignalSlot (spec §3).
type SlotConfig struct {
	Parameters         []SignalParameter
	Results            []SignalParameter
	DefaultTimeoutMs   int64
	AutoArchiveMs      int64
	QueueCapacity      int
	ParameterGroup     ParameterGroup  // optional, mirrors counters for observability
	Metrics            metrics.Provider // optional, overrides the handler's default provider
}

// slotInstruments holds the per-slot metric handles built from whichever
// metrics.Provider applies to this slot (SlotConfig.Metrics, falling back to
// the owning Handler's default). Left zero-valued when no provider applies;
// every call site guards on the counter/histogram being non-nil.
type slotInstruments struct {
	triggered    metrics.Counter
	handled      metrics.Counter
	failed       metrics.Counter
	timedOut     metrics.Counter
	reactionTime metrics.Histogram
	successTime  metrics.Histogram
}

func newSlotInstruments(provider metrics.Provider) slotInstruments {
	if provider == nil {
		return slotInstruments{}
	}
	labels := []string{"instance", "signal"}
	return slotInstruments{
		triggered: provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "amcf", Subsystem: "slot", Name: "triggered_total",
			Help: "messages enqueued onto the slot", Labels: labels,
		}}),
		handled: provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "amcf", Subsystem: "slot", Name: "handled_total",
			Help: "messages transitioned to Handled", Labels: labels,
		}}),
		failed: provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "amcf", Subsystem: "slot", Name: "failed_total",
			Help: "messages transitioned to Failed", Labels: labels,
		}}),
		timedOut: provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "amcf", Subsystem: "slot", Name: "timed_out_total",
			Help: "messages that hit their reaction timeout", Labels: labels,
		}}),
		reactionTime: provider.NewHistogram(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "amcf", Subsystem: "slot", Name: "reaction_time_us",
			Help: "microseconds from creation to any terminal phase", Labels: labels,
		}}),
		successTime: provider.NewHistogram(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "amcf", Subsystem: "slot", Name: "success_time_us",
			Help: "microseconds from creation to Handled", Labels: labels,
		}}),
	}
}

// Slot is the per-(instance, signal) queue + phase index + counters (spec's
// SignalSlot, C8). The FIFO queue plus O(1) uuid->element index is a
// container/list.List paired with a map, the same structure the teacher's
// engine/resources.Manager uses for its LRU page cache. One mutex covers
// the queue, phase sets, message table and counters, per spec §5.
type Slot struct {
	mu sync.Mutex

	instanceName string
	signalName   string
	cfg          SlotConfig

	registry *Handler
	channel  *telemetry.Channel

	queue      *list.List            // of uuid strings, FIFO head = oldest
	queueIndex map[string]*list.Element

	messages map[string]*Message // every message currently owned by this slot, any phase
	inProcess map[string]struct{}
	handled   map[string]struct{}
	failed    map[string]struct{}
	timedOut  map[string]struct{}
	cleared   map[string]struct{}

	finishedAtUs map[string]int64 // absolute nowUs recorded when a message became terminal
	archive      *list.List        // of *Message, oldest first

	triggered  uint64
	handledCnt uint64
	failedCnt  uint64
	timedOutCnt uint64

	maxReactionTimeUs int64
	maxSuccessTimeUs  int64

	minst slotInstruments
}

func newSlot(instanceName, signalName string, cfg SlotConfig, registry *Handler, channel *telemetry.Channel) *Slot {
	return &Slot{
		instanceName: instanceName,
		signalName:   signalName,
		cfg:          cfg,
		registry:     registry,
		channel:      channel,
		queue:        list.New(),
		queueIndex:   make(map[string]*list.Element),
		messages:     make(map[string]*Message),
		inProcess:    make(map[string]struct{}),
		handled:      make(map[string]struct{}),
		failed:       make(map[string]struct{}),
		timedOut:     make(map[string]struct{}),
		cleared:      make(map[string]struct{}),
		finishedAtUs: make(map[string]int64),
		archive:      list.New(),
		minst:        newSlotInstruments(cfg.Metrics),
	}
}

// InstanceName/SignalName identify this slot.
func (s *Slot) InstanceName() string { return s.instanceName }
func (s *Slot) SignalName() string   { return s.signalName }

// Enqueue appends a new message to the FIFO tail (spec §4.3).
//
// Fails with ErrSignalAlreadyTriggered if the uuid is already registered in
// any slot (checked via the handler while this slot's lock is held, which
// the Slot -> Handler lock-ordering rule permits). Fails soft (returns nil, nil) if
// the local queue is full or the uuid already exists locally in this slot.
func (s *Slot) Enqueue(rawUUID, parameterJSON string, reactionTimeoutMs int64, nowUs int64) (*Message, error) {
	normalized, err := uuidkit.Normalize(rawUUID)
	if err != nil {
		return nil, newErr("enqueue", rawUUID, ErrInvalidParameter)
	}
	if reactionTimeoutMs <= 0 {
		reactionTimeoutMs = s.cfg.DefaultTimeoutMs
	}

	msg, err := NewMessage(normalized, parameterJSON, reactionTimeoutMs, nowUs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.messages[normalized]; exists {
		s.mu.Unlock()
		return nil, nil
	}
	if s.cfg.QueueCapacity > 0 && s.queue.Len() >= s.cfg.QueueCapacity {
		s.mu.Unlock()
		return nil, nil
	}

	// Register globally before publishing locally so a racing enqueue of the
	// same uuid on another slot observes it. Unlike the local-duplicate and
	// queue-full cases above, a cross-slot duplicate is a contract
	// violation (spec §4.3, §8 Uniqueness) and must propagate as an error.
	if err := s.registry.registerMessage(normalized, s); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	elem := s.queue.PushBack(normalized)
	s.queueIndex[normalized] = elem
	s.messages[normalized] = msg
	s.triggered++
	s.mirrorCountersLocked()
	if s.minst.triggered != nil {
		s.minst.triggered.Inc(1, s.instanceName, s.signalName)
	}
	s.mu.Unlock()

	if s.channel != nil {
		s.channel.CreateInstantMarker(contextDataForUUID(normalized))
	}
	return msg, nil
}

// ClaimFromQueue pops the FIFO head if present, optionally transitioning it
// to InProcess, and returns it. Sweeps reaction timeouts first (spec §4.3).
func (s *Slot) ClaimFromQueue(nowUs int64, changeToInProcess bool) *Message {
	s.sweepReactionTimeoutsLocked(nowUs)

	s.mu.Lock()
	front := s.queue.Front()
	if front == nil {
		s.mu.Unlock()
		return nil
	}
	uuid := front.Value.(string)
	msg := s.messages[uuid]
	s.queue.Remove(front)
	delete(s.queueIndex, uuid)
	if changeToInProcess {
		msg.setPhase(PhaseInProcess, nowUs)
		s.inProcess[uuid] = struct{}{}
	}
	s.mu.Unlock()
	return msg
}

// PeekHead returns the FIFO head uuid without removing it, or "" if empty.
// Optionally sweeps reaction timeouts first.
func (s *Slot) PeekHead(checkTimeouts bool, nowUs int64) string {
	if checkTimeouts {
		s.sweepReactionTimeoutsLocked(nowUs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	front := s.queue.Front()
	if front == nil {
		return ""
	}
	return front.Value.(string)
}

// TransitionToInProcess is legal only from InQueue (spec §4.7).
func (s *Slot) TransitionToInProcess(uuid string, nowUs int64) bool {
	normalized, err := uuidkit.Normalize(uuid)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[normalized]
	if !ok || msg.Phase() != PhaseInQueue {
		return false
	}
	elem, inQueue := s.queueIndex[normalized]
	if !inQueue {
		return false
	}
	s.queue.Remove(elem)
	delete(s.queueIndex, normalized)
	s.inProcess[normalized] = struct{}{}
	msg.setPhase(PhaseInProcess, nowUs)
	return true
}

// TransitionToHandled is legal from InQueue (short-circuit) or InProcess
// (spec §9, Open Question — this asymmetry with TransitionToInProcess is
// intentional and preserved, not "fixed").
func (s *Slot) TransitionToHandled(uuid, resultJSON string, nowUs int64) bool {
	return s.transitionToTerminal(uuid, resultJSON, "", nowUs, PhaseHandled)
}

// TransitionToFailed mirrors TransitionToHandled but counts as a failure.
func (s *Slot) TransitionToFailed(uuid, resultJSON, errorMessage string, nowUs int64) bool {
	return s.transitionToTerminal(uuid, resultJSON, errorMessage, nowUs, PhaseFailed)
}

func (s *Slot) transitionToTerminal(uuid, resultJSON, errorMessage string, nowUs int64, target Phase) bool {
	normalized, err := uuidkit.Normalize(uuid)
	if err != nil {
		return false
	}
	s.mu.Lock()
	msg, ok := s.messages[normalized]
	if !ok {
		s.mu.Unlock()
		return false
	}
	switch msg.Phase() {
	case PhaseInQueue:
		if elem, inQueue := s.queueIndex[normalized]; inQueue {
			s.queue.Remove(elem)
			delete(s.queueIndex, normalized)
		}
	case PhaseInProcess:
		delete(s.inProcess, normalized)
	default:
		s.mu.Unlock()
		return false
	}

	msg.setResult(resultJSON)
	if errorMessage != "" {
		msg.setError(errorMessage)
	}
	msg.setPhase(target, nowUs)
	s.finishedAtUs[normalized] = nowUs

	reactionUs := msg.ElapsedUntilHandledOrFailedUs()
	if target == PhaseHandled {
		s.handled[normalized] = struct{}{}
		s.handledCnt++
		if reactionUs > s.maxSuccessTimeUs {
			s.maxSuccessTimeUs = reactionUs
		}
		if s.minst.handled != nil {
			s.minst.handled.Inc(1, s.instanceName, s.signalName)
		}
		if s.minst.successTime != nil {
			s.minst.successTime.Observe(float64(reactionUs), s.instanceName, s.signalName)
		}
	} else {
		s.failed[normalized] = struct{}{}
		s.failedCnt++
		if s.minst.failed != nil {
			s.minst.failed.Inc(1, s.instanceName, s.signalName)
		}
	}
	if reactionUs > s.maxReactionTimeUs {
		s.maxReactionTimeUs = reactionUs
	}
	if s.minst.reactionTime != nil {
		s.minst.reactionTime.Observe(float64(reactionUs), s.instanceName, s.signalName)
	}
	s.mirrorCountersLocked()
	s.mu.Unlock()

	if s.channel != nil {
		s.channel.CreateInstantMarker(contextDataForUUID(normalized))
	}
	return true
}

// sweepReactionTimeoutsLocked iterates the queue head-to-tail, moving any
// message past its reaction deadline to TimedOut (spec §4.3). It acquires
// the slot lock itself and additionally calls into the registry to
// unregister each timed-out uuid.
func (s *Slot) sweepReactionTimeoutsLocked(nowUs int64) {
	s.mu.Lock()
	var timedOut []string
	for elem := s.queue.Front(); elem != nil; {
		next := elem.Next()
		uuid := elem.Value.(string)
		msg := s.messages[uuid]
		if msg.HadReactionTimeout(nowUs) {
			s.queue.Remove(elem)
			delete(s.queueIndex, uuid)
			msg.setPhase(PhaseTimedOut, nowUs)
			s.timedOut[uuid] = struct{}{}
			s.timedOutCnt++
			s.finishedAtUs[uuid] = nowUs
			timedOut = append(timedOut, uuid)

			// setPhase now records usUntilHandledOrFailed for TimedOut the same
			// way it does for Handled/Failed, so fold it into the same
			// maxReactionTimeUs aggregate transitionToTerminal maintains.
			reactionUs := msg.ElapsedUntilHandledOrFailedUs()
			if reactionUs > s.maxReactionTimeUs {
				s.maxReactionTimeUs = reactionUs
			}
			if s.minst.timedOut != nil {
				s.minst.timedOut.Inc(1, s.instanceName, s.signalName)
			}
			if s.minst.reactionTime != nil {
				s.minst.reactionTime.Observe(float64(reactionUs), s.instanceName, s.signalName)
			}
		}
		elem = next
	}
	if len(timedOut) > 0 {
		s.mirrorCountersLocked()
	}
	s.mu.Unlock()

	for _, uuid := range timedOut {
		s.registry.unregisterMessage(uuid)
	}
}

// SweepReactionTimeouts is the exported form used by callers that want to
// force a sweep without claiming or peeking.
func (s *Slot) SweepReactionTimeouts(nowUs int64) {
	s.sweepReactionTimeoutsLocked(nowUs)
}

// ClearQueue transitions every queued message to Cleared, returning their
// uuids in FIFO order, and removes them from the queue and the handler's
// global map. The cleared messages stay in the slot's message table (phase
// Cleared) until AutoArchive moves them to the archive.
func (s *Slot) ClearQueue(nowUs int64) []string {
	s.mu.Lock()
	var cleared []string
	for elem := s.queue.Front(); elem != nil; elem = elem.Next() {
		uuid := elem.Value.(string)
		msg := s.messages[uuid]
		msg.setPhase(PhaseCleared, nowUs)
		s.cleared[uuid] = struct{}{}
		s.finishedAtUs[uuid] = nowUs
		cleared = append(cleared, uuid)
	}
	s.queue.Init()
	for _, uuid := range cleared {
		delete(s.queueIndex, uuid)
	}
	s.mu.Unlock()

	for _, uuid := range cleared {
		s.registry.unregisterMessage(uuid)
	}
	return cleared
}

// AutoArchive moves every terminal message whose age since finish has
// reached the slot's auto-archive interval from its terminal set into the
// archive deque, and drops its routing entry if it still points at this
// slot.
func (s *Slot) AutoArchive(nowUs int64) {
	if s.cfg.AutoArchiveMs <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	thresholdUs := s.cfg.AutoArchiveMs * 1000
	for _, set := range []map[string]struct{}{s.handled, s.failed, s.timedOut, s.cleared} {
		for uuid := range set {
			finishedAt, ok := s.finishedAtUs[uuid]
			if !ok {
				continue
			}
			if nowUs-finishedAt < thresholdUs {
				continue
			}
			msg := s.messages[uuid]
			delete(set, uuid)
			delete(s.messages, uuid)
			delete(s.finishedAtUs, uuid)
			if s.registry.FindSignalSlotOfMessage(uuid) == s {
				s.registry.unregisterMessage(uuid)
			}
			if msg != nil {
				s.archive.PushBack(msg)
			}
		}
	}
}

// GetAvailable returns capacity - queue.size(); unlimited capacity (0)
// reports 0 to signal "no fixed ceiling" rather than a misleading large
// number.
func (s *Slot) GetAvailable() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.QueueCapacity <= 0 {
		return 0
	}
	return s.cfg.QueueCapacity - s.queue.Len()
}

// GetTotalCapacity returns the slot's queue capacity.
func (s *Slot) GetTotalCapacity() int { return s.cfg.QueueCapacity }

// QueueIsFull reports whether the slot can currently accept another
// enqueue.
func (s *Slot) QueueIsFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.QueueCapacity > 0 && s.queue.Len() >= s.cfg.QueueCapacity
}

// Counters is a point-in-time snapshot of the slot's aggregate counters
// (spec §3's "aggregate counters").
type Counters struct {
	Triggered         uint64
	Handled           uint64
	Failed            uint64
	TimedOut          uint64
	MaxReactionTimeUs int64
	MaxSuccessTimeUs  int64
}

// Snapshot returns the slot's current counters.
func (s *Slot) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counters{
		Triggered:         s.triggered,
		Handled:           s.handledCnt,
		Failed:            s.failedCnt,
		TimedOut:          s.timedOutCnt,
		MaxReactionTimeUs: s.maxReactionTimeUs,
		MaxSuccessTimeUs:  s.maxSuccessTimeUs,
	}
}

// GetPhase returns the current phase of uuid within this slot, and whether
// the slot currently owns it.
func (s *Slot) GetPhase(uuid string) (Phase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[uuid]
	if !ok {
		return 0, false
	}
	return msg.Phase(), true
}

// GetMessage returns the Message for uuid if this slot currently owns it.
func (s *Slot) GetMessage(uuid string) (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[uuid]
	return msg, ok
}

// PopulateParameterGroup adds one typed parameter per schema descriptor to
// an external parameter container (spec §6.3).
func (s *Slot) PopulateParameterGroup(group ParameterGroup) error {
	return populateGroup(group, s.cfg.Parameters)
}

// PopulateResultGroup mirrors PopulateParameterGroup for the result schema.
func (s *Slot) PopulateResultGroup(group ParameterGroup) error {
	return populateGroup(group, s.cfg.Results)
}

func populateGroup(group ParameterGroup, descriptors []SignalParameter) error {
	if group == nil {
		return nil
	}
	for _, d := range descriptors {
		if err := group.AddNewTypedParameter(d.Name, d.Type, "", "", ""); err != nil {
			return err
		}
	}
	return nil
}

// mirrorCountersLocked pushes the slot's counters into its optional
// ParameterGroup, called by the slot owner inside the slot lock to
// preserve the counter law (spec §9).
func (s *Slot) mirrorCountersLocked() {
	if s.cfg.ParameterGroup == nil {
		return
	}
	_ = s.cfg.ParameterGroup.SetIntParameterValueByName("triggered", int(s.triggered))
	_ = s.cfg.ParameterGroup.SetIntParameterValueByName("handled", int(s.handledCnt))
	_ = s.cfg.ParameterGroup.SetIntParameterValueByName("failed", int(s.failedCnt))
	_ = s.cfg.ParameterGroup.SetIntParameterValueByName("timedOut", int(s.timedOutCnt))
}

// contextDataForUUID derives a stable 64-bit context tag from a uuid for
// telemetry markers; markers only need a cheap correlation token, not the
// full string.
func contextDataForUUID(uuid string) uint64 {
	var h uint64 = 14695981039346656037 // FNV offset basis
	for i := 0; i < len(uuid); i++ {
		h ^= uint64(uuid[i])
		h *= 1099511628211 // FNV prime
	}
	return h
}
