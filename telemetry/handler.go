package telemetry

import (
	"context"
	"sync"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/clock"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/metrics"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/uuidkit"
)

// DefaultChunkIntervalUs is the writer's bucket width when a Handler isn't
// given a more specific one.
const DefaultChunkIntervalUs int64 = 1_000_000

// Handler is the registry of channels by identifier and UUID; it creates
// them in the session and owns the writer they all share (spec's
// TelemetryHandler, C6).
type Handler struct {
	mu           sync.Mutex
	byIdentifier map[string]*Channel
	byUUID       map[string]*Channel
	nextIndex    int

	writer  *Writer
	session Session
	clk     clock.Clock
}

// NewHandler constructs a Handler backed by session (NoopSession if nil)
// and a fresh clock.New() clock, with the default chunk interval.
func NewHandler(session Session) *Handler {
	return NewHandlerWithChunkInterval(session, DefaultChunkIntervalUs)
}

// NewHandlerWithChunkInterval is NewHandler with an explicit writer bucket
// width, for hosts that need finer- or coarser-grained archival windows.
func NewHandlerWithChunkInterval(session Session, chunkIntervalUs int64) *Handler {
	return NewHandlerWithClock(session, chunkIntervalUs, clock.New())
}

// NewHandlerWithClock is NewHandlerWithChunkInterval with an injectable
// clock, for tests that need deterministic marker/chunk timestamps.
func NewHandlerWithClock(session Session, chunkIntervalUs int64, clk clock.Clock) *Handler {
	if session == nil {
		session = NoopSession{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Handler{
		byIdentifier: make(map[string]*Channel),
		byUUID:       make(map[string]*Channel),
		writer:       NewWriter(chunkIntervalUs, session),
		session:      session,
		clk:          clk,
	}
}

// RegisterChannel allocates a UUID and the next 1-based channelIndex,
// constructs the channel, inserts it into both maps under the registry
// mutex, then calls the session's CreateChannelInDB; on failure the
// registry inserts are rolled back.
func (h *Handler) RegisterChannel(identifier, description string, typ ChannelType) (*Channel, error) {
	if err := uuidkit.ValidatePath(identifier); err != nil {
		return nil, newErr("registerChannel", identifier, ErrInvalidIdentifier)
	}

	h.mu.Lock()
	if _, exists := h.byIdentifier[identifier]; exists {
		h.mu.Unlock()
		return nil, newErr("registerChannel", identifier, ErrDuplicateChannel)
	}
	channelUUID := uuidkit.New()
	channelIndex := h.nextIndex + 1
	channel := newChannel(channelUUID, channelIndex, identifier, description, typ, h.writer, h.clk)
	h.byIdentifier[identifier] = channel
	h.byUUID[channelUUID] = channel
	h.nextIndex = channelIndex
	h.mu.Unlock()

	if err := h.session.CreateChannelInDB(context.Background(), channelUUID, typ, channelIndex, identifier, description); err != nil {
		h.mu.Lock()
		delete(h.byIdentifier, identifier)
		delete(h.byUUID, channelUUID)
		h.mu.Unlock()
		return nil, newErr("registerChannel", identifier, err)
	}
	return channel, nil
}

// GetChannelByIdentifier looks up a channel by its alphanumeric-path name.
// failIfMissing selects between an ErrChannelNotFound error and a silent
// (nil, nil) miss, matching the spec's failIfMissing flag.
func (h *Handler) GetChannelByIdentifier(identifier string, failIfMissing bool) (*Channel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.byIdentifier[identifier]
	if !ok {
		if failIfMissing {
			return nil, newErr("getChannelByIdentifier", identifier, ErrChannelNotFound)
		}
		return nil, nil
	}
	return ch, nil
}

// GetChannelByUUID looks up a channel by its generated UUID.
func (h *Handler) GetChannelByUUID(channelUUID string, failIfMissing bool) (*Channel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.byUUID[channelUUID]
	if !ok {
		if failIfMissing {
			return nil, newErr("getChannelByUUID", channelUUID, ErrChannelNotFound)
		}
		return nil, nil
	}
	return ch, nil
}

// Channels returns a snapshot of every registered channel, for monitoring/
// diagnostics callers.
func (h *Handler) Channels() []*Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	channels := make([]*Channel, 0, len(h.byIdentifier))
	for _, ch := range h.byIdentifier {
		channels = append(channels, ch)
	}
	return channels
}

// Writer exposes the shared Writer, for hosts that drive archival on their
// own schedule.
func (h *Handler) Writer() *Writer { return h.writer }

// SetMetricsProvider wires the shared writer's chunk/archive/open-interval
// gauges to provider. Forwarded here rather than reached via Writer()
// directly so signal.Handler.SetMetricsProvider can configure both the slot
// counters and the writer gauges from one call.
func (h *Handler) SetMetricsProvider(provider metrics.Provider) {
	h.writer.SetMetricsProvider(provider)
}

// ArchiveOldChunksToDB delegates to the writer.
func (h *Handler) ArchiveOldChunksToDB(ctx context.Context) error {
	return h.writer.ArchiveOldChunksToDB(ctx)
}

// ChannelCount reports how many channels are registered, for diagnostics.
func (h *Handler) ChannelCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byIdentifier)
}
