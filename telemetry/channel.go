package telemetry

import (
	"sync"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/clock"
)

// Channel is a named stream of markers belonging to one logical source
// (spec's TelemetryChannel, C5). channelIndex is assigned once, at
// registration, by the owning Handler.
type Channel struct {
	uuid         string
	channelIndex int
	identifier   string
	description  string
	typ          ChannelType

	writer *Writer
	clk    clock.Clock

	mu                  sync.Mutex
	openMarkers         map[uint64]*Marker
	totalMarkersCreated uint64
	maxDurationUs       int64
}

func newChannel(uuid string, channelIndex int, identifier, description string, typ ChannelType, writer *Writer, clk clock.Clock) *Channel {
	return &Channel{
		uuid:         uuid,
		channelIndex: channelIndex,
		identifier:   identifier,
		description:  description,
		typ:          typ,
		writer:       writer,
		clk:          clk,
		openMarkers:  make(map[uint64]*Marker),
	}
}

// UUID returns the channel's generated identity.
func (c *Channel) UUID() string { return c.uuid }

// ChannelIndex returns the 1-based index assigned at registration.
func (c *Channel) ChannelIndex() int { return c.channelIndex }

// Identifier returns the channel's alphanumeric-path name.
func (c *Channel) Identifier() string { return c.identifier }

// Description returns the channel's human-readable description.
func (c *Channel) Description() string { return c.description }

// Type returns the channel's persisted kind.
func (c *Channel) Type() ChannelType { return c.typ }

// CreateInstantMarker allocates a marker ID, builds a marker whose finish
// equals its start, and emits an InstantMarker chunk entry.
func (c *Channel) CreateInstantMarker(contextData uint64) *Marker {
	id := c.writer.createMarkerID()
	nowUs := c.clk.ElapsedMicroseconds()

	marker := newMarker(id, c, nowUs, contextData, true)
	marker.finishUs.Store(nowUs)

	c.mu.Lock()
	c.totalMarkersCreated++
	c.mu.Unlock()

	c.writer.writeEntry(Entry{
		Type:         InstantMarker,
		ChannelIndex: c.channelIndex,
		MarkerID:     id,
		TimestampUs:  nowUs,
		ContextData:  contextData,
	})
	return marker
}

// StartIntervalMarker allocates a marker ID, registers the marker in the
// channel's open-marker map, and emits an IntervalStartMarker chunk entry.
// The caller must eventually call marker.Finish (or use StartIntervalScope).
func (c *Channel) StartIntervalMarker(contextData uint64) *Marker {
	id := c.writer.createMarkerID()
	nowUs := c.clk.ElapsedMicroseconds()

	marker := newMarker(id, c, nowUs, contextData, false)

	c.mu.Lock()
	c.openMarkers[id] = marker
	c.totalMarkersCreated++
	c.mu.Unlock()

	c.writer.writeEntry(Entry{
		Type:         IntervalStartMarker,
		ChannelIndex: c.channelIndex,
		MarkerID:     id,
		TimestampUs:  nowUs,
		ContextData:  contextData,
	})
	return marker
}

// StartIntervalScope starts an interval marker wrapped in an RAII-style
// guard; deferring scope.Close() finishes the marker.
func (c *Channel) StartIntervalScope(contextData uint64) *Scope {
	marker := c.StartIntervalMarker(contextData)
	return newScope(marker, c.clk.ElapsedMicroseconds)
}

// finishInterval is called by Marker.Finish once its CAS has succeeded: it
// drops the marker from the open-marker map, updates maxDurationUs, and
// emits the IntervalEndMarker entry.
func (c *Channel) finishInterval(m *Marker, nowUs int64) {
	dur := nowUs - m.startUs

	c.mu.Lock()
	delete(c.openMarkers, m.id)
	if dur > c.maxDurationUs {
		c.maxDurationUs = dur
	}
	c.mu.Unlock()

	c.writer.writeEntry(Entry{
		Type:         IntervalEndMarker,
		ChannelIndex: c.channelIndex,
		MarkerID:     m.id,
		TimestampUs:  nowUs,
		ContextData:  m.contextData,
	})
}

// Stats returns the channel's aggregate counters.
func (c *Channel) Stats() (totalMarkersCreated uint64, maxDurationUs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalMarkersCreated, c.maxDurationUs
}

// OpenMarkerCount reports how many interval markers this channel currently
// has outstanding, for diagnostics/tests.
func (c *Channel) OpenMarkerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.openMarkers)
}
