package telemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/metrics"
)

type openIntervalRef struct {
	chunkIndex int
	entryIndex int
}

// Writer owns the chunk vector, routes marker entries to the right chunk
// by timestamp, and archives sealed chunks to the TelemetrySession
// (spec's TelemetryWriter, C4).
type Writer struct {
	chunkIntervalUs int64

	mu     sync.Mutex
	chunks []*Chunk

	openMu        sync.Mutex
	openIntervals map[uint64]openIntervalRef

	archMu  sync.Mutex
	pending []*Chunk

	markerCounter atomic.Uint64

	session Session

	gaugeMu            sync.Mutex
	gaugeChunkCount    metrics.Gauge
	gaugeOpenIntervals metrics.Gauge
	gaugeArchived      metrics.Gauge
}

// NewWriter constructs a Writer bucketing entries into windows of
// chunkIntervalUs microseconds, archiving sealed chunks through session.
func NewWriter(chunkIntervalUs int64, session Session) *Writer {
	if chunkIntervalUs <= 0 {
		chunkIntervalUs = 1_000_000
	}
	if session == nil {
		session = NoopSession{}
	}
	return &Writer{
		chunkIntervalUs: chunkIntervalUs,
		openIntervals:   make(map[uint64]openIntervalRef),
		session:         session,
	}
}

// SetMetricsProvider builds the writer's chunk-count/open-interval/archived
// gauges from provider. Safe to call once at setup; nil clears gauge
// reporting back to a no-op.
func (w *Writer) SetMetricsProvider(provider metrics.Provider) {
	w.gaugeMu.Lock()
	defer w.gaugeMu.Unlock()
	if provider == nil {
		w.gaugeChunkCount = nil
		w.gaugeOpenIntervals = nil
		w.gaugeArchived = nil
		return
	}
	w.gaugeChunkCount = provider.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "amcf", Subsystem: "writer", Name: "chunk_count",
		Help: "number of chunks currently held by the writer",
	}})
	w.gaugeOpenIntervals = provider.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "amcf", Subsystem: "writer", Name: "open_intervals",
		Help: "number of interval markers not yet finished",
	}})
	w.gaugeArchived = provider.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "amcf", Subsystem: "writer", Name: "archived_chunks_total",
		Help: "cumulative count of chunks archived to the session",
	}})
}

// createMarkerID is a relaxed atomic fetch-add producing process-wide
// unique marker IDs.
func (w *Writer) createMarkerID() uint64 {
	return w.markerCounter.Add(1)
}

// chunkIndexFor returns the 1-based chunk index timestampUs falls into.
func (w *Writer) chunkIndexFor(timestampUs int64) int {
	if timestampUs < 0 {
		timestampUs = 0
	}
	return int(timestampUs/w.chunkIntervalUs) + 1
}

// getOrCreateChunkByTimestamp extends the chunk vector sparsely to reach
// the window timestampUs belongs in, sealing every chunk before it, and
// returns that window's chunk.
func (w *Writer) getOrCreateChunkByTimestamp(timestampUs int64) *Chunk {
	idx := w.chunkIndexFor(timestampUs)

	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.chunks) < idx {
		nextID := int64(len(w.chunks) + 1)
		startUs := int64(len(w.chunks)) * w.chunkIntervalUs
		endUs := startUs + w.chunkIntervalUs
		w.chunks = append(w.chunks, newChunk(nextID, startUs, endUs))
	}
	for i := 0; i < idx-1; i++ {
		w.chunks[i].seal()
	}
	chunk := w.chunks[idx-1]
	w.observeChunkCount(len(w.chunks))
	return chunk
}

// observeChunkCount pushes n into the chunk-count gauge, if configured.
func (w *Writer) observeChunkCount(n int) {
	w.gaugeMu.Lock()
	g := w.gaugeChunkCount
	w.gaugeMu.Unlock()
	if g != nil {
		g.Set(float64(n))
	}
}

// writeEntry routes entry to its timestamp's chunk and maintains the
// open-interval side map.
func (w *Writer) writeEntry(e Entry) {
	chunk := w.getOrCreateChunkByTimestamp(e.TimestampUs)
	chunk.append(e)

	switch e.Type {
	case IntervalStartMarker:
		w.registerOpenInterval(e.MarkerID, int(chunk.ID()), len(chunk.entries)-1)
	case IntervalEndMarker:
		w.eraseOpenInterval(e.MarkerID)
	}
}

// registerOpenInterval records where an unfinished interval marker's start
// entry lives, for archival to resolve cross-chunk intervals.
func (w *Writer) registerOpenInterval(markerID uint64, chunkIndex, entryIndex int) {
	w.openMu.Lock()
	w.openIntervals[markerID] = openIntervalRef{chunkIndex: chunkIndex, entryIndex: entryIndex}
	n := len(w.openIntervals)
	w.openMu.Unlock()
	w.observeOpenIntervals(n)
}

// eraseOpenInterval drops a finished interval marker's side-map entry.
func (w *Writer) eraseOpenInterval(markerID uint64) {
	w.openMu.Lock()
	delete(w.openIntervals, markerID)
	n := len(w.openIntervals)
	w.openMu.Unlock()
	w.observeOpenIntervals(n)
}

// observeOpenIntervals pushes n into the open-intervals gauge, if configured.
func (w *Writer) observeOpenIntervals(n int) {
	w.gaugeMu.Lock()
	g := w.gaugeOpenIntervals
	w.gaugeMu.Unlock()
	if g != nil {
		g.Set(float64(n))
	}
}

// OpenIntervalCount reports how many interval markers are currently
// unfinished, for diagnostics/tests.
func (w *Writer) OpenIntervalCount() int {
	w.openMu.Lock()
	defer w.openMu.Unlock()
	return len(w.openIntervals)
}

// archiveOldChunksToDB pushes every read-only, not-yet-archived chunk to
// the session. Synchronous today, as the spec's design notes permit; a
// host may move the call onto its own worker without affecting
// correctness.
func (w *Writer) archiveOldChunksToDB(ctx context.Context) error {
	w.mu.Lock()
	var ready []*Chunk
	for _, c := range w.chunks {
		if c.isArchivable() {
			ready = append(ready, c)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return nil
	}

	w.archMu.Lock()
	defer w.archMu.Unlock()

	batch := make([]ArchivedChunk, len(ready))
	for i, c := range ready {
		batch[i] = c.snapshot()
	}
	if err := w.session.WriteChunksToArchive(ctx, batch); err != nil {
		return err
	}
	for _, c := range ready {
		c.markArchived()
	}
	w.gaugeMu.Lock()
	g := w.gaugeArchived
	w.gaugeMu.Unlock()
	if g != nil {
		g.Add(float64(len(ready)))
	}
	return nil
}

// ArchiveOldChunksToDB is the exported entry point hosts call (directly or
// from their own archival worker loop).
func (w *Writer) ArchiveOldChunksToDB(ctx context.Context) error {
	return w.archiveOldChunksToDB(ctx)
}

// ChunkCount reports the current chunk vector length, for diagnostics.
func (w *Writer) ChunkCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.chunks)
}

// Chunks returns a snapshot of the writer's chunk vector in index order,
// for monitoring/diagnostics and tests that assert on window/seal state.
func (w *Writer) Chunks() []*Chunk {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Chunk, len(w.chunks))
	copy(out, w.chunks)
	return out
}
