package telemetry_test

import (
	"sync"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/clock"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/metrics"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/telemetry"
)

// Scenario 6: telemetry interval.
func TestChannel_IntervalMarkerLifecycle(t *testing.T) {
	h := telemetry.NewHandler(telemetry.NoopSession{})
	ch, err := h.RegisterChannel("mc.worker", "worker channel", telemetry.ChannelCustomMarker)
	require.NoError(t, err)

	marker := ch.StartIntervalMarker(42)
	require.False(t, marker.IsFinished())

	err = marker.Finish(500)
	require.NoError(t, err)
	assert.True(t, marker.IsFinished())

	dur, err := marker.Duration()
	require.NoError(t, err)
	assert.Greater(t, dur, int64(0))

	_, maxDur := ch.Stats()
	assert.Equal(t, dur, maxDur)

	err = marker.Finish(600)
	assert.ErrorIs(t, err, telemetry.ErrMarkerAlreadyFinished)
}

// Marker CAS: exactly one of N concurrent Finish calls succeeds.
func TestMarker_FinishCASUnderContention(t *testing.T) {
	h := telemetry.NewHandler(telemetry.NoopSession{})
	ch, err := h.RegisterChannel("mc.contended", "", telemetry.ChannelCustomMarker)
	require.NoError(t, err)

	marker := ch.StartIntervalMarker(1)

	const n = 50
	var wg sync.WaitGroup
	var successes int
	var mu sync.Mutex
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(nowUs int64) {
			defer wg.Done()
			if err := marker.Finish(nowUs); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(int64(100 + i))
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestChannel_RejectsInvalidIdentifier(t *testing.T) {
	h := telemetry.NewHandler(telemetry.NoopSession{})
	_, err := h.RegisterChannel(".bad..path", "", telemetry.ChannelCustomMarker)
	assert.ErrorIs(t, err, telemetry.ErrInvalidIdentifier)
}

func TestHandler_DuplicateChannel(t *testing.T) {
	h := telemetry.NewHandler(telemetry.NoopSession{})
	_, err := h.RegisterChannel("mc.dup", "", telemetry.ChannelCustomMarker)
	require.NoError(t, err)
	_, err = h.RegisterChannel("mc.dup", "", telemetry.ChannelCustomMarker)
	assert.ErrorIs(t, err, telemetry.ErrDuplicateChannel)
}

// Chunk bucketing: every entry lands within its chunk's window, and every
// chunk strictly before the current one is sealed read-only once a later
// timestamp has been written.
func TestWriter_ChunkBucketing(t *testing.T) {
	const chunkIntervalUs = 1000

	fake := clock.NewFake(0)
	h := telemetry.NewHandlerWithClock(telemetry.NoopSession{}, chunkIntervalUs, fake)
	ch, err := h.RegisterChannel("mc.bucketing", "", telemetry.ChannelCustomMarker)
	require.NoError(t, err)

	w := h.Writer()

	// First marker lands in chunk 1 ([0, 1000)).
	ch.CreateInstantMarker(1)
	require.Equal(t, 1, w.ChunkCount())
	chunks := w.Chunks()
	start, end := chunks[0].Window()
	assert.False(t, chunks[0].IsReadOnly())
	assert.GreaterOrEqual(t, int64(0), start)
	assert.Less(t, int64(0), end)

	// Advance well past the first window and write again: chunk 1 must now
	// be sealed, and the vector must have grown to reach entry two's window.
	fake.Advance(2500 * time.Microsecond)
	ch.CreateInstantMarker(2)

	require.Equal(t, 3, w.ChunkCount())
	chunks = w.Chunks()
	assert.True(t, chunks[0].IsReadOnly())
	assert.True(t, chunks[1].IsReadOnly())
	assert.False(t, chunks[2].IsReadOnly())
	start, end = chunks[2].Window()
	assert.LessOrEqual(t, start, int64(2500))
	assert.Less(t, int64(2500), end)

	// Advance again within the same (third) window; no new chunk should be
	// created and the prior chunks must remain sealed.
	fake.Advance(100 * time.Microsecond)
	ch.CreateInstantMarker(3)
	assert.Equal(t, 3, w.ChunkCount())
	chunks = w.Chunks()
	assert.True(t, chunks[0].IsReadOnly())
	assert.True(t, chunks[1].IsReadOnly())
	assert.False(t, chunks[2].IsReadOnly())
}

func gaugeValue(t *testing.T, reg *prom.Registry, name string) (float64, bool) {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		require.Len(t, fam.GetMetric(), 1)
		return fam.GetMetric()[0].GetGauge().GetValue(), true
	}
	return 0, false
}

// Handler.SetMetricsProvider reaches the shared Writer's chunk-count and
// open-interval gauges, not just the per-slot counters in package signal.
func TestHandler_SetMetricsProviderDrivesWriterGauges(t *testing.T) {
	h := telemetry.NewHandler(telemetry.NoopSession{})
	reg := prom.NewRegistry()
	h.SetMetricsProvider(metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{Registry: reg}))

	ch, err := h.RegisterChannel("mc.gauges", "", telemetry.ChannelCustomMarker)
	require.NoError(t, err)

	ch.CreateInstantMarker(1)
	v, ok := gaugeValue(t, reg, "amcf_writer_chunk_count")
	require.True(t, ok)
	assert.Equal(t, float64(1), v)

	marker := ch.StartIntervalMarker(2)
	v, ok = gaugeValue(t, reg, "amcf_writer_open_intervals")
	require.True(t, ok)
	assert.Equal(t, float64(1), v)

	require.NoError(t, marker.Finish(marker.StartTimestampUs()+10))
	v, ok = gaugeValue(t, reg, "amcf_writer_open_intervals")
	require.True(t, ok)
	assert.Equal(t, float64(0), v)
}
