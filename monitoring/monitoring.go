// Package monitoring aggregates the signal-and-telemetry core's internal
// counters into a single snapshot, and exposes health-check and Prometheus
// HTTP surfaces for a host to mount — trimmed from the teacher's
// engine/monitoring.IntegratedMonitoringSystem down to the subset this
// core's own state can populate without inventing business metrics it
// doesn't have.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/clock"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/signal"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/telemetry"
)

// SlotSnapshot is one slot's point-in-time counters and occupancy.
type SlotSnapshot struct {
	Instance  string          `json:"instance"`
	Signal    string          `json:"signal"`
	Counters  signal.Counters `json:"counters"`
	Available int             `json:"available"`
	Capacity  int             `json:"capacity"`
}

// ChannelSnapshot is one telemetry channel's aggregate stats.
type ChannelSnapshot struct {
	Identifier          string `json:"identifier"`
	ChannelIndex        int    `json:"channel_index"`
	TotalMarkersCreated uint64 `json:"total_markers_created"`
	MaxDurationUs       int64  `json:"max_duration_us"`
	OpenMarkers         int    `json:"open_markers"`
}

// Snapshot is the full point-in-time view of the core's counters.
type Snapshot struct {
	Slots         []SlotSnapshot    `json:"slots"`
	Channels      []ChannelSnapshot `json:"channels"`
	OpenIntervals int               `json:"open_intervals"`
	ChunkCount    int               `json:"chunk_count"`
	CollectedAtUs int64             `json:"collected_at_us"`
}

// Collector builds Snapshots from a live signal.Handler and its owned
// telemetry.Handler.
type Collector struct {
	handler *signal.Handler
	clk     clock.Clock
}

// NewCollector wires a Collector to handler, using clk (clock.New() if
// nil) to stamp snapshots.
func NewCollector(handler *signal.Handler, clk clock.Clock) *Collector {
	if clk == nil {
		clk = clock.New()
	}
	return &Collector{handler: handler, clk: clk}
}

// Collect walks every instance/slot and every telemetry channel, returning
// a consistent-enough snapshot for a dashboard or health probe. It is not
// a single atomic read across the whole core (no such lock exists, nor
// should one): each slot and channel is read under its own lock.
func (c *Collector) Collect() Snapshot {
	snap := Snapshot{CollectedAtUs: c.clk.UTCMicroseconds()}

	for _, inst := range c.handler.Instances() {
		for _, slot := range inst.Slots() {
			snap.Slots = append(snap.Slots, SlotSnapshot{
				Instance:  inst.Name(),
				Signal:    slot.SignalName(),
				Counters:  slot.Snapshot(),
				Available: slot.GetAvailable(),
				Capacity:  slot.GetTotalCapacity(),
			})
		}
	}

	tel := c.handler.Telemetry()
	for _, ch := range tel.Channels() {
		total, maxDur := ch.Stats()
		snap.Channels = append(snap.Channels, ChannelSnapshot{
			Identifier:          ch.Identifier(),
			ChannelIndex:        ch.ChannelIndex(),
			TotalMarkersCreated: total,
			MaxDurationUs:       maxDur,
			OpenMarkers:         ch.OpenMarkerCount(),
		})
	}
	writer := tel.Writer()
	snap.OpenIntervals = writer.OpenIntervalCount()
	snap.ChunkCount = writer.ChunkCount()

	return snap
}

// Handler returns an http.Handler serving the latest Collect() result as
// JSON, mirroring the teacher's health-handler shape.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c.Collect())
	})
}

// CheckFunc reports the health of one component.
type CheckFunc func(ctx context.Context) CheckResult

// CheckResult is the outcome of one named health check.
type CheckResult struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// HealthSummary is the outcome of one HealthSystem.Check: the overall
// status derived from every component's status, plus each CheckResult.
type HealthSummary struct {
	OverallStatus string        `json:"overall_status"`
	Components    []CheckResult `json:"components"`
	CheckedAt     time.Time     `json:"checked_at"`
}

// HealthSystem runs a registry of named checks (spec's metrics/Provider
// Health(ctx) hook, one level up: a host can register a check per
// Provider, per TelemetrySession, per queue depth threshold, etc.).
type HealthSystem struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewHealthSystem constructs an empty HealthSystem.
func NewHealthSystem() *HealthSystem {
	return &HealthSystem{checks: make(map[string]CheckFunc)}
}

// Register adds a named check, replacing any existing check of the same
// name.
func (h *HealthSystem) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Check runs every registered check and summarizes the result.
func (h *HealthSystem) Check(ctx context.Context) HealthSummary {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	results := make([]CheckResult, 0, len(checks))
	unhealthy, degraded := 0, 0
	for name, fn := range checks {
		res := fn(ctx)
		res.Name = name
		switch res.Status {
		case "unhealthy":
			unhealthy++
		case "degraded":
			degraded++
		}
		results = append(results, res)
	}

	overall := "healthy"
	if unhealthy > 0 {
		overall = "unhealthy"
	} else if degraded > 0 {
		overall = "degraded"
	}
	return HealthSummary{OverallStatus: overall, Components: results, CheckedAt: time.Now()}
}

// Handler returns an http.Handler running every check and serving the
// summary as JSON, with a 503 when overall status is unhealthy.
func (h *HealthSystem) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary := h.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if summary.OverallStatus == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(summary)
	})
}

// TelemetrySessionCheck builds a CheckFunc that reports unhealthy when
// session fails to respond, for wiring a DataModel/session health probe
// into a HealthSystem.
func TelemetrySessionCheck(session telemetry.Session) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if err := session.WriteChunksToArchive(ctx, nil); err != nil {
			return CheckResult{Status: "unhealthy", Timestamp: time.Now(), Detail: err.Error()}
		}
		return CheckResult{Status: "healthy", Timestamp: time.Now()}
	}
}

// MetricsHandler serves registry in the Prometheus exposition format,
// mirroring the teacher's PrometheusExporter.GetMetricsHandler.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
