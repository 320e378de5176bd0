// Package metrics provides the minimal metrics-provider abstraction the
// signal bus and telemetry pipeline use to publish counters, gauges and
// histograms without committing to one observability backend. It mirrors
// the teacher's internal metrics.Provider contract (engine/internal/
// telemetry/metrics/metrics.go), generalized with concrete OTel and
// Prometheus backends (engine/telemetry/metrics/otel_provider.go and
// prometheus.go) so a deployment can choose either.
package metrics

import "context"

// Provider is the minimal metrics-provider contract used by the signal bus
// (slot/handler counters) and telemetry pipeline (chunk/archive gauges).
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	NewHistogram(opts HistogramOpts) Histogram
	Health(ctx context.Context) error
}

// Counter is a monotonically increasing value.
type Counter interface {
	Inc(delta float64, labels ...string)
}

// Gauge is an arbitrary up/down value.
type Gauge interface {
	Set(v float64, labels ...string)
	Add(delta float64, labels ...string)
}

// Histogram observes a distribution of values (e.g. reaction/success
// durations in microseconds).
type Histogram interface {
	Observe(v float64, labels ...string)
}

// CommonOpts names and documents an instrument.
type CommonOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

type CounterOpts struct{ CommonOpts }
type GaugeOpts struct{ CommonOpts }
type HistogramOpts struct {
	CommonOpts
	Buckets []float64
}

// noopProvider discards everything; used when no Provider is configured.
type noopProvider struct{}
type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}

// NewNoopProvider returns a Provider that discards all observations.
func NewNoopProvider() Provider { return noopProvider{} }

func (noopProvider) NewCounter(CounterOpts) Counter       { return noopCounter{} }
func (noopProvider) NewGauge(GaugeOpts) Gauge             { return noopGauge{} }
func (noopProvider) NewHistogram(HistogramOpts) Histogram { return noopHistogram{} }
func (noopProvider) Health(context.Context) error         { return nil }

func (noopCounter) Inc(float64, ...string)       {}
func (noopGauge) Set(float64, ...string)         {}
func (noopGauge) Add(float64, ...string)         {}
func (noopHistogram) Observe(float64, ...string) {}
