package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelProviderOptions configures NewOTelProvider.
type OTelProviderOptions struct {
	MeterName string // defaults to "amcf.signalcore"
}

// otelProvider implements Provider on top of an OpenTelemetry MeterProvider,
// grounded on engine/telemetry/metrics/otel_provider.go: gauges are modeled
// as Float64UpDownCounter deltas since OTel has no native settable gauge.
type otelProvider struct {
	mp    *sdkmetric.MeterProvider
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	gauges     map[string]metric.Float64UpDownCounter
	histograms map[string]metric.Float64Histogram
}

// NewOTelProvider returns a Provider backed by a fresh OTel SDK
// MeterProvider. Callers wanting exporters can reach into the concrete
// type's MeterProvider() accessor.
func NewOTelProvider(opts OTelProviderOptions) Provider {
	name := opts.MeterName
	if name == "" {
		name = "amcf.signalcore"
	}
	mp := sdkmetric.NewMeterProvider()
	return &otelProvider{
		mp:         mp,
		meter:      mp.Meter(name),
		counters:   make(map[string]metric.Float64Counter),
		gauges:     make(map[string]metric.Float64UpDownCounter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (p *otelProvider) MeterProvider() *sdkmetric.MeterProvider { return p.mp }

func buildName(c CommonOpts) string {
	switch {
	case c.Namespace != "" && c.Subsystem != "":
		return c.Namespace + "." + c.Subsystem + "." + c.Name
	case c.Namespace != "":
		return c.Namespace + "." + c.Name
	case c.Subsystem != "":
		return c.Subsystem + "." + c.Name
	default:
		return c.Name
	}
}

func (p *otelProvider) NewCounter(opts CounterOpts) Counter {
	name := buildName(opts.CommonOpts)
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.counters[name]
	if !ok {
		var err error
		inst, err = p.meter.Float64Counter(name, metric.WithDescription(opts.Help))
		if err != nil {
			return noopCounter{}
		}
		p.counters[name] = inst
	}
	return &otelCounter{inst: inst, labelKeys: opts.Labels}
}

func (p *otelProvider) NewGauge(opts GaugeOpts) Gauge {
	name := buildName(opts.CommonOpts)
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.gauges[name]
	if !ok {
		var err error
		inst, err = p.meter.Float64UpDownCounter(name, metric.WithDescription(opts.Help))
		if err != nil {
			return noopGauge{}
		}
		p.gauges[name] = inst
	}
	return &otelGauge{inst: inst, labelKeys: opts.Labels}
}

func (p *otelProvider) NewHistogram(opts HistogramOpts) Histogram {
	name := buildName(opts.CommonOpts)
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.histograms[name]
	if !ok {
		var err error
		inst, err = p.meter.Float64Histogram(name, metric.WithDescription(opts.Help))
		if err != nil {
			return noopHistogram{}
		}
		p.histograms[name] = inst
	}
	return &otelHistogram{inst: inst, labelKeys: opts.Labels}
}

func (p *otelProvider) Health(context.Context) error { return nil }

func labelAttrs(keys []string, values []string) []attribute.KeyValue {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	attrs := make([]attribute.KeyValue, n)
	for i := 0; i < n; i++ {
		attrs[i] = attribute.String(keys[i], values[i])
	}
	return attrs
}

type otelCounter struct {
	inst      metric.Float64Counter
	labelKeys []string
}

func (c *otelCounter) Inc(delta float64, labels ...string) {
	c.inst.Add(context.Background(), delta, metric.WithAttributes(labelAttrs(c.labelKeys, labels)...))
}

type otelGauge struct {
	inst      metric.Float64UpDownCounter
	labelKeys []string
	mu        sync.Mutex
	last      float64
}

func (g *otelGauge) Set(v float64, labels ...string) {
	g.mu.Lock()
	delta := v - g.last
	g.last = v
	g.mu.Unlock()
	g.inst.Add(context.Background(), delta, metric.WithAttributes(labelAttrs(g.labelKeys, labels)...))
}

func (g *otelGauge) Add(delta float64, labels ...string) {
	g.mu.Lock()
	g.last += delta
	g.mu.Unlock()
	g.inst.Add(context.Background(), delta, metric.WithAttributes(labelAttrs(g.labelKeys, labels)...))
}

type otelHistogram struct {
	inst      metric.Float64Histogram
	labelKeys []string
}

func (h *otelHistogram) Observe(v float64, labels ...string) {
	h.inst.Record(context.Background(), v, metric.WithAttributes(labelAttrs(h.labelKeys, labels)...))
}
