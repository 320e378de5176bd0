package metrics

import (
	"context"
	"errors"
	"regexp"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// PrometheusProviderOptions configures NewPrometheusProvider.
type PrometheusProviderOptions struct {
	// Registry is an optional custom registry; a fresh one is created when
	// nil.
	Registry *prom.Registry
}

// prometheusProvider implements Provider over a Prometheus registry,
// grounded on engine/telemetry/metrics/prometheus.go.
type prometheusProvider struct {
	reg *prom.Registry

	mu         sync.Mutex
	counters   map[string]*prom.CounterVec
	gauges     map[string]*prom.GaugeVec
	histograms map[string]*prom.HistogramVec
}

// NewPrometheusProvider returns a Provider backed by a Prometheus registry.
func NewPrometheusProvider(opts PrometheusProviderOptions) Provider {
	reg := opts.Registry
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return &prometheusProvider{
		reg:        reg,
		counters:   make(map[string]*prom.CounterVec),
		gauges:     make(map[string]*prom.GaugeVec),
		histograms: make(map[string]*prom.HistogramVec),
	}
}

// Registry exposes the underlying Prometheus registry for scraping.
func (p *prometheusProvider) Registry() *prom.Registry { return p.reg }

func buildFQName(c CommonOpts) (string, error) {
	if c.Name == "" {
		return "", errors.New("metrics: name required")
	}
	parts := make([]string, 0, 3)
	if c.Namespace != "" {
		parts = append(parts, c.Namespace)
	}
	if c.Subsystem != "" {
		parts = append(parts, c.Subsystem)
	}
	parts = append(parts, c.Name)
	fq := parts[0]
	for _, p := range parts[1:] {
		fq += "_" + p
	}
	if !metricNameRE.MatchString(fq) {
		return "", errors.New("metrics: invalid prometheus metric name " + fq)
	}
	return fq, nil
}

func (p *prometheusProvider) NewCounter(opts CounterOpts) Counter {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopCounter{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	vec, ok := p.counters[fq]
	if !ok {
		vec = prom.NewCounterVec(prom.CounterOpts{Name: fq, Help: opts.Help}, opts.Labels)
		if err := p.reg.Register(vec); err != nil {
			var are prom.AlreadyRegisteredError
			if errors.As(err, &are) {
				vec = are.ExistingCollector.(*prom.CounterVec)
			} else {
				return noopCounter{}
			}
		}
		p.counters[fq] = vec
	}
	return &promCounter{vec: vec}
}

func (p *prometheusProvider) NewGauge(opts GaugeOpts) Gauge {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopGauge{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	vec, ok := p.gauges[fq]
	if !ok {
		vec = prom.NewGaugeVec(prom.GaugeOpts{Name: fq, Help: opts.Help}, opts.Labels)
		if err := p.reg.Register(vec); err != nil {
			var are prom.AlreadyRegisteredError
			if errors.As(err, &are) {
				vec = are.ExistingCollector.(*prom.GaugeVec)
			} else {
				return noopGauge{}
			}
		}
		p.gauges[fq] = vec
	}
	return &promGauge{vec: vec}
}

func (p *prometheusProvider) NewHistogram(opts HistogramOpts) Histogram {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopHistogram{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	vec, ok := p.histograms[fq]
	if !ok {
		buckets := opts.Buckets
		if len(buckets) == 0 {
			buckets = prom.DefBuckets
		}
		vec = prom.NewHistogramVec(prom.HistogramOpts{Name: fq, Help: opts.Help, Buckets: buckets}, opts.Labels)
		if err := p.reg.Register(vec); err != nil {
			var are prom.AlreadyRegisteredError
			if errors.As(err, &are) {
				vec = are.ExistingCollector.(*prom.HistogramVec)
			} else {
				return noopHistogram{}
			}
		}
		p.histograms[fq] = vec
	}
	return &promHistogram{vec: vec}
}

func (p *prometheusProvider) Health(context.Context) error { return nil }

type promCounter struct{ vec *prom.CounterVec }

func (c *promCounter) Inc(delta float64, labels ...string) {
	c.vec.WithLabelValues(labels...).Add(delta)
}

type promGauge struct{ vec *prom.GaugeVec }

func (g *promGauge) Set(v float64, labels ...string) { g.vec.WithLabelValues(labels...).Set(v) }
func (g *promGauge) Add(delta float64, labels ...string) {
	g.vec.WithLabelValues(labels...).Add(delta)
}

type promHistogram struct{ vec *prom.HistogramVec }

func (h *promHistogram) Observe(v float64, labels ...string) {
	h.vec.WithLabelValues(labels...).Observe(v)
}
