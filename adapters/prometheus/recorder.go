// Package prometheus exposes provisioning counters and histograms through a
// prometheus registry.
package prometheus

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/goliatone/go-provisioning/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Labels is the fixed label set attached to every provisioning metric. Tags
// outside this set are dropped; absent ones are exported as "".
var Labels = []string{"operation", "status", "route", "step", "tenant_type", "missing"}

// DurationBuckets are millisecond buckets for "*.duration_ms" histograms.
var DurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

type Recorder struct {
	registerer prometheus.Registerer
	namespace  string

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

type Option func(*Recorder)

// WithNamespace prefixes every exported metric name.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		r.namespace = sanitizeName(namespace)
	}
}

func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	recorder := &Recorder{
		registerer: registerer,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}
	return recorder
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	counter := r.counter(name)
	if counter == nil {
		return
	}
	counter.WithLabelValues(labelValues(tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	histogram := r.histogram(name)
	if histogram == nil {
		return
	}
	histogram.WithLabelValues(labelValues(tags)...).Observe(value)
}

func (r *Recorder) counter(name string) *prometheus.CounterVec {
	metricName := r.metricName(name)
	if metricName == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[metricName]; ok {
		return existing
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricName,
		Help: "Provisioning counter " + strings.TrimSpace(name),
	}, Labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil
		}
		vec = existing
	}
	r.counters[metricName] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prometheus.HistogramVec {
	metricName := r.metricName(name)
	if metricName == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[metricName]; ok {
		return existing
	}
	buckets := prometheus.DefBuckets
	if strings.HasSuffix(metricName, "_ms") {
		buckets = DurationBuckets
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricName,
		Help:    "Provisioning histogram " + strings.TrimSpace(name),
		Buckets: buckets,
	}, Labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil
		}
		vec = existing
	}
	r.histograms[metricName] = vec
	return vec
}

func (r *Recorder) metricName(name string) string {
	metricName := sanitizeName(name)
	if metricName == "" {
		return ""
	}
	if r.namespace != "" {
		return r.namespace + "_" + metricName
	}
	return metricName
}

func labelValues(tags map[string]string) []string {
	values := make([]string, len(Labels))
	for i, label := range Labels {
		values[i] = strings.TrimSpace(tags[label])
	}
	return values
}

// sanitizeName maps "provisioning.webhook_dispatch.total" to
// "provisioning_webhook_dispatch_total".
func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

var _ core.MetricsRecorder = (*Recorder)(nil)
