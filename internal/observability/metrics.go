package observability

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// SkipReason labels why a document was skipped.
type SkipReason string

const (
	SkipNoMeta           SkipReason = "no_meta"
	SkipPlatformExcluded SkipReason = "platform_excluded"
	SkipUnchanged        SkipReason = "unchanged"
)

// Metrics is the Prometheus recorder for a run. A nil *Metrics is a valid
// no-op recorder so library callers can opt out.
type Metrics struct {
	registry        *prom.Registry
	docsEmitted     *prom.CounterVec
	docsSkipped     *prom.CounterVec
	docsFailed      *prom.CounterVec
	resolveDuration *prom.HistogramVec
}

// NewMetrics constructs and registers the run metrics.
func NewMetrics(reg *prom.Registry) *Metrics {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	m := &Metrics{registry: reg}
	m.docsEmitted = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "mdxflatten",
		Name:      "documents_emitted_total",
		Help:      "Documents successfully flattened and written",
	}, []string{"platform"})
	m.docsSkipped = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "mdxflatten",
		Name:      "documents_skipped_total",
		Help:      "Documents skipped, by reason",
	}, []string{"platform", "reason"})
	m.docsFailed = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "mdxflatten",
		Name:      "documents_failed_total",
		Help:      "Documents whose resolution failed",
	}, []string{"platform"})
	m.resolveDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "mdxflatten",
		Name:      "resolve_duration_seconds",
		Help:      "Per-document resolution duration",
		Buckets:   prom.DefBuckets,
	}, []string{"platform"})
	reg.MustRegister(m.docsEmitted, m.docsSkipped, m.docsFailed, m.resolveDuration)
	return m
}

// Registry exposes the underlying registry for the promhttp handler.
func (m *Metrics) Registry() *prom.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncEmitted counts a successfully written document.
func (m *Metrics) IncEmitted(platform string) {
	if m == nil {
		return
	}
	m.docsEmitted.WithLabelValues(platform).Inc()
}

// IncSkipped counts a skipped document by reason.
func (m *Metrics) IncSkipped(platform string, reason SkipReason) {
	if m == nil {
		return
	}
	m.docsSkipped.WithLabelValues(platform, string(reason)).Inc()
}

// IncFailed counts a failed document.
func (m *Metrics) IncFailed(platform string) {
	if m == nil {
		return
	}
	m.docsFailed.WithLabelValues(platform).Inc()
}

// ObserveResolveDuration records how long one document's resolution took.
func (m *Metrics) ObserveResolveDuration(platform string, d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.WithLabelValues(platform).Observe(d.Seconds())
}
