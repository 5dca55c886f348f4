// Package metrics exposes the ambient Prometheus counters/gauges named in
// SPEC_FULL.md's domain stack, grounded on the teacher's
// middleware/metrics and middleware/cache/prometheus.go.
package metrics

import (
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and gauges recorded by the server loop and
// the query action.
type Metrics struct {
	queries        *prometheus.CounterVec
	cacheEntries   prometheus.Gauge
	upstreamErrors *prometheus.CounterVec
}

// New registers and returns a Metrics instance against reg. Pass
// prometheus.DefaultRegisterer for the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dns_queries_total",
			Help: "How many DNS queries have been processed",
		}, []string{"qtype", "rcode"}),

		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dns_cache_entries",
			Help: "Current number of entries held in the always-on cache",
		}),

		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dns_upstream_errors_total",
			Help: "How many upstream resolution attempts have failed",
		}, []string{"upstream"}),
	}

	reg.MustRegister(m.queries, m.cacheEntries, m.upstreamErrors)

	return m
}

// ObserveQuery records one served query by question type and response
// code.
func (m *Metrics) ObserveQuery(qtype uint16, rcode int) {
	m.queries.With(prometheus.Labels{
		"qtype": dns.TypeToString[qtype],
		"rcode": dns.RcodeToString[rcode],
	}).Inc()
}

// SetCacheEntries records the cache's current entry count.
func (m *Metrics) SetCacheEntries(n int) {
	m.cacheEntries.Set(float64(n))
}

// ObserveUpstreamError records a failed resolution attempt against tag.
func (m *Metrics) ObserveUpstreamError(tag string) {
	m.upstreamErrors.With(prometheus.Labels{"upstream": tag}).Inc()
}
