// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credengine"

// Verification results used as the result label.
const (
	ResultSuccess      = "success"
	ResultFailure      = "failure"
	ResultDisabled     = "disabled"
	ResultMustChange   = "must_change"
	ResultNotSupported = "not_supported"
	ResultError        = "error"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	verifyTotal      *prometheus.CounterVec
	throttleDelay    prometheus.Histogram
	accountsDisabled *prometheus.CounterVec
	broadcastFailed  prometheus.Counter
}

// New registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		verifyTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verify_total",
			Help:      "Credential verifications by method and result.",
		}, []string{"method", "result"}),
		throttleDelay: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "throttle_delay_seconds",
			Help:      "Delays imposed after failed verifications.",
			Buckets:   []float64{0, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		accountsDisabled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_disabled_total",
			Help:      "Accounts disabled by policy, by authority tag.",
		}, []string{"authority"}),
		broadcastFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_failures_total",
			Help:      "Authorities that failed a broadcast write after the first one answered.",
		}),
	}
}

func (m *Metrics) ObserveVerify(method, result string) {
	if m == nil {
		return
	}
	m.verifyTotal.WithLabelValues(method, result).Inc()
}

func (m *Metrics) ObserveThrottle(d time.Duration) {
	if m == nil {
		return
	}
	m.throttleDelay.Observe(d.Seconds())
}

func (m *Metrics) AccountDisabled(authority string) {
	if m == nil {
		return
	}
	m.accountsDisabled.WithLabelValues(authority).Inc()
}

func (m *Metrics) BroadcastFailed() {
	if m == nil {
		return
	}
	m.broadcastFailed.Inc()
}

// TrackThrottle exports size as the number of accounts the throttle
// currently remembers.
func (m *Metrics) TrackThrottle(size func() int) {
	if m == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "throttle_tracked_accounts",
		Help:      "Accounts with a live failure count.",
	}, func() float64 { return float64(size()) }))
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
