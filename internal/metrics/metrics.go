package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the perimeter counters exported on /metrics
type Metrics struct {
	registry *prometheus.Registry

	SecurityEventsTotal     *prometheus.CounterVec
	FirewallRejectionsTotal *prometheus.CounterVec
	RateLimitRejections     *prometheus.CounterVec
	SweptEntriesTotal       *prometheus.CounterVec
}

// New registers the counters on a dedicated registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SecurityEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kafedra_security_events_total",
			Help: "Total number of security events logged, by type and severity",
		}, []string{"type", "severity"}),
		FirewallRejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kafedra_firewall_rejections_total",
			Help: "Total number of requests rejected by the request firewall, by reason",
		}, []string{"reason"}),
		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kafedra_rate_limit_rejections_total",
			Help: "Total number of requests rejected by a rate limit, by action",
		}, []string{"action"}),
		SweptEntriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kafedra_swept_entries_total",
			Help: "Total number of expired in-memory entries removed by the sweeper, by store",
		}, []string{"store"}),
	}
}

func (m *Metrics) RecordSecurityEvent(eventType, severity string) {
	m.SecurityEventsTotal.WithLabelValues(eventType, severity).Inc()
}

func (m *Metrics) IncrementFirewallRejection(reason string) {
	m.FirewallRejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementRateLimitRejection(action string) {
	m.RateLimitRejections.WithLabelValues(action).Inc()
}

func (m *Metrics) AddSwept(store string, count int) {
	m.SweptEntriesTotal.WithLabelValues(store).Add(float64(count))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
