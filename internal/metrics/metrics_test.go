package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordSecurityEvent("XSS_ATTEMPT", "CRITICAL")
	m.RecordSecurityEvent("XSS_ATTEMPT", "CRITICAL")
	m.IncrementFirewallRejection("suspicious")
	m.IncrementRateLimitRejection("register")
	m.AddSwept("rate_limit", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SecurityEventsTotal.WithLabelValues("XSS_ATTEMPT", "CRITICAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FirewallRejectionsTotal.WithLabelValues("suspicious")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitRejections.WithLabelValues("register")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweptEntriesTotal.WithLabelValues("rate_limit")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncrementFirewallRejection("payload_too_large")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `kafedra_firewall_rejections_total{reason="payload_too_large"} 1`)
}
