package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/kafedra/internal/handlers"
	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityEvents_QueryParsing(t *testing.T) {
	tests := []struct {
		name             string
		query            string
		expectedLimit    int
		expectedSeverity security.Severity
	}{
		{name: "defaults", query: "", expectedLimit: 50},
		{name: "explicit limit", query: "?limit=10", expectedLimit: 10},
		{name: "limit capped", query: "?limit=5000", expectedLimit: 200},
		{name: "negative limit", query: "?limit=-3", expectedLimit: 50},
		{name: "garbage limit", query: "?limit=ten", expectedLimit: 50},
		{name: "severity filter", query: "?severity=CRITICAL", expectedLimit: 50, expectedSeverity: security.SeverityCritical},
		{name: "severity is case-insensitive", query: "?severity=high&limit=5", expectedLimit: 5, expectedSeverity: security.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			var gotSeverity security.Severity
			store := &handlers.MockSecurityEventStore{
				RecentFunc: func(limit int, severity security.Severity) []security.Event {
					gotLimit, gotSeverity = limit, severity
					return []security.Event{}
				},
			}
			h := handlers.NewAdminHandler(store)

			w := httptest.NewRecorder()
			h.SecurityEvents(w, httptest.NewRequest(http.MethodGet, "/api/admin/security-events"+tt.query, nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.expectedLimit, gotLimit)
			assert.Equal(t, tt.expectedSeverity, gotSeverity)
		})
	}
}

func TestSecurityEvents_InvalidSeverity(t *testing.T) {
	called := false
	store := &handlers.MockSecurityEventStore{
		RecentFunc: func(limit int, severity security.Severity) []security.Event {
			called = true
			return nil
		},
	}
	h := handlers.NewAdminHandler(store)

	w := httptest.NewRecorder()
	h.SecurityEvents(w, httptest.NewRequest(http.MethodGet, "/api/admin/security-events?severity=URGENT", nil))

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	assert.False(t, called)
}

func TestSecurityEvents_Body(t *testing.T) {
	at := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)
	store := &handlers.MockSecurityEventStore{
		RecentFunc: func(limit int, severity security.Severity) []security.Event {
			return []security.Event{{
				Timestamp: at,
				Type:      security.EventSQLInjectionAttempt,
				Severity:  security.SeverityCritical,
				IP:        "203.0.113.9",
				Path:      "/api/courses",
			}}
		},
		StatsFunc: func() security.EventStats {
			return security.EventStats{TotalEvents: 7, CriticalEvents: 1, HighEvents: 2, Last24h: 7}
		},
		CountFunc: func(ip string, window time.Duration) int {
			assert.Equal(t, "203.0.113.9", ip)
			assert.Equal(t, time.Hour, window)
			return 4
		},
	}
	h := handlers.NewAdminHandler(store)

	t.Run("without ip", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.SecurityEvents(w, httptest.NewRequest(http.MethodGet, "/api/admin/security-events", nil))

		var raw map[string]json.RawMessage
		handlers.AssertJSONResponse(t, w, http.StatusOK, &raw)
		assert.Contains(t, raw, "events")
		assert.Contains(t, raw, "stats")
		assert.NotContains(t, raw, "ipFailures")
	})

	t.Run("with ip", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.SecurityEvents(w, httptest.NewRequest(http.MethodGet, "/api/admin/security-events?ip=203.0.113.9", nil))

		var resp handlers.SecurityEventsResponse
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		require.Len(t, resp.Events, 1)
		assert.Equal(t, security.EventSQLInjectionAttempt, resp.Events[0].Type)
		assert.Equal(t, 7, resp.Stats.TotalEvents)
		require.NotNil(t, resp.IPFailures)
		assert.Equal(t, 4, *resp.IPFailures)
	})
}

func TestSecurityEvents_AgainstEventLogger(t *testing.T) {
	events := security.NewEventLogger(discardLogger(), 100)
	events.Log(security.EventLoginFailed, security.EventData{IP: "198.51.100.4"})
	events.Log(security.EventLoginFailed, security.EventData{IP: "198.51.100.4"})
	events.Log(security.EventXSSAttempt, security.EventData{IP: "198.51.100.4", Path: "/search"})
	events.Log(security.EventLoginSuccess, security.EventData{IP: "198.51.100.5"})

	h := handlers.NewAdminHandler(events)
	w := httptest.NewRecorder()
	h.SecurityEvents(w, httptest.NewRequest(http.MethodGet, "/api/admin/security-events?severity=critical&ip=198.51.100.4", nil))

	var resp handlers.SecurityEventsResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, security.EventXSSAttempt, resp.Events[0].Type)
	assert.Equal(t, 4, resp.Stats.TotalEvents)
	assert.Equal(t, 1, resp.Stats.CriticalEvents)
	require.NotNil(t, resp.IPFailures)
	assert.Equal(t, 3, *resp.IPFailures)
}
