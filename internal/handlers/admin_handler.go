package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/kafedra/internal/security"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
	ipFailureWindow   = 60 * time.Minute
)

// SecurityEventStore is the query side of the security event logger
type SecurityEventStore interface {
	Recent(limit int, severity security.Severity) []security.Event
	Stats() security.EventStats
	CountFailuresForIP(ip string, window time.Duration) int
}

// AdminHandler serves security event inspection to administrators
type AdminHandler struct {
	events SecurityEventStore
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(events SecurityEventStore) *AdminHandler {
	return &AdminHandler{events: events}
}

// SecurityEventsResponse is the body of GET /api/admin/security-events
type SecurityEventsResponse struct {
	Events     []security.Event    `json:"events"`
	Stats      security.EventStats `json:"stats"`
	IPFailures *int                `json:"ipFailures,omitempty"`
}

// SecurityEvents handles GET /api/admin/security-events
// Query: limit (default 50, capped at 200), severity (LOW|MEDIUM|HIGH|CRITICAL), ip.
func (h *AdminHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := parseEventLimit(q.Get("limit"))

	var severity security.Severity
	if s := strings.TrimSpace(q.Get("severity")); s != "" {
		parsed, ok := security.ParseSeverity(strings.ToUpper(s))
		if !ok {
			pkghttp.WriteBadRequest(w, "severity must be one of LOW, MEDIUM, HIGH, CRITICAL")
			return
		}
		severity = parsed
	}

	resp := SecurityEventsResponse{
		Events: h.events.Recent(limit, severity),
		Stats:  h.events.Stats(),
	}
	if ip := strings.TrimSpace(q.Get("ip")); ip != "" {
		failures := h.events.CountFailuresForIP(ip, ipFailureWindow)
		resp.IPFailures = &failures
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// parseEventLimit falls back to the default for missing or malformed values
func parseEventLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return defaultEventLimit
	}
	if n > maxEventLimit {
		return maxEventLimit
	}
	return n
}
