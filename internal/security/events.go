package security

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pkglogger "github.com/BradenHooton/kafedra/pkg/logger"
)

// EventType names a security-relevant occurrence
type EventType string

const (
	EventLoginSuccess         EventType = "LOGIN_SUCCESS"
	EventLoginFailed          EventType = "LOGIN_FAILED"
	EventLoginBlocked         EventType = "LOGIN_BLOCKED"
	EventRegisterSuccess      EventType = "REGISTER_SUCCESS"
	EventRegisterFailed       EventType = "REGISTER_FAILED"
	EventRateLimitHit         EventType = "RATE_LIMIT_HIT"
	EventSuspiciousRequest    EventType = "SUSPICIOUS_REQUEST"
	EventUnauthorizedAccess   EventType = "UNAUTHORIZED_ACCESS"
	EventInvalidInput         EventType = "INVALID_INPUT"
	EventSessionExpired       EventType = "SESSION_EXPIRED"
	EventPasswordChanged      EventType = "PASSWORD_CHANGED"
	EventCSRFViolation        EventType = "CSRF_VIOLATION"
	EventXSSAttempt           EventType = "XSS_ATTEMPT"
	EventSQLInjectionAttempt  EventType = "SQL_INJECTION_ATTEMPT"
	EventPathTraversalAttempt EventType = "PATH_TRAVERSAL_ATTEMPT"
	EventBotDetected          EventType = "BOT_DETECTED"
)

// Severity ranks events
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity validates a severity name
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), true
	}
	return "", false
}

// AllEventTypes lists every event type the service emits
func AllEventTypes() []EventType {
	return []EventType{
		EventLoginSuccess, EventLoginFailed, EventLoginBlocked,
		EventRegisterSuccess, EventRegisterFailed, EventRateLimitHit,
		EventSuspiciousRequest, EventUnauthorizedAccess, EventInvalidInput,
		EventSessionExpired, EventPasswordChanged, EventCSRFViolation,
		EventXSSAttempt, EventSQLInjectionAttempt, EventPathTraversalAttempt,
		EventBotDetected,
	}
}

// SeverityOf maps an event type to its fixed severity
func SeverityOf(t EventType) (Severity, bool) {
	switch t {
	case EventLoginSuccess, EventRegisterSuccess, EventInvalidInput, EventSessionExpired:
		return SeverityLow, true
	case EventLoginFailed, EventRegisterFailed, EventRateLimitHit, EventUnauthorizedAccess,
		EventPasswordChanged, EventBotDetected:
		return SeverityMedium, true
	case EventLoginBlocked, EventSuspiciousRequest, EventCSRFViolation:
		return SeverityHigh, true
	case EventXSSAttempt, EventSQLInjectionAttempt, EventPathTraversalAttempt:
		return SeverityCritical, true
	}
	return "", false
}

// ValidateEventTypes fails if any event type lacks a severity. Called at startup.
func ValidateEventTypes() error {
	for _, t := range AllEventTypes() {
		if _, ok := SeverityOf(t); !ok {
			return fmt.Errorf("security event type %s has no severity", t)
		}
	}
	return nil
}

// failureEvents are counted by CountFailuresForIP
var failureEvents = map[EventType]bool{
	EventLoginFailed:         true,
	EventSuspiciousRequest:   true,
	EventXSSAttempt:          true,
	EventSQLInjectionAttempt: true,
}

// Event is an immutable record of one security occurrence
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	Path      string    `json:"path,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// EventData carries the request context of an event
type EventData struct {
	IP        string
	UserAgent string
	UserID    string
	Email     string
	Path      string
	Details   string
}

// EventStats summarises the buffered events
type EventStats struct {
	TotalEvents    int `json:"totalEvents"`
	CriticalEvents int `json:"criticalEvents"`
	HighEvents     int `json:"highEvents"`
	Last24h        int `json:"last24h"`
}

// EventRecorder receives a notification for every logged event
type EventRecorder interface {
	RecordSecurityEvent(eventType, severity string)
}

// EventSink is what request handlers need to report security events
type EventSink interface {
	Log(t EventType, data EventData)
}

const DefaultEventCapacity = 1000

// EventLogger keeps the most recent events in a fixed-capacity ring and writes
// each one to the structured log
type EventLogger struct {
	mu     sync.RWMutex
	events []Event
	start  int // index of the oldest event
	size   int

	logger   *slog.Logger
	recorder EventRecorder
	now      func() time.Time
}

// NewEventLogger creates a logger holding at most capacity events
func NewEventLogger(logger *slog.Logger, capacity int) *EventLogger {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventLogger{
		events: make([]Event, capacity),
		logger: logger,
		now:    time.Now,
	}
}

// SetRecorder attaches a metrics recorder
func (l *EventLogger) SetRecorder(r EventRecorder) {
	l.recorder = r
}

// Log appends an event, evicting the oldest when full. It never fails.
func (l *EventLogger) Log(t EventType, data EventData) {
	severity, ok := SeverityOf(t)
	if !ok {
		severity = SeverityMedium
	}

	ev := Event{
		Timestamp: l.now(),
		Type:      t,
		Severity:  severity,
		IP:        data.IP,
		UserAgent: data.UserAgent,
		UserID:    data.UserID,
		Email:     data.Email,
		Path:      data.Path,
		Details:   data.Details,
	}

	l.mu.Lock()
	capacity := len(l.events)
	if l.size < capacity {
		l.events[(l.start+l.size)%capacity] = ev
		l.size++
	} else {
		l.events[l.start] = ev
		l.start = (l.start + 1) % capacity
	}
	l.mu.Unlock()

	l.emit(ev)
	if l.recorder != nil {
		l.recorder.RecordSecurityEvent(string(ev.Type), string(ev.Severity))
	}
}

func (l *EventLogger) emit(ev Event) {
	if l.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("type", string(ev.Type)),
		slog.String("severity", string(ev.Severity)),
		slog.String("ip", ev.IP),
	}
	if ev.Path != "" {
		attrs = append(attrs, slog.String("path", ev.Path))
	}
	if ev.UserID != "" {
		attrs = append(attrs, slog.String("user_id", ev.UserID))
	}
	if ev.Email != "" {
		attrs = append(attrs, slog.String("email", pkglogger.SanitizedEmail(ev.Email)))
	}
	if ev.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", ev.UserAgent))
	}
	if ev.Details != "" {
		attrs = append(attrs, slog.String("details", ev.Details))
	}

	level := slog.LevelInfo
	if ev.Severity == SeverityHigh || ev.Severity == SeverityCritical {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(context.Background(), level, "security_event", attrs...)
}

// at returns the i-th oldest buffered event. Caller holds the lock.
func (l *EventLogger) at(i int) Event {
	return l.events[(l.start+i)%len(l.events)]
}

// Recent returns up to limit events, newest first, optionally filtered by severity
func (l *EventLogger) Recent(limit int, severity Severity) []Event {
	out := make([]Event, 0)
	if limit <= 0 {
		return out
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := l.size - 1; i >= 0 && len(out) < limit; i-- {
		ev := l.at(i)
		if severity != "" && ev.Severity != severity {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// CountFailuresForIP counts failure-indicating events from ip inside the trailing window
func (l *EventLogger) CountFailuresForIP(ip string, window time.Duration) int {
	cutoff := l.now().Add(-window)

	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for i := 0; i < l.size; i++ {
		ev := l.at(i)
		if ev.IP == ip && failureEvents[ev.Type] && ev.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

// Stats summarises the buffered events
func (l *EventLogger) Stats() EventStats {
	dayAgo := l.now().Add(-24 * time.Hour)

	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := EventStats{TotalEvents: l.size}
	for i := 0; i < l.size; i++ {
		ev := l.at(i)
		switch ev.Severity {
		case SeverityCritical:
			stats.CriticalEvents++
		case SeverityHigh:
			stats.HighEvents++
		}
		if ev.Timestamp.After(dayAgo) {
			stats.Last24h++
		}
	}
	return stats
}

// Len returns the number of buffered events
func (l *EventLogger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}
