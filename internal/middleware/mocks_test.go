package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
)

type recordingSink struct {
	mu     sync.Mutex
	events []security.EventType
	data   []security.EventData
}

func (s *recordingSink) Log(t security.EventType, data security.EventData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, t)
	s.data = append(s.data, data)
}

type countingMetrics struct {
	reasons []string
	actions []string
}

func (m *countingMetrics) IncrementFirewallRejection(reason string) {
	m.reasons = append(m.reasons, reason)
}

func (m *countingMetrics) IncrementRateLimitRejection(action string) {
	m.actions = append(m.actions, action)
}

// stubSessions returns a fixed outcome for every request
type stubSessions struct {
	claims *models.SessionClaims
	err    error
}

func (s stubSessions) ReadSession(*http.Request) (*models.SessionClaims, error) {
	if s.claims == nil && s.err == nil {
		return nil, models.ErrUnauthorized
	}
	return s.claims, s.err
}

type keyRecordingLimiter struct {
	inner security.RateLimiter
	err   error
	keys  []string
}

func (l *keyRecordingLimiter) Check(ctx context.Context, key string, cfg security.RateLimitConfig) (security.RateLimitResult, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return security.RateLimitResult{Success: true, Remaining: cfg.MaxRequests}, l.err
	}
	return l.inner.Check(ctx, key, cfg)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
