package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/kafedra/internal/auth"
	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	pkgauth "github.com/BradenHooton/kafedra/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firewallFixture struct {
	firewall *Firewall
	sink     *recordingSink
	metrics  *countingMetrics
	limiter  *keyRecordingLimiter
}

func newFirewallFixture(cfg FirewallConfig, sessions SessionReader) *firewallFixture {
	fx := &firewallFixture{
		sink:    &recordingSink{},
		metrics: &countingMetrics{},
		limiter: &keyRecordingLimiter{inner: security.NewMemoryLimiter()},
	}
	if sessions == nil {
		sessions = stubSessions{}
	}
	fx.firewall = NewFirewall(cfg, FirewallDeps{
		Tracker:  security.NewIPTracker(0, 0),
		Limiter:  fx.limiter,
		Sessions: sessions,
		Events:   fx.sink,
		CORS:     NewCORSConfig("https://kafedra.az"),
		Metrics:  fx.metrics,
	})
	return fx
}

func (fx *firewallFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	fx.firewall.Handler(okHandler()).ServeHTTP(w, req)
	return w
}

func TestFirewall_StaticAssetsBypass(t *testing.T) {
	fx := newFirewallFixture(DefaultFirewallConfig(), nil)

	w := fx.serve(httptest.NewRequest(http.MethodGet, "/static/app.js?v=%3Cscript%3E", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, fx.sink.events)
	assert.Empty(t, w.Header().Get("Cross-Origin-Opener-Policy"))
}

func TestFirewall_SuspiciousRequestClassification(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		expected security.EventType
	}{
		{"path traversal", "/api/files?name=../../etc/passwd", security.EventPathTraversalAttempt},
		{"encoded traversal", "/api/files/%2e%2e/secret", security.EventPathTraversalAttempt},
		{"null byte", "/api/files?name=a%00b", security.EventSuspiciousRequest},
		{"script tag", "/search?q=%3Cscript%3Ealert(1)", security.EventXSSAttempt},
		{"sql comment", "/api/courses?id=1--", security.EventSQLInjectionAttempt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFirewallFixture(DefaultFirewallConfig(), nil)

			w := fx.serve(httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, []security.EventType{tt.expected}, fx.sink.events)
			assert.Equal(t, []string{ReasonSuspicious}, fx.metrics.reasons)
			assert.Empty(t, fx.limiter.keys, "rejected before the rate limiter")
		})
	}
}

func TestFirewall_AdmitsGeneratedResetLinks(t *testing.T) {
	fx := newFirewallFixture(DefaultFirewallConfig(), nil)

	for i := 0; i < 2000; i++ {
		token, err := pkgauth.GenerateToken()
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/reset-password?token="+token, nil)
		w := fx.serve(req)
		require.Equal(t, http.StatusOK, w.Code, "token %q was rejected", token)
	}
	assert.Empty(t, fx.sink.events)
	assert.Empty(t, fx.metrics.reasons)
}

func TestFirewall_DashedTokenLooksLikeSQLComment(t *testing.T) {
	fx := newFirewallFixture(DefaultFirewallConfig(), nil)

	w := fx.serve(httptest.NewRequest(http.MethodGet, "/reset-password?token=Hcch-4osIXW--rEvoni6DYK7pK8ju77kw5yEFUdHC0s", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []security.EventType{security.EventSQLInjectionAttempt}, fx.sink.events)
}

func TestFirewall_SuspiciousEscalation(t *testing.T) {
	fx := newFirewallFixture(DefaultFirewallConfig(), nil)

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/courses?id=1'", nil)
		req.RemoteAddr = remote + ":4711"
		return fx.serve(req).Code
	}

	for i := 1; i < security.DefaultSuspiciousThreshold; i++ {
		assert.Equal(t, http.StatusBadRequest, send("203.0.113.9"), "request %d should be a soft reject", i)
	}
	assert.Equal(t, http.StatusForbidden, send("203.0.113.9"))
	assert.Equal(t, http.StatusForbidden, send("203.0.113.9"), "stays blocked inside the window")
	assert.Equal(t, http.StatusBadRequest, send("203.0.113.10"), "other addresses are unaffected")

	last := fx.sink.data[len(fx.sink.data)-2]
	assert.Contains(t, last.Details, "blocked")
	assert.Equal(t, "203.0.113.9", last.IP)
}

func TestFirewall_APIRateLimit(t *testing.T) {
	cfg := DefaultFirewallConfig()
	cfg.APILimit = security.RateLimitConfig{Window: time.Minute, MaxRequests: 2}
	fx := newFirewallFixture(cfg, nil)

	for i := 0; i < 2; i++ {
		w := fx.serve(httptest.NewRequest(http.MethodGet, "/api/admin/security-events", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := fx.serve(httptest.NewRequest(http.MethodGet, "/api/admin/security-events", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, []security.EventType{security.EventRateLimitHit}, fx.sink.events)
	assert.Equal(t, []string{"api"}, fx.metrics.actions)

	// pages and the auth endpoints are outside the API budget
	assert.Equal(t, http.StatusOK, fx.serve(httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	signin := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader("email=a"))
	signin.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusOK, fx.serve(signin).Code)
}

func TestFirewall_APIRateLimitKeyedByIP(t *testing.T) {
	fx := newFirewallFixture(DefaultFirewallConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/security-events", nil)
	req.RemoteAddr = "198.51.100.20:5000"
	fx.serve(req)

	assert.Equal(t, []string{"api:198.51.100.20"}, fx.limiter.keys)
}

func TestFirewall_LimiterErrorFailsOpen(t *testing.T) {
	fx := newFirewallFixture(DefaultFirewallConfig(), nil)
	fx.limiter.err = errors.New("redis: connection refused")

	w := fx.serve(httptest.NewRequest(http.MethodGet, "/api/admin/security-events", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFirewall_RequestShapeRules(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		length      int64
		expected    int
		reason      string
	}{
		{name: "register via GET", method: http.MethodGet, path: "/api/register", expected: http.StatusMethodNotAllowed, reason: ReasonMethod},
		{name: "register subpath via GET", method: http.MethodGet, path: "/api/register/", expected: http.StatusMethodNotAllowed, reason: ReasonMethod},
		{name: "register nested subpath via DELETE", method: http.MethodDelete, path: "/api/register/confirm", expected: http.StatusMethodNotAllowed, reason: ReasonMethod},
		{name: "sibling path is not covered", method: http.MethodGet, path: "/api/registers", expected: http.StatusOK},
		{name: "register preflight", method: http.MethodOptions, path: "/api/register", expected: http.StatusNoContent},
		{name: "register as text", method: http.MethodPost, path: "/api/register", contentType: "text/plain", expected: http.StatusUnsupportedMediaType, reason: ReasonContentType},
		{name: "register without content type", method: http.MethodPost, path: "/api/register", expected: http.StatusUnsupportedMediaType, reason: ReasonContentType},
		{name: "register as json with charset", method: http.MethodPost, path: "/api/register", contentType: "application/json; charset=utf-8", expected: http.StatusOK},
		{name: "oversized body", method: http.MethodPost, path: "/api/register", contentType: "application/json", length: 2 << 20, expected: http.StatusRequestEntityTooLarge, reason: ReasonBodySize},
		{name: "body at the cap", method: http.MethodPost, path: "/api/register", contentType: "application/json", length: 1 << 20, expected: http.StatusOK},
		{name: "form sign-in is exempt from json rule", method: http.MethodPost, path: "/api/auth/signin", contentType: "application/x-www-form-urlencoded", expected: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFirewallFixture(DefaultFirewallConfig(), nil)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.length > 0 {
				req.ContentLength = tt.length
			}

			w := fx.serve(req)

			assert.Equal(t, tt.expected, w.Code)
			if tt.reason != "" {
				assert.Equal(t, []string{tt.reason}, fx.metrics.reasons)
			}
			if tt.expected == http.StatusMethodNotAllowed {
				assert.Equal(t, "POST, OPTIONS", w.Header().Get("Allow"))
			}
		})
	}
}

func TestFirewall_RateLimitRunsBeforeMethodCheck(t *testing.T) {
	cfg := DefaultFirewallConfig()
	cfg.APILimit = security.RateLimitConfig{Window: time.Minute, MaxRequests: 1}
	fx := newFirewallFixture(cfg, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, fx.serve(httptest.NewRequest(http.MethodGet, "/api/register", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, fx.serve(httptest.NewRequest(http.MethodGet, "/api/register", nil)).Code)
}

func TestFirewall_ProtectedPaths(t *testing.T) {
	claims := &models.SessionClaims{UserID: "u1", Email: "leyla@kafedra.az", Role: models.RoleStudent}

	tests := []struct {
		name             string
		path             string
		sessions         stubSessions
		expectedStatus   int
		expectedLocation string
		expectedEvent    security.EventType
	}{
		{
			name:             "no session redirects with callback",
			path:             "/dashboard/courses",
			expectedStatus:   http.StatusTemporaryRedirect,
			expectedLocation: "/?callbackUrl=%2Fdashboard%2Fcourses",
		},
		{
			name:             "bad session is logged",
			path:             "/dashboard",
			sessions:         stubSessions{err: fmt.Errorf("%w: token is expired", models.ErrInvalidToken)},
			expectedStatus:   http.StatusTemporaryRedirect,
			expectedLocation: "/?callbackUrl=%2Fdashboard",
			expectedEvent:    security.EventSessionExpired,
		},
		{
			name:           "valid session passes",
			path:           "/dashboard",
			sessions:       stubSessions{claims: claims},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "sibling path is not protected",
			path:           "/dashboards",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFirewallFixture(DefaultFirewallConfig(), tt.sessions)

			var seen *models.SessionClaims
			w := httptest.NewRecorder()
			fx.firewall.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = auth.GetSession(r)
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedLocation != "" {
				assert.Equal(t, tt.expectedLocation, w.Header().Get("Location"))
			}
			if tt.expectedEvent != "" {
				assert.Equal(t, []security.EventType{tt.expectedEvent}, fx.sink.events)
			} else {
				assert.Empty(t, fx.sink.events)
			}
			if tt.sessions.claims != nil {
				assert.Equal(t, claims, seen)
				assert.Equal(t, "no-store, no-cache, must-revalidate, proxy-revalidate", w.Header().Get("Cache-Control"))
				assert.Equal(t, "0", w.Header().Get("Expires"))
			}
		})
	}
}

func TestFirewall_UnsafeCallbackIsDropped(t *testing.T) {
	cfg := DefaultFirewallConfig()
	cfg.ProtectedPrefixes = append(cfg.ProtectedPrefixes, "/settings")
	fx := newFirewallFixture(cfg, nil)

	w := fx.serve(httptest.NewRequest(http.MethodGet, "/settings/profile", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestFirewall_GuestOnlyPaths(t *testing.T) {
	signedIn := stubSessions{claims: &models.SessionClaims{UserID: "u1", Role: models.RoleStudent}}

	fx := newFirewallFixture(DefaultFirewallConfig(), signedIn)
	w := fx.serve(httptest.NewRequest(http.MethodGet, "/register", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	fx = newFirewallFixture(DefaultFirewallConfig(), nil)
	w = fx.serve(httptest.NewRequest(http.MethodGet, "/register", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFirewall_ResponseHeaders(t *testing.T) {
	fx := newFirewallFixture(DefaultFirewallConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Origin", "https://kafedra.az")
	w := fx.serve(req)

	assert.Equal(t, "same-origin", w.Header().Get("Cross-Origin-Opener-Policy"))
	assert.Equal(t, "same-origin", w.Header().Get("Cross-Origin-Resource-Policy"))
	assert.Equal(t, "https://kafedra.az", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, w.Header().Get("Cache-Control"), "only protected pages get no-store here")

	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = fx.serve(req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://kafedra.az")
	w = fx.serve(req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), "pages get no CORS headers")
	assert.Equal(t, "same-origin", w.Header().Get("Cross-Origin-Opener-Policy"))
}
