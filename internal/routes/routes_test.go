package routes_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/kafedra/internal/auth"
	"github.com/BradenHooton/kafedra/internal/handlers"
	middlewareCustom "github.com/BradenHooton/kafedra/internal/middleware"
	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/routes"
	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/BradenHooton/kafedra/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type portal struct {
	router   http.Handler
	sessions *auth.SessionManager
	cookies  auth.CookieConfig
	events   *security.EventLogger
	user     *models.User
}

func newPortal(t *testing.T) *portal {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	p := &portal{
		sessions: auth.NewSessionManager("routes-test-secret-0123456789abcdef", time.Hour),
		cookies:  auth.CookieConfig{SameSite: "lax"},
		events:   security.NewEventLogger(logger, 100),
		user:     handlers.NewTestUser(),
	}
	csrf := auth.NewCSRFTokenManager(time.Hour)
	limiter := security.NewMemoryLimiter()

	authService := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, error) {
			if email == p.user.Email && password == "Abcdef1!" {
				return p.user, nil
			}
			return nil, models.ErrUnauthorized
		},
		CurrentUserFunc: func(ctx context.Context, userID string) (*models.User, error) {
			return p.user, nil
		},
	}
	registration := &handlers.MockRegistrationService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest, meta services.RequestMeta) (*models.User, error) {
			return &models.User{ID: "f00dbabe-0000-4000-8000-000000000001", Email: req.Email, Role: models.RoleStudent}, nil
		},
	}

	firewall := middlewareCustom.NewFirewall(middlewareCustom.DefaultFirewallConfig(), middlewareCustom.FirewallDeps{
		Tracker:  security.NewIPTracker(0, 0),
		Limiter:  limiter,
		Sessions: auth.CookieSessions{Manager: p.sessions, Cookies: p.cookies},
		Events:   p.events,
		CORS:     middlewareCustom.NewCORSConfig("http://localhost:3000"),
		Logger:   logger,
	})

	p.router = routes.NewRouter(routes.Handlers{
		Pages:         handlers.NewPageHandler(csrf, p.cookies, logger),
		Register:      handlers.NewRegisterHandler(registration, p.events, nil, logger),
		Auth:          handlers.NewAuthHandler(authService, p.sessions, csrf, p.cookies, p.events, nil, logger),
		PasswordReset: handlers.NewPasswordResetHandler(&handlers.MockPasswordResetService{}, p.events, nil, logger),
		Admin:         handlers.NewAdminHandler(p.events),
	}, routes.Dependencies{
		Firewall:           firewall,
		ActionLimiter:      middlewareCustom.NewActionLimiter(limiter, p.events, nil, nil, logger),
		Sessions:           p.sessions,
		CSRF:               csrf,
		Cookies:            p.cookies,
		Events:             p.events,
		Headers:            middlewareCustom.SecurityHeadersConfig{Env: "development"},
		PageRequestsPerMin: 1000,
		Logger:             logger,
		Health: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})
	return p
}

func (p *portal) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	p.router.ServeHTTP(w, req)
	return w
}

func (p *portal) sessionCookie(t *testing.T, role string) *http.Cookie {
	t.Helper()
	u := *p.user
	u.Role = role
	token, err := p.sessions.Issue(&u)
	require.NoError(t, err)
	return &http.Cookie{Name: p.cookies.SessionCookieName(), Value: token}
}

func cookieFrom(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRouter_SignInFlow(t *testing.T) {
	p := newPortal(t)

	w := p.serve(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/?callbackUrl=%2Fdashboard", w.Header().Get("Location"))

	w = p.serve(httptest.NewRequest(http.MethodGet, "/?callbackUrl=%2Fdashboard", nil))
	require.Equal(t, http.StatusOK, w.Code)
	csrf := cookieFrom(w, p.cookies.CSRFCookieName())
	require.NotNil(t, csrf)
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))

	form := url.Values{
		"email":       {p.user.Email},
		"password":    {"Abcdef1!"},
		"callbackUrl": {"/dashboard"},
		"csrfToken":   {csrf.Value},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(csrf)
	w = p.serve(req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	session := cookieFrom(w, p.cookies.SessionCookieName())
	require.NotNil(t, session)

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(session)
	w = p.serve(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Aysel Quliyeva")
	assert.Equal(t, "no-store, no-cache, must-revalidate, proxy-revalidate", w.Header().Get("Cache-Control"))

	req = httptest.NewRequest(http.MethodGet, "/register", nil)
	req.AddCookie(session)
	w = p.serve(req)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestRouter_SignInWithoutCSRF(t *testing.T) {
	p := newPortal(t)

	form := url.Values{"email": {p.user.Email}, "password": {"Abcdef1!"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := p.serve(req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotEmpty(t, p.events.Recent(1, ""))
	assert.Equal(t, security.EventCSRFViolation, p.events.Recent(1, "")[0].Type)
}

func TestRouter_Register(t *testing.T) {
	p := newPortal(t)
	body := `{"email":"new@kafedra.az","password":"Abcdef1!","firstName":"Rəşad","lastName":"Məmmədov"}`

	w := p.serve(httptest.NewRequest(http.MethodGet, "/api/register", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Allow"))

	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	w = p.serve(req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	for i := 0; i < security.RegisterLimit.MaxRequests; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w = p.serve(req)
		require.Equal(t, http.StatusCreated, w.Code, "attempt %d", i+1)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = p.serve(req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRouter_SuspiciousRequest(t *testing.T) {
	p := newPortal(t)

	w := p.serve(httptest.NewRequest(http.MethodGet, "/api/auth/session?q=%3Cscript%3Ealert(1)%3C/script%3E", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, security.EventXSSAttempt, p.events.Recent(1, "")[0].Type)
}

func TestRouter_AdminSecurityEvents(t *testing.T) {
	p := newPortal(t)

	tests := []struct {
		name         string
		cookie       func() *http.Cookie
		expectedCode int
	}{
		{name: "anonymous", cookie: func() *http.Cookie { return nil }, expectedCode: http.StatusForbidden},
		{name: "student", cookie: func() *http.Cookie { return p.sessionCookie(t, models.RoleStudent) }, expectedCode: http.StatusForbidden},
		{name: "admin", cookie: func() *http.Cookie { return p.sessionCookie(t, models.RoleAdmin) }, expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/security-events?severity=MEDIUM", nil)
			if c := tt.cookie(); c != nil {
				req.AddCookie(c)
			}
			w := p.serve(req)
			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestRouter_PreflightAndHealth(t *testing.T) {
	p := newPortal(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/register", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := p.serve(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = p.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = p.serve(httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
