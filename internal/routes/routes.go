package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/kafedra/internal/auth"
	"github.com/BradenHooton/kafedra/internal/handlers"
	middlewareCustom "github.com/BradenHooton/kafedra/internal/middleware"
	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Pages         *handlers.PageHandler
	Register      *handlers.RegisterHandler
	Auth          *handlers.AuthHandler
	PasswordReset *handlers.PasswordResetHandler
	Admin         *handlers.AdminHandler
}

// Dependencies are the shared middleware collaborators
type Dependencies struct {
	Firewall           *middlewareCustom.Firewall
	ActionLimiter      *middlewareCustom.ActionLimiter
	Sessions           *auth.SessionManager
	CSRF               *auth.CSRFTokenManager
	Cookies            auth.CookieConfig
	Events             security.EventSink
	IPConfig           *pkghttp.IPConfig
	Headers            middlewareCustom.SecurityHeadersConfig
	PageRequestsPerMin int
	Logger             *slog.Logger

	// Health and Metrics are optional
	Health  http.HandlerFunc
	Metrics http.Handler
}

// NewRouter builds the portal router. Every request passes the security
// headers and the firewall before any route handler runs.
func NewRouter(h Handlers, d Dependencies) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecureLogger(d.Logger, d.IPConfig))
	router.Use(middleware.Recoverer)
	router.Use(middlewareCustom.SecurityHeaders(d.Headers))
	router.Use(d.Firewall.Handler)
	router.Use(auth.LoadSession(d.Sessions, d.Cookies))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "resource not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteMethodNotAllowed(w, "method not allowed")
	})

	if d.Health != nil {
		router.Get("/health", d.Health)
	}
	if d.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// Pages
	router.Group(func(r chi.Router) {
		r.Use(middlewareCustom.PageRateLimit(d.PageRequestsPerMin, d.IPConfig))
		r.Get("/", h.Pages.SignIn)
		r.Get("/register", h.Pages.Register)
		r.Get("/dashboard", h.Pages.Dashboard)
		r.Get("/reset-password", h.Pages.ResetPassword)
	})

	requireCSRF := middlewareCustom.RequireCSRF(d.CSRF, d.Cookies, d.Events, d.IPConfig, d.Logger)

	router.Route("/api", func(r chi.Router) {
		r.With(d.ActionLimiter.Limit("register", security.RegisterLimit)).Post("/register", h.Register.Register)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/csrf", h.Auth.CSRF)
			r.Get("/session", h.Auth.Session)
			r.With(requireCSRF).Post("/signin", h.Auth.SignIn)
			r.With(requireCSRF).Post("/signout", h.Auth.SignOut)
		})

		r.Route("/password-reset", func(r chi.Router) {
			r.Use(d.ActionLimiter.Limit("password-reset", security.PasswordResetLimit))
			r.Post("/", h.PasswordReset.Request)
			r.Post("/confirm", h.PasswordReset.Confirm)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin, d.Events, d.IPConfig))
			r.Use(d.ActionLimiter.Limit("admin", security.APILimit))
			r.Get("/security-events", h.Admin.SecurityEvents)
		})
	})

	return router
}
