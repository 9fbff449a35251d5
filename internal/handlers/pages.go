package handlers

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/kafedra/internal/auth"
	"github.com/BradenHooton/kafedra/internal/security"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var signInErrors = map[string]string{
	SignInErrorCredentials: "Email or password is incorrect.",
	SignInErrorRateLimited: "Too many sign-in attempts. Please try again later.",
	SignInErrorServer:      "Something went wrong. Please try again.",
}

// PageHandler renders the server-side pages
type PageHandler struct {
	csrf      *auth.CSRFTokenManager
	cookies   auth.CookieConfig
	callbacks *security.CallbackValidator
	logger    *slog.Logger
}

// NewPageHandler creates a new PageHandler
func NewPageHandler(csrf *auth.CSRFTokenManager, cookies auth.CookieConfig, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		csrf:      csrf,
		cookies:   cookies,
		callbacks: security.NewCallbackValidator(),
		logger:    logger,
	}
}

type signInPage struct {
	CSRFToken   string
	CallbackURL string
	Error       string
}

type dashboardPage struct {
	Name      string
	Email     string
	Role      string
	CSRFToken string
}

type resetPage struct {
	Token string
}

// SignIn handles GET /
func (h *PageHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	token, ok := h.issueCSRF(w)
	if !ok {
		return
	}

	data := signInPage{CSRFToken: token}
	if cb := r.URL.Query().Get("callbackUrl"); h.callbacks.Valid(cb) {
		data.CallbackURL = cb
	}
	if code := r.URL.Query().Get("error"); code != "" {
		data.Error = signInErrors[code]
		if data.Error == "" {
			data.Error = signInErrors[SignInErrorServer]
		}
	}
	h.render(w, "signin", data)
}

// Register handles GET /register
func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.render(w, "register", nil)
}

// Dashboard handles GET /dashboard. The firewall guarantees a session.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSession(r)
	if claims == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	token, ok := h.issueCSRF(w)
	if !ok {
		return
	}
	h.render(w, "dashboard", dashboardPage{
		Name:      claims.Name,
		Email:     claims.Email,
		Role:      claims.Role,
		CSRFToken: token,
	})
}

// ResetPassword handles GET /reset-password
func (h *PageHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, "reset", resetPage{Token: r.URL.Query().Get("token")})
}

func (h *PageHandler) issueCSRF(w http.ResponseWriter) (string, bool) {
	token, err := h.csrf.GenerateToken()
	if err != nil {
		h.logger.Error("failed to generate CSRF token", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return "", false
	}
	auth.SetCSRFCookie(w, token, h.csrf.TTL(), h.cookies)
	return token, true
}

func (h *PageHandler) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("failed to render page", slog.String("page", name), slog.Any("error", err))
	}
}
