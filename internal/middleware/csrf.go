package middleware

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/kafedra/internal/auth"
	"github.com/BradenHooton/kafedra/internal/security"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
)

const (
	// CSRFHeader carries the token for JSON clients
	CSRFHeader = "X-CSRF-Token"
	// CSRFFormField carries the token for HTML form posts
	CSRFFormField = "csrfToken"
)

// RequireCSRF enforces the double-submit check on state-changing requests:
// the value sent in CSRFHeader or CSRFFormField must equal the CSRF cookie
// and be a live token issued by csrfManager. A mismatch logs CSRF_VIOLATION
// and answers 403.
func RequireCSRF(csrfManager *auth.CSRFTokenManager, cookies auth.CookieConfig, events security.EventSink, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			submitted := r.Header.Get(CSRFHeader)
			if submitted == "" {
				submitted = r.PostFormValue(CSRFFormField)
			}
			cookieToken, _ := auth.GetCSRFCookie(r, cookies)

			if !csrfManager.Validate(cookieToken, submitted) {
				reason := "token mismatch"
				if submitted == "" || cookieToken == "" {
					reason = "token missing"
				}
				logger.Warn("CSRF validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("reason", reason))
				events.Log(security.EventCSRFViolation, security.EventData{
					IP:        pkghttp.ExtractClientIP(r, ipConfig),
					UserAgent: r.UserAgent(),
					Path:      r.URL.Path,
					Details:   reason,
				})
				pkghttp.WriteForbidden(w, "invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
