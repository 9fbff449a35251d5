package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session claims in context
	SessionContextKey contextKey = "session"
)

// ReadSession decodes the session cookie of r. A missing cookie yields
// models.ErrUnauthorized, a bad or expired one models.ErrInvalidToken.
func ReadSession(sm *SessionManager, r *http.Request, cookies CookieConfig) (*models.SessionClaims, error) {
	token, err := GetSessionCookie(r, cookies)
	if err != nil || token == "" {
		return nil, models.ErrUnauthorized
	}
	return sm.Parse(token)
}

// CookieSessions reads sessions from the session cookie
type CookieSessions struct {
	Manager *SessionManager
	Cookies CookieConfig
}

// ReadSession decodes the session cookie of r
func (c CookieSessions) ReadSession(r *http.Request) (*models.SessionClaims, error) {
	return ReadSession(c.Manager, r, c.Cookies)
}

// LoadSession puts valid session claims into the request context. Requests
// without a valid session pass through unchanged.
func LoadSession(sm *SessionManager, cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ReadSession(sm, r, cookies)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), claims)))
		})
	}
}

// WithSession returns a copy of ctx carrying claims
func WithSession(ctx context.Context, claims *models.SessionClaims) context.Context {
	return context.WithValue(ctx, SessionContextKey, claims)
}

// GetSession extracts session claims from request context
func GetSession(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// RequireRole enforces the role hierarchy. It must run after LoadSession.
// A missing session or a lower role is 403; the latter also logs an
// UNAUTHORIZED_ACCESS event.
func RequireRole(role string, events security.EventSink, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetSession(r)
			if claims == nil {
				pkghttp.WriteForbidden(w, "access to this resource is not permitted")
				return
			}

			if !models.HasRole(claims.Role, role) {
				events.Log(security.EventUnauthorizedAccess, security.EventData{
					IP:        pkghttp.ExtractClientIP(r, ipConfig),
					UserAgent: r.UserAgent(),
					UserID:    claims.UserID,
					Email:     claims.Email,
					Path:      r.URL.Path,
					Details:   fmt.Sprintf("role %s below required %s", claims.Role, role),
				})
				pkghttp.WriteForbidden(w, "access to this resource is not permitted")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
