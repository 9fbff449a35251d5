package auth

import (
	"net/http"
	"time"
)

const (
	sessionCookieName       = "kafedra.session-token"
	secureSessionCookieName = "__Secure-kafedra.session-token"
	csrfCookieName          = "kafedra.csrf-token"
	hostCSRFCookieName      = "__Host-kafedra.csrf-token"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Secure   bool   // HTTPS only, also selects the prefixed cookie names
	SameSite string // "strict", "lax", or "none"
}

// SessionCookieName returns the session cookie name for the deployment
func (c CookieConfig) SessionCookieName() string {
	if c.Secure {
		return secureSessionCookieName
	}
	return sessionCookieName
}

// CSRFCookieName returns the CSRF cookie name for the deployment
func (c CookieConfig) CSRFCookieName() string {
	if c.Secure {
		return hostCSRFCookieName
	}
	return csrfCookieName
}

// SetSessionCookie stores the session token in an httpOnly cookie
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName(),
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(maxAge),
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetSessionCookie retrieves the session token from cookies
func GetSessionCookie(r *http.Request, config CookieConfig) (string, error) {
	cookie, err := r.Cookie(config.SessionCookieName())
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// SetCSRFCookie stores the CSRF token. The __Host- prefix requires Path=/
// and no Domain.
func SetCSRFCookie(w http.ResponseWriter, token string, ttl time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.CSRFCookieName(),
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetCSRFCookie retrieves the CSRF token from cookies
func GetCSRFCookie(r *http.Request, config CookieConfig) (string, error) {
	cookie, err := r.Cookie(config.CSRFCookieName())
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
