package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
	// StorageSuffixes are object storage host suffixes (".supabase.co") that
	// images and XHR may be loaded from
	StorageSuffixes []string
}

const permissionsPolicy = "camera=(), microphone=(), geolocation=(), browsing-topics=(), " +
	"payment=(), usb=(), magnetometer=(), gyroscope=(), accelerometer=()"

// ContentSecurityPolicy builds the CSP header value. Storage hosts are allowed
// as wildcard subdomains for img-src and connect-src.
func ContentSecurityPolicy(config SecurityHeadersConfig) string {
	storage := make([]string, 0, len(config.StorageSuffixes))
	for _, suffix := range config.StorageSuffixes {
		storage = append(storage, "https://*"+suffix)
	}
	hosts := ""
	if len(storage) > 0 {
		hosts = " " + strings.Join(storage, " ")
	}

	directives := []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline'",
		"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com",
		"font-src 'self' https://fonts.gstatic.com",
		"img-src 'self'" + hosts,
		"connect-src 'self'" + hosts,
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"object-src 'none'",
		"media-src 'self'",
		"worker-src 'self'",
		"manifest-src 'self'",
	}
	if config.Env == "production" {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}

// SecurityHeaders returns a middleware that adds security headers to all responses.
// API responses additionally get a no-cache policy.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	csp := ContentSecurityPolicy(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", permissionsPolicy)
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
			h.Set("X-DNS-Prefetch-Control", "off")
			h.Set("X-Download-Options", "noopen")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
			h.Del("X-Powered-By")

			if isAPIPath(r.URL.Path) {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
				h.Set("Pragma", "no-cache")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}
