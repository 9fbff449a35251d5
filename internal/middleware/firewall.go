package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/kafedra/internal/auth"
	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
)

// Firewall rejection reasons, used as metric labels
const (
	ReasonSuspicious        = "suspicious"
	ReasonSuspiciousBlocked = "suspicious_blocked"
	ReasonRateLimit         = "rate_limit"
	ReasonMethod            = "method_not_allowed"
	ReasonContentType       = "unsupported_media_type"
	ReasonBodySize          = "payload_too_large"
)

// FirewallConfig describes which paths the firewall treats specially
type FirewallConfig struct {
	APILimit security.RateLimitConfig
	// APIExemptPrefixes skip the API rate limit and the JSON content-type rule.
	// Sign-in accepts HTML form posts and carries its own login limit.
	APIExemptPrefixes []string
	MaxBodyBytes      int64
	// MethodRules restricts a path and everything under it to the listed
	// methods. The longest matching path wins. OPTIONS is always let through.
	MethodRules       map[string][]string
	ProtectedPrefixes []string
	GuestOnlyPrefixes []string
	StaticPrefixes    []string
	SignInPath        string
	HomePath          string
}

// DefaultFirewallConfig returns the portal's routing rules
func DefaultFirewallConfig() FirewallConfig {
	return FirewallConfig{
		APILimit:          security.RateLimitConfig{Window: 60 * time.Second, MaxRequests: 100},
		APIExemptPrefixes: []string{"/api/auth"},
		MaxBodyBytes:      1 << 20,
		MethodRules: map[string][]string{
			"/api/register": {http.MethodPost},
		},
		ProtectedPrefixes: []string{"/dashboard"},
		GuestOnlyPrefixes: []string{"/register"},
		StaticPrefixes:    []string{"/static/", "/images/", "/favicon.ico"},
		SignInPath:        "/",
		HomePath:          "/dashboard",
	}
}

// SessionReader decodes the caller's session from a request
type SessionReader interface {
	ReadSession(r *http.Request) (*models.SessionClaims, error)
}

// FirewallMetrics counts what the firewall turns away
type FirewallMetrics interface {
	IncrementFirewallRejection(reason string)
	IncrementRateLimitRejection(action string)
}

type noopFirewallMetrics struct{}

func (noopFirewallMetrics) IncrementFirewallRejection(string)  {}
func (noopFirewallMetrics) IncrementRateLimitRejection(string) {}

// FirewallDeps are the collaborators of a Firewall. Metrics and Logger may be nil.
type FirewallDeps struct {
	Detector  *security.Detector
	Tracker   *security.IPTracker
	Limiter   security.RateLimiter
	Sessions  SessionReader
	Callbacks *security.CallbackValidator
	Events    security.EventSink
	CORS      *CORSConfig
	IPConfig  *pkghttp.IPConfig
	Metrics   FirewallMetrics
	Logger    *slog.Logger
}

// Firewall screens every non-static request in a fixed order and stops at the
// first rejection: suspicious pattern, API rate limit, method, content type,
// body size, protected-path session, guest-only redirect. Admitted requests
// leave with cache and cross-origin headers set.
type Firewall struct {
	cfg  FirewallConfig
	deps FirewallDeps
	now  func() time.Time
}

// NewFirewall creates a Firewall
func NewFirewall(cfg FirewallConfig, deps FirewallDeps) *Firewall {
	if deps.Metrics == nil {
		deps.Metrics = noopFirewallMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Detector == nil {
		deps.Detector = security.NewDetector()
	}
	if deps.Callbacks == nil {
		deps.Callbacks = security.NewCallbackValidator()
	}
	return &Firewall{cfg: cfg, deps: deps, now: time.Now}
}

// Handler wraps next with the firewall
func (f *Firewall) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if hasAnyPrefix(path, f.cfg.StaticPrefixes) {
			next.ServeHTTP(w, r)
			return
		}

		ip := pkghttp.ExtractClientIP(r, f.deps.IPConfig)
		api := isAPIPath(path)
		exempt := hasAnyPrefix(path, f.cfg.APIExemptPrefixes)

		if check, hit := f.deps.Detector.Inspect(r.URL.EscapedPath(), r.URL.RawQuery); hit {
			f.rejectSuspicious(w, r, ip, check)
			return
		}

		if api && !exempt && !f.admitAPI(w, r, ip) {
			return
		}

		if allowed, ok := f.allowedMethods(path); ok && r.Method != http.MethodOptions && !contains(allowed, r.Method) {
			f.deps.Metrics.IncrementFirewallRejection(ReasonMethod)
			w.Header().Set("Allow", strings.Join(allowed, ", ")+", "+http.MethodOptions)
			pkghttp.WriteMethodNotAllowed(w, "method not allowed")
			return
		}

		if api && !exempt && hasBody(r.Method) && !pkghttp.IsJSONContentType(r) {
			f.deps.Metrics.IncrementFirewallRejection(ReasonContentType)
			pkghttp.WriteUnsupportedMediaType(w, "content type must be application/json")
			return
		}

		if f.cfg.MaxBodyBytes > 0 {
			if r.ContentLength > f.cfg.MaxBodyBytes {
				f.deps.Metrics.IncrementFirewallRejection(ReasonBodySize)
				pkghttp.WritePayloadTooLarge(w, "request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, f.cfg.MaxBodyBytes)
			}
		}

		protected := hasPathPrefix(path, f.cfg.ProtectedPrefixes)
		if protected {
			claims, err := f.deps.Sessions.ReadSession(r)
			if err != nil {
				if errors.Is(err, models.ErrInvalidToken) {
					f.deps.Events.Log(security.EventSessionExpired, security.EventData{
						IP:        ip,
						UserAgent: r.UserAgent(),
						Path:      path,
					})
				}
				http.Redirect(w, r, f.signInURL(path), http.StatusTemporaryRedirect)
				return
			}
			r = r.WithContext(auth.WithSession(r.Context(), claims))
		}

		if hasPathPrefix(path, f.cfg.GuestOnlyPrefixes) {
			if _, err := f.deps.Sessions.ReadSession(r); err == nil {
				http.Redirect(w, r, f.cfg.HomePath, http.StatusTemporaryRedirect)
				return
			}
		}

		h := w.Header()
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		if protected {
			h.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if api {
			f.deps.CORS.Apply(w, r)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// rejectSuspicious logs the matched signature and answers 400, or 403 once
// the address has been escalated
func (f *Firewall) rejectSuspicious(w http.ResponseWriter, r *http.Request, ip string, check security.Check) {
	blocked := f.deps.Tracker.TrackAndShouldBlock(ip)

	details := check.Name
	if blocked {
		details += "; blocked after repeated suspicious requests"
	}
	f.deps.Events.Log(check.Event, security.EventData{
		IP:        ip,
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Details:   details,
	})

	if blocked {
		f.deps.Metrics.IncrementFirewallRejection(ReasonSuspiciousBlocked)
		pkghttp.WriteForbidden(w, "access denied")
		return
	}
	f.deps.Metrics.IncrementFirewallRejection(ReasonSuspicious)
	pkghttp.WriteBadRequest(w, "invalid request")
}

// admitAPI applies the IP-keyed API budget. It writes the 429 itself and
// reports false when the request must stop.
func (f *Firewall) admitAPI(w http.ResponseWriter, r *http.Request, ip string) bool {
	result, err := f.deps.Limiter.Check(r.Context(), "api:"+ip, f.cfg.APILimit)
	if err != nil {
		f.deps.Logger.Warn("api rate limiter unavailable, allowing request", slog.String("error", err.Error()))
		return true
	}
	if result.Success {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		return true
	}

	f.deps.Metrics.IncrementRateLimitRejection("api")
	f.deps.Metrics.IncrementFirewallRejection(ReasonRateLimit)
	f.deps.Events.Log(security.EventRateLimitHit, security.EventData{
		IP:        ip,
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Details:   fmt.Sprintf("api limit of %d per %s exceeded", f.cfg.APILimit.MaxRequests, f.cfg.APILimit.Window),
	})
	WriteRateLimited(w, result, f.now())
	return false
}

// signInURL points at the sign-in page, carrying path as callbackUrl only when
// it is a safe redirect target
func (f *Firewall) signInURL(path string) string {
	if !f.deps.Callbacks.Valid(path) {
		return f.cfg.SignInPath
	}
	return f.cfg.SignInPath + "?" + url.Values{"callbackUrl": {path}}.Encode()
}

func (f *Firewall) allowedMethods(path string) ([]string, bool) {
	var (
		match   string
		allowed []string
	)
	for p, methods := range f.cfg.MethodRules {
		if len(p) > len(match) && hasPathPrefix(path, []string{p}) {
			match, allowed = p, methods
		}
	}
	return allowed, match != ""
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches whole segments: "/dashboard" covers "/dashboard/x"
// but not "/dashboards"
func hasPathPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
