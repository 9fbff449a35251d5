package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/kafedra/internal/security"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitMetrics counts rate-limit rejections
type RateLimitMetrics interface {
	IncrementRateLimitRejection(action string)
}

type noopRateLimitMetrics struct{}

func (noopRateLimitMetrics) IncrementRateLimitRejection(string) {}

// ActionLimiter wraps API handlers with a per-action, per-IP budget
type ActionLimiter struct {
	limiter  security.RateLimiter
	events   security.EventSink
	metrics  RateLimitMetrics
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewActionLimiter creates an ActionLimiter. metrics may be nil.
func NewActionLimiter(limiter security.RateLimiter, events security.EventSink, metrics RateLimitMetrics, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *ActionLimiter {
	if metrics == nil {
		metrics = noopRateLimitMetrics{}
	}
	return &ActionLimiter{
		limiter:  limiter,
		events:   events,
		metrics:  metrics,
		ipConfig: ipConfig,
		logger:   logger,
		now:      time.Now,
	}
}

// Limit returns a middleware keyed "<action>:<ip>". A rejected request logs
// RATE_LIMIT_HIT and gets 429; an admitted one carries X-RateLimit-Remaining.
// Limiter errors fail open.
func (l *ActionLimiter) Limit(action string, cfg security.RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, l.ipConfig)

			result, err := l.limiter.Check(r.Context(), action+":"+ip, cfg)
			if err != nil {
				l.logger.Warn("rate limiter unavailable, allowing request",
					slog.String("action", action),
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			if !result.Success {
				l.metrics.IncrementRateLimitRejection(action)
				l.events.Log(security.EventRateLimitHit, security.EventData{
					IP:        ip,
					UserAgent: r.UserAgent(),
					Path:      r.URL.Path,
					Details:   fmt.Sprintf("%s limit exceeded", action),
				})
				WriteRateLimited(w, result, l.now())
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRateLimited writes a 429 with Retry-After in seconds and
// X-RateLimit-Reset as a unix timestamp
func WriteRateLimited(w http.ResponseWriter, result security.RateLimitResult, now time.Time) {
	h := w.Header()
	h.Set("Retry-After", strconv.Itoa(result.RetryAfter(now)))
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
	pkghttp.WriteTooManyRequests(w, "too many requests, please try again later")
}

// PageRateLimit guards HTML page routes against floods. It keys on the same
// client address the rest of the perimeter uses.
func PageRateLimit(requestsPerMinute int, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "too many requests, please try again later")
		}),
	)
}
