package security

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig is a fixed-window budget for one kind of action
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
}

// Per-action presets
var (
	LoginLimit         = RateLimitConfig{Window: 15 * time.Minute, MaxRequests: 5}
	RegisterLimit      = RateLimitConfig{Window: time.Hour, MaxRequests: 3}
	APILimit           = RateLimitConfig{Window: time.Minute, MaxRequests: 60}
	PasswordResetLimit = RateLimitConfig{Window: time.Hour, MaxRequests: 3}
)

// RateLimitResult is the outcome of a single check
type RateLimitResult struct {
	Success   bool
	Remaining int
	ResetTime time.Time
}

// RetryAfter returns the whole seconds until the window resets, at least 1
func (r RateLimitResult) RetryAfter(now time.Time) int {
	secs := int((r.ResetTime.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// RateLimiter counts requests per key. Implementations must be safe for concurrent use.
type RateLimiter interface {
	Check(ctx context.Context, key string, cfg RateLimitConfig) (RateLimitResult, error)
}

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// MemoryLimiter is a process-local fixed-window limiter
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	now     func() time.Time
}

// NewMemoryLimiter creates an empty in-memory limiter
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*rateLimitEntry),
		now:     time.Now,
	}
}

// Check records one request against key. The request that opens a window counts
// as the first of that window; a rejected request leaves the entry untouched.
func (l *MemoryLimiter) Check(_ context.Context, key string, cfg RateLimitConfig) (RateLimitResult, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.After(entry.resetTime) {
		entry = &rateLimitEntry{count: 1, resetTime: now.Add(cfg.Window)}
		l.entries[key] = entry
		return RateLimitResult{
			Success:   true,
			Remaining: nonNegative(cfg.MaxRequests - 1),
			ResetTime: entry.resetTime,
		}, nil
	}

	if entry.count >= cfg.MaxRequests {
		return RateLimitResult{Success: false, Remaining: 0, ResetTime: entry.resetTime}, nil
	}

	entry.count++
	return RateLimitResult{
		Success:   true,
		Remaining: nonNegative(cfg.MaxRequests - entry.count),
		ResetTime: entry.resetTime,
	}, nil
}

// Sweep deletes entries whose window has passed and returns how many were removed
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, entry := range l.entries {
		if now.After(entry.resetTime) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
