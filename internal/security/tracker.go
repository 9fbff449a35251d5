package security

import (
	"sync"
	"time"
)

const (
	DefaultSuspiciousWindow    = 10 * time.Minute
	DefaultSuspiciousThreshold = 10
)

type suspiciousEntry struct {
	count     int
	firstSeen time.Time
}

// IPTracker escalates repeated suspicious requests from one address to a block
type IPTracker struct {
	mu        sync.Mutex
	entries   map[string]*suspiciousEntry
	window    time.Duration
	threshold int
	now       func() time.Time
}

// NewIPTracker creates a tracker. Non-positive arguments select the defaults.
func NewIPTracker(window time.Duration, threshold int) *IPTracker {
	if window <= 0 {
		window = DefaultSuspiciousWindow
	}
	if threshold <= 0 {
		threshold = DefaultSuspiciousThreshold
	}
	return &IPTracker{
		entries:   make(map[string]*suspiciousEntry),
		window:    window,
		threshold: threshold,
		now:       time.Now,
	}
}

// TrackAndShouldBlock records a suspicious request from ip and reports whether
// the address reached the block threshold inside the current window. The first
// hit of a window is never blocked.
func (t *IPTracker) TrackAndShouldBlock(ip string) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[ip]
	if !ok || now.Sub(entry.firstSeen) > t.window {
		t.entries[ip] = &suspiciousEntry{count: 1, firstSeen: now}
		return false
	}

	entry.count++
	return entry.count >= t.threshold
}

// Sweep deletes entries whose window has passed and returns how many were removed
func (t *IPTracker) Sweep() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for ip, entry := range t.entries {
		if now.Sub(entry.firstSeen) > t.window {
			delete(t.entries, ip)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked addresses
func (t *IPTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
