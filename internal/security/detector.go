package security

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	sqlProbePattern = regexp.MustCompile(`(?i)('|--|;|/\*|\*/|xp_|UNION\s+SELECT)`)
	xssProbePattern = regexp.MustCompile(`(?i)(<script|javascript:|on\w+\s*=)`)
)

// Target is the part of a request the checks look at
type Target struct {
	// Raw is the path plus "?query" exactly as received
	Raw string
	// Decoded is Raw after percent-decoding, or Raw when decoding fails
	Decoded string
}

// NewTarget builds a Target from an escaped path and a raw query string
func NewTarget(path, rawQuery string) Target {
	raw := path
	if rawQuery != "" {
		raw += "?" + rawQuery
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	return Target{Raw: raw, Decoded: decoded}
}

// Check is one named signature in the detector chain
type Check struct {
	Name  string
	Event EventType
	Match func(Target) bool
}

// PathTraversalCheck flags ".." and its percent-encoded form
func PathTraversalCheck() Check {
	return Check{
		Name:  "path_traversal",
		Event: EventPathTraversalAttempt,
		Match: func(t Target) bool {
			return strings.Contains(t.Raw, "..") || strings.Contains(strings.ToLower(t.Raw), "%2e%2e")
		},
	}
}

// NullByteCheck flags raw or percent-encoded NUL bytes
func NullByteCheck() Check {
	return Check{
		Name:  "null_byte",
		Event: EventSuspiciousRequest,
		Match: func(t Target) bool {
			return strings.Contains(t.Raw, "%00") || strings.ContainsRune(t.Raw, 0)
		},
	}
}

// ScriptInjectionCheck flags script tags, javascript: URLs and inline handlers in the decoded target
func ScriptInjectionCheck() Check {
	return Check{
		Name:  "script_injection",
		Event: EventXSSAttempt,
		Match: func(t Target) bool {
			return xssProbePattern.MatchString(t.Decoded)
		},
	}
}

// SQLInjectionCheck flags quote, comment and statement-separator probes in the raw target
func SQLInjectionCheck() Check {
	return Check{
		Name:  "sql_injection",
		Event: EventSQLInjectionAttempt,
		Match: func(t Target) bool {
			return sqlProbePattern.MatchString(t.Raw)
		},
	}
}

// DefaultChecks returns the standard chain. More specific signatures come first
// so a hit is classified by the most telling event type.
func DefaultChecks() []Check {
	return []Check{
		PathTraversalCheck(),
		NullByteCheck(),
		ScriptInjectionCheck(),
		SQLInjectionCheck(),
	}
}

// Detector runs an ordered chain of checks against request targets
type Detector struct {
	checks []Check
}

// NewDetector creates a detector over checks, or DefaultChecks when none are given
func NewDetector(checks ...Check) *Detector {
	if len(checks) == 0 {
		checks = DefaultChecks()
	}
	return &Detector{checks: checks}
}

// Inspect returns the first check matching the request path and query
func (d *Detector) Inspect(path, rawQuery string) (Check, bool) {
	target := NewTarget(path, rawQuery)
	for _, c := range d.checks {
		if c.Match(target) {
			return c, true
		}
	}
	return Check{}, false
}

// IsSuspicious reports whether any check matches
func (d *Detector) IsSuspicious(path, rawQuery string) bool {
	_, hit := d.Inspect(path, rawQuery)
	return hit
}
