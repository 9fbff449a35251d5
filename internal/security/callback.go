package security

import "strings"

// DefaultCallbackPrefixes are the areas a sign-in may return to
var DefaultCallbackPrefixes = []string{"/dashboard", "/muhazire", "/kollokvium", "/serbest-isler"}

// CallbackValidator guards post-login redirect targets against open redirects
type CallbackValidator struct {
	prefixes []string
}

// NewCallbackValidator creates a validator over prefixes, or DefaultCallbackPrefixes when none are given
func NewCallbackValidator(prefixes ...string) *CallbackValidator {
	if len(prefixes) == 0 {
		prefixes = DefaultCallbackPrefixes
	}
	return &CallbackValidator{prefixes: prefixes}
}

// Valid reports whether path is a same-origin, allow-listed redirect target.
// A prefix matches whole path segments only: "/dashboard" admits
// "/dashboard/x" and "/dashboard?tab=1" but not "/dashboardevil".
func (v *CallbackValidator) Valid(path string) bool {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return false
	}
	if strings.ContainsAny(path, "\\@\x00") {
		return false
	}
	for _, prefix := range v.prefixes {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		if rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#' {
			return true
		}
	}
	return false
}

var defaultCallbackValidator = NewCallbackValidator()

// IsValidCallback checks path against DefaultCallbackPrefixes
func IsValidCallback(path string) bool {
	return defaultCallbackValidator.Valid(path)
}
