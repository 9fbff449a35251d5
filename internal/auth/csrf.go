package auth

import (
	"crypto/subtle"
	"sync"
	"time"

	pkgauth "github.com/BradenHooton/kafedra/pkg/auth"
)

// DefaultCSRFTokenTTL bounds how long an issued sign-in token is accepted
const DefaultCSRFTokenTTL = time.Hour

// CSRFTokenManager issues double-submit tokens for the sign-in form and
// remembers them until they expire.
type CSRFTokenManager struct {
	validTokens map[string]time.Time // token -> expiry
	mu          sync.Mutex
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewCSRFTokenManager creates a new CSRF token manager
func NewCSRFTokenManager(ttl time.Duration) *CSRFTokenManager {
	if ttl <= 0 {
		ttl = DefaultCSRFTokenTTL
	}
	return &CSRFTokenManager{
		validTokens: make(map[string]time.Time),
		tokenTTL:    ttl,
		now:         time.Now,
	}
}

// TTL returns the token lifetime
func (m *CSRFTokenManager) TTL() time.Duration {
	return m.tokenTTL
}

// GenerateToken creates and registers a new token
func (m *CSRFTokenManager) GenerateToken() (string, error) {
	token, err := pkgauth.GenerateToken()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.validTokens[token] = m.now().Add(m.tokenTTL)
	m.mu.Unlock()

	return token, nil
}

// Validate checks the cookie value against the submitted value and that the
// token was issued here and has not expired.
func (m *CSRFTokenManager) Validate(cookieToken, submitted string) bool {
	if cookieToken == "" || submitted == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submitted)) != 1 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.validTokens[cookieToken]
	if !ok {
		return false
	}
	if m.now().After(expiry) {
		delete(m.validTokens, cookieToken)
		return false
	}
	return true
}

// RevokeToken invalidates a token
func (m *CSRFTokenManager) RevokeToken(token string) {
	m.mu.Lock()
	delete(m.validTokens, token)
	m.mu.Unlock()
}

// Sweep removes expired tokens and returns how many were dropped
func (m *CSRFTokenManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for token, expiry := range m.validTokens {
		if now.After(expiry) {
			delete(m.validTokens, token)
			removed++
		}
	}
	return removed
}
