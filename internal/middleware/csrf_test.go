package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/kafedra/internal/auth"
	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireCSRF(t *testing.T) {
	cookies := auth.CookieConfig{}
	manager := auth.NewCSRFTokenManager(time.Hour)
	token, err := manager.GenerateToken()
	require.NoError(t, err)
	other, err := manager.GenerateToken()
	require.NoError(t, err)

	tests := []struct {
		name      string
		method    string
		cookie    string
		header    string
		form      string
		expected  int
		violation bool
	}{
		{name: "header matches cookie", method: http.MethodPost, cookie: token, header: token, expected: http.StatusOK},
		{name: "form field matches cookie", method: http.MethodPost, cookie: token, form: token, expected: http.StatusOK},
		{name: "safe method skipped", method: http.MethodGet, expected: http.StatusOK},
		{name: "missing token", method: http.MethodPost, cookie: token, expected: http.StatusForbidden, violation: true},
		{name: "missing cookie", method: http.MethodPost, header: token, expected: http.StatusForbidden, violation: true},
		{name: "mismatch", method: http.MethodPost, cookie: token, header: other, expected: http.StatusForbidden, violation: true},
		{name: "forged pair", method: http.MethodPost, cookie: "forged", header: "forged", expected: http.StatusForbidden, violation: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			handler := RequireCSRF(manager, cookies, sink, nil, discardLogger())(okHandler())

			var req *http.Request
			if tt.form != "" {
				body := url.Values{CSRFFormField: {tt.form}}.Encode()
				req = httptest.NewRequest(tt.method, "/api/auth/signin", strings.NewReader(body))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			} else {
				req = httptest.NewRequest(tt.method, "/api/auth/signin", nil)
			}
			if tt.header != "" {
				req.Header.Set(CSRFHeader, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: cookies.CSRFCookieName(), Value: tt.cookie})
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
			if tt.violation {
				assert.Equal(t, []security.EventType{security.EventCSRFViolation}, sink.events)
			} else {
				assert.Empty(t, sink.events)
			}
		})
	}
}
