package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/BradenHooton/kafedra/internal/services"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockRegistrationService implements RegistrationServiceInterface for testing
type MockRegistrationService struct {
	RegisterFunc func(ctx context.Context, req services.RegisterRequest, meta services.RequestMeta) (*models.User, error)
}

func (m *MockRegistrationService) Register(ctx context.Context, req services.RegisterRequest, meta services.RequestMeta) (*models.User, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.RegisterFunc(ctx, req, meta)
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc       func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, error)
	CurrentUserFunc func(ctx context.Context, userID string) (*models.User, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, meta)
}

func (m *MockAuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	if m.CurrentUserFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.CurrentUserFunc(ctx, userID)
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestFunc func(ctx context.Context, email string, meta services.RequestMeta) error
	ConfirmFunc func(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
}

func (m *MockPasswordResetService) Request(ctx context.Context, email string, meta services.RequestMeta) error {
	if m.RequestFunc == nil {
		return nil
	}
	return m.RequestFunc(ctx, email, meta)
}

func (m *MockPasswordResetService) Confirm(ctx context.Context, token, newPassword string, meta services.RequestMeta) error {
	if m.ConfirmFunc == nil {
		return nil
	}
	return m.ConfirmFunc(ctx, token, newPassword, meta)
}

// MockAvatarStore implements AvatarStore for testing
type MockAvatarStore struct {
	AvatarURLFunc func(ctx context.Context, key string) (string, error)
}

func (m *MockAvatarStore) AvatarURL(ctx context.Context, key string) (string, error) {
	if m.AvatarURLFunc == nil {
		return "https://avatars.example.supabase.co/" + key + "?X-Amz-Signature=test", nil
	}
	return m.AvatarURLFunc(ctx, key)
}

// MockSecurityEventStore implements SecurityEventStore for testing
type MockSecurityEventStore struct {
	RecentFunc func(limit int, severity security.Severity) []security.Event
	StatsFunc  func() security.EventStats
	CountFunc  func(ip string, window time.Duration) int
}

func (m *MockSecurityEventStore) Recent(limit int, severity security.Severity) []security.Event {
	if m.RecentFunc == nil {
		return []security.Event{}
	}
	return m.RecentFunc(limit, severity)
}

func (m *MockSecurityEventStore) Stats() security.EventStats {
	if m.StatsFunc == nil {
		return security.EventStats{}
	}
	return m.StatsFunc()
}

func (m *MockSecurityEventStore) CountFailuresForIP(ip string, window time.Duration) int {
	if m.CountFunc == nil {
		return 0
	}
	return m.CountFunc(ip, window)
}

// MockEventSink records security events
type MockEventSink struct {
	mu     sync.Mutex
	Events []security.EventType
	Data   []security.EventData
}

func (m *MockEventSink) Log(t security.EventType, data security.EventData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, t)
	m.Data = append(m.Data, data)
}

// NewTestUser returns a stored student account
func NewTestUser() *models.User {
	return &models.User{
		ID:           "8d4f1c2a-6b3e-4f70-9a51-2c8e7d9b0a14",
		Email:        "aysel@kafedra.az",
		PasswordHash: "$2a$12$hash",
		FirstName:    "Aysel",
		LastName:     "Quliyeva",
		Role:         models.RoleStudent,
		CreatedAt:    time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}
