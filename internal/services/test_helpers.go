package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc    func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByHashFunc func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	RedeemFunc    func(ctx context.Context, tokenID, userID, passwordHash string) error
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, tokenHash, expiresAt)
	}
	return &models.PasswordResetToken{ID: "reset1", UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}, nil
}

func (m *MockPasswordResetRepository) GetByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	if m.GetByHashFunc != nil {
		return m.GetByHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) Redeem(ctx context.Context, tokenID, userID, passwordHash string) error {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, tokenID, userID, passwordHash)
	}
	return nil
}

// MockEmailService records reset mails
type MockEmailService struct {
	SendFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
	Sent     []string // tokens
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.Sent = append(m.Sent, token)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockSESClient implements SESClient for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params)
}

// MockHasher is a cheap PasswordHasher that counts hash work
type MockHasher struct {
	mu       sync.Mutex
	Hashes   int
	Compares int
	Dummies  int
	Burns    int
}

func (m *MockHasher) Hash(password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Hashes++
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return "hashed:" + password, nil
}

func (m *MockHasher) Compare(hashedPassword, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Compares++
	if hashedPassword != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

func (m *MockHasher) CompareDummy(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dummies++
}

func (m *MockHasher) BurnHash() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Burns++
}

// MockRateLimiter implements security.RateLimiter for testing
type MockRateLimiter struct {
	CheckFunc func(ctx context.Context, key string, cfg security.RateLimitConfig) (security.RateLimitResult, error)
	Keys      []string
}

func (m *MockRateLimiter) Check(ctx context.Context, key string, cfg security.RateLimitConfig) (security.RateLimitResult, error) {
	m.Keys = append(m.Keys, key)
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, key, cfg)
	}
	return security.RateLimitResult{Success: true, Remaining: cfg.MaxRequests - 1}, nil
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

// NewTestUser creates a user whose password is password under MockHasher
func NewTestUser(id, email, password string) *models.User {
	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: "hashed:" + password,
		FirstName:    "Leyla",
		LastName:     "Həsənova",
		Role:         models.RoleStudent,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}
