package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
)

// UserRepository is the persistence the auth flows need
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
	CompareDummy(password string)
	BurnHash()
}

// RequestMeta identifies the caller of a flow for rate limiting and events
type RequestMeta struct {
	IP        string
	UserAgent string
	Path      string
}

func (m RequestMeta) event(email, userID, details string) security.EventData {
	return security.EventData{
		IP:        m.IP,
		UserAgent: m.UserAgent,
		Path:      m.Path,
		Email:     email,
		UserID:    userID,
		Details:   details,
	}
}

// RateLimitedError is returned when a flow's own limiter rejects the caller
type RateLimitedError struct {
	Result security.RateLimitResult
}

func (e *RateLimitedError) Error() string {
	return "rate limit exceeded"
}

func (e *RateLimitedError) Unwrap() error {
	return models.ErrRateLimitExceeded
}

// AuthService handles credential sign-in
type AuthService struct {
	repo    UserRepository
	hasher  PasswordHasher
	limiter security.RateLimiter
	events  security.EventSink
	logger  *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, hasher PasswordHasher, limiter security.RateLimiter, events security.EventSink, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:    repo,
		hasher:  hasher,
		limiter: limiter,
		events:  events,
		logger:  logger,
	}
}

// Login checks credentials that already passed the login schema. Unknown
// email and wrong password both yield models.ErrUnauthorized after one
// bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*models.User, error) {
	result, err := s.limiter.Check(ctx, "login:"+meta.IP, security.LoginLimit)
	if err != nil {
		s.logger.Warn("login rate limiter unavailable", slog.Any("error", err))
	}
	if !result.Success {
		s.events.Log(security.EventLoginBlocked, meta.event(email, "",
			fmt.Sprintf("rate limit exceeded: %d attempts per %s", security.LoginLimit.MaxRequests, security.LoginLimit.Window)))
		return nil, &RateLimitedError{Result: result}
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.hasher.CompareDummy(password)
			s.events.Log(security.EventLoginFailed, meta.event(email, "", "user not found"))
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.events.Log(security.EventLoginFailed, meta.event(email, user.ID, "wrong password"))
		return nil, models.ErrUnauthorized
	}

	s.events.Log(security.EventLoginSuccess, meta.event(email, user.ID, "role: "+user.Role))
	return user, nil
}

// CurrentUser loads the user named by a session
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrBadRequest) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get session user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}
