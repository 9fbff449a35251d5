package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	pkgauth "github.com/BradenHooton/kafedra/pkg/auth"
)

// RegisterRequest is a validated and sanitised registration
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string // empty means STUDENT
}

// RegistrationService creates accounts
type RegistrationService struct {
	repo   UserRepository
	hasher PasswordHasher
	events security.EventSink
	logger *slog.Logger
}

// NewRegistrationService creates a new RegistrationService
func NewRegistrationService(repo UserRepository, hasher PasswordHasher, events security.EventSink, logger *slog.Logger) *RegistrationService {
	return &RegistrationService{
		repo:   repo,
		hasher: hasher,
		events: events,
		logger: logger,
	}
}

// Register creates the account. A taken email still costs one bcrypt hash
// and yields models.ErrConflict.
func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest, meta RequestMeta) (*models.User, error) {
	_, err := s.repo.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		if _, err := s.hasher.Hash(req.Password); err != nil {
			s.hasher.BurnHash()
		}
		s.events.Log(security.EventRegisterFailed, meta.event(req.Email, "", "email already registered"))
		return nil, models.ErrConflict
	case !errors.Is(err, models.ErrNotFound):
		s.logger.Error("failed to check existing user", slog.Any("error", err))
		s.events.Log(security.EventRegisterFailed, meta.event("", "", "server error"))
		return nil, models.ErrInternalServer
	}

	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, pkgauth.ErrPasswordTooLong) {
		s.events.Log(security.EventRegisterFailed, meta.event(req.Email, "", "password too long"))
		return nil, models.ErrBadRequest
	}
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		s.events.Log(security.EventRegisterFailed, meta.event("", "", "server error"))
		return nil, models.ErrInternalServer
	}

	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}

	user, err := s.repo.Create(ctx, &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.events.Log(security.EventRegisterFailed, meta.event(req.Email, "", "email already registered"))
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		s.events.Log(security.EventRegisterFailed, meta.event("", "", "server error"))
		return nil, models.ErrInternalServer
	}

	s.events.Log(security.EventRegisterSuccess, meta.event(user.Email, user.ID, ""))
	return user, nil
}
