package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	pkgauth "github.com/BradenHooton/kafedra/pkg/auth"
)

// DefaultResetTokenTTL is how long a mailed reset link stays valid
const DefaultResetTokenTTL = time.Hour

// resetIssueTimeout bounds storing and mailing one reset link
const resetIssueTimeout = 30 * time.Second

// PasswordResetRepository stores hashed reset tokens
type PasswordResetRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	Redeem(ctx context.Context, tokenID, userID, passwordHash string) error
}

// PasswordResetService runs the forgotten-password flow
type PasswordResetService struct {
	users  UserRepository
	tokens PasswordResetRepository
	email  EmailService
	hasher PasswordHasher
	events security.EventSink
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	pending sync.WaitGroup
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(users UserRepository, tokens PasswordResetRepository, email EmailService, hasher PasswordHasher, events security.EventSink, logger *slog.Logger, ttl time.Duration) *PasswordResetService {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &PasswordResetService{
		users:  users,
		tokens: tokens,
		email:  email,
		hasher: hasher,
		events: events,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Request mails a reset link when email belongs to an account. An unknown
// email is not an error so callers cannot probe for accounts. Storing and
// mailing the link happen in the background, so both cases return after the
// same single lookup; Wait drains links still in flight.
func (s *PasswordResetService) Request(ctx context.Context, email string, meta RequestMeta) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown account")
			return nil
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	issueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetIssueTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		s.issue(issueCtx, user, meta)
	}()
	return nil
}

// Wait blocks until every reset link started by Request is stored and mailed
// or has failed
func (s *PasswordResetService) Wait() {
	s.pending.Wait()
}

func (s *PasswordResetService) issue(ctx context.Context, user *models.User, meta RequestMeta) {
	token, err := pkgauth.GenerateToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return
	}

	expiresAt := s.now().Add(s.ttl)
	if _, err := s.tokens.Create(ctx, user.ID, pkgauth.HashToken(token), expiresAt); err != nil {
		s.logger.Error("failed to store reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}

	if err := s.email.SendPasswordResetEmail(ctx, user.Email, token, expiresAt); err != nil {
		s.logger.Error("failed to send reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}

	s.logger.Info("password reset link issued", slog.String("user_id", user.ID), slog.String("ip", meta.IP))
}

// Confirm sets newPassword for the owner of token and consumes it
func (s *PasswordResetService) Confirm(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	stored, err := s.tokens.GetByHash(ctx, pkgauth.HashToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.events.Log(security.EventInvalidInput, meta.event("", "", "unknown password reset token"))
			return models.ErrInvalidToken
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !stored.IsUsable(s.now()) {
		s.events.Log(security.EventInvalidInput, meta.event("", stored.UserID, "expired or used password reset token"))
		return models.ErrInvalidToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if errors.Is(err, pkgauth.ErrPasswordTooLong) {
		return models.ErrBadRequest
	}
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.tokens.Redeem(ctx, stored.ID, stored.UserID, hash); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			return models.ErrInvalidToken
		}
		s.logger.Error("failed to redeem reset token", slog.String("user_id", stored.UserID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.events.Log(security.EventPasswordChanged, meta.event("", stored.UserID, "password reset"))
	return nil
}
