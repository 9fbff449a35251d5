package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/BradenHooton/kafedra/internal/services"
	"github.com/BradenHooton/kafedra/internal/validation"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
)

// PasswordResetServiceInterface defines the password reset contract
type PasswordResetServiceInterface interface {
	Request(ctx context.Context, email string, meta services.RequestMeta) error
	Confirm(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
}

// PasswordResetHandler handles the two steps of a password reset
type PasswordResetHandler struct {
	service  PasswordResetServiceInterface
	events   security.EventSink
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewPasswordResetHandler creates a new PasswordResetHandler
func NewPasswordResetHandler(service PasswordResetServiceInterface, events security.EventSink, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{
		service:  service,
		events:   events,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

const resetRequestedMessage = "if an account exists for this email, a reset link has been sent"

// Request handles POST /api/password-reset. The answer is 202 whether or not
// the address belongs to an account.
func (h *PasswordResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r, h.ipConfig)

	var input validation.PasswordResetRequestInput
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := validation.Validate(&input); err != nil {
		h.events.Log(security.EventInvalidInput, eventData(meta, err.Error()))
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Request(r.Context(), input.Email, meta); err != nil {
		h.logger.Error("password reset request failed", slog.Any("error", err))
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{"message": resetRequestedMessage})
}

// Confirm handles POST /api/password-reset/confirm
func (h *PasswordResetHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r, h.ipConfig)

	var input validation.PasswordResetConfirmInput
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := validation.Validate(&input); err != nil {
		h.events.Log(security.EventInvalidInput, eventData(meta, err.Error()))
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Confirm(r.Context(), input.Token, input.Password, meta); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			pkghttp.WriteBadRequest(w, "reset link is invalid or has expired")
			return
		}
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "password must be at most 72 bytes")
			return
		}
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
