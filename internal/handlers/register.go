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

// RegistrationServiceInterface defines the self-registration contract
type RegistrationServiceInterface interface {
	Register(ctx context.Context, req services.RegisterRequest, meta services.RequestMeta) (*models.User, error)
}

// RegisterHandler handles POST /api/register. The register rate limit is
// applied by the router.
type RegisterHandler struct {
	service  RegistrationServiceInterface
	events   security.EventSink
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewRegisterHandler creates a new RegisterHandler
func NewRegisterHandler(service RegistrationServiceInterface, events security.EventSink, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *RegisterHandler {
	return &RegisterHandler{
		service:  service,
		events:   events,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// RegisterResponse is returned on 201
type RegisterResponse struct {
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
}

// Register creates a STUDENT account
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r, h.ipConfig)

	var input validation.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		h.events.Log(security.EventInvalidInput, eventData(meta, "malformed registration body"))
		writeDecodeError(w, err)
		return
	}

	if screenBots(h.events, meta, input.Website) {
		pkghttp.WriteBadRequest(w, "invalid request")
		return
	}

	if err := validation.Validate(&input); err != nil {
		h.events.Log(security.EventInvalidInput, eventData(meta, err.Error()))
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), services.RegisterRequest{
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	}, meta)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "a user with this email already exists")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "password must be at most 72 bytes")
		default:
			h.logger.Error("registration failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "registration failed, please try again later")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Message: "user created successfully",
		User:    user.Public(),
	})
}
