package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/BradenHooton/kafedra/internal/auth"
	"github.com/BradenHooton/kafedra/internal/middleware"
	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/BradenHooton/kafedra/internal/services"
	"github.com/BradenHooton/kafedra/internal/validation"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
)

// Sign-in error codes carried back to the sign-in page
const (
	SignInErrorCredentials = "CredentialsSignin"
	SignInErrorRateLimited = "TooManyRequests"
	SignInErrorServer      = "ServerError"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// AvatarStore presigns avatar object keys
type AvatarStore interface {
	AvatarURL(ctx context.Context, key string) (string, error)
}

// AuthHandler handles the credentials sign-in flow and session lookups
type AuthHandler struct {
	service   AuthServiceInterface
	sessions  *auth.SessionManager
	csrf      *auth.CSRFTokenManager
	cookies   auth.CookieConfig
	callbacks *security.CallbackValidator
	avatars   AvatarStore
	events    security.EventSink
	ipConfig  *pkghttp.IPConfig
	logger    *slog.Logger

	signInPath string
	homePath   string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service AuthServiceInterface,
	sessions *auth.SessionManager,
	csrf *auth.CSRFTokenManager,
	cookies auth.CookieConfig,
	events security.EventSink,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:    service,
		sessions:   sessions,
		csrf:       csrf,
		cookies:    cookies,
		callbacks:  security.NewCallbackValidator(),
		events:     events,
		ipConfig:   ipConfig,
		logger:     logger,
		signInPath: "/",
		homePath:   "/dashboard",
	}
}

// WithAvatars enables presigned avatar URLs in session responses
func (h *AuthHandler) WithAvatars(store AvatarStore) *AuthHandler {
	h.avatars = store
	return h
}

// CSRFResponse carries a fresh CSRF token
type CSRFResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// SignInResponse is returned to JSON clients
type SignInResponse struct {
	User     models.PublicUser `json:"user"`
	Redirect string            `json:"redirect"`
}

// SessionResponse describes the current session
type SessionResponse struct {
	User    models.PublicUser `json:"user"`
	Expires time.Time         `json:"expires"`
}

// CSRF handles GET /api/auth/csrf
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.GenerateToken()
	if err != nil {
		h.logger.Error("failed to generate CSRF token", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}
	auth.SetCSRFCookie(w, token, h.csrf.TTL(), h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, CSRFResponse{CSRFToken: token})
}

// signInForm is the sign-in body of JSON clients
type signInForm struct {
	validation.LoginInput
	CallbackURL string `json:"callbackUrl"`
}

// SignIn handles POST /api/auth/signin. JSON clients get status codes, HTML
// forms get a 303 to the callback target or back to the sign-in page.
// CSRF is checked by the router.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	meta := requestMeta(r, h.ipConfig)
	isForm := !pkghttp.IsJSONContentType(r)

	var form signInForm
	if isForm {
		if err := r.ParseForm(); err != nil {
			h.failSignIn(w, r, true, "", http.StatusBadRequest, SignInErrorCredentials, "invalid request body")
			return
		}
		form.Email = r.PostForm.Get("email")
		form.Password = r.PostForm.Get("password")
		form.Website = r.PostForm.Get(security.HoneypotField)
		form.CallbackURL = r.PostForm.Get("callbackUrl")
	} else if err := decodeJSON(r, &form); err != nil {
		h.events.Log(security.EventInvalidInput, eventData(meta, "malformed sign-in body"))
		writeDecodeError(w, err)
		return
	}

	callback := ""
	if h.callbacks.Valid(form.CallbackURL) {
		callback = form.CallbackURL
	}

	if screenBots(h.events, meta, form.Website) {
		h.failSignIn(w, r, isForm, callback, http.StatusBadRequest, SignInErrorCredentials, "invalid request")
		return
	}

	if err := validation.Validate(&form.LoginInput); err != nil {
		h.events.Log(security.EventInvalidInput, eventData(meta, err.Error()))
		h.failSignIn(w, r, isForm, callback, http.StatusBadRequest, SignInErrorCredentials, err.Error())
		return
	}

	user, err := h.service.Login(r.Context(), form.Email, form.Password, meta)
	if err != nil {
		var limited *services.RateLimitedError
		switch {
		case errors.As(err, &limited):
			if isForm {
				h.redirectToSignIn(w, r, callback, SignInErrorRateLimited)
				return
			}
			middleware.WriteRateLimited(w, limited.Result, time.Now())
		case errors.Is(err, models.ErrUnauthorized):
			h.failSignIn(w, r, isForm, callback, http.StatusUnauthorized, SignInErrorCredentials, "email or password incorrect")
		default:
			h.failSignIn(w, r, isForm, callback, http.StatusInternalServerError, SignInErrorServer, "internal server error")
		}
		return
	}

	token, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("failed to issue session", slog.Any("error", err))
		h.failSignIn(w, r, isForm, callback, http.StatusInternalServerError, SignInErrorServer, "internal server error")
		return
	}
	auth.SetSessionCookie(w, token, h.sessions.MaxAge(), h.cookies)

	target := h.homePath
	if callback != "" {
		target = callback
	}
	if isForm {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, SignInResponse{User: user.Public(), Redirect: target})
}

// failSignIn answers a rejected sign-in in the form the client expects
func (h *AuthHandler) failSignIn(w http.ResponseWriter, r *http.Request, isForm bool, callback string, status int, code, message string) {
	if isForm {
		h.redirectToSignIn(w, r, callback, code)
		return
	}
	switch status {
	case http.StatusUnauthorized:
		pkghttp.WriteUnauthorized(w, message)
	case http.StatusInternalServerError:
		pkghttp.WriteInternalError(w, message)
	default:
		pkghttp.WriteBadRequest(w, message)
	}
}

func (h *AuthHandler) redirectToSignIn(w http.ResponseWriter, r *http.Request, callback, code string) {
	q := url.Values{"error": {code}}
	if callback != "" {
		q.Set("callbackUrl", callback)
	}
	http.Redirect(w, r, h.signInPath+"?"+q.Encode(), http.StatusSeeOther)
}

// SignOut handles POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookies)
	if !pkghttp.IsJSONContentType(r) {
		http.Redirect(w, r, h.signInPath, http.StatusSeeOther)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// Session handles GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ReadSession(h.sessions, r, h.cookies)
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			meta := requestMeta(r, h.ipConfig)
			h.events.Log(security.EventSessionExpired, eventData(meta, "session token rejected"))
			auth.ClearSessionCookie(w, h.cookies)
		}
		pkghttp.WriteUnauthorized(w, "not signed in")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			auth.ClearSessionCookie(w, h.cookies)
			pkghttp.WriteUnauthorized(w, "not signed in")
			return
		}
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	public := user.Public()
	if h.avatars != nil && user.AvatarKey != nil {
		avatarURL, err := h.avatars.AvatarURL(r.Context(), *user.AvatarKey)
		if err != nil {
			h.logger.Warn("failed to presign avatar", slog.String("user_id", user.ID), slog.Any("error", err))
		} else {
			public.AvatarURL = avatarURL
		}
	}

	resp := SessionResponse{User: public}
	if claims.ExpiresAt != nil {
		resp.Expires = claims.ExpiresAt.Time
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
