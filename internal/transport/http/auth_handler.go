package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "github.com/antikraj/plugin-license-server1/internal/errors"
	"github.com/antikraj/plugin-license-server1/internal/security"
	"github.com/antikraj/plugin-license-server1/internal/services"
	api "github.com/antikraj/plugin-license-server1/pkg/contracts/api/v1"
)

// AuthHandler exchanges admin credentials for a session token.
type AuthHandler struct {
	service      services.AuthService
	validator    Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service services.AuthService, validator Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "auth")),
	}
}

// Login handles POST /api/v1/admin/login. Credentials come from HTTP Basic
// auth when present, otherwise from the JSON body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if user, pass, ok := r.BasicAuth(); ok {
		req = api.LoginRequest{Username: user, Password: pass}
	} else if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.loginFailed(w, r, req.Username, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, resp)
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, user string, err error) {
	switch {
	case errors.Is(err, security.ErrAdminDisabled):
		h.errorHandler.HandleError(w, r, apierrors.ErrAdminDisabled)
	case errors.Is(err, security.ErrInvalidCredentials):
		h.logger.WarnContext(r.Context(), "admin login rejected", slog.String("username", user))
		w.Header().Set("WWW-Authenticate", `Basic realm="license-admin", charset="UTF-8"`)
		h.errorHandler.HandleError(w, r, apierrors.ErrInvalidCredentials)
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
