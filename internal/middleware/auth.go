package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/antikraj/plugin-license-server1/internal/errors"
	"github.com/antikraj/plugin-license-server1/internal/license"
	"github.com/antikraj/plugin-license-server1/internal/security"
)

// CredentialChecker verifies admin username/password pairs.
type CredentialChecker interface {
	Authenticate(user, password string) (string, error)
}

// TokenValidator verifies admin session tokens.
type TokenValidator interface {
	Validate(raw string) (string, error)
}

// AdminAuth admits requests carrying either HTTP Basic admin credentials or a
// Bearer session token, and marks the request context with license.WithAdmin.
// Browsers cannot set headers on websocket upgrades, so those may pass the
// token as the access_token query parameter.
func AdminAuth(creds CredentialChecker, tokens TokenValidator, handler *apierrors.ErrorHandler, logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "admin_auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			name, err := authenticate(r, creds, tokens)
			if err != nil {
				logger.WarnContext(ctx, "admin request rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", clientIP(r)),
					slog.String("error", err.Error()),
				)
				w.Header().Set("WWW-Authenticate", `Basic realm="license-admin", charset="UTF-8"`)
				handler.HandleError(w, r, authProblem(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(license.WithAdmin(ctx, name)))
		})
	}
}

func authenticate(r *http.Request, creds CredentialChecker, tokens TokenValidator) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if isWebSocketUpgrade(r) {
			if token := r.URL.Query().Get("access_token"); token != "" {
				return tokens.Validate(token)
			}
		}
		return "", errMissingAuth
	}

	scheme, value, _ := strings.Cut(header, " ")
	switch {
	case strings.EqualFold(scheme, "Bearer"):
		return tokens.Validate(strings.TrimSpace(value))
	case strings.EqualFold(scheme, "Basic"):
		user, pass, ok := r.BasicAuth()
		if !ok {
			return "", errMalformedAuth
		}
		return creds.Authenticate(user, pass)
	default:
		return "", errMalformedAuth
	}
}

var (
	errMissingAuth   = errors.New("missing authorization")
	errMalformedAuth = errors.New("malformed authorization header")
)

func authProblem(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, security.ErrAdminDisabled):
		return apierrors.ErrAdminDisabled
	case errors.Is(err, security.ErrInvalidCredentials):
		return apierrors.ErrInvalidCredentials
	default:
		return apierrors.ErrUnauthenticated
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// AuditLog records every admin request with the acting admin and outcome.
// It must run after AdminAuth.
func AuditLog(logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "audit"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			actor, _ := license.AdminFromContext(r.Context())
			logger.InfoContext(r.Context(), "admin request",
				slog.String("actor", actor),
				slog.String("method", r.Method),
				slog.String("route", routePattern(r)),
				slog.Int("status", ww.Status()),
				slog.String("remote_addr", clientIP(r)),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
