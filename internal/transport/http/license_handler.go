package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/antikraj/plugin-license-server1/internal/errors"
	"github.com/antikraj/plugin-license-server1/internal/license"
	"github.com/antikraj/plugin-license-server1/internal/services"
	api "github.com/antikraj/plugin-license-server1/pkg/contracts/api/v1"
)

// Validator checks decoded request structs against their validate tags.
type Validator interface {
	ValidateStruct(v interface{}) error
}

// LicenseHandler serves the client-facing verify and release endpoints.
type LicenseHandler struct {
	service      services.LicenseService
	validator    Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service services.LicenseService, validator Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "license")),
	}
}

// Routes returns a chi router for the client endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/verify", h.Verify)
	r.Post("/verify", h.Verify)
	r.Post("/release", h.Release)
	return r
}

// Verify handles GET and POST /api/v1/verify. Valid and denied outcomes are
// both 200; only bad input and store failures produce a problem response.
func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req api.VerifyRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req = api.VerifyRequest{
			Key:      q.Get("key"),
			ClientID: q.Get("client_id"),
			Scope:    q.Get("scope"),
		}
	} else if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, err := h.service.Verify(ctx, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Bool("license.valid", resp.Valid),
		attribute.String("license.reason", resp.Reason),
	)
	h.logger.DebugContext(ctx, "verify handled",
		slog.String("key", license.MaskKey(req.Key)),
		slog.Bool("valid", resp.Valid),
		slog.String("reason", resp.Reason),
		slog.Duration("latency", time.Since(start)),
	)

	render.JSON(w, r, resp)
}

// Release handles POST /api/v1/release.
func (h *LicenseHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req api.ReleaseRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, err := h.service.Release(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}
