package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/antikraj/plugin-license-server1/internal/errors"
	"github.com/antikraj/plugin-license-server1/internal/services"
	api "github.com/antikraj/plugin-license-server1/pkg/contracts/api/v1"
)

// Report content types.
const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// AdminHandler serves the privileged license management endpoints. The
// routes expect AdminAuth to have run.
type AdminHandler struct {
	service      services.AdminService
	validator    Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
	now          func() time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service services.AdminService, validator Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "admin")),
		now:          time.Now,
	}
}

// Routes returns a chi router for the admin endpoints.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/licenses", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
			r.Post("/extend", h.Extend)
			r.Post("/expire", h.Expire)
			r.Post("/unbind", h.Unbind)
			r.Post("/rename", h.Rename)
		})
	})
	r.Get("/export", h.Export)
	r.Get("/report.xlsx", h.Report(services.ReportXLSX))
	r.Get("/report.csv", h.Report(services.ReportCSV))

	return r
}

// Create handles POST /licenses
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req api.CreateLicenseRequest
	if !h.decode(w, r, &req) {
		return
	}

	dto, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", r.URL.Path+"/"+dto.Key)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, dto)
}

// Extend handles POST /licenses/{key}/extend. days comes from the query
// string or the JSON body.
func (h *AdminHandler) Extend(w http.ResponseWriter, r *http.Request) {
	req := api.ExtendRequest{Days: api.DaysValue(r.URL.Query().Get("days"))}
	if req.Days == "" && !h.decodeOptional(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	dto, err := h.service.Extend(r.Context(), chi.URLParam(r, "key"), string(req.Days))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

// Expire handles POST /licenses/{key}/expire
func (h *AdminHandler) Expire(w http.ResponseWriter, r *http.Request) {
	dto, err := h.service.Expire(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

// Unbind handles POST /licenses/{key}/unbind
func (h *AdminHandler) Unbind(w http.ResponseWriter, r *http.Request) {
	dto, err := h.service.Unbind(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

// Rename handles POST /licenses/{key}/rename
func (h *AdminHandler) Rename(w http.ResponseWriter, r *http.Request) {
	req := api.RenameRequest{NewKey: r.URL.Query().Get("new_key")}
	if req.NewKey == "" && !h.decodeOptional(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, err := h.service.Rename(r.Context(), chi.URLParam(r, "key"), req.NewKey)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// Delete handles DELETE /licenses/{key}
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /licenses/{key}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	dto, err := h.service.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

// List handles GET /licenses
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// Export handles GET /export. The body is the stored snapshot unchanged.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Export(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", attachment("licenses", h.now(), "json"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export", slog.String("error", err.Error()))
	}
}

// Report returns a handler rendering every license in format. The report is
// buffered so a rendering failure can still produce a problem response.
func (h *AdminHandler) Report(format string) http.HandlerFunc {
	contentType := contentTypeXLSX
	if format == services.ReportCSV {
		contentType = contentTypeCSV
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := h.service.Report(r.Context(), &buf, format); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Content-Disposition", attachment("licenses", h.now(), format))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			h.logger.WarnContext(r.Context(), "failed to write report",
				slog.String("format", format),
				slog.String("error", err.Error()),
			)
		}
	}
}

// decode reads a required JSON body and validates it.
func (h *AdminHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}
	if err := h.validator.ValidateStruct(v); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

// decodeOptional reads a JSON body when one is present. Validation is left
// to the caller.
func (h *AdminHandler) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := render.DecodeJSON(r.Body, v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
	return false
}

func attachment(name string, at time.Time, ext string) string {
	return fmt.Sprintf(`attachment; filename="%s-%s.%s"`, name, at.UTC().Format("20060102-150405"), ext)
}
