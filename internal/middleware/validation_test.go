package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/antikraj/plugin-license-server1/internal/errors"
	"github.com/antikraj/plugin-license-server1/internal/shared/testutil"
	api "github.com/antikraj/plugin-license-server1/pkg/contracts/api/v1"
)

func newValidation(t *testing.T) *ValidationMiddleware {
	logger, _ := testutil.NewTestLogger(t)
	return NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false))
}

func TestValidateStruct(t *testing.T) {
	v := newValidation(t)

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.ValidateStruct(&api.VerifyRequest{Key: "ABCDEF", ClientID: "srv1"}))
	})

	t.Run("missing fields use json names", func(t *testing.T) {
		err := v.ValidateStruct(&api.VerifyRequest{})
		require.Error(t, err)

		var apiErr *apierrors.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

		details, ok := apiErr.Details.(apierrors.ValidationErrors)
		require.True(t, ok)
		require.Len(t, details.Errors, 2)
		assert.Equal(t, "key", details.Errors[0].Field)
		assert.Equal(t, "key is required", details.Errors[0].Message)
		assert.Equal(t, "client_id", details.Errors[1].Field)
	})

	t.Run("days below one", func(t *testing.T) {
		err := v.ValidateStruct(&api.CreateLicenseRequest{Owner: "bob", Days: -1})
		require.Error(t, err)

		var apiErr *apierrors.APIError
		require.True(t, errors.As(err, &apiErr))
		details := apiErr.Details.(apierrors.ValidationErrors)
		assert.Equal(t, "days", details.Errors[0].Field)
		assert.Equal(t, "days must be at least 1", details.Errors[0].Message)
	})

	t.Run("days above the cap", func(t *testing.T) {
		err := v.ValidateStruct(&api.CreateLicenseRequest{Owner: "bob", Days: 3_000_000})
		require.Error(t, err)

		var apiErr *apierrors.APIError
		require.True(t, errors.As(err, &apiErr))
		details := apiErr.Details.(apierrors.ValidationErrors)
		assert.Equal(t, "days", details.Errors[0].Field)
	})

	t.Run("string length", func(t *testing.T) {
		err := v.ValidateStruct(&api.VerifyRequest{Key: strings.Repeat("A", 200), ClientID: "x"})
		var apiErr *apierrors.APIError
		require.True(t, errors.As(err, &apiErr))
		details := apiErr.Details.(apierrors.ValidationErrors)
		assert.Equal(t, "key must be at most 128 characters", details.Errors[0].Message)
	})
}

func TestValidateRequest(t *testing.T) {
	v := newValidation(t)

	var gotBody string
	h := v.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid json passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"key":"ABC"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"key":"ABC"}`, gotBody)
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"key":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_JSON")
	})

	t.Run("too large", func(t *testing.T) {
		body := strings.Repeat("a", DefaultMaxBodySize+1)
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("get skipped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?key=A", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestContentTypeValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := ContentTypeValidator(apierrors.NewErrorHandler(logger, false), "application/json")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("key=A"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Empty bodies carry no content type.
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
