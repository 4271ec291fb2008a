package errors

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antikraj/plugin-license-server1/internal/shared/testutil"
)

func TestSanitizeRequestBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contains []string
		absent   []string
	}{
		{
			name:     "redacts password",
			body:     `{"username":"admin","password":"hunter2"}`,
			contains: []string{`"password":"[REDACTED]"`, `"username":"admin"`},
			absent:   []string{"hunter2"},
		},
		{
			name:     "masks license keys",
			body:     `{"key":"ABCDEFGHIJKLMNOP","client_id":"srv1"}`,
			contains: []string{`"key":"ABCD****"`, `"client_id":"srv1"`},
			absent:   []string{"ABCDEFGHIJKLMNOP"},
		},
		{
			name:     "masks rename target",
			body:     `{"new_key":"NEWLICENSEKEY"}`,
			contains: []string{`"new_key":"NEWL****"`},
		},
		{
			name:     "non json omitted",
			body:     `key=ABCDEFGHIJKLMNOP`,
			contains: []string{"non-json"},
			absent:   []string{"ABCDEFGHIJKLMNOP"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeRequestBody([]byte(tt.body))
			for _, c := range tt.contains {
				assert.Contains(t, got, c)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, got, a)
			}
		})
	}
}

func TestErrorMiddleware_LogsFailedRequests(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	m := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

	var seenBody string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		seenBody = buf.String()
		w.WriteHeader(http.StatusConflict)
	})

	body := `{"key":"ABCDEFGHIJKLMNOP","client_id":"srv2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/release", strings.NewReader(body))
	rec := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, req)

	assert.Equal(t, body, seenBody, "handler still reads the full body")
	assert.Equal(t, http.StatusConflict, rec.Code)
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "request error")

	records := logs.GetRecordsByLevel(slog.LevelWarn)
	require.NotEmpty(t, records)
	assert.NotContains(t, records[len(records)-1].Attrs["request_body"], "ABCDEFGHIJKLMNOP")
}

func TestErrorMiddleware_SuccessNotLogged(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	m := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

	rec := httptest.NewRecorder()
	m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Zero(t, logs.Count())
}
