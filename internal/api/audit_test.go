package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func TestAuditMiddleware_LogsMutatingRequest(t *testing.T) {
	var buf bytes.Buffer
	h := AuditMiddleware(auditTestLogger(&buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"mode":"AUTO"}`, string(body), "body must be restored for the handler")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mode", strings.NewReader(`{"mode":"AUTO"}`))
	req.SetBasicAuth("operator", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "control API audit", entry["msg"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/api/v1/mode", entry["path"])
	assert.Equal(t, "operator", entry["user"])
	assert.Equal(t, `{"mode":"AUTO"}`, entry["body_summary"])
	assert.Equal(t, float64(http.StatusOK), entry["response_status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestAuditMiddleware_SkipsReads(t *testing.T) {
	var buf bytes.Buffer
	h := AuditMiddleware(auditTestLogger(&buf), okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, buf.String())
}

func TestAuditMiddleware_TruncatesLargeBody(t *testing.T) {
	var buf bytes.Buffer
	h := AuditMiddleware(auditTestLogger(&buf), okHandler())

	large := strings.Repeat("x", maxAuditBodyBytes+100)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mode", strings.NewReader(large))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	summary, _ := entry["body_summary"].(string)
	assert.True(t, strings.HasSuffix(summary, "...(truncated)"))
	assert.Len(t, summary, maxAuditBodyBytes+len("...(truncated)"))
}

func TestAuditMiddleware_CapturesErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	h := AuditMiddleware(auditTestLogger(&buf), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusConflict)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/emergency", strings.NewReader(`{}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(http.StatusConflict), entry["response_status"])
}
