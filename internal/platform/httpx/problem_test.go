package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/requestctx"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestWriteProblemStampsRequestAndTrace(t *testing.T) {
	t.Parallel()

	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-1")
	rec := httptest.NewRecorder()

	WriteProblem(ctx, rec, Unauthenticated("session\nrejected", "token_expired"))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	payload := decode(t, rec)
	require.Equal(t, "unauthenticated", payload["error"])
	require.Equal(t, "session  rejected", payload["message"])
	require.Equal(t, "token_expired", payload["reason"])
	require.EqualValues(t, http.StatusUnauthorized, payload["status"])
	require.Equal(t, "req-1", payload["request_id"])
	require.Equal(t, "trace-1", payload["trace_id"])
}

func TestWriteProblemOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteProblem(context.Background(), rec, Unavailable("verification_unavailable", strings.Repeat("x", 600)))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	payload := decode(t, rec)
	require.Equal(t, "verification_unavailable", payload["error"])
	require.Len(t, payload["message"], 512)
	require.NotContains(t, payload, "reason")
	require.NotContains(t, payload, "request_id")
	require.NotContains(t, payload, "trace_id")
}

func TestWriteProblemDefaultsStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteProblem(context.Background(), rec, Problem{Code: "boom"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	WriteProblem(context.Background(), rec, Internal())
	require.Equal(t, "internal_server_error", decode(t, rec)["error"])
}
