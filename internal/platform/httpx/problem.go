// Package httpx writes the JSON bodies served under /api.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/requestctx"
)

// Problem is the error body of the session API. Reason carries the
// verification outcome so the browser can tell an expired session from a
// forged one.
type Problem struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// Unauthenticated is a 401 for a missing or rejected session token.
func Unauthenticated(message, reason string) Problem {
	return Problem{
		Code:    "unauthenticated",
		Message: message,
		Status:  http.StatusUnauthorized,
		Reason:  reason,
	}
}

// Unavailable is a 503 for when tokens cannot be checked at all.
func Unavailable(code, message string) Problem {
	return Problem{Code: code, Message: message, Status: http.StatusServiceUnavailable}
}

// Internal is the body written after a recovered panic.
func Internal() Problem {
	return Problem{
		Code:    "internal_server_error",
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
	}
}

// WriteProblem stamps p with the request and trace ids and writes it
// uncached.
func WriteProblem(ctx context.Context, w http.ResponseWriter, p Problem) {
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}
	p.Code = oneLine(p.Code, 80)
	p.Message = oneLine(p.Message, 512)
	p.Reason = oneLine(p.Reason, 80)
	if p.RequestID == "" {
		p.RequestID = oneLine(middleware.GetReqID(ctx), 80)
	}
	if p.TraceID == "" {
		p.TraceID = oneLine(requestctx.TraceID(ctx), 64)
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, p.Status, p)
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func oneLine(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
