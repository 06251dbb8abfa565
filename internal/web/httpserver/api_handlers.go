package httpserver

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/httpx"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/requestctx"
	custommw "github.com/aditya4232/AgentForge-XT-sub001/internal/web/httpserver/middleware"
)

type apiHandlers struct {
	authenticator custommw.Authenticator
	tokenCookie   string
	startedAt     time.Time
	now           func() time.Time
}

type healthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

type sessionUser struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Provider  string `json:"provider"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *sessionUser `json:"user"`
}

// Health reports liveness.
func (h *apiHandlers) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Uptime:    now.Sub(h.startedAt).Round(time.Second).String(),
		Timestamp: now.UTC().Format(time.RFC3339),
	})
}

// Session describes the verified provider session carried by the request.
func (h *apiHandlers) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Cache-Control", "no-store")

	token := custommw.RequestToken(r, h.tokenCookie)
	if token == "" {
		httpx.WriteProblem(ctx, w, httpx.Unauthenticated("no session token presented", custommw.ReasonMissingToken))
		return
	}

	user, err := h.authenticator.Authenticate(r, token)
	if err != nil || user == nil {
		reason := custommw.ReasonTokenInvalid
		var authErr *custommw.AuthError
		if errors.As(err, &authErr) && authErr.Reason != "" {
			reason = authErr.Reason
		}
		if reason == custommw.ReasonUnavailable {
			requestctx.Logger(ctx).Error("api: session verification unavailable", zap.Error(err))
			httpx.WriteProblem(ctx, w, httpx.Unavailable(reason, "session verification is temporarily unavailable"))
			return
		}
		requestctx.Logger(ctx).Info("api: session rejected", zap.String("reason", reason), zap.Error(err))
		httpx.WriteProblem(ctx, w, httpx.Unauthenticated("session token rejected", reason))
		return
	}

	requestctx.SetSubject(ctx, user.UID)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		User: &sessionUser{
			ID:        user.UID,
			Email:     user.Email,
			SessionID: user.SessionID,
			Provider:  user.Provider,
		},
	})
}
