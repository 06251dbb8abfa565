package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/requestctx"
	appsession "github.com/aditya4232/AgentForge-XT-sub001/internal/web/session"
)

type authContextKey string

const userContextKey authContextKey = "auth.user"

// User represents the visitor resolved from a provider session token.
type User struct {
	UID       string
	Email     string
	SessionID string
	Provider  string
	Token     string
}

// Authenticator resolves a provider session token into a User.
type Authenticator interface {
	Authenticate(r *http.Request, token string) (*User, error)
}

// ErrUnauthorized is returned when authentication fails.
var ErrUnauthorized = errors.New("unauthorized")

// AuthError contains reason codes for failed authentication attempts.
type AuthError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError constructs an AuthError with the provided reason.
func NewAuthError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

const (
	// ReasonMissingToken indicates a request without credentials.
	ReasonMissingToken = "missing_token"
	// ReasonTokenInvalid indicates a malformed or invalid token.
	ReasonTokenInvalid = "token_invalid"
	// ReasonTokenExpired indicates an expired token; the browser SDK refreshes it on the sign-in page.
	ReasonTokenExpired = "token_expired"
	// ReasonUnavailable indicates the provider keys could not be fetched.
	ReasonUnavailable = "verification_unavailable"
)

// GateConfig lists the paths the session gate treats specially.
type GateConfig struct {
	// SignInPath receives anonymous visitors of protected pages.
	SignInPath string
	// AfterAuthPath receives signed-in visitors of auth pages.
	AfterAuthPath string
	// AuthPrefixes are the sign-in/sign-up pages including their nested widget steps.
	AuthPrefixes []string
	// PublicPaths are reachable without a session.
	PublicPaths []string
	// TokenCookie names the cookie the provider SDK stores its session token in.
	TokenCookie string
}

// Gate resolves the provider session on every page request and enforces
// the redirect rules: signed-in visitors skip the auth pages and anonymous
// visitors of protected pages are sent to sign in, remembering where they
// were going.
func Gate(authenticator Authenticator, cfg GateConfig) func(http.Handler) http.Handler {
	if authenticator == nil {
		panic("authenticator is required")
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/sign-in"
	}
	if cfg.AfterAuthPath == "" {
		cfg.AfterAuthPath = "/dashboard"
	}
	public := make(map[string]struct{}, len(cfg.PublicPaths))
	for _, path := range cfg.PublicPaths {
		public[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := requestctx.Logger(ctx)
			authPage := matchesPrefix(r.URL.Path, cfg.AuthPrefixes)
			_, isPublic := public[r.URL.Path]

			user, reason, err := resolveUser(r, authenticator, cfg.TokenCookie)
			sess, hasSession := SessionFromContext(ctx)

			if user != nil {
				requestctx.SetSubject(ctx, user.UID)
				if hasSession {
					sess.SetUser(&appsession.User{ID: user.UID, Email: user.Email, Provider: user.Provider})
				}
				if authPage {
					Redirect(w, r, cfg.AfterAuthPath, http.StatusFound)
					return
				}
				next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user)))
				return
			}

			if reason != ReasonMissingToken {
				logger.Info("auth: session rejected", zap.String("reason", reason), zap.Error(err))
			}
			if hasSession {
				sess.SetUser(nil)
			}
			if authPage || isPublic {
				next.ServeHTTP(w, r)
				return
			}

			if hasSession && r.Method == http.MethodGet && !IsHTMXRequest(ctx) {
				sess.SetReturnTo(r.URL.RequestURI())
			}
			handleUnauthorized(w, r, cfg.SignInPath, reason)
		})
	}
}

// ContextWithUser attaches the user to ctx.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user if present.
func UserFromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok && user != nil
}

// RequestToken extracts the provider session token from the Authorization
// header or the token cookie.
func RequestToken(r *http.Request, cookieName string) string {
	if token := parseBearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return cookieToken(r, cookieName)
}

func resolveUser(r *http.Request, authenticator Authenticator, cookieName string) (*User, string, error) {
	token := RequestToken(r, cookieName)
	if token == "" {
		return nil, ReasonMissingToken, ErrUnauthorized
	}
	user, err := authenticator.Authenticate(r, token)
	if err == nil && user != nil {
		return user, "", nil
	}
	reason := ReasonTokenInvalid
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Reason != "" {
		reason = authErr.Reason
	}
	if err == nil {
		err = ErrUnauthorized
	}
	return nil, reason, err
}

func parseBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func cookieToken(r *http.Request, cookieName string) string {
	if cookieName == "" {
		cookieName = "__session"
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	val := strings.TrimSpace(c.Value)
	if bearer := parseBearerToken(val); bearer != "" {
		return bearer
	}
	return val
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func handleUnauthorized(w http.ResponseWriter, r *http.Request, signInPath, reason string) {
	target := signInPath
	if reason == ReasonTokenExpired {
		if u, err := url.Parse(signInPath); err == nil {
			q := u.Query()
			q.Set("reason", "expired")
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}

	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Redirect sends a browser redirect or, for htmx requests, an HX-Redirect header.
func Redirect(w http.ResponseWriter, r *http.Request, target string, status int) {
	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, status)
}
