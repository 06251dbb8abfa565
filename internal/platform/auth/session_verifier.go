package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenMissing indicates an empty session token.
	ErrTokenMissing = errors.New("auth: session token missing")
	// ErrTokenInvalid covers malformed tokens and signature failures.
	ErrTokenInvalid = errors.New("auth: session token invalid")
	// ErrTokenExpired indicates the token exp lies in the past beyond the leeway.
	ErrTokenExpired = errors.New("auth: session token expired")
	// ErrIssuerMismatch indicates the iss claim does not match the provider.
	ErrIssuerMismatch = errors.New("auth: session token issuer mismatch")
	// ErrUnauthorizedParty indicates the azp claim is not an authorised origin.
	ErrUnauthorizedParty = errors.New("auth: session token authorized party rejected")
)

// MetricsRecorder records verification outcomes for observability.
type MetricsRecorder interface {
	RecordVerification(ctx context.Context, kind string, success bool, reason string, duration time.Duration)
}

// MetricsRecorderFunc adapts a function to MetricsRecorder.
type MetricsRecorderFunc func(context.Context, string, bool, string, time.Duration)

// RecordVerification implements MetricsRecorder.
func (f MetricsRecorderFunc) RecordVerification(ctx context.Context, kind string, success bool, reason string, duration time.Duration) {
	if f != nil {
		f(ctx, kind, success, reason, duration)
	}
}

const verificationKind = "session"

// SessionClaims captures the verified contents of a provider session token.
type SessionClaims struct {
	Subject         string
	SessionID       string
	Issuer          string
	AuthorizedParty string
	Email           string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	Claims          map[string]any
}

// SessionVerifier validates provider-issued session JWTs against the JWKS.
type SessionVerifier struct {
	keys              *JWKSCache
	issuer            string
	authorizedParties map[string]struct{}
	leeway            time.Duration
	now               func() time.Time
	logger            Logger
	metrics           MetricsRecorder
}

// SessionVerifierOption customises the verifier.
type SessionVerifierOption func(*SessionVerifier)

// NewSessionVerifier constructs a verifier for tokens issued by issuer.
func NewSessionVerifier(keys *JWKSCache, issuer string, opts ...SessionVerifierOption) *SessionVerifier {
	v := &SessionVerifier{
		keys:   keys,
		issuer: strings.TrimRight(strings.TrimSpace(issuer), "/"),
		now:    time.Now,
		logger: discardLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// WithAuthorizedParties restricts the accepted azp claim values. Once a
// list is set, tokens without azp are rejected; an empty list accepts any.
func WithAuthorizedParties(parties ...string) SessionVerifierOption {
	return func(v *SessionVerifier) {
		for _, party := range parties {
			party = strings.TrimRight(strings.TrimSpace(party), "/")
			if party == "" {
				continue
			}
			if v.authorizedParties == nil {
				v.authorizedParties = make(map[string]struct{})
			}
			v.authorizedParties[party] = struct{}{}
		}
	}
}

// WithLeeway tolerates clock skew when checking exp and nbf.
func WithLeeway(d time.Duration) SessionVerifierOption {
	return func(v *SessionVerifier) {
		if d >= 0 {
			v.leeway = d
		}
	}
}

// WithVerifierClock injects a custom clock.
func WithVerifierClock(now func() time.Time) SessionVerifierOption {
	return func(v *SessionVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithVerifierLogger overrides the verifier logger.
func WithVerifierLogger(logger Logger) SessionVerifierOption {
	return func(v *SessionVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithVerifierMetrics sets the metrics recorder.
func WithVerifierMetrics(recorder MetricsRecorder) SessionVerifierOption {
	return func(v *SessionVerifier) {
		v.metrics = recorder
	}
}

// Verify checks the token signature and standard claims and returns the
// verified claims.
func (v *SessionVerifier) Verify(ctx context.Context, token string) (*SessionClaims, error) {
	start := v.now()
	claims, reason, err := v.verify(ctx, strings.TrimSpace(token))
	if err != nil {
		v.logger.Printf("auth: session verification failed (%s): %v", reason, err)
		v.record(ctx, false, reason, start)
		return nil, err
	}
	v.record(ctx, true, "ok", start)
	return claims, nil
}

func (v *SessionVerifier) verify(ctx context.Context, token string) (*SessionClaims, string, error) {
	if token == "" {
		return nil, "token_missing", ErrTokenMissing
	}
	if v == nil || v.keys == nil {
		return nil, "jwks_unavailable", fmt.Errorf("%w: verifier not configured", ErrJWKSFetchFailed)
	}

	// Time-based claims are checked below against the injected clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	mapClaims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, mapClaims, v.keys.Keyfunc(ctx)); err != nil {
		switch {
		case errors.Is(err, ErrJWKSFetchFailed):
			return nil, "jwks_unavailable", err
		case errors.Is(err, ErrJWKSKeyNotFound):
			return nil, "key_not_found", err
		default:
			return nil, "token_invalid", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
	}

	now := v.now()
	expiresAt, ok := numericDate(mapClaims["exp"])
	if !ok {
		return nil, "token_invalid", fmt.Errorf("%w: exp claim missing", ErrTokenInvalid)
	}
	if !now.Before(expiresAt.Add(v.leeway)) {
		return nil, "token_expired", ErrTokenExpired
	}
	if notBefore, ok := numericDate(mapClaims["nbf"]); ok && now.Add(v.leeway).Before(notBefore) {
		return nil, "token_not_yet_valid", fmt.Errorf("%w: token not valid yet", ErrTokenInvalid)
	}

	issuer := strings.TrimRight(claimString(mapClaims, "iss"), "/")
	if v.issuer != "" && issuer != v.issuer {
		return nil, "issuer_mismatch", fmt.Errorf("%w: got %q", ErrIssuerMismatch, issuer)
	}

	azp := strings.TrimRight(claimString(mapClaims, "azp"), "/")
	if len(v.authorizedParties) > 0 {
		if azp == "" {
			return nil, "unauthorized_party", fmt.Errorf("%w: azp claim missing", ErrUnauthorizedParty)
		}
		if _, ok := v.authorizedParties[azp]; !ok {
			return nil, "unauthorized_party", fmt.Errorf("%w: %q", ErrUnauthorizedParty, azp)
		}
	}

	subject := claimString(mapClaims, "sub")
	if subject == "" {
		return nil, "token_invalid", fmt.Errorf("%w: sub claim missing", ErrTokenInvalid)
	}

	issuedAt, _ := numericDate(mapClaims["iat"])
	out := &SessionClaims{
		Subject:         subject,
		SessionID:       claimString(mapClaims, "sid"),
		Issuer:          issuer,
		AuthorizedParty: azp,
		Email:           claimString(mapClaims, "email"),
		IssuedAt:        issuedAt,
		ExpiresAt:       expiresAt,
		Claims:          make(map[string]any, len(mapClaims)),
	}
	for key, value := range mapClaims {
		out.Claims[key] = value
	}
	return out, "ok", nil
}

func (v *SessionVerifier) record(ctx context.Context, success bool, reason string, start time.Time) {
	if v == nil || v.metrics == nil {
		return
	}
	v.metrics.RecordVerification(ctx, verificationKind, success, reason, v.now().Sub(start))
}

func claimString(claims jwt.MapClaims, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

func numericDate(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	default:
		return time.Time{}, false
	}
}
