package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/auth"
)

// SessionTokenVerifier verifies provider session JWTs.
type SessionTokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.SessionClaims, error)
}

// ClerkAuthenticator validates hosted-widget session tokens against the
// provider JWKS.
type ClerkAuthenticator struct {
	verifier SessionTokenVerifier
}

// NewClerkAuthenticator constructs an Authenticator backed by verifier.
func NewClerkAuthenticator(verifier SessionTokenVerifier) *ClerkAuthenticator {
	if verifier == nil {
		panic("session token verifier is required")
	}
	return &ClerkAuthenticator{verifier: verifier}
}

// Authenticate verifies token and maps the claims onto a User.
func (c *ClerkAuthenticator) Authenticate(r *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	claims, err := c.verifier.Verify(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return nil, NewAuthError(ReasonTokenExpired, err)
		case errors.Is(err, auth.ErrJWKSFetchFailed):
			return nil, NewAuthError(ReasonUnavailable, err)
		default:
			return nil, NewAuthError(ReasonTokenInvalid, err)
		}
	}
	return &User{
		UID:       claims.Subject,
		Email:     claims.Email,
		SessionID: claims.SessionID,
		Provider:  "clerk",
		Token:     token,
	}, nil
}

// ErrTokenExpired is returned by Firebase verifiers for expired ID tokens.
var ErrTokenExpired = errors.New("firebase token expired")

// FirebaseTokenVerifier abstracts the Firebase Admin SDK client for testability.
type FirebaseTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseAuthenticator validates Firebase ID tokens and maps them onto a User.
type FirebaseAuthenticator struct {
	verifier FirebaseTokenVerifier
}

// NewFirebaseAuthenticator constructs an Authenticator backed by the provided verifier.
func NewFirebaseAuthenticator(verifier FirebaseTokenVerifier) *FirebaseAuthenticator {
	if verifier == nil {
		panic("firebase token verifier is required")
	}
	return &FirebaseAuthenticator{verifier: verifier}
}

// Authenticate verifies the supplied ID token using Firebase and builds a User object.
func (f *FirebaseAuthenticator) Authenticate(r *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}

	verified, err := f.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		switch {
		case firebaseauth.IsIDTokenExpired(err), errors.Is(err, ErrTokenExpired):
			return nil, NewAuthError(ReasonTokenExpired, err)
		default:
			return nil, NewAuthError(ReasonTokenInvalid, err)
		}
	}

	email, _ := verified.Claims["email"].(string)
	return &User{
		UID:      verified.UID,
		Email:    strings.TrimSpace(email),
		Provider: "firebase",
		Token:    token,
	}, nil
}

// DevAuthenticator accepts any non-empty token as the user id. It is only
// wired in the local environment.
func DevAuthenticator() Authenticator {
	return devAuthenticator{}
}

type devAuthenticator struct{}

func (devAuthenticator) Authenticate(_ *http.Request, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	return &User{UID: token, Provider: "dev", Token: token}, nil
}
