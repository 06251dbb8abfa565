package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://clerk.agentforge.test"

type recordingMetrics struct {
	mu      sync.Mutex
	records []verificationRecord
}

type verificationRecord struct {
	kind    string
	success bool
	reason  string
}

func (m *recordingMetrics) RecordVerification(_ context.Context, kind string, success bool, reason string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, verificationRecord{kind: kind, success: success, reason: reason})
}

func (m *recordingMetrics) last(t *testing.T) verificationRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.records)
	return m.records[len(m.records)-1]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// keyServer publishes a single signing key and counts fetches.
type keyServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests int
	failing  bool
}

func (s *keyServer) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *keyServer) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

type verifierFixture struct {
	key      *rsa.PrivateKey
	now      time.Time
	clock    *testClock
	verifier *SessionVerifier
	metrics  *recordingMetrics
	keys     *keyServer
}

func newVerifierFixture(t *testing.T, opts ...SessionVerifierOption) verifierFixture {
	t.Helper()
	return newVerifierFixtureWithCache(t, nil, opts...)
}

func newVerifierFixtureWithCache(t *testing.T, cacheOpts []JWKSOption, opts ...SessionVerifierOption) verifierFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk := jose.JSONWebKey{
		Key:       &key.PublicKey,
		KeyID:     "ins_1",
		Algorithm: jwt.SigningMethodRS256.Alg(),
		Use:       "sig",
	}

	keys := &keyServer{}
	keys.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys.mu.Lock()
		keys.requests++
		failing := keys.failing
		keys.mu.Unlock()
		if failing {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(keys.Close)

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	metrics := &recordingMetrics{}
	cache := NewJWKSCache(keys.URL, append([]JWKSOption{
		WithJWKSClock(clock.Now),
		WithoutJWKSBackgroundRefresh(),
	}, cacheOpts...)...)
	base := []SessionVerifierOption{
		WithVerifierClock(clock.Now),
		WithVerifierMetrics(metrics),
	}
	verifier := NewSessionVerifier(cache, testIssuer, append(base, opts...)...)

	return verifierFixture{
		key:      key,
		now:      clock.Now(),
		clock:    clock,
		verifier: verifier,
		metrics:  metrics,
		keys:     keys,
	}
}

func (f verifierFixture) sign(t *testing.T, kid string, mutate func(jwt.MapClaims)) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   "user_2abc",
		"sid":   "sess_123",
		"iss":   testIssuer,
		"azp":   "https://app.agentforge.test",
		"email": "ada@example.com",
		"iat":   float64(f.now.Add(-time.Minute).Unix()),
		"nbf":   float64(f.now.Add(-time.Minute).Unix()),
		"exp":   float64(f.now.Add(time.Minute).Unix()),
	}
	if mutate != nil {
		mutate(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func TestSessionVerifierVerifySuccess(t *testing.T) {
	f := newVerifierFixture(t, WithAuthorizedParties("https://app.agentforge.test/"))

	claims, err := f.verifier.Verify(context.Background(), f.sign(t, "ins_1", nil))
	require.NoError(t, err)
	require.Equal(t, "user_2abc", claims.Subject)
	require.Equal(t, "sess_123", claims.SessionID)
	require.Equal(t, testIssuer, claims.Issuer)
	require.Equal(t, "https://app.agentforge.test", claims.AuthorizedParty)
	require.Equal(t, "ada@example.com", claims.Email)
	require.Equal(t, f.now.Add(time.Minute).Unix(), claims.ExpiresAt.Unix())

	record := f.metrics.last(t)
	require.Equal(t, verificationRecord{kind: "session", success: true, reason: "ok"}, record)
}

func TestSessionVerifierRejections(t *testing.T) {
	tests := []struct {
		name    string
		kid     string
		mutate  func(jwt.MapClaims)
		wantErr error
		reason  string
	}{
		{
			name:    "expired",
			kid:     "ins_1",
			mutate:  func(c jwt.MapClaims) { c["exp"] = float64(time.Unix(1_700_000_000, 0).Add(-time.Minute).Unix()) },
			wantErr: ErrTokenExpired,
			reason:  "token_expired",
		},
		{
			name:    "issuer mismatch",
			kid:     "ins_1",
			mutate:  func(c jwt.MapClaims) { c["iss"] = "https://evil.example" },
			wantErr: ErrIssuerMismatch,
			reason:  "issuer_mismatch",
		},
		{
			name:    "unauthorized party",
			kid:     "ins_1",
			mutate:  func(c jwt.MapClaims) { c["azp"] = "https://phish.example" },
			wantErr: ErrUnauthorizedParty,
			reason:  "unauthorized_party",
		},
		{
			name:    "not yet valid",
			kid:     "ins_1",
			mutate:  func(c jwt.MapClaims) { c["nbf"] = float64(time.Unix(1_700_000_000, 0).Add(time.Hour).Unix()) },
			wantErr: ErrTokenInvalid,
			reason:  "token_not_yet_valid",
		},
		{
			name:    "missing subject",
			kid:     "ins_1",
			mutate:  func(c jwt.MapClaims) { delete(c, "sub") },
			wantErr: ErrTokenInvalid,
			reason:  "token_invalid",
		},
		{
			name:    "unknown kid",
			kid:     "ins_rotated",
			wantErr: ErrJWKSKeyNotFound,
			reason:  "key_not_found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newVerifierFixture(t, WithAuthorizedParties("https://app.agentforge.test"))

			_, err := f.verifier.Verify(context.Background(), f.sign(t, tc.kid, tc.mutate))
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			require.Equal(t, tc.reason, f.metrics.last(t).reason)
		})
	}
}

func TestSessionVerifierLeewayAcceptsSkew(t *testing.T) {
	f := newVerifierFixture(t, WithLeeway(5*time.Second))

	token := f.sign(t, "ins_1", func(c jwt.MapClaims) {
		c["exp"] = float64(f.now.Add(-2 * time.Second).Unix())
	})
	_, err := f.verifier.Verify(context.Background(), token)
	require.NoError(t, err)
}

func TestSessionVerifierRejectsTamperedAndMissingTokens(t *testing.T) {
	f := newVerifierFixture(t)

	_, err := f.verifier.Verify(context.Background(), "  ")
	require.ErrorIs(t, err, ErrTokenMissing)

	token := f.sign(t, "ins_1", nil)
	tampered := token[:len(token)-4] + "AAAA"
	_, err = f.verifier.Verify(context.Background(), tampered)
	require.ErrorIs(t, err, ErrTokenInvalid)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user", "iss": testIssuer})
	hs.Header["kid"] = "ins_1"
	signed, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = f.verifier.Verify(context.Background(), signed)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSessionVerifierJWKSUnavailable(t *testing.T) {
	f := newVerifierFixture(t)
	token := f.sign(t, "ins_1", nil)
	f.keys.Close()

	_, err := f.verifier.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrJWKSFetchFailed)
	require.Equal(t, "jwks_unavailable", f.metrics.last(t).reason)
}

func TestJWKSCacheKeyCachesKeys(t *testing.T) {
	f := newVerifierFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.verifier.Verify(context.Background(), f.sign(t, "ins_1", nil))
		require.NoError(t, err)
	}

	require.Equal(t, 1, f.keys.fetches())
}

func longLived(f verifierFixture) func(jwt.MapClaims) {
	return func(c jwt.MapClaims) {
		c["exp"] = float64(f.now.Add(24 * time.Hour).Unix())
	}
}

func TestJWKSCacheThrottlesUnknownKidRefetch(t *testing.T) {
	f := newVerifierFixture(t)
	ctx := context.Background()

	_, err := f.verifier.Verify(ctx, f.sign(t, "ins_1", longLived(f)))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := f.verifier.Verify(ctx, f.sign(t, fmt.Sprintf("bogus-%d", i), longLived(f)))
		require.ErrorIs(t, err, ErrJWKSKeyNotFound)
	}
	require.Equal(t, 1, f.keys.fetches())

	f.clock.Advance(2 * time.Minute)
	_, err = f.verifier.Verify(ctx, f.sign(t, "ins_rotated", longLived(f)))
	require.ErrorIs(t, err, ErrJWKSKeyNotFound)
	require.Equal(t, 2, f.keys.fetches(), "one refetch per cooldown window")

	_, err = f.verifier.Verify(ctx, f.sign(t, "ins_rotated", longLived(f)))
	require.ErrorIs(t, err, ErrJWKSKeyNotFound)
	require.Equal(t, 2, f.keys.fetches())

	_, err = f.verifier.Verify(ctx, f.sign(t, "ins_1", longLived(f)))
	require.NoError(t, err)
}

func TestJWKSCacheServesStaleKeysWhileProviderDown(t *testing.T) {
	f := newVerifierFixtureWithCache(t, []JWKSOption{WithJWKSMaxStale(time.Hour)})
	ctx := context.Background()
	token := f.sign(t, "ins_1", longLived(f))

	_, err := f.verifier.Verify(ctx, token)
	require.NoError(t, err)
	require.Equal(t, 1, f.keys.fetches())

	f.keys.setFailing(true)
	f.clock.Advance(90 * time.Minute)

	_, err = f.verifier.Verify(ctx, token)
	require.NoError(t, err, "expired keys keep verifying inside the stale window")
	require.Equal(t, 2, f.keys.fetches())

	_, err = f.verifier.Verify(ctx, token)
	require.NoError(t, err)
	require.Equal(t, 2, f.keys.fetches(), "retries wait for the cooldown")

	f.clock.Advance(time.Hour)
	_, err = f.verifier.Verify(ctx, token)
	require.ErrorIs(t, err, ErrJWKSFetchFailed)

	f.keys.setFailing(false)
	f.clock.Advance(2 * time.Minute)
	_, err = f.verifier.Verify(ctx, token)
	require.NoError(t, err)
}

func TestSessionVerifierRequiresAzpWhenPartiesConfigured(t *testing.T) {
	withoutAzp := func(c jwt.MapClaims) { delete(c, "azp") }

	restricted := newVerifierFixture(t, WithAuthorizedParties("https://app.agentforge.test"))
	_, err := restricted.verifier.Verify(context.Background(), restricted.sign(t, "ins_1", withoutAzp))
	require.ErrorIs(t, err, ErrUnauthorizedParty)
	require.Equal(t, "unauthorized_party", restricted.metrics.last(t).reason)

	open := newVerifierFixture(t)
	claims, err := open.verifier.Verify(context.Background(), open.sign(t, "ins_1", withoutAzp))
	require.NoError(t, err)
	require.Empty(t, claims.AuthorizedParty)
}

func TestParseMaxAge(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Hour, parseMaxAge("public, max-age=3600, must-revalidate"))
	require.Zero(t, parseMaxAge("no-cache"))
	require.Zero(t, parseMaxAge("max-age=abc"))
}
