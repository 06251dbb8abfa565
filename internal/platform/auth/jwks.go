package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
)

var (
	// ErrJWKSKeyNotFound means the token names a kid the provider does not publish.
	ErrJWKSKeyNotFound = errors.New("auth: jwks key not found")
	// ErrJWKSFetchFailed means no usable key set could be obtained from the provider.
	ErrJWKSFetchFailed = errors.New("auth: jwks fetch failed")
)

// Logger is the printf-style sink used by the verifier and key cache.
type Logger interface {
	Printf(format string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

const (
	defaultJWKSTTL              = 15 * time.Minute
	defaultJWKSFetchTimeout     = 5 * time.Second
	defaultJWKSRotationCooldown = time.Minute
	defaultJWKSMaxStale         = time.Hour
)

// keySnapshot is one successfully fetched key set.
type keySnapshot struct {
	keys       map[string]any
	fetchedAt  time.Time
	freshUntil time.Time
}

func (s keySnapshot) empty() bool { return len(s.keys) == 0 }

func (s keySnapshot) fresh(now time.Time) bool {
	return !s.empty() && now.Before(s.freshUntil)
}

// usable reports whether the snapshot may still serve after freshUntil
// because the provider cannot be reached.
func (s keySnapshot) usable(now time.Time, maxStale time.Duration) bool {
	return !s.empty() && now.Before(s.freshUntil.Add(maxStale))
}

// pastHalfLife is when a background refresh starts.
func (s keySnapshot) pastHalfLife(now time.Time) bool {
	if s.empty() {
		return false
	}
	half := s.fetchedAt.Add(s.freshUntil.Sub(s.fetchedAt) / 2)
	return !now.Before(half)
}

// JWKSCache holds the provider's session-token signing keys.
//
// Keys are refetched when the advertised validity runs out and, at most once
// per rotation cooldown, when a token names an unknown kid. A failed refetch
// keeps serving the previous key set for up to the max-stale window, retrying
// at most once per cooldown.
type JWKSCache struct {
	url    string
	client *http.Client
	logger Logger
	now    func() time.Time

	ttl              time.Duration
	fetchTimeout     time.Duration
	rotationCooldown time.Duration
	maxStale         time.Duration
	background       bool

	mu        sync.RWMutex
	current   keySnapshot
	lastFetch time.Time

	fetchMu     sync.Mutex
	prefetching atomic.Bool
}

// JWKSOption configures a JWKSCache.
type JWKSOption func(*JWKSCache)

// NewJWKSCache returns an empty cache for the key set published at url.
func NewJWKSCache(url string, opts ...JWKSOption) *JWKSCache {
	c := &JWKSCache{
		url:              strings.TrimSpace(url),
		client:           &http.Client{},
		logger:           discardLogger{},
		now:              time.Now,
		ttl:              defaultJWKSTTL,
		fetchTimeout:     defaultJWKSFetchTimeout,
		rotationCooldown: defaultJWKSRotationCooldown,
		maxStale:         defaultJWKSMaxStale,
		background:       true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// WithJWKSLogger routes cache events to logger.
func WithJWKSLogger(logger Logger) JWKSOption {
	return func(c *JWKSCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithJWKSTTL sets the validity assumed when the provider sends no cache headers.
func WithJWKSTTL(d time.Duration) JWKSOption {
	return func(c *JWKSCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithJWKSFetchTimeout bounds a single request to the provider.
func WithJWKSFetchTimeout(d time.Duration) JWKSOption {
	return func(c *JWKSCache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithJWKSRotationCooldown sets the minimum gap between refetches triggered
// by unknown kids.
func WithJWKSRotationCooldown(d time.Duration) JWKSOption {
	return func(c *JWKSCache) {
		if d >= 0 {
			c.rotationCooldown = d
		}
	}
}

// WithJWKSMaxStale sets how long expired keys keep verifying while the
// provider is unreachable. Zero disables stale serving.
func WithJWKSMaxStale(d time.Duration) JWKSOption {
	return func(c *JWKSCache) {
		if d >= 0 {
			c.maxStale = d
		}
	}
}

// WithJWKSClock replaces the time source.
func WithJWKSClock(now func() time.Time) JWKSOption {
	return func(c *JWKSCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithoutJWKSBackgroundRefresh keeps all fetches on the request path.
func WithoutJWKSBackgroundRefresh() JWKSOption {
	return func(c *JWKSCache) {
		c.background = false
	}
}

// URL is the key set endpoint.
func (c *JWKSCache) URL() string {
	if c == nil {
		return ""
	}
	return c.url
}

// Keyfunc adapts the cache to jwt parsing. Tokens must be RS256 and carry a kid.
func (c *JWKSCache) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("auth: unexpected signing method %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("auth: token missing kid header")
		}
		return c.Key(ctx, kid)
	}
}

// Key returns the public key published under kid.
func (c *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	now := c.now()

	snap := c.snapshot()
	switch {
	case !snap.fresh(now):
		if snap.usable(now, c.maxStale) && !c.claimFetch(now) {
			break
		}
		if err := c.fetch(ctx); err != nil {
			if !snap.usable(now, c.maxStale) {
				return nil, err
			}
			c.logger.Printf("auth: provider keys unreachable, using set fetched at %s: %v", snap.fetchedAt.Format(time.RFC3339), err)
		} else {
			snap = c.snapshot()
		}
	case c.background && snap.pastHalfLife(now):
		c.prefetch()
	}

	if key, ok := snap.keys[kid]; ok {
		return key, nil
	}

	if !c.claimFetch(now) {
		return nil, fmt.Errorf("%w: %s", ErrJWKSKeyNotFound, kid)
	}
	if err := c.fetch(ctx); err != nil {
		return nil, err
	}
	if key, ok := c.snapshot().keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrJWKSKeyNotFound, kid)
}

// Prime loads the key set ahead of the first request.
func (c *JWKSCache) Prime(ctx context.Context) error {
	return c.fetch(ctx)
}

func (c *JWKSCache) snapshot() keySnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// claimFetch reserves a refetch outside the regular schedule (unknown kid,
// retry while serving stale keys). Callers inside the cooldown are refused.
func (c *JWKSCache) claimFetch(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastFetch.IsZero() && now.Sub(c.lastFetch) < c.rotationCooldown {
		return false
	}
	c.lastFetch = now
	return true
}

func (c *JWKSCache) prefetch() {
	if !c.prefetching.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.prefetching.Store(false)
		if err := c.fetch(context.Background()); err != nil {
			c.logger.Printf("auth: background key refresh failed: %v", err)
		}
	}()
}

func (c *JWKSCache) fetch(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	started := c.now()
	c.mu.Lock()
	c.lastFetch = started
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	keys, validity, err := c.download(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	if validity <= 0 {
		validity = c.ttl
	}

	c.mu.Lock()
	c.current = keySnapshot{keys: keys, fetchedAt: started, freshUntil: started.Add(validity)}
	c.mu.Unlock()

	c.logger.Printf("auth: loaded %d provider keys, fresh for %s", len(keys), validity)
	return nil
}

// download retrieves the key set and the validity advertised by the
// response headers (zero when absent).
func (c *JWKSCache) download(ctx context.Context) (map[string]any, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, 0, fmt.Errorf("decode key set: %w", err)
	}
	keys := signingKeys(set)
	if len(keys) == 0 {
		return nil, 0, errors.New("no usable signing keys")
	}

	validity := parseMaxAge(resp.Header.Get("Cache-Control"))
	if validity == 0 {
		if ts, err := http.ParseTime(resp.Header.Get("Expires")); err == nil {
			validity = ts.Sub(c.now())
		}
	}
	return keys, validity, nil
}

// signingKeys keeps public signature keys that carry a kid.
func signingKeys(set jose.JSONWebKeySet) map[string]any {
	keys := make(map[string]any, len(set.Keys))
	for _, jwk := range set.Keys {
		switch {
		case jwk.KeyID == "", !jwk.Valid(), !jwk.IsPublic():
			continue
		case jwk.Use != "" && jwk.Use != "sig":
			continue
		}
		keys[jwk.KeyID] = jwk.Key
	}
	return keys
}

func parseMaxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	return 0
}
