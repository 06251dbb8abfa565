package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/httpserver"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/httpserver/middleware"
	appsession "github.com/aditya4232/AgentForge-XT-sub001/internal/web/session"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/widget"
)

// TestPublishableKey encodes clerk.agentforge.test as a test-instance key.
const TestPublishableKey = "pk_test_Y2xlcmsuYWdlbnRmb3JnZS50ZXN0JA"

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithAuthenticator overrides the authenticator used by the web server.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Authenticator = auth
	}
}

// WithEnvironment sets the deployment environment shown in the footer.
func WithEnvironment(env string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Environment = env
	}
}

// WithProvider overrides the browser SDK description.
func WithProvider(provider widget.Provider) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Provider = provider
	}
}

// WithClock pins the server clock.
func WithClock(now func() time.Time) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Now = now
	}
}

// NewServer constructs an httptest server running the web HTTP stack with sensible defaults.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	sessions, err := appsession.NewManager(appsession.Config{
		CookieName: "agentforge_session",
		HashKey:    []byte("test-hash-key-test-hash-key-0123"),
		BlockKey:   []byte("test-block-key-0"),
	})
	require.NoError(t, err)

	provider, err := widget.NewProvider(TestPublishableKey, "5")
	require.NoError(t, err)

	cfg := httpserver.Config{
		Address:       ":0",
		Environment:   "local",
		Authenticator: middleware.DevAuthenticator(),
		Sessions:      sessions,
		Provider:      provider,
		TokenCookie:   "__session",
		DefaultLocale: "en",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	handler, err := httpserver.NewHandler(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

// NewClient returns a client with a cookie jar that does not follow redirects.
func NewClient(t testing.TB) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
