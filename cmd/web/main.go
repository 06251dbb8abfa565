package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	firebase "firebase.google.com/go/v4"
	"github.com/gorilla/securecookie"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/auth"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/config"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/observability"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/secrets"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/httpserver"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/httpserver/middleware"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/i18n"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/legal"
	appsession "github.com/aditya4232/AgentForge-XT-sub001/internal/web/session"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/widget"
)

const (
	instrumentationName = "github.com/aditya4232/AgentForge-XT-sub001/cmd/web"
	userAgent           = "agentforge-web"
)

func main() {
	ctx := context.Background()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("web")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	authenticator, err := buildAuthenticator(ctx, logger.Named("auth"), cfg)
	if err != nil {
		logger.Fatal("failed to initialise authenticator", zap.Error(err))
	}

	sessions, err := buildSessionManager(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	provider, err := widget.NewProvider(cfg.Auth.PublishableKey, cfg.Auth.ClerkJSVersion)
	if err != nil {
		logger.Fatal("invalid publishable key", zap.Error(err))
	}

	server, err := httpserver.New(httpserver.Config{
		Address:        net.JoinHostPort("", cfg.Server.Port),
		Environment:    cfg.Environment,
		Authenticator:  authenticator,
		Sessions:       sessions,
		Provider:       provider,
		TokenCookie:    cfg.Auth.SessionTokenCookie,
		DefaultLocale:  cfg.Locales.Default,
		Locales:        cfg.Locales.Supported,
		Messages:       i18n.Default(),
		Legal:          legal.Default(),
		Logger:         logger.Named("http"),
		TraceProjectID: cfg.Observability.TraceProjectID,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		logger.Fatal("failed to build http server", zap.Error(err))
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(
		zap.String("addr", server.Addr),
		zap.String("environment", cfg.Environment),
		zap.String("auth_provider", cfg.Auth.Provider),
	)
	go func() {
		serverLogger.Info("agentforge web listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	sig := <-shutdown
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	envLabel := strings.ToLower(lookup("WEB_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	fallbackPath := lookup("WEB_SECRETS_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
		secrets.WithMeter(otel.Meter(instrumentationName)),
		secrets.WithClientOptions(option.WithUserAgent(userAgent)),
	}
	if endpoint := lookup("WEB_SECRETS_ENDPOINT"); endpoint != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithEndpoint(endpoint)))
	}
	if projectMap := secretProjectMapFromEnv(lookup("WEB_SECRETS_PROJECTS")); len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if project := lookup("WEB_SECRETS_PROJECT_ID"); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func secretProjectMapFromEnv(raw string) map[string]string {
	projects := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key != "" && value != "" {
			projects[key] = value
		}
	}
	return projects
}

func buildAuthenticator(ctx context.Context, logger *zap.Logger, cfg config.Config) (middleware.Authenticator, error) {
	switch cfg.Auth.Provider {
	case config.ProviderClerk:
		printf := observability.NewPrintfAdapter(logger)
		keys := auth.NewJWKSCache(cfg.Auth.JWKSURL,
			auth.WithJWKSLogger(printf),
			auth.WithJWKSTTL(cfg.Auth.JWKSCacheTTL),
			auth.WithJWKSFetchTimeout(cfg.Auth.JWKSFetchTimeout),
			auth.WithJWKSRotationCooldown(cfg.Auth.JWKSRotationCooldown),
			auth.WithJWKSMaxStale(cfg.Auth.JWKSMaxStale),
		)
		if err := keys.Prime(ctx); err != nil {
			logger.Warn("jwks prime failed; keys will be fetched on demand", zap.String("url", keys.URL()), zap.Error(err))
		}

		metrics := observability.NewVerificationMetrics(otel.Meter(instrumentationName), logger)
		verifier := auth.NewSessionVerifier(keys, cfg.Auth.Issuer,
			auth.WithAuthorizedParties(cfg.Auth.AuthorizedParties...),
			auth.WithLeeway(cfg.Auth.ClockSkew),
			auth.WithVerifierLogger(printf),
			auth.WithVerifierMetrics(metrics),
		)
		logger.Info("clerk authenticator enabled", zap.String("issuer", cfg.Auth.Issuer))
		return middleware.NewClerkAuthenticator(verifier), nil

	case config.ProviderFirebase:
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Auth.FirebaseProjectID})
		if err != nil {
			return nil, fmt.Errorf("initialise firebase app: %w", err)
		}
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialise firebase auth client: %w", err)
		}
		logger.Info("firebase authenticator enabled", zap.String("project", cfg.Auth.FirebaseProjectID))
		return middleware.NewFirebaseAuthenticator(client), nil

	case config.ProviderDev:
		logger.Warn("dev authenticator enabled; any session cookie value is accepted")
		return middleware.DevAuthenticator(), nil
	}
	return nil, fmt.Errorf("unknown auth provider %q", cfg.Auth.Provider)
}

func buildSessionManager(logger *zap.Logger, cfg config.Config) (*appsession.Manager, error) {
	hashKey := []byte(cfg.Session.HashKey)
	if len(hashKey) == 0 {
		// Local only: validation rejects an empty key elsewhere.
		hashKey = securecookie.GenerateRandomKey(32)
		logger.Warn("session hash key not configured; generated an ephemeral key")
	}
	return appsession.NewManager(appsession.Config{
		CookieName:   cfg.Session.CookieName,
		HashKey:      hashKey,
		BlockKey:     []byte(cfg.Session.BlockKey),
		CookieSecure: cfg.Session.Secure,
		Lifetime:     cfg.Session.Lifetime,
		IdleTimeout:  cfg.Session.IdleTimeout,
	})
}
