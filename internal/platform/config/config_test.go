package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testPublishableKey = "pk_test_Y2xlcmsuYWdlbnRmb3JnZS50ZXN0JA"

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Environment != "local" || !cfg.IsLocal() {
		t.Errorf("expected local environment, got %s", cfg.Environment)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Auth.Provider != ProviderDev {
		t.Errorf("expected dev provider without keys, got %s", cfg.Auth.Provider)
	}
	if cfg.Auth.SessionTokenCookie != "__session" {
		t.Errorf("unexpected session token cookie %s", cfg.Auth.SessionTokenCookie)
	}
	if cfg.Session.CookieName != defaultSessionCookie {
		t.Errorf("unexpected session cookie name %s", cfg.Session.CookieName)
	}
	if cfg.Session.Secure {
		t.Errorf("expected insecure cookies in local environment")
	}
	if cfg.Session.Lifetime != 12*time.Hour {
		t.Errorf("unexpected session lifetime %s", cfg.Session.Lifetime)
	}
	if cfg.Auth.JWKSCacheTTL != 15*time.Minute || cfg.Auth.JWKSFetchTimeout != 5*time.Second {
		t.Errorf("unexpected jwks defaults ttl=%s timeout=%s", cfg.Auth.JWKSCacheTTL, cfg.Auth.JWKSFetchTimeout)
	}
	if cfg.Auth.JWKSRotationCooldown != time.Minute || cfg.Auth.JWKSMaxStale != time.Hour {
		t.Errorf("unexpected jwks cooldown=%s max-stale=%s", cfg.Auth.JWKSRotationCooldown, cfg.Auth.JWKSMaxStale)
	}
	if cfg.Secrets.FallbackFile != ".secrets.local" {
		t.Errorf("unexpected secrets fallback %s", cfg.Secrets.FallbackFile)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("unexpected log level %s", cfg.Observability.LogLevel)
	}
	if cfg.Locales.Default != "en" || len(cfg.Locales.Supported) != 1 || cfg.Locales.Supported[0] != "en" {
		t.Errorf("unexpected locales %+v", cfg.Locales)
	}
}

func TestLoadDerivesClerkEndpointsFromPublishableKey(t *testing.T) {
	env := map[string]string{
		"WEB_AUTH_PUBLISHABLE_KEY":    testPublishableKey,
		"WEB_AUTH_AUTHORIZED_PARTIES": "https://app.agentforge.test, http://localhost:8080",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Auth.Provider != ProviderClerk {
		t.Errorf("expected clerk provider inferred from key, got %s", cfg.Auth.Provider)
	}
	if cfg.Auth.FrontendAPI != "clerk.agentforge.test" {
		t.Errorf("unexpected frontend api %s", cfg.Auth.FrontendAPI)
	}
	if cfg.Auth.Issuer != "https://clerk.agentforge.test" {
		t.Errorf("unexpected issuer %s", cfg.Auth.Issuer)
	}
	if cfg.Auth.JWKSURL != "https://clerk.agentforge.test/.well-known/jwks.json" {
		t.Errorf("unexpected jwks url %s", cfg.Auth.JWKSURL)
	}
	if len(cfg.Auth.AuthorizedParties) != 2 {
		t.Errorf("expected 2 authorized parties, got %v", cfg.Auth.AuthorizedParties)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	hashKey := strings.Repeat("h", 32)
	env := map[string]string{
		"WEB_ENVIRONMENT":                 "prod",
		"WEB_SERVER_PORT":                 "9090",
		"WEB_SERVER_IDLE_TIMEOUT":         "2m",
		"WEB_AUTH_PUBLISHABLE_KEY":        testPublishableKey,
		"WEB_AUTH_ISSUER":                 "https://auth.example.com",
		"WEB_AUTH_JWKS_URL":               "https://auth.example.com/jwks.json",
		"WEB_AUTH_CLOCK_SKEW":             "10s",
		"WEB_AUTH_JWKS_TTL":               "30m",
		"WEB_AUTH_JWKS_TIMEOUT":           "2s",
		"WEB_AUTH_JWKS_ROTATION_COOLDOWN": "30s",
		"WEB_AUTH_JWKS_MAX_STALE":         "6h",
		"WEB_SESSION_HASH_KEY":            "secret://web/session-hash",
		"WEB_SESSION_BLOCK_KEY":           "sm://web/session-block",
		"WEB_SECRETS_PROJECTS":            "prod=agentforge-prod, bad-entry",
		"WEB_LOCALES":                     "en, ja",
		"WEB_LOCALE_DEFAULT":              "ja",
		"LOG_LEVEL":                       "debug",
		"GOOGLE_CLOUD_PROJECT":            "agentforge-prod",
		"WEB_SERVER_SHUTDOWN_TIMEOUT":     "not-a-duration",
		"WEB_SESSION_COOKIE_NAME":         "af_session",
		"WEB_AUTH_FIREBASE_PROJECT_ID":    "",
	}

	secrets := map[string]string{
		"secret://web/session-hash":  hashKey,
		"secret://web/session-block": "0123456789abcdef",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(resolver), WithRequiredSecrets("Session.HashKey"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if port, err := cfg.Server.ParsePort(); err != nil || port != 9090 {
		t.Errorf("unexpected parsed port %d (%v)", port, err)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Server.ShutdownTimeout != defaultShutdownTimeout {
		t.Errorf("expected invalid duration to fall back, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Auth.Issuer != "https://auth.example.com" {
		t.Errorf("explicit issuer should win, got %s", cfg.Auth.Issuer)
	}
	if cfg.Auth.JWKSURL != "https://auth.example.com/jwks.json" {
		t.Errorf("explicit jwks url should win, got %s", cfg.Auth.JWKSURL)
	}
	if cfg.Auth.ClockSkew != 10*time.Second {
		t.Errorf("unexpected clock skew %s", cfg.Auth.ClockSkew)
	}
	if cfg.Auth.JWKSCacheTTL != 30*time.Minute || cfg.Auth.JWKSFetchTimeout != 2*time.Second {
		t.Errorf("unexpected jwks ttl=%s timeout=%s", cfg.Auth.JWKSCacheTTL, cfg.Auth.JWKSFetchTimeout)
	}
	if cfg.Auth.JWKSRotationCooldown != 30*time.Second || cfg.Auth.JWKSMaxStale != 6*time.Hour {
		t.Errorf("unexpected jwks cooldown=%s max-stale=%s", cfg.Auth.JWKSRotationCooldown, cfg.Auth.JWKSMaxStale)
	}
	if cfg.Session.HashKey != hashKey {
		t.Errorf("expected resolved hash key")
	}
	if cfg.Session.BlockKey != "0123456789abcdef" {
		t.Errorf("expected sm:// reference to resolve, got %q", cfg.Session.BlockKey)
	}
	if !cfg.Session.Secure {
		t.Errorf("expected secure cookies outside local")
	}
	if cfg.Session.CookieName != "af_session" {
		t.Errorf("unexpected cookie name %s", cfg.Session.CookieName)
	}
	if got := cfg.Secrets.ProjectMap["prod"]; got != "agentforge-prod" || len(cfg.Secrets.ProjectMap) != 1 {
		t.Errorf("unexpected project map %v", cfg.Secrets.ProjectMap)
	}
	if cfg.Observability.TraceProjectID != "agentforge-prod" {
		t.Errorf("expected trace project from GOOGLE_CLOUD_PROJECT, got %s", cfg.Observability.TraceProjectID)
	}
	if cfg.Locales.Default != "ja" || len(cfg.Locales.Supported) != 2 {
		t.Errorf("unexpected locales %+v", cfg.Locales)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local overrides\nexport WEB_SERVER_PORT=7070\nWEB_AUTH_FIREBASE_PROJECT_ID=\"agentforge-dev\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Auth.Provider != ProviderFirebase {
		t.Errorf("expected firebase provider inferred from project id, got %s", cfg.Auth.Provider)
	}
	if cfg.Auth.FirebaseProjectID != "agentforge-dev" {
		t.Errorf("expected quotes trimmed from dotenv value, got %s", cfg.Auth.FirebaseProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	env := map[string]string{"WEB_ENVIRONMENT": "prod"}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := strings.Join(validation.Fields(), ",")
	if !strings.Contains(fields, "Auth.Provider") {
		t.Errorf("dev provider must be rejected outside local, got %s", fields)
	}
	if !strings.Contains(fields, "Session.HashKey") {
		t.Errorf("hash key must be required outside local, got %s", fields)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]struct {
		env   map[string]string
		field string
	}{
		"malformed publishable key": {
			env:   map[string]string{"WEB_AUTH_PUBLISHABLE_KEY": "pk_test_not-base64!"},
			field: "Auth.PublishableKey",
		},
		"short hash key": {
			env:   map[string]string{"WEB_SESSION_HASH_KEY": "too-short"},
			field: "Session.HashKey",
		},
		"odd block key": {
			env:   map[string]string{"WEB_SESSION_BLOCK_KEY": "0123456789"},
			field: "Session.BlockKey",
		},
		"unknown provider": {
			env:   map[string]string{"WEB_AUTH_PROVIDER": "saml"},
			field: "Auth.Provider",
		},
		"firebase without project": {
			env:   map[string]string{"WEB_AUTH_PROVIDER": "firebase"},
			field: "Auth.FirebaseProjectID",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(context.Background(), WithEnvMap(tc.env), WithoutSystemEnv(), WithEnvFile(""))
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(strings.Join(validation.Fields(), ","), tc.field) {
				t.Fatalf("expected %s in %v", tc.field, validation.Fields())
			}
		})
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"WEB_SESSION_HASH_KEY": "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Errorf("expected unconfigured resolver cause, got %v", err)
	}
}

func TestLoadRequiredSecretsMissing(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("Session.HashKey", " ", "Session.HashKey"))
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	names := missing.Names()
	if len(names) != 1 || names[0] != "Session.HashKey" {
		t.Fatalf("unexpected names %v", names)
	}
	redacted := missing.RedactedNames()
	if len(redacted) != 1 || redacted[0] == "Session.HashKey" || len(redacted[0]) != 16 {
		t.Fatalf("expected hashed name, got %v", redacted)
	}
	if strings.Contains(err.Error(), "Session.HashKey") {
		t.Fatalf("error message leaks secret name: %s", err)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "WEB_AUTH_PROVIDER=dev\nWEB_SECRETS_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("WEB_AUTH_PROVIDER", "firebase")
	t.Setenv("WEB_SECRETS_PROJECTS", "prod=project-prod")

	overrides := map[string]string{
		"WEB_AUTH_PROVIDER": "clerk",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["WEB_AUTH_PROVIDER"]; got != "clerk" {
		t.Fatalf("expected override provider, got %s", got)
	}
	if got := values["WEB_SECRETS_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["WEB_SECRETS_PROJECTS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
}
