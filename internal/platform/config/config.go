package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/widget"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultRequestTimeout     = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultEnvironment        = "local"
	defaultClerkJSVersion     = "5"
	defaultSessionTokenCookie = "__session"
	defaultClockSkew          = 5 * time.Second
	defaultJWKSTTL            = 15 * time.Minute
	defaultJWKSFetchTimeout   = 5 * time.Second
	defaultJWKSCooldown       = time.Minute
	defaultJWKSMaxStale       = time.Hour
	defaultSessionCookie      = "agentforge_session"
	defaultSessionLifetime    = 12 * time.Hour
	defaultSessionIdle        = 30 * time.Minute
	defaultSecretsFallback    = ".secrets.local"
	defaultLogLevel           = "info"
	defaultLocale             = "en"
	minSessionHashKeyLength   = 32

	// ProviderClerk verifies provider-issued session JWTs against the provider JWKS.
	ProviderClerk = "clerk"
	// ProviderFirebase verifies Firebase ID tokens through the Admin SDK.
	ProviderFirebase = "firebase"
	// ProviderDev accepts any non-empty session token. Local environment only.
	ProviderDev = "dev"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment   string
	Server        ServerConfig
	Auth          AuthConfig
	Session       SessionConfig
	Secrets       SecretsConfig
	Observability ObservabilityConfig
	Locales       LocaleConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig selects and configures the hosted authentication provider.
type AuthConfig struct {
	Provider           string
	PublishableKey     string
	ClerkJSVersion     string
	FrontendAPI        string
	JWKSURL            string
	Issuer             string
	AuthorizedParties  []string
	ClockSkew          time.Duration
	SessionTokenCookie string
	FirebaseProjectID  string

	// JWKSCacheTTL applies when the key endpoint sends no cache headers.
	JWKSCacheTTL         time.Duration
	JWKSFetchTimeout     time.Duration
	JWKSRotationCooldown time.Duration
	// JWKSMaxStale is how long expired keys keep verifying while the
	// provider is unreachable.
	JWKSMaxStale time.Duration
}

// SessionConfig controls the signed local session cookie.
type SessionConfig struct {
	CookieName  string
	HashKey     string
	BlockKey    string
	Secure      bool
	Lifetime    time.Duration
	IdleTimeout time.Duration
}

// SecretsConfig configures Secret Manager lookups for secret:// references.
type SecretsConfig struct {
	ProjectID    string
	ProjectMap   map[string]string
	FallbackFile string
}

// ObservabilityConfig groups logging and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string
	TraceProjectID string
}

// LocaleConfig lists the languages the pages can be served in.
type LocaleConfig struct {
	Default   string
	Supported []string
}

// IsLocal reports whether the service runs in the local environment.
func (c Config) IsLocal() bool {
	return strings.EqualFold(c.Environment, defaultEnvironment)
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns the redacted secret identifiers, sorted.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers, sorted.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// EnvironmentValues returns the effective key/value environment map after applying the same precedence
// rules as Load (dotenv < OS env < explicit env map). Callers use the result to initialise
// dependencies, such as the secret fetcher, before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		for key, value := range source {
			values[key] = value
		}
	}

	merge(dotEnvValues)

	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			values[key] = parts[1]
		}
	}

	merge(options.envMap)

	return values, nil
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory.
// Identifiers match the config field names recorded by the loader
// (e.g. "Session.HashKey").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "WEB_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "WEB_SERVER_PORT", stringWithDefault(lookup, "PORT", defaultPort)),
			ReadTimeout:     durationWithDefault(lookup, "WEB_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "WEB_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "WEB_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout:  durationWithDefault(lookup, "WEB_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "WEB_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Auth: AuthConfig{
			Provider:           strings.ToLower(stringWithDefault(lookup, "WEB_AUTH_PROVIDER", "")),
			PublishableKey:     stringWithDefault(lookup, "WEB_AUTH_PUBLISHABLE_KEY", ""),
			ClerkJSVersion:     stringWithDefault(lookup, "WEB_AUTH_CLERK_JS_VERSION", defaultClerkJSVersion),
			JWKSURL:            stringWithDefault(lookup, "WEB_AUTH_JWKS_URL", ""),
			Issuer:             stringWithDefault(lookup, "WEB_AUTH_ISSUER", ""),
			AuthorizedParties:  csvWithDefault(lookup, "WEB_AUTH_AUTHORIZED_PARTIES"),
			ClockSkew:          durationWithDefault(lookup, "WEB_AUTH_CLOCK_SKEW", defaultClockSkew),
			SessionTokenCookie: stringWithDefault(lookup, "WEB_AUTH_SESSION_COOKIE", defaultSessionTokenCookie),
			FirebaseProjectID:  stringWithDefault(lookup, "WEB_AUTH_FIREBASE_PROJECT_ID", ""),

			JWKSCacheTTL:         durationWithDefault(lookup, "WEB_AUTH_JWKS_TTL", defaultJWKSTTL),
			JWKSFetchTimeout:     durationWithDefault(lookup, "WEB_AUTH_JWKS_TIMEOUT", defaultJWKSFetchTimeout),
			JWKSRotationCooldown: durationWithDefault(lookup, "WEB_AUTH_JWKS_ROTATION_COOLDOWN", defaultJWKSCooldown),
			JWKSMaxStale:         durationWithDefault(lookup, "WEB_AUTH_JWKS_MAX_STALE", defaultJWKSMaxStale),
		},
		Session: SessionConfig{
			CookieName:  stringWithDefault(lookup, "WEB_SESSION_COOKIE_NAME", defaultSessionCookie),
			HashKey:     stringWithDefault(lookup, "WEB_SESSION_HASH_KEY", ""),
			BlockKey:    stringWithDefault(lookup, "WEB_SESSION_BLOCK_KEY", ""),
			Secure:      boolWithDefault(lookup, "WEB_SESSION_COOKIE_SECURE", false),
			Lifetime:    durationWithDefault(lookup, "WEB_SESSION_LIFETIME", defaultSessionLifetime),
			IdleTimeout: durationWithDefault(lookup, "WEB_SESSION_IDLE_TIMEOUT", defaultSessionIdle),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "WEB_SECRETS_PROJECT_ID", ""),
			ProjectMap:   mapWithDefault(lookup, "WEB_SECRETS_PROJECTS"),
			FallbackFile: stringWithDefault(lookup, "WEB_SECRETS_FALLBACK_FILE", defaultSecretsFallback),
		},
		Observability: ObservabilityConfig{
			LogLevel:       stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel),
			TraceProjectID: stringWithDefault(lookup, "WEB_TRACE_PROJECT_ID", stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", "")),
		},
		Locales: LocaleConfig{
			Default:   stringWithDefault(lookup, "WEB_LOCALE_DEFAULT", defaultLocale),
			Supported: csvWithDefault(lookup, "WEB_LOCALES"),
		},
	}

	if !cfg.IsLocal() {
		cfg.Session.Secure = boolWithDefault(lookup, "WEB_SESSION_COOKIE_SECURE", true)
	}

	resolvedSecrets := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Session.HashKey", &cfg.Session.HashKey},
		{"Session.BlockKey", &cfg.Session.BlockKey},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
		resolvedSecrets[target.name] = strings.TrimSpace(resolved)
	}

	if err := applyAuthDefaults(&cfg); err != nil {
		return Config{}, err
	}

	if len(cfg.Locales.Supported) == 0 {
		cfg.Locales.Supported = []string{cfg.Locales.Default}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		return Config{}, missing
	}

	return cfg, nil
}

// applyAuthDefaults infers the provider and derives the provider endpoints
// from the publishable key when they are not set explicitly.
func applyAuthDefaults(cfg *Config) error {
	if cfg.Auth.Provider == "" {
		switch {
		case cfg.Auth.PublishableKey != "":
			cfg.Auth.Provider = ProviderClerk
		case cfg.Auth.FirebaseProjectID != "":
			cfg.Auth.Provider = ProviderFirebase
		default:
			cfg.Auth.Provider = ProviderDev
		}
	}

	if cfg.Auth.PublishableKey == "" {
		return nil
	}
	key, err := widget.ParsePublishableKey(cfg.Auth.PublishableKey)
	if err != nil {
		return &ValidationError{fields: []string{"Auth.PublishableKey"}}
	}
	cfg.Auth.FrontendAPI = key.FrontendAPI
	if cfg.Auth.JWKSURL == "" {
		cfg.Auth.JWKSURL = key.JWKSURL()
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = key.Issuer()
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.RequestTimeout <= 0 {
		missing = append(missing, "Server.RequestTimeout")
	}

	switch cfg.Auth.Provider {
	case ProviderClerk:
		if cfg.Auth.PublishableKey == "" {
			missing = append(missing, "Auth.PublishableKey")
		}
		if cfg.Auth.JWKSURL == "" {
			missing = append(missing, "Auth.JWKSURL")
		}
		if cfg.Auth.Issuer == "" {
			missing = append(missing, "Auth.Issuer")
		}
	case ProviderFirebase:
		if cfg.Auth.FirebaseProjectID == "" {
			missing = append(missing, "Auth.FirebaseProjectID")
		}
	case ProviderDev:
		if !cfg.IsLocal() {
			missing = append(missing, "Auth.Provider")
		}
	default:
		missing = append(missing, "Auth.Provider")
	}
	if strings.TrimSpace(cfg.Auth.SessionTokenCookie) == "" {
		missing = append(missing, "Auth.SessionTokenCookie")
	}

	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		missing = append(missing, "Session.CookieName")
	}
	if cfg.Session.HashKey != "" && len(cfg.Session.HashKey) < minSessionHashKeyLength {
		missing = append(missing, "Session.HashKey")
	} else if cfg.Session.HashKey == "" && !cfg.IsLocal() {
		missing = append(missing, "Session.HashKey")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		missing = append(missing, "Session.BlockKey")
	}
	if cfg.Session.Lifetime <= 0 {
		missing = append(missing, "Session.Lifetime")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	if len(required) == 0 {
		return nil
	}
	missing := make([]missingSecret, 0, len(required))
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if value := strings.TrimSpace(resolved[trimmed]); value != "" {
			continue
		}
		missing = append(missing, missingSecret{
			name:     trimmed,
			redacted: redactSecretName(trimmed),
		})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values
	}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return values
}

// ParsePort returns the numeric listen port.
func (s ServerConfig) ParsePort() (int, error) {
	return strconv.Atoi(strings.TrimPrefix(s.Port, ":"))
}
