package widget

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPublishableKey is returned for keys that do not decode to a frontend API host.
var ErrInvalidPublishableKey = errors.New("widget: invalid publishable key")

const (
	testKeyPrefix = "pk_test_"
	liveKeyPrefix = "pk_live_"
)

// PublishableKey is the decoded form of the provider's browser key.
type PublishableKey struct {
	Raw         string
	Environment string
	FrontendAPI string
}

// ParsePublishableKey decodes pk_test_/pk_live_ keys. The payload is the
// base64 encoded frontend API host terminated by "$".
func ParsePublishableKey(raw string) (PublishableKey, error) {
	raw = strings.TrimSpace(raw)
	var env, payload string
	switch {
	case strings.HasPrefix(raw, testKeyPrefix):
		env, payload = "test", strings.TrimPrefix(raw, testKeyPrefix)
	case strings.HasPrefix(raw, liveKeyPrefix):
		env, payload = "live", strings.TrimPrefix(raw, liveKeyPrefix)
	default:
		return PublishableKey{}, fmt.Errorf("%w: unknown prefix", ErrInvalidPublishableKey)
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return PublishableKey{}, fmt.Errorf("%w: %v", ErrInvalidPublishableKey, err)
	}

	host, ok := strings.CutSuffix(string(decoded), "$")
	if !ok || host == "" || strings.ContainsAny(host, "/$ ") {
		return PublishableKey{}, fmt.Errorf("%w: malformed frontend api", ErrInvalidPublishableKey)
	}

	return PublishableKey{Raw: raw, Environment: env, FrontendAPI: host}, nil
}

// Issuer is the iss claim carried by session tokens for this instance.
func (k PublishableKey) Issuer() string {
	return "https://" + k.FrontendAPI
}

// JWKSURL is where the instance publishes its token signing keys.
func (k PublishableKey) JWKSURL() string {
	return k.Issuer() + "/.well-known/jwks.json"
}

// ScriptURL is the browser SDK bundle for the given major version.
func (k PublishableKey) ScriptURL(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		version = "latest"
	}
	return fmt.Sprintf("%s/npm/@clerk/clerk-js@%s/dist/clerk.browser.js", k.Issuer(), version)
}

// Provider describes the browser SDK the layout loads. The zero value means
// no hosted widget is available and pages render a placeholder instead.
type Provider struct {
	PublishableKey string
	ScriptURL      string
}

// Enabled reports whether the SDK script should be emitted.
func (p Provider) Enabled() bool {
	return p.PublishableKey != "" && p.ScriptURL != ""
}

// NewProvider builds the Provider for a publishable key and SDK version.
func NewProvider(publishableKey, version string) (Provider, error) {
	if strings.TrimSpace(publishableKey) == "" {
		return Provider{}, nil
	}
	key, err := ParsePublishableKey(publishableKey)
	if err != nil {
		return Provider{}, err
	}
	return Provider{PublishableKey: key.Raw, ScriptURL: key.ScriptURL(version)}, nil
}
