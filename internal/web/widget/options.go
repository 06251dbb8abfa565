// Package widget models the configuration handed to the hosted
// authentication widget that the sign-up and sign-in pages embed.
package widget

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidOptions is wrapped by every Options validation failure.
var ErrInvalidOptions = errors.New("widget: invalid options")

// Routing selects how the widget tracks its internal steps.
type Routing string

const (
	// RoutingPath keeps widget steps under Path as real URL segments.
	RoutingPath Routing = "path"
	// RoutingHash keeps widget steps in the URL fragment.
	RoutingHash Routing = "hash"
	// RoutingVirtual keeps widget steps in memory only.
	RoutingVirtual Routing = "virtual"
)

// ParseRouting converts a raw string into a Routing value.
func ParseRouting(raw string) (Routing, error) {
	routing := Routing(strings.ToLower(strings.TrimSpace(raw)))
	if !routing.Valid() {
		return "", fmt.Errorf("%w: unknown routing %q", ErrInvalidOptions, raw)
	}
	return routing, nil
}

// Valid reports whether r is a known routing strategy.
func (r Routing) Valid() bool {
	switch r {
	case RoutingPath, RoutingHash, RoutingVirtual:
		return true
	default:
		return false
	}
}

// Kind identifies which widget a page mounts.
type Kind string

const (
	KindSignUp Kind = "sign-up"
	KindSignIn Kind = "sign-in"
)

// MountFunction names the browser SDK function that mounts the widget.
func (k Kind) MountFunction() string {
	switch k {
	case KindSignIn:
		return "mountSignIn"
	default:
		return "mountSignUp"
	}
}

// Appearance carries presentational class overrides keyed by widget element.
type Appearance struct {
	Elements map[string]string `json:"elements"`
}

// Options is the widget configuration record. It is built per render and
// never mutated after construction.
type Options struct {
	Appearance Appearance `json:"appearance"`
	Routing    Routing    `json:"routing"`
	Path       string     `json:"path,omitempty"`
	SignInURL  string     `json:"signInUrl,omitempty"`
	SignUpURL  string     `json:"signUpUrl,omitempty"`
}

const (
	// SignUpPath is where the sign-up widget is mounted.
	SignUpPath = "/sign-up"
	// SignInPath is where the sign-in widget is mounted.
	SignInPath = "/sign-in"

	rootBoxElement = "rootBox"
	cardElement    = "card"
	rootBoxClass   = "mx-auto"
	cardClass      = "shadow-2xl"
)

func defaultAppearance() Appearance {
	return Appearance{Elements: map[string]string{
		rootBoxElement: rootBoxClass,
		cardElement:    cardClass,
	}}
}

// SignUpOptions returns the configuration rendered on the sign-up page.
func SignUpOptions() Options {
	return Options{
		Appearance: defaultAppearance(),
		Routing:    RoutingPath,
		Path:       SignUpPath,
		SignInURL:  SignInPath,
	}
}

// SignInOptions returns the configuration rendered on the sign-in page.
func SignInOptions() Options {
	return Options{
		Appearance: defaultAppearance(),
		Routing:    RoutingPath,
		Path:       SignInPath,
		SignUpURL:  SignUpPath,
	}
}

// Validate checks the routing/path combination and the cross-link URLs.
func (o Options) Validate() error {
	if !o.Routing.Valid() {
		return fmt.Errorf("%w: unknown routing %q", ErrInvalidOptions, o.Routing)
	}
	switch o.Routing {
	case RoutingPath:
		if !strings.HasPrefix(o.Path, "/") || strings.HasPrefix(o.Path, "//") {
			return fmt.Errorf("%w: path routing requires an absolute path, got %q", ErrInvalidOptions, o.Path)
		}
	default:
		if o.Path != "" {
			return fmt.Errorf("%w: %s routing must not set a path", ErrInvalidOptions, o.Routing)
		}
	}
	for name, link := range map[string]string{"signInUrl": o.SignInURL, "signUpUrl": o.SignUpURL} {
		if link == "" {
			continue
		}
		if !validLink(link) {
			return fmt.Errorf("%w: %s %q is not a relative path or http(s) URL", ErrInvalidOptions, name, link)
		}
	}
	return nil
}

// Props encodes the options as the JSON document the widget mounts with.
// Element maps are emitted with sorted keys so output is stable.
func (o Options) Props() (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	encoded, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("widget: encode props: %w", err)
	}
	return string(encoded), nil
}

func validLink(link string) bool {
	if strings.HasPrefix(link, "/") {
		return !strings.HasPrefix(link, "//")
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
