package widget

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignUpOptionsLiterals(t *testing.T) {
	t.Parallel()

	opts := SignUpOptions()
	require.Equal(t, RoutingPath, opts.Routing)
	require.Equal(t, "/sign-up", opts.Path)
	require.Equal(t, "/sign-in", opts.SignInURL)
	require.Empty(t, opts.SignUpURL)
	require.Equal(t, map[string]string{"rootBox": "mx-auto", "card": "shadow-2xl"}, opts.Appearance.Elements)
	require.NoError(t, opts.Validate())
}

func TestSignUpPropsDocument(t *testing.T) {
	t.Parallel()

	props, err := SignUpOptions().Props()
	require.NoError(t, err)
	require.JSONEq(t, `{
		"appearance": {"elements": {"rootBox": "mx-auto", "card": "shadow-2xl"}},
		"routing": "path",
		"path": "/sign-up",
		"signInUrl": "/sign-in"
	}`, props)

	again, err := SignUpOptions().Props()
	require.NoError(t, err)
	require.Equal(t, props, again)
}

func TestSignInOptionsMirrorSignUp(t *testing.T) {
	t.Parallel()

	props, err := SignInOptions().Props()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(props), &decoded))
	require.Equal(t, "path", decoded["routing"])
	require.Equal(t, "/sign-in", decoded["path"])
	require.Equal(t, "/sign-up", decoded["signUpUrl"])
	require.NotContains(t, decoded, "signInUrl")
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "path routing relative path", opts: Options{Routing: RoutingPath, Path: "sign-up"}, wantErr: true},
		{name: "path routing protocol relative", opts: Options{Routing: RoutingPath, Path: "//evil"}, wantErr: true},
		{name: "hash routing with path", opts: Options{Routing: RoutingHash, Path: "/sign-up"}, wantErr: true},
		{name: "virtual routing", opts: Options{Routing: RoutingVirtual}},
		{name: "unknown routing", opts: Options{Routing: "query"}, wantErr: true},
		{name: "absolute cross link", opts: Options{Routing: RoutingHash, SignInURL: "https://accounts.example.com/sign-in"}},
		{name: "javascript cross link", opts: Options{Routing: RoutingHash, SignInURL: "javascript:alert(1)"}, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.opts.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidOptions)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseRouting(t *testing.T) {
	t.Parallel()

	routing, err := ParseRouting(" Hash ")
	require.NoError(t, err)
	require.Equal(t, RoutingHash, routing)

	_, err = ParseRouting("query")
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestKindMountFunction(t *testing.T) {
	t.Parallel()

	require.Equal(t, "mountSignUp", KindSignUp.MountFunction())
	require.Equal(t, "mountSignIn", KindSignIn.MountFunction())
}

func TestParsePublishableKey(t *testing.T) {
	t.Parallel()

	raw := "pk_test_" + base64.StdEncoding.EncodeToString([]byte("clerk.agentforge.test$"))
	key, err := ParsePublishableKey(raw)
	require.NoError(t, err)
	require.Equal(t, "test", key.Environment)
	require.Equal(t, "clerk.agentforge.test", key.FrontendAPI)
	require.Equal(t, "https://clerk.agentforge.test", key.Issuer())
	require.Equal(t, "https://clerk.agentforge.test/.well-known/jwks.json", key.JWKSURL())
	require.Equal(t, "https://clerk.agentforge.test/npm/@clerk/clerk-js@5/dist/clerk.browser.js", key.ScriptURL("5"))

	for _, bad := range []string{
		"",
		"sk_test_abc",
		"pk_live_!!!",
		"pk_live_" + base64.StdEncoding.EncodeToString([]byte("no-terminator")),
		"pk_live_" + base64.StdEncoding.EncodeToString([]byte("evil.example/path$")),
	} {
		_, err := ParsePublishableKey(bad)
		require.ErrorIs(t, err, ErrInvalidPublishableKey, bad)
	}
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	provider, err := NewProvider("", "5")
	require.NoError(t, err)
	require.False(t, provider.Enabled())

	raw := "pk_live_" + base64.StdEncoding.EncodeToString([]byte("clerk.agentforge.dev$"))
	provider, err = NewProvider(raw, "")
	require.NoError(t, err)
	require.True(t, provider.Enabled())
	require.Equal(t, "https://clerk.agentforge.dev/npm/@clerk/clerk-js@latest/dist/clerk.browser.js", provider.ScriptURL)
}
