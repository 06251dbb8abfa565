package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestDefaultBundleTranslates(t *testing.T) {
	bundle := Default()
	require.Equal(t, []string{"en", "ja"}, bundle.Locales())

	require.Equal(t, "Sign in", T(bundle.Printer("en"), "nav.sign_in"))
	require.Equal(t, "サインイン", T(bundle.Printer("ja-JP"), "nav.sign_in"))
	require.Equal(t, "Signed in as ada@example.com", T(bundle.Printer("en"), "dashboard.signed_in_as", "ada@example.com"))
}

func TestPrinterFallsBackForUnknownLanguage(t *testing.T) {
	bundle := Default()
	require.Equal(t, "Dashboard", T(bundle.Printer("fr"), "nav.dashboard"))
	require.Equal(t, "Dashboard", T(bundle.Printer("not a tag"), "nav.dashboard"))
}

func TestTWithoutLocalizer(t *testing.T) {
	require.Equal(t, "nav.home", T(nil, "nav.home"))
	require.Equal(t, "hello ada", T(nil, "hello %s", "ada"))
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	_, err := Load(fstest.MapFS{}, "en")
	require.Error(t, err)

	_, err = Load(fstest.MapFS{
		"locales/xx.yaml": {Data: []byte("locale: \"???\"\nmessages:\n  a: b\n")},
	}, "en")
	require.Error(t, err)

	_, err = Load(fstest.MapFS{
		"locales/en.yaml": {Data: []byte("locale: en\nmessages: [\n")},
	}, "en")
	require.Error(t, err)
}
