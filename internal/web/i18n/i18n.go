package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// Localizer provides translated strings for page components.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds the registered message catalogs.
type Bundle struct {
	catalog *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
}

// Load reads locales/*.yaml from files and registers every message.
func Load(files fs.FS, fallback string) (*Bundle, error) {
	paths, err := fs.Glob(files, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("i18n: glob catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("i18n: no catalog files found")
	}
	sort.Strings(paths)

	fallbackTag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("i18n: parse fallback %q: %w", fallback, err)
	}
	builder := catalog.NewBuilder(catalog.Fallback(fallbackTag))
	bundle := &Bundle{catalog: builder, tags: []language.Tag{fallbackTag}}

	for _, path := range paths {
		data, err := fs.ReadFile(files, path)
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("i18n: %s: invalid locale %q: %w", path, file.Locale, err)
		}
		for key, msg := range file.Messages {
			if err := builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("i18n: %s: set %s: %w", path, key, err)
			}
		}
		if tag != fallbackTag {
			bundle.tags = append(bundle.tags, tag)
		}
	}
	bundle.matcher = language.NewMatcher(bundle.tags)
	return bundle, nil
}

// Default loads the catalogs compiled into the binary with English as fallback.
func Default() *Bundle {
	bundle, err := Load(embeddedLocales, "en")
	if err != nil {
		panic(err)
	}
	return bundle
}

// Locales lists the languages that have a catalog, fallback first.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.tags))
	for _, tag := range b.tags {
		out = append(out, tag.String())
	}
	return out
}

// Printer returns a Localizer for lang. Unknown languages use the fallback catalog.
func (b *Bundle) Printer(lang string) *message.Printer {
	tag := b.tags[0]
	if parsed, err := language.Parse(lang); err == nil {
		_, idx, _ := b.matcher.Match(parsed)
		tag = b.tags[idx]
	}
	return message.NewPrinter(tag, message.Catalog(b.catalog))
}

// T returns a translated string or the key if no localizer is available.
func T(loc Localizer, key string, args ...any) string {
	if loc == nil {
		if len(args) == 0 {
			return key
		}
		return fmt.Sprintf(key, args...)
	}
	return loc.Sprintf(key, args...)
}
