package legal

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

//go:embed content
var embedded embed.FS

// ErrNotFound is returned when no document exists for a slug in any language.
var ErrNotFound = errors.New("legal: document not found")

const defaultLang = "en"

// Document is a rendered legal page.
type Document struct {
	Slug          string
	Lang          string
	Title         string
	Summary       string
	EffectiveDate time.Time
	UpdatedAt     time.Time
	HTML          template.HTML
}

type frontMatter struct {
	Title         string `yaml:"title"`
	Summary       string `yaml:"summary"`
	Lang          string `yaml:"lang"`
	EffectiveDate string `yaml:"effective_date"`
	UpdatedAt     string `yaml:"updated_at"`
}

// Library renders markdown documents from a file system and caches the result.
type Library struct {
	files    fs.FS
	markdown goldmark.Markdown
	policy   *bluemonday.Policy

	mu    sync.RWMutex
	cache map[string]Document
}

// New returns a Library over files, which holds <lang>/<slug>.md entries.
func New(files fs.FS) *Library {
	return &Library{
		files: files,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		policy: newPolicy(),
		cache:  map[string]Document{},
	}
}

// Default returns a Library over the documents compiled into the binary.
func Default() *Library {
	sub, err := fs.Sub(embedded, "content")
	if err != nil {
		panic(fmt.Sprintf("legal: embedded content: %v", err))
	}
	return New(sub)
}

// Load returns the document for slug in lang, falling back to English.
func (l *Library) Load(slug, lang string) (Document, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" || strings.ContainsAny(slug, "/\\.") {
		return Document{}, ErrNotFound
	}
	lang = strings.TrimSpace(strings.ToLower(lang))
	if lang == "" {
		lang = defaultLang
	}

	priority := []string{lang}
	if lang != defaultLang {
		priority = append(priority, defaultLang)
	}
	for _, candidate := range priority {
		doc, err := l.load(slug, candidate)
		if err == nil {
			return doc, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return Document{}, err
	}
	return Document{}, ErrNotFound
}

func (l *Library) load(slug, lang string) (Document, error) {
	key := lang + "/" + slug
	l.mu.RLock()
	doc, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return doc, nil
	}

	doc, err := l.render(slug, lang)
	if err != nil {
		return Document{}, err
	}

	l.mu.Lock()
	l.cache[key] = doc
	l.mu.Unlock()
	return doc, nil
}

func (l *Library) render(slug, lang string) (Document, error) {
	file := path.Join(lang, slug+".md")
	data, err := fs.ReadFile(l.files, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("legal: read %s: %w", file, err)
	}

	fm, body := splitFrontMatter(string(data))
	front := frontMatter{}
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Document{}, fmt.Errorf("legal: parse front matter %s: %w", file, err)
		}
	}

	var buf bytes.Buffer
	if err := l.markdown.Convert([]byte(body), &buf); err != nil {
		return Document{}, fmt.Errorf("legal: render %s: %w", file, err)
	}

	doc := Document{
		Slug:          slug,
		Lang:          firstNonEmpty(strings.TrimSpace(front.Lang), lang),
		Title:         strings.TrimSpace(front.Title),
		Summary:       strings.TrimSpace(front.Summary),
		EffectiveDate: parseDate(front.EffectiveDate),
		UpdatedAt:     parseDate(front.UpdatedAt),
		HTML:          template.HTML(l.policy.SanitizeBytes(buf.Bytes())),
	}
	if doc.Title == "" {
		doc.Title = prettifySlug(slug)
	}
	return doc, nil
}

func newPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4")
	policy.RequireNoFollowOnLinks(true)
	return policy
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

func parseDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006/01/02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func prettifySlug(slug string) string {
	parts := strings.Split(slug, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
