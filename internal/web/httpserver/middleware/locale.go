package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the visitor's language preference.
	LangCookieName = "agentforge_lang"
)

// Locale negotiates the page language from the lang query parameter, the
// preference cookie and Accept-Language, in that order, and stores the
// winning BCP 47 tag on the context.
func Locale(defaultLang string, supported []string) func(http.Handler) http.Handler {
	tags := make([]language.Tag, 0, len(supported)+1)
	if tag, err := language.Parse(defaultLang); err == nil {
		tags = append(tags, tag)
	} else {
		tags = append(tags, language.English)
	}
	for _, raw := range supported {
		if tag, err := language.Parse(strings.TrimSpace(raw)); err == nil && tag != tags[0] {
			tags = append(tags, tag)
		}
	}
	matcher := language.NewMatcher(tags)

	match := func(candidates ...language.Tag) string {
		tag, index, confidence := matcher.Match(candidates...)
		if confidence == language.No {
			return tags[0].String()
		}
		if index >= 0 && index < len(tags) {
			return tags[index].String()
		}
		base, _ := tag.Base()
		return base.String()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := tags[0].String()
			if raw := strings.TrimSpace(r.URL.Query().Get(LangParam)); raw != "" {
				if tag, err := language.Parse(raw); err == nil {
					lang = match(tag)
					http.SetCookie(w, &http.Cookie{
						Name:     LangCookieName,
						Value:    lang,
						Path:     "/",
						MaxAge:   int((365 * 24 * time.Hour).Seconds()),
						SameSite: http.SameSiteLaxMode,
					})
				}
			} else if c, err := r.Cookie(LangCookieName); err == nil && c.Value != "" {
				if tag, err := language.Parse(c.Value); err == nil {
					lang = match(tag)
				}
			} else if accept := r.Header.Get("Accept-Language"); accept != "" {
				if prefs, _, err := language.ParseAcceptLanguage(accept); err == nil && len(prefs) > 0 {
					lang = match(prefs...)
				}
			}

			w.Header().Set("Content-Language", lang)
			ctx := context.WithValue(r.Context(), localeContextKey{}, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext returns the negotiated language tag, defaulting to "en".
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return "en"
	}
	if lang, ok := ctx.Value(localeContextKey{}).(string); ok && lang != "" {
		return lang
	}
	return "en"
}
