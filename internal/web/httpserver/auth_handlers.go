package httpserver

import (
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	custommw "github.com/aditya4232/AgentForge-XT-sub001/internal/web/httpserver/middleware"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/templates/auth"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/widget"
)

type authHandlers struct {
	*pageHandlers
	tokenCookie string
	secure      bool
}

// SignUp renders the hosted sign-up widget for /sign-up and its nested steps.
func (h *authHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	render(w, r, auth.SignUpPage(auth.PageData{
		Layout:  h.layout(r),
		Kind:    widget.KindSignUp,
		Options: widget.SignUpOptions(),
	}), http.StatusOK)
}

// SignIn renders the hosted sign-in widget for /sign-in and its nested steps.
func (h *authHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	render(w, r, auth.SignInPage(auth.PageData{
		Layout:  h.layout(r),
		Kind:    widget.KindSignIn,
		Options: widget.SignInOptions(),
		Expired: r.URL.Query().Get("reason") == "expired",
	}), http.StatusOK)
}

// Callback resumes the page the visitor wanted once the provider session is
// visible to the server. Until then it renders an interstitial that reloads.
func (h *authHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, hasSession := custommw.SessionFromContext(ctx)

	target := ""
	if _, ok := custommw.UserFromContext(ctx); ok {
		if hasSession {
			target = h.normalizeNext(sess.TakeReturnTo())
		}
		if target == "" {
			target = afterAuthPath
		}
		custommw.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	if hasSession {
		target = h.normalizeNext(sess.ReturnTo())
	}
	if target == "" {
		target = afterAuthPath
	}
	w.Header().Set("Refresh", "1; url="+target)
	render(w, r, auth.CompletePage(auth.CompletePageData{
		Layout: h.layout(r),
		Next:   target,
	}), http.StatusOK)
}

// SignOut clears the local session and the provider session cookie.
func (h *authHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok && sess != nil {
		sess.Destroy()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	custommw.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *authHandlers) normalizeNext(raw string) string {
	sanitized := sanitizeNextTarget(raw)
	if sanitized == "" {
		return ""
	}
	p := pathOnly(sanitized)
	for _, blocked := range []string{signInPath, signUpPath, callbackPath, "/sign-out"} {
		if p == blocked || strings.HasPrefix(p, blocked+"/") {
			return ""
		}
	}
	return sanitized
}

// sanitizeNextTarget accepts only same-origin absolute paths.
func sanitizeNextTarget(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" || parsed.Host != "" || parsed.User != nil {
		return ""
	}

	pathValue := parsed.Path
	if pathValue == "" {
		return ""
	}
	unescaped, err := url.PathUnescape(pathValue)
	if err != nil {
		return ""
	}
	if strings.Contains(unescaped, "\\") || !strings.HasPrefix(unescaped, "/") {
		return ""
	}

	cleaned := path.Clean(unescaped)
	if strings.HasPrefix(cleaned, "//") {
		return ""
	}

	target := cleaned
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		target += "#" + parsed.Fragment
	}
	return target
}

func pathOnly(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Path
}
