package layouts

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/i18n"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/templates/helpers"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/widget"
)

// MountScriptPath is the script that mounts provider widgets onto the page.
const MountScriptPath = "/public/static/js/auth-widget.js"

// AfterAuthPath is where the provider widgets send the browser once sign-in
// or sign-up completes and no redirect_url was requested.
const AfterAuthPath = "/auth/callback"

// StylesheetPath is the compiled stylesheet.
const StylesheetPath = "/public/static/css/app.css"

// UserView is the signed-in visitor shown in the header.
type UserView struct {
	ID    string
	Email string
}

// Label returns the email when known, otherwise the identifier.
func (u UserView) Label() string {
	if strings.TrimSpace(u.Email) != "" {
		return u.Email
	}
	return u.ID
}

// Data is the chrome shared by every page.
type Data struct {
	Lang        string
	Title       string
	Environment string
	CurrentPath string
	CSRFToken   string
	User        *UserView
	Provider    widget.Provider
	Localizer   i18n.Localizer
}

// T translates key for the page language.
func (d Data) T(key string, args ...any) string {
	return i18n.T(d.Localizer, key, args...)
}

type navItem struct {
	key     string
	href    string
	pattern string
	prefix  bool
}

var navItems = []navItem{
	{key: "nav.home", href: "/", pattern: "/"},
	{key: "nav.dashboard", href: "/dashboard", pattern: "/dashboard", prefix: true},
}

// Base wraps body in the document shell.
func Base(data Data, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		lang := data.Lang
		if lang == "" {
			lang = "en"
		}
		brand := data.T("brand.name")
		title := brand
		if data.Title != "" {
			title = data.Title + " · " + brand
		}

		hw := helpers.NewWriter(w)
		hw.Rawf(`<!DOCTYPE html><html lang="%s" class="h-full"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`, lang)
		hw.Rawf(`<title>%s</title>`, title)
		hw.Rawf(`<link rel="stylesheet" href="%s">`, StylesheetPath)
		if data.Provider.Enabled() {
			hw.Rawf(`<script async crossorigin="anonymous" data-clerk-publishable-key="%s" src="%s"></script>`, data.Provider.PublishableKey, data.Provider.ScriptURL)
		}
		hw.Rawf(`<script defer data-auth-mount data-after-auth-url="%s" src="%s"></script>`, AfterAuthPath, MountScriptPath)
		hw.Raw(`</head><body class="flex min-h-full flex-col bg-white text-slate-900 antialiased dark:bg-slate-950 dark:text-slate-100">`)
		header(hw, data)
		hw.Raw(`<main id="main" class="flex-1">`)
		hw.Component(ctx, body)
		hw.Raw(`</main>`)
		footer(hw, data)
		hw.Raw(`</body></html>`)
		return hw.Err()
	})
}

func header(hw *helpers.Writer, data Data) {
	hw.Raw(`<header class="border-b border-slate-200 dark:border-slate-800"><nav class="mx-auto flex max-w-6xl items-center justify-between gap-4 px-4 py-3" aria-label="Main">`)
	hw.Rawf(`<a href="/" class="text-lg font-semibold tracking-tight" data-brand>%s</a>`, data.T("brand.name"))
	hw.Raw(`<div class="flex items-center gap-1">`)
	for _, item := range navItems {
		active := helpers.NavActive(data.CurrentPath, item.pattern, item.prefix)
		current := ""
		if active {
			current = ` aria-current="page"`
		}
		hw.Rawf(`<a href="%s" class="%s" data-nav="%s"`, item.href, helpers.NavClass(active), item.key)
		hw.Raw(current + ">")
		hw.Text(data.T(item.key))
		hw.Raw(`</a>`)
	}
	hw.Raw(`</div><div class="flex items-center gap-3">`)
	if data.User != nil {
		hw.Rawf(`<span class="text-sm text-slate-500" data-user>%s</span>`, data.User.Label())
		hw.Raw(`<form method="post" action="/sign-out" data-sign-out>`)
		hw.Rawf(`<input type="hidden" name="csrf_token" value="%s">`, data.CSRFToken)
		hw.Rawf(`<button type="submit" class="rounded-md px-3 py-2 text-sm font-medium text-slate-600 hover:bg-slate-100 dark:text-slate-300 dark:hover:bg-slate-800">%s</button></form>`, data.T("nav.sign_out"))
	} else {
		hw.Rawf(`<a href="/sign-in" class="%s">%s</a>`, helpers.NavClass(helpers.NavActive(data.CurrentPath, "/sign-in", true)), data.T("nav.sign_in"))
		hw.Rawf(`<a href="/sign-up" class="rounded-md bg-slate-900 px-3 py-2 text-sm font-medium text-white dark:bg-white dark:text-slate-900">%s</a>`, data.T("nav.sign_up"))
	}
	hw.Raw(`</div></nav></header>`)
}

func footer(hw *helpers.Writer, data Data) {
	hw.Raw(`<footer class="border-t border-slate-200 dark:border-slate-800"><div class="mx-auto flex max-w-6xl items-center justify-between gap-4 px-4 py-6 text-sm text-slate-500">`)
	hw.Rawf(`<p>© %s. %s</p>`, data.T("brand.name"), data.T("footer.rights"))
	hw.Raw(`<div class="flex items-center gap-4">`)
	hw.Rawf(`<a href="/terms">%s</a><a href="/privacy">%s</a>`, data.T("footer.terms"), data.T("footer.privacy"))
	if env := strings.TrimSpace(data.Environment); env != "" && !helpers.IsProduction(env) {
		hw.Rawf(`<span class="%s" data-environment>%s</span>`, helpers.EnvironmentBadgeClass(env), strings.ToUpper(env))
	}
	hw.Raw(`</div></div></footer>`)
}
