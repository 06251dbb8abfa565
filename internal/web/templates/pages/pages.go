package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/legal"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/templates/helpers"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/templates/layouts"
)

// DashboardData is the signed-in landing page payload.
type DashboardData struct {
	Layout    layouts.Data
	SessionID string
}

// LegalData renders a terms or privacy document.
type LegalData struct {
	Layout   layouts.Data
	Document legal.Document
}

// Home renders the public landing page.
func Home(layout layouts.Data) templ.Component {
	content := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Raw(`<section class="mx-auto max-w-3xl px-4 py-24 text-center" data-home>`)
		hw.Rawf(`<h1 class="text-4xl font-bold tracking-tight">%s</h1>`, layout.T("home.title"))
		hw.Rawf(`<p class="mt-4 text-lg text-slate-600 dark:text-slate-300">%s</p>`, layout.T("home.tagline"))
		hw.Raw(`<div class="mt-8 flex justify-center gap-3">`)
		if layout.User != nil {
			hw.Rawf(`<a href="/dashboard" class="rounded-md bg-slate-900 px-4 py-2 font-medium text-white dark:bg-white dark:text-slate-900" data-cta="dashboard">%s</a>`, layout.T("home.cta_dashboard"))
		} else {
			hw.Rawf(`<a href="/sign-up" class="rounded-md bg-slate-900 px-4 py-2 font-medium text-white dark:bg-white dark:text-slate-900" data-cta="sign-up">%s</a>`, layout.T("home.cta_start"))
			hw.Rawf(`<a href="/sign-in" class="rounded-md px-4 py-2 font-medium text-slate-700 ring-1 ring-slate-300 dark:text-slate-200" data-cta="sign-in">%s</a>`, layout.T("nav.sign_in"))
		}
		hw.Raw(`</div></section>`)
		return hw.Err()
	})
	return layouts.Base(layout, content)
}

// Dashboard renders the protected landing page.
func Dashboard(data DashboardData) templ.Component {
	layout := data.Layout
	if layout.Title == "" {
		layout.Title = layout.T("dashboard.title")
	}
	content := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Raw(`<section class="mx-auto max-w-6xl px-4 py-12" data-dashboard>`)
		hw.Rawf(`<h1 class="text-2xl font-semibold">%s</h1>`, layout.T("dashboard.title"))
		if layout.User != nil {
			hw.Rawf(`<p class="mt-2 text-slate-600 dark:text-slate-300" data-signed-in-as>%s</p>`, layout.T("dashboard.signed_in_as", layout.User.Label()))
		}
		if data.SessionID != "" {
			hw.Rawf(`<p class="mt-1 text-xs text-slate-400" data-session-id>%s</p>`, layout.T("dashboard.session", data.SessionID))
		}
		hw.Raw(`</section>`)
		return hw.Err()
	})
	return layouts.Base(layout, content)
}

// Legal renders a sanitised legal document.
func Legal(data LegalData) templ.Component {
	layout := data.Layout
	doc := data.Document
	if layout.Title == "" {
		layout.Title = doc.Title
	}
	content := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Rawf(`<article class="prose mx-auto max-w-3xl px-4 py-12 dark:prose-invert" lang="%s" data-legal="%s">`, doc.Lang, doc.Slug)
		hw.Rawf(`<h1>%s</h1>`, doc.Title)
		if doc.Summary != "" {
			hw.Rawf(`<p class="lead">%s</p>`, doc.Summary)
		}
		if !doc.EffectiveDate.IsZero() || !doc.UpdatedAt.IsZero() {
			hw.Raw(`<p class="text-sm text-slate-500">`)
			if !doc.EffectiveDate.IsZero() {
				hw.Rawf(`<span data-effective>%s</span> `, layout.T("legal.effective", helpers.Date(doc.EffectiveDate, "")))
			}
			if !doc.UpdatedAt.IsZero() {
				hw.Rawf(`<span data-updated>%s</span>`, layout.T("legal.updated", helpers.Date(doc.UpdatedAt, "")))
			}
			hw.Raw(`</p>`)
		}
		// Document HTML is sanitised when the library renders it.
		hw.Raw(string(doc.HTML))
		hw.Raw(`</article>`)
		return hw.Err()
	})
	return layouts.Base(layout, content)
}
