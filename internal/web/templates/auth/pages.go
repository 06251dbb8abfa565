package auth

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/templates/helpers"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/templates/layouts"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/widget"
)

// Widget renders the mount point for a provider widget. The browser SDK
// replaces its children; the placeholder only shows when no SDK is loaded.
func Widget(kind widget.Kind, opts widget.Options, placeholder string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := opts.Validate(); err != nil {
			return err
		}
		props, err := opts.Props()
		if err != nil {
			return err
		}
		hw := helpers.NewWriter(w)
		hw.Rawf(`<div id="%s" data-auth-widget data-widget-kind="%s" data-widget-mount="%s" data-widget-props="%s">`,
			string(kind), string(kind), kind.MountFunction(), props)
		if placeholder != "" {
			hw.Rawf(`<p class="text-sm text-slate-500" data-widget-placeholder>%s</p>`, placeholder)
		}
		hw.Raw(`</div>`)
		return hw.Err()
	})
}

// Container wraps content in the centering gradient container.
func Container(content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Rawf(`<div class="%s" data-auth-container>`, ContainerClass)
		hw.Component(ctx, content)
		hw.Raw(`</div>`)
		return hw.Err()
	})
}

// SignUpPage renders the sign-up widget inside the centering container.
func SignUpPage(data PageData) templ.Component {
	return layouts.Base(withTitle(data.Layout, "auth.sign_up_title"), body(data))
}

// SignInPage renders the sign-in widget. An expired-session notice sits
// above the container so the container still wraps only the widget.
func SignInPage(data PageData) templ.Component {
	return layouts.Base(withTitle(data.Layout, "auth.sign_in_title"), body(data))
}

// CompletePage is shown on /auth/callback until the provider cookie arrives.
func CompletePage(data CompletePageData) templ.Component {
	layout := withTitle(data.Layout, "auth.completing")
	next := data.Next
	if next == "" {
		next = "/dashboard"
	}
	content := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Rawf(`<meta http-equiv="refresh" content="1;url=%s">`, next)
		hw.Rawf(`<div class="%s" data-auth-container><div class="text-center" data-auth-complete>`, ContainerClass)
		hw.Rawf(`<p class="text-lg font-medium">%s</p>`, layout.T("auth.completing"))
		hw.Rawf(`<a class="mt-4 inline-block text-sm underline" href="%s">%s</a>`, next, layout.T("auth.continue"))
		hw.Raw(`</div></div>`)
		return hw.Err()
	})
	return layouts.Base(layout, content)
}

func body(data PageData) templ.Component {
	placeholder := ""
	if !data.Layout.Provider.Enabled() {
		placeholder = data.Layout.T("auth.script_missing")
	}
	container := Container(Widget(data.Kind, data.Options, placeholder))
	if !data.Expired {
		return container
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Rawf(`<div role="status" class="bg-amber-50 px-4 py-3 text-center text-sm text-amber-800" data-session-expired>%s</div>`, data.Layout.T("auth.expired_notice"))
		hw.Component(ctx, container)
		return hw.Err()
	})
}

func withTitle(layout layouts.Data, key string) layouts.Data {
	if layout.Title == "" {
		layout.Title = layout.T(key)
	}
	return layout
}
