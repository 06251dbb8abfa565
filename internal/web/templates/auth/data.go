package auth

import (
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/templates/layouts"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/widget"
)

// ContainerClass is the full-viewport centering container around the widget.
const ContainerClass = "min-h-screen flex items-center justify-center bg-gradient-to-br from-slate-50 to-slate-100 dark:from-slate-950 dark:to-slate-900"

// PageData encapsulates rendering state for the sign-up and sign-in screens.
type PageData struct {
	Layout  layouts.Data
	Kind    widget.Kind
	Options widget.Options
	// Expired is set when the visitor was sent here because their session token expired.
	Expired bool
}

// CompletePageData drives the interstitial shown while the provider finishes signing in.
type CompletePageData struct {
	Layout layouts.Data
	Next   string
}
