package httpserver

import (
	"errors"
	"net/http"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/requestctx"
	custommw "github.com/aditya4232/AgentForge-XT-sub001/internal/web/httpserver/middleware"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/i18n"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/legal"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/templates/layouts"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/templates/pages"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/widget"
)

type pageHandlers struct {
	provider widget.Provider
	messages *i18n.Bundle
	legal    *legal.Library
}

func (h *pageHandlers) layout(r *http.Request) layouts.Data {
	ctx := r.Context()
	lang := custommw.LocaleFromContext(ctx)
	data := layouts.Data{
		Lang:        lang,
		Environment: custommw.EnvironmentFromContext(ctx),
		CurrentPath: r.URL.Path,
		CSRFToken:   custommw.CSRFTokenFromContext(ctx),
		Provider:    h.provider,
		Localizer:   h.messages.Printer(lang),
	}
	if user, ok := custommw.UserFromContext(ctx); ok {
		data.User = &layouts.UserView{ID: user.UID, Email: user.Email}
	}
	return data
}

// Home renders the public landing page.
func (h *pageHandlers) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	render(w, r, pages.Home(h.layout(r)), http.StatusOK)
}

// Dashboard renders the signed-in landing page.
func (h *pageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := custommw.UserFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	render(w, r, pages.Dashboard(pages.DashboardData{
		Layout:    h.layout(r),
		SessionID: user.SessionID,
	}), http.StatusOK)
}

// Legal returns a handler rendering the document named slug.
func (h *pageHandlers) Legal(slug string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layout := h.layout(r)
		doc, err := h.legal.Load(slug, layout.Lang)
		if err != nil {
			if errors.Is(err, legal.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			requestctx.Logger(r.Context()).Error("legal: load document failed", zap.String("slug", slug), zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		render(w, r, pages.Legal(pages.LegalData{Layout: layout, Document: doc}), http.StatusOK)
	}
}

func render(w http.ResponseWriter, r *http.Request, component templ.Component, status int) {
	templ.Handler(component,
		templ.WithStatus(status),
		templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requestctx.Logger(r.Context()).Error("render page failed", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			})
		}),
	).ServeHTTP(w, r)
}
