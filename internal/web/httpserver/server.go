package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aditya4232/AgentForge-XT-sub001/internal/platform/observability"
	custommw "github.com/aditya4232/AgentForge-XT-sub001/internal/web/httpserver/middleware"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/i18n"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/legal"
	appsession "github.com/aditya4232/AgentForge-XT-sub001/internal/web/session"
	"github.com/aditya4232/AgentForge-XT-sub001/internal/web/widget"
	"github.com/aditya4232/AgentForge-XT-sub001/public"
)

const (
	signInPath    = widget.SignInPath
	signUpPath    = widget.SignUpPath
	afterAuthPath = "/dashboard"
	callbackPath  = "/auth/callback"
)

// Config holds runtime options for the web HTTP server.
type Config struct {
	Address        string
	Environment    string
	Authenticator  custommw.Authenticator
	Sessions       *appsession.Manager
	Provider       widget.Provider
	TokenCookie    string
	DefaultLocale  string
	Locales        []string
	Messages       *i18n.Bundle
	Legal          *legal.Library
	Logger         *zap.Logger
	TraceProjectID string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration

	Now func() time.Time
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) (*http.Server, error) {
	handler, err := NewHandler(cfg)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 60*time.Second),
	}, nil
}

// NewHandler builds the router serving pages, JSON endpoints and static assets.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Sessions == nil {
		return nil, errMissing("session manager")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	authenticator := cfg.Authenticator
	if authenticator == nil {
		if !strings.EqualFold(cfg.Environment, "local") {
			return nil, errMissing("authenticator")
		}
		authenticator = custommw.DevAuthenticator()
	}
	messages := cfg.Messages
	if messages == nil {
		messages = i18n.Default()
	}
	library := cfg.Legal
	if library == nil {
		library = legal.Default()
	}
	locales := cfg.Locales
	if len(locales) == 0 {
		locales = messages.Locales()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.Tracing(cfg.TraceProjectID))
	router.Use(observability.AccessLog(logger))
	router.Use(observability.Recover(logger))
	router.Use(chimw.Compress(5))
	router.Use(chimw.Timeout(durationOr(cfg.RequestTimeout, 30*time.Second)))

	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))

	tokenCookie := firstNonEmpty(cfg.TokenCookie, "__session")
	startedAt := now()
	api := &apiHandlers{
		authenticator: authenticator,
		tokenCookie:   tokenCookie,
		startedAt:     startedAt,
		now:           now,
	}
	router.Get("/healthz", api.Health)
	router.Get("/api/session", api.Session)

	pages := &pageHandlers{
		provider: cfg.Provider,
		messages: messages,
		legal:    library,
	}
	authPages := &authHandlers{
		pageHandlers: pages,
		tokenCookie:  tokenCookie,
		secure:       !strings.EqualFold(cfg.Environment, "local"),
	}

	router.Group(func(r chi.Router) {
		r.Use(custommw.Environment(cfg.Environment))
		r.Use(custommw.Session(cfg.Sessions))
		r.Use(custommw.Locale(firstNonEmpty(cfg.DefaultLocale, "en"), locales))
		r.Use(custommw.HTMX())
		r.Use(custommw.Gate(authenticator, custommw.GateConfig{
			SignInPath:    signInPath,
			AfterAuthPath: afterAuthPath,
			AuthPrefixes:  []string{signInPath, signUpPath},
			PublicPaths:   []string{"/", "/terms", "/privacy", callbackPath},
			TokenCookie:   tokenCookie,
		}))
		r.Use(custommw.CSRF())
		r.Use(custommw.NoStore())

		r.Get("/", pages.Home)
		r.Get(signUpPath, authPages.SignUp)
		r.Get(signUpPath+"/*", authPages.SignUp)
		r.Get(signInPath, authPages.SignIn)
		r.Get(signInPath+"/*", authPages.SignIn)
		r.Get(callbackPath, authPages.Callback)
		r.Post("/sign-out", authPages.SignOut)
		r.Get("/dashboard", pages.Dashboard)
		r.Get("/terms", pages.Legal("terms"))
		r.Get("/privacy", pages.Legal("privacy"))
	})

	return router, nil
}

func errMissing(what string) error {
	return fmt.Errorf("httpserver: %s is required", what)
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
