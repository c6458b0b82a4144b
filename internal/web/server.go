// Package web serves the brokerage site: landing pages, the multi-step
// listing and contact forms, newsletter signup, sign-in, the dashboard and
// a JSON API over the form engine.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/shipbroker/internal/auth"
	"github.com/JonMunkholm/shipbroker/internal/config"
	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/metrics"
	"github.com/JonMunkholm/shipbroker/internal/store"
	"github.com/JonMunkholm/shipbroker/internal/verify"
	"github.com/JonMunkholm/shipbroker/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config   *config.Config
	Forms    *core.Service
	Store    store.Store
	Sessions *auth.Manager
	Auth     auth.Authenticator
	Verifier *verify.Client

	// Metrics is optional; nil disables instrumentation and /metrics.
	Metrics *metrics.Metrics
}

// Server is the HTTP server for the site.
type Server struct {
	cfg      *config.Config
	forms    *core.Service
	store    store.Store
	sessions *auth.Manager
	auth     auth.Authenticator
	verifier *verify.Client
	metrics  *metrics.Metrics

	router *chi.Mux
	server *http.Server
}

// NewServer wires the router.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:      d.Config,
		forms:    d.Forms,
		store:    d.Store,
		sessions: d.Sessions,
		auth:     d.Auth,
		verifier: d.Verifier,
		metrics:  d.Metrics,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(s.sessions.Restore)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.Handler(s.rateLimited))
	}
}

func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.NotFound(s.handleNotFound)
	s.router.Get("/", s.handleHome)
	s.router.Get("/services", s.handleServices)
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	// Everything that writes is limited more tightly than page views.
	submit := func(r chi.Router) chi.Router { return r }
	if s.cfg.Rate.Enabled {
		limiter := middleware.NewRateLimiter(s.cfg.Rate.SubmitLimit, time.Minute)
		submit = func(r chi.Router) chi.Router { return r.With(limiter.Handler(s.rateLimited)) }
	}

	for _, def := range core.All() {
		if def.Path == "" {
			continue
		}
		key := def.Key
		s.router.Get(def.Path, s.handleFormPage(key))
		submit(s.router).Post(def.Path, s.handleFormPost(key))
	}
	submit(s.router).Post("/newsletter", s.handleNewsletter)

	s.router.Get("/sign-in", s.handleSignInPage)
	s.router.Get("/sign-up", s.handleSignUpPage)
	submit(s.router).Post("/sign-in", s.handleSignIn)
	submit(s.router).Post("/sign-up", s.handleSignUp)
	s.router.Post("/sign-out", s.handleSignOut)
	s.router.With(auth.RequireUser).Get("/dashboard", s.handleDashboard)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))
		r.Get("/forms", s.handleAPIListForms)
		submit(r).Post("/forms/{formKey}/drafts", s.handleAPICreateDraft)
		r.Get("/drafts/{draftID}", s.handleAPIGetDraft)
		submit(r).Patch("/drafts/{draftID}", s.handleAPIPatchDraft)
		submit(r).Post("/drafts/{draftID}/advance", s.handleAPIAdvance)
		submit(r).Post("/drafts/{draftID}/retreat", s.handleAPIRetreat)
		submit(r).Post("/drafts/{draftID}/submit", s.handleAPISubmit)
		submit(r).Post("/drafts/{draftID}/reset", s.handleAPIReset)
		r.Delete("/drafts/{draftID}", s.handleAPIDiscard)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr, "forms", core.FormCount())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, errRateLimited, http.StatusTooManyRequests)
}

// writeJSON encodes v with the given status. Encoding errors are logged
// since the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "json encode error", "error", err)
	}
}
