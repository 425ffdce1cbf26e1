// Package web provides the HTTP server for Muse: the waitlist API, Google
// sign-in, the per-device closet API and a few server-rendered pages.
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/muse/internal/auth"
	"github.com/justestif/muse/internal/capsule"
	"github.com/justestif/muse/internal/catalog"
	"github.com/justestif/muse/internal/closet"
	"github.com/justestif/muse/internal/logger"
)

const (
	// DefaultAddr is the default server address.
	DefaultAddr = "127.0.0.1:3000"

	// CallbackPath must match the redirect URI registered with Google.
	CallbackPath = "/auth/callback"

	defaultShutdownTimeout = 10 * time.Second
	defaultSessionSweep    = time.Hour
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// SessionSweep is how often expired sessions are pruned while running.
	SessionSweep time.Duration

	Logger   *logger.Logger
	Catalog  *catalog.Catalog
	Closets  *closet.Store
	Waitlist auth.Waitlist
	SignIn   *auth.SignIn
	// Provider is nil when Google sign-in is not configured.
	Provider IdentityProvider
	Sessions SessionManager
	Devices  *DeviceTokens
	Capsules capsule.Config

	TemplatesFS fs.FS
	StaticFS    fs.FS
}

// Server is the HTTP server for the web application.
type Server struct {
	router          chi.Router
	server          *http.Server
	log             *logger.Logger
	handlers        *Handlers
	devices         *DeviceTokens
	sessions        SessionManager
	shutdownTimeout time.Duration
	sessionSweep    time.Duration
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Catalog == nil || cfg.Closets == nil || cfg.Waitlist == nil || cfg.Devices == nil {
		return nil, errors.New("server: catalog, closets, waitlist and devices are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionStore()
	}
	if cfg.SignIn == nil {
		cfg.SignIn = auth.NewSignIn(cfg.Waitlist, cfg.Logger)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.SessionSweep <= 0 {
		cfg.SessionSweep = defaultSessionSweep
	}

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	handlers := &Handlers{
		log:       cfg.Logger,
		baseURL:   cfg.BaseURL,
		catalog:   cfg.Catalog,
		closets:   cfg.Closets,
		waitlist:  cfg.Waitlist,
		signIn:    cfg.SignIn,
		provider:  cfg.Provider,
		sessions:  cfg.Sessions,
		templates: templates,
		capsules:  cfg.Capsules,
	}

	s := &Server{
		router:          chi.NewRouter(),
		log:             cfg.Logger,
		handlers:        handlers,
		devices:         cfg.Devices,
		sessions:        cfg.Sessions,
		shutdownTimeout: cfg.ShutdownTimeout,
		sessionSweep:    cfg.SessionSweep,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.StaticFS)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(staticFS fs.FS) {
	h := s.handlers

	compress := middleware.Compress(5)

	if staticFS != nil {
		fileServer := http.FileServer(http.FS(staticFS))
		s.router.With(compress).Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Waitlist
	for _, prefix := range []string{"/api/waitlist", "/waitlist"} {
		s.router.Post(prefix, h.JoinWaitlist)
		s.router.Get(prefix, h.CheckWaitlist)
	}

	// Auth
	s.router.Get("/auth/login", h.Login)
	s.router.Get(CallbackPath, h.Callback)
	s.router.Get("/auth/check-status", h.CheckStatus)
	s.router.Post("/auth/logout", h.Logout)

	// Device-scoped pages and API
	s.router.Group(func(r chi.Router) {
		r.Use(s.devices.Middleware)

		// Streams are flushed per event and stay uncompressed.
		r.Get("/api/events", h.Events)

		r.Group(func(r chi.Router) {
			r.Use(compress)

			r.Get("/", h.Home)
			r.Get("/login", h.LoginPage)
			r.Get("/already-registered", h.AlreadyRegistered)
			r.Get("/coming-soon", h.ComingSoon)

			r.Get("/api/options", h.Options)

			r.Get("/api/catalog", h.ListCatalog)
			r.Get("/api/catalog/{id}", h.GetItem)

			r.Get("/api/profile", h.GetProfile)
			r.Put("/api/profile", h.PutProfile)
			r.Delete("/api/profile", h.DeleteProfile)
			r.Post("/api/profile/onboarding", h.CompleteOnboarding)
			r.Put("/api/profile/fit", h.UpdateFit)

			r.Get("/api/saved", h.ListSaved)
			r.Get("/api/saved/capsules", h.Capsules)
			r.Post("/api/saved/{id}/toggle", h.ToggleSaved)

			r.Get("/api/cart", h.GetCart)
			r.Delete("/api/cart", h.ClearCart)
			r.Post("/api/cart/{id}", h.AddToCart)
			r.Put("/api/cart/{id}", h.UpdateCartQuantity)
			r.Delete("/api/cart/{id}", h.RemoveFromCart)

			r.Post("/api/interactions", h.TrackInteraction)
			r.Get("/api/style-dna", h.StyleDNA)
		})
	})
}

// requestLogger logs one line per request; 5xx at error, 4xx at warn.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				kv := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				}
				switch {
				case status >= 500:
					log.Error("request", kv...)
				case status >= 400:
					log.Warn("request", kv...)
				default:
					log.Info("request", kv...)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Serve accepts connections on l until the server is shut down.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("starting server", "addr", l.Addr().String())
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// in-flight requests for the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.sweepSessions(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	})

	return g.Wait()
}

// sweepSessions prunes expired sessions every sweep interval until ctx ends.
// Failures are logged and retried on the next tick.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(s.sessionSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sessions.Prune(ctx)
			if err != nil {
				s.log.Warn("pruning sessions failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("pruned expired sessions", "count", n)
			}
		}
	}
}
