// Package ui serves the browser SQL workbench.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/meager/internal/editor"
	"github.com/leapstack-labs/meager/internal/examples"
	"github.com/leapstack-labs/meager/internal/history"
	"github.com/leapstack-labs/meager/internal/session"
	workbenchFeature "github.com/leapstack-labs/meager/internal/ui/features/workbench"
	"github.com/leapstack-labs/meager/internal/ui/notifier"
	"github.com/leapstack-labs/meager/internal/ui/resources"
	"github.com/leapstack-labs/meager/internal/ui/router"
)

// DefaultSweepInterval is how often idle sessions are expired.
const DefaultSweepInterval = time.Minute

// Server is the main UI server.
type Server struct {
	registry        *session.Registry
	controller      *editor.Controller
	history         *history.Store
	examples        *examples.Source
	sessionStore    *sessions.CookieStore
	notifier        *notifier.Notifier
	port            int
	watch           bool
	defaultDatabase string
	sweepInterval   time.Duration
	logger          *slog.Logger
}

// Config holds configuration for the UI server.
type Config struct {
	Registry   *session.Registry
	Controller *editor.Controller
	History    *history.Store // optional
	Examples   *examples.Source

	Port          int
	Watch         bool
	SessionSecret string

	// DefaultDatabase prefills the database form of new sessions.
	DefaultDatabase string
	// SweepInterval is how often idle sessions are expired. Zero selects
	// DefaultSweepInterval.
	SweepInterval time.Duration

	Logger *slog.Logger
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Examples == nil {
		cfg.Examples, _ = examples.NewSource("", cfg.Logger)
	}

	return &Server{
		registry:        cfg.Registry,
		controller:      cfg.Controller,
		history:         cfg.History,
		examples:        cfg.Examples,
		sessionStore:    sessionStore,
		notifier:        notifier.New(),
		port:            cfg.Port,
		watch:           cfg.Watch,
		defaultDatabase: cfg.DefaultDatabase,
		sweepInterval:   cfg.SweepInterval,
		logger:          cfg.Logger,
	}
}

// Handler builds the HTTP handler with all routes and middleware.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, workbenchFeature.Deps{
		Registry:        s.registry,
		Controller:      s.controller,
		History:         s.history,
		Examples:        s.examples,
		SessionStore:    s.sessionStore,
		Notifier:        s.notifier,
		DefaultDatabase: s.defaultDatabase,
		IsDev:           s.IsDev(),
		Logger:          s.logger,
	}); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the UI server and blocks until the context is cancelled.
// All session connections are closed on return.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start examples watcher if enabled
	if s.watch && s.examples.Path() != "" {
		eg.Go(func() error {
			return s.examples.Watch(egctx, func() {
				s.logger.Debug("examples reloaded, notifying clients")
				s.notifier.Broadcast(notifier.TopicExamples)
			})
		})
	}

	eg.Go(func() error {
		s.sweepSessions(egctx)
		return nil
	})

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		s.notifier.Broadcast(notifier.TopicShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	err = eg.Wait()
	s.registry.Close()
	return err
}

// sweepSessions expires idle sessions until ctx is done.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.registry.Sweep(now)
		}
	}
}

// IsDev reports whether static assets are served from the source tree.
func (s *Server) IsDev() bool {
	return resources.Dev
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}
