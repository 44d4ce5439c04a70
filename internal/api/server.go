package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/auth"
	"github.com/mattjoyce/slate/internal/events"
	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/protocol"
)

// EventPublisher delivers events to registered handlers.
type EventPublisher interface {
	Publish(ctx context.Context, ev protocol.Event) ([]protocol.Reply, error)
}

// ActionCatalog lists registered actions.
type ActionCatalog interface {
	Descriptors() []action.Descriptor
}

// JobReader reads persisted job records.
type JobReader interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, f jobs.ListFilter) ([]*jobs.Job, error)
}

// ApplicationLister lists discovered applications.
type ApplicationLister interface {
	Applications() []appstore.Application
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey grants every scope.
	APIKey string
	Tokens []auth.TokenConfig
}

// Deps are the services the API exposes.
type Deps struct {
	Bus          EventPublisher
	Actions      ActionCatalog
	Jobs         JobReader
	Applications ApplicationLister
	Hub          *events.Hub
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(config Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Hub == nil {
		deps.Hub = events.NewHub(0)
	}
	return &Server{
		config:    config,
		deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.setupRoutes(),
		ReadTimeout: 10 * time.Second,
		// Launch requests can wait on script actions.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requireScopes(auth.ScopeActionsRO)).Get("/openapi.json", s.handleOpenAPI)
		r.With(s.requireScopes(auth.ScopeActionsRO)).Get("/actions", s.handleListActions)
		r.With(s.requireScopes(auth.ScopeActionsRW)).Post("/actions/{identifier}/launch", s.handleLaunchAction)
		r.With(s.requireScopes(auth.ScopeActionsRO)).Get("/applications", s.handleListApplications)

		// Scope depends on the topic and is checked in the handler.
		r.Post("/events", s.handlePublishEvent)
		r.With(s.requireScopes(auth.ScopeEventsRO)).Get("/events", s.handleEvents)

		r.With(s.requireScopes(auth.ScopeJobsRO)).Get("/jobs", s.handleListJobs)
		r.With(s.requireScopes(auth.ScopeJobsRO)).Get("/jobs/{jobID}", s.handleGetJob)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearerToken(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		principal, ok := auth.Authenticate(token, s.config.APIKey, s.config.Tokens)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func (s *Server) requireScopes(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := auth.PrincipalFromContext(r.Context())
			if !auth.HasAnyScope(principal, scopes...) {
				s.logger.Warn("insufficient scope", "credential", principal.Name, "path", r.URL.Path, "required", scopes)
				s.writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
