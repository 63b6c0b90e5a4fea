package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/usecase/update"
	"github.com/m-mizutani/bulletin/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Asker answers a question; implemented by ask.UseCase
type Asker interface {
	Answer(ctx context.Context, question string, now time.Time) (*model.Answer, error)
}

// Updates posts and lists updates; implemented by update.UseCase
type Updates interface {
	Add(ctx context.Context, input update.AddInput, now time.Time) (*update.AddResult, error)
	List(ctx context.Context, limit int) ([]*model.Update, error)
}

type Server struct {
	asker    Asker
	updates  Updates
	mcp      http.Handler
	location *time.Location
	clock    func() time.Time
	registry *prometheus.Registry
	metrics  *metrics
	router   http.Handler
}

type Option func(*Server)

// WithMCPHandler mounts h at /mcp
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithLocation sets the time zone that "today" refers to
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		s.location = loc
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithRegistry collects metrics into reg instead of a private registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

func New(asker Asker, updates Updates, opts ...Option) *Server {
	s := &Server{
		asker:    asker,
		updates:  updates,
		location: time.UTC,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = newMetrics(s.registry)
	s.router = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(requestLogger)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.metrics.middleware)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
		MaxAge:         300,
	}))

	router.Get("/health", s.handleHealth)
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	router.Route("/api", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/updates", s.handleAddUpdate)
		r.Get("/updates", s.handleListUpdates)
	})

	if s.mcp != nil {
		router.Handle("/mcp", s.mcp)
	}

	return router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) now() time.Time {
	return s.clock().In(s.location)
}

// ListenAndServe serves h on addr until ctx is canceled, then shuts down
// gracefully
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("starting http server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return goerr.Wrap(err, "http server failed", goerr.V("addr", addr))

	case <-ctx.Done():
		logging.From(ctx).Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shut down http server")
		}
		return nil
	}
}
