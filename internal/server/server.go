// Package server wires the blog together and runs the HTTP server.
//
// New is the composition root: it opens the database, the optional Redis
// cache and the optional AMQP publisher, builds services and handlers on
// top of them and registers every route. Start runs the server until
// SIGINT/SIGTERM and then shuts down in order: stop accepting requests,
// wait for in-flight ones, close the publisher, the cache and the database.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/blog/internal/cache"
	"github.com/sakif/blog/internal/config"
	"github.com/sakif/blog/internal/events"
	"github.com/sakif/blog/internal/handler"
	"github.com/sakif/blog/internal/middleware"
	"github.com/sakif/blog/internal/repository/sqldb"
	"github.com/sakif/blog/internal/service"
	"github.com/sakif/blog/web"
)

// postCache is the cache as the server sees it: usable by the post service
// and closable on shutdown.
type postCache interface {
	service.PostCache
	io.Closer
}

type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	db        *sqldb.DB
	cache     postCache
	publisher events.Publisher
	registry  *prometheus.Registry
}

// New opens every backing service named in cfg and builds the router.
// Redis and RabbitMQ are optional: when unset or unreachable the server
// logs a warning and runs without them.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBDriver == "sqlite" && cfg.DBDSN != ":memory:" {
		dir := filepath.Dir(cfg.DBDSN)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqldb.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		cache:     openCache(cfg, logger),
		publisher: openPublisher(cfg, logger),
		registry:  prometheus.NewRegistry(),
	}

	if err := s.setupRoutes(web.FS); err != nil {
		s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openCache(cfg *config.Config, logger *slog.Logger) postCache {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, post cache disabled")
		return cache.Nop{}
	}
	c, err := cache.NewRedisPostCache(context.Background(), cfg.RedisURL, cfg.PostCacheTTL)
	if err != nil {
		logger.Warn("redis unavailable, continuing without post cache", slog.String("error", err.Error()))
		return cache.Nop{}
	}
	logger.Info("post cache enabled", slog.Duration("ttl", cfg.PostCacheTTL))
	return c
}

func openPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP_URL not set, event publishing disabled")
		return events.Nop{}
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL)
	if err != nil {
		logger.Warn("broker unavailable, continuing without events", slog.String("error", err.Error()))
		return events.Nop{}
	}
	logger.Info("publishing events", slog.String("exchange", events.Exchange))
	return p
}

// setupRoutes registers middleware and routes.
//
//	GET  /                                      -> redirect to /posts
//	GET  /posts                                 -> listing (search, pageSize, pageNumber)
//	GET  /posts/add                             -> creation form
//	POST /posts                                 -> create
//	GET  /posts/{id}                            -> post page
//	POST /posts/{id}                            -> update
//	GET  /posts/{id}/edit, /{id}/edit           -> edit form
//	POST /posts/{id}/delete                     -> delete
//	POST /posts/{id}/like?like=bool             -> rating
//	POST /posts/{id}/comments                   -> add comment
//	POST /posts/{id}/comments/{commentId}       -> edit comment
//	POST /posts/{id}/comments/{commentId}/delete -> delete comment
//	GET  /images/{id}                           -> raw image
//	GET  /static/*                              -> embedded assets
//	GET  /metrics                               -> Prometheus
//
// Middleware order: request id, real ip, metrics, logging, panic recovery.
func (s *Server) setupRoutes(assets fs.FS) error {
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(s.registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(metrics.Handler)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	static, err := fs.Sub(assets, "static")
	if err != nil {
		return fmt.Errorf("locating static assets: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	render, err := handler.NewRenderer(assets, s.logger)
	if err != nil {
		return err
	}
	forms := handler.NewFormValidator()

	postService := service.NewPostService(s.db, s.cache, s.publisher, s.logger)
	commentService := service.NewCommentService(s.db, postService, s.logger)

	posts := handler.NewPostHandler(postService, render, forms, s.config.MaxUploadBytes(), s.logger)
	comments := handler.NewCommentHandler(commentService, render, forms, s.logger)
	errs := handler.NewErrorHandler(render, s.logger)

	s.router.NotFound(errs.HandleNotFound)
	s.router.MethodNotAllowed(errs.HandleMethodNotAllowed)

	s.router.Get("/", posts.HandleIndex)
	s.router.Get("/images/{id}", posts.HandleImage)
	s.router.Get("/{id}/edit", posts.HandleEdit)

	s.router.Route("/posts", func(r chi.Router) {
		r.Get("/", posts.HandleList)
		r.Post("/", posts.HandleCreate)
		r.Get("/add", posts.HandleNew)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", posts.HandleGet)
			r.Post("/", posts.HandleUpdate)
			r.Get("/edit", posts.HandleEdit)
			r.Post("/delete", posts.HandleDelete)
			r.Post("/like", posts.HandleLike)

			r.Post("/comments", comments.HandleCreate)
			r.Post("/comments/{commentId}", comments.HandleUpdate)
			r.Post("/comments/{commentId}/delete", comments.HandleDelete)
		})
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until a shutdown signal arrives or the listener fails.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("db_driver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// close releases backing services in reverse order of dependency.
func (s *Server) close() {
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn("closing event publisher", slog.String("error", err.Error()))
	}
	if err := s.cache.Close(); err != nil {
		s.logger.Warn("closing post cache", slog.String("error", err.Error()))
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
