// Package server exposes clustering sessions over HTTP.
//
// Every client works on its own session, addressed by the id returned from
// POST /sessions. Responses are JSON objects carrying "status" set to
// "success" or "error"; errors also carry a "message".
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/internal/config"
	"github.com/hupe1980/kmeanslab/internal/registry"
	"github.com/hupe1980/kmeanslab/resource"
	"github.com/hupe1980/kmeanslab/snapshot"
)

// ErrSnapshotsDisabled is returned by the snapshot routes when the server
// has no snapshot repository.
var ErrSnapshotsDisabled = errors.New("snapshot storage is not configured")

// Server is the HTTP front end of the session registry.
type Server struct {
	app       *fiber.App
	sessions  *registry.Registry
	snapshots *snapshot.Repository
	rc        *resource.Controller
	logger    *kmeanslab.Logger
	prom      *prometheus.Registry
	capacity  int
	queue     time.Duration
	sessOpts  []kmeanslab.Option
}

// Option configures a Server.
type Option func(*Server)

// WithSnapshotRepository enables the snapshot routes.
func WithSnapshotRepository(repo *snapshot.Repository) Option {
	return func(s *Server) { s.snapshots = repo }
}

// WithResourceController applies rate, run concurrency and memory limits.
func WithResourceController(rc *resource.Controller) Option {
	return func(s *Server) { s.rc = rc }
}

// WithLogger sets the logger of the server and of every session.
func WithLogger(logger *kmeanslab.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = kmeanslab.NoopLogger()
		}
		s.logger = logger
	}
}

// WithSessionCapacity bounds the number of live sessions.
func WithSessionCapacity(n int) Option {
	return func(s *Server) { s.capacity = n }
}

// WithQueueTimeout lets run and data requests wait up to d for a run slot
// or memory before they are rejected.
func WithQueueTimeout(d time.Duration) Option {
	return func(s *Server) { s.queue = d }
}

// WithSessionOptions adds options applied to every new session.
func WithSessionOptions(opts ...kmeanslab.Option) Option {
	return func(s *Server) { s.sessOpts = append(s.sessOpts, opts...) }
}

// New creates a server and registers its routes.
func New(cfg config.ServerConfig, optFns ...Option) *Server {
	s := &Server{
		logger: kmeanslab.NoopLogger(),
		prom:   prometheus.NewRegistry(),
	}
	for _, fn := range optFns {
		fn(s)
	}

	s.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector := NewPrometheusCollector(s.prom)

	sessOpts := append([]kmeanslab.Option{
		kmeanslab.WithMetricsCollector(collector),
		kmeanslab.WithLogger(s.logger),
	}, s.sessOpts...)

	s.sessions = registry.New(s.capacity,
		registry.WithSessionOptions(sessOpts...),
		registry.WithResourceController(s.rc),
		registry.WithQueueTimeout(s.queue),
		registry.WithEvictionCallback(func(id string) {
			s.logger.WithSession(id).Warn("session evicted")
		}),
	)

	registerGauges(s.prom, s.sessions, s.rc)

	s.app = fiber.New(fiber.Config{
		AppName:               "kmeanslab",
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})

	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Use(recover.New(), requestid.New())

	s.app.Get("/health", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.prom, promhttp.HandlerOpts{})))

	sessions := s.app.Group("/sessions", s.admit)
	sessions.Post("/", s.createSession)
	sessions.Get("/:id", s.withSession(s.getSession))
	sessions.Delete("/:id", s.deleteSession)
	sessions.Post("/:id/generate_data", s.withSession(s.generateData))
	sessions.Post("/:id/data", s.withSession(s.setData))
	sessions.Post("/:id/initialize", s.withSession(s.initialize))
	sessions.Post("/:id/step", s.withSession(s.step))
	sessions.Post("/:id/run", s.withSession(s.run))
	sessions.Post("/:id/reset", s.withSession(s.reset))
	sessions.Post("/:id/predict", s.withSession(s.predict))
	sessions.Get("/:id/plot", s.withSession(s.plot))
	sessions.Post("/:id/snapshot", s.withSession(s.saveSnapshot))

	snapshots := s.app.Group("/snapshots", s.admit)
	snapshots.Get("/", s.listSnapshots)
	snapshots.Post("/:name/restore", s.restoreSnapshot)
	snapshots.Delete("/:name", s.deleteSnapshot)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Registry returns the session registry.
func (s *Server) Registry() *registry.Registry { return s.sessions }

// Listen serves HTTP on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for active requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	start := time.Now()
	err := s.app.ShutdownWithContext(ctx)
	s.logger.Info("server stopped", "duration", time.Since(start), "sessions", s.sessions.Len())
	return err
}

// admit rejects requests beyond the configured rate.
func (s *Server) admit(c *fiber.Ctx) error {
	if !s.rc.Allow() {
		return errRateLimited
	}
	return c.Next()
}

// acquireRun reserves a run slot. Without a queue timeout a busy server
// rejects the run at once.
func (s *Server) acquireRun(ctx context.Context) error {
	if s.queue <= 0 {
		if !s.rc.TryAcquireRun() {
			return errRunsBusy
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.queue)
	defer cancel()

	if err := s.rc.AcquireRun(ctx); err != nil {
		return fmt.Errorf("%w: %w", errRunsBusy, err)
	}
	return nil
}

// withSession resolves :id and runs h while holding the session lock.
func (s *Server) withSession(h func(*fiber.Ctx, *registry.Handle) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		handle, err := s.sessions.Get(c.Params("id"))
		if err != nil {
			return err
		}

		handle.Lock()
		defer handle.Unlock()

		return h(c, handle)
	}
}

func (s *Server) sessionLogger(c *fiber.Ctx, id string) *kmeanslab.Logger {
	l := s.logger.WithSession(id)
	if rid, ok := c.Locals("requestid").(string); ok {
		l = &kmeanslab.Logger{Logger: l.With("request_id", rid)}
	}
	return l
}
