// Package devapi is an in-memory implementation of the community backend for
// local development and tests. It speaks the same JSON contract as the real
// API: bearer JWTs, {"error": ...} failure bodies and viewer-relative flags.
package devapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"chub/internal/observability"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
)

// Prefix is the path every API route is mounted under.
const Prefix = "/api"

// Options configures a Server.
type Options struct {
	JWTSecret string
	TokenTTL  time.Duration
	Logger    *observability.Logger
	Clock     func() time.Time
	// Registry receives the HTTP metrics; nil uses a private registry.
	Registry *prometheus.Registry
}

// Server is the fake backend.
type Server struct {
	opts  Options
	app   *fiber.App
	data  *store
	prom  *fiberprometheus.FiberPrometheus
	log   *observability.Logger
	fault *faults

	mu       sync.Mutex
	tokens   map[string]uint
	requests []Request
}

// New builds a Server with its routes registered.
func New(opts Options) *Server {
	if opts.JWTSecret == "" {
		opts.JWTSecret = "dev-secret-change-me"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 7 * 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	log := opts.Logger
	if log == nil {
		log = observability.GlobalLogger
	}

	s := &Server{
		opts:   opts,
		data:   newStore(opts.Clock),
		prom:   fiberprometheus.NewWithRegistry(opts.Registry, "chub-devapi", "http", "", nil),
		log:    log,
		fault:  newFaults(),
		tokens: make(map[string]uint),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "chub-devapi",
		DisableStartupMessage: true,
		BodyLimit:             12 << 20,
		ErrorHandler:          s.errorHandler,
	})
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Handler exposes the app as a net/http handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Listen serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("devapi listening", slog.String("addr", addr))
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.prom.Middleware)
	s.app.Use(s.requestLogger)
	s.app.Use(s.record)
	s.app.Use(s.injectFaults)
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "chub-devapi"})
	})
	s.prom.RegisterAt(s.app, "/metrics")

	api := s.app.Group(Prefix)
	api.Post("/register", s.Register)
	api.Post("/login", s.Login)
	api.Get("/uploads/:name", s.GetUpload)

	protected := api.Group("", s.AuthRequired())
	protected.Get("/profile", s.GetProfile)

	protected.Get("/posts", s.GetPosts)
	protected.Post("/posts", s.CreatePost)
	protected.Get("/posts/:id/comments", s.GetComments)
	protected.Post("/posts/:id/comments", s.CreateComment)
	protected.Post("/posts/:id/like", s.LikePost)
	protected.Delete("/posts/:id/like", s.UnlikePost)
	protected.Get("/posts/:id", s.GetPost)
	protected.Put("/posts/:id", s.UpdatePost)
	protected.Delete("/posts/:id", s.DeletePost)
	protected.Get("/users/:id/posts", s.GetUserPosts)

	protected.Get("/saved-posts", s.GetSavedPosts)
	protected.Get("/saved-posts/:id/check", s.CheckSavedPost)
	protected.Post("/saved-posts/:id", s.SavePost)
	protected.Delete("/saved-posts/:id", s.UnsavePost)

	protected.Put("/comments/:id", s.UpdateComment)
	protected.Delete("/comments/:id", s.DeleteComment)
	protected.Post("/comments/:id/like", s.LikeComment)
	protected.Delete("/comments/:id/like", s.UnlikeComment)

	protected.Get("/prayer-requests/random", s.RandomPrayerRequests)
	protected.Post("/prayer-requests", s.CreatePrayerRequest)
	protected.Get("/prayer-requests/:id", s.GetPrayerRequest)

	protected.Post("/upload", s.Upload)
}

// errorHandler renders every error as {"error": message}.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	if code >= 500 {
		s.log.ErrorContext(c.UserContext(), "handler failed", slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	if rid, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		c.SetUserContext(observability.WithRequestID(c.UserContext(), rid))
	}
	err := c.Next()
	fields := []any{
		slog.Int("status", c.Response().StatusCode()),
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Duration("latency", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, slog.String("error", err.Error()))
		s.log.ErrorContext(c.UserContext(), "request failed", fields...)
	} else {
		s.log.DebugContext(c.UserContext(), "request processed", fields...)
	}
	return err
}

func apiPath(c *fiber.Ctx) string {
	return strings.TrimPrefix(c.Path(), Prefix)
}
