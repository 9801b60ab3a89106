package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/snaplink/internal/app/service"
	inthttp "github.com/sifan077/snaplink/internal/http/handler"
	"github.com/sifan077/snaplink/internal/http/middleware"
	"go.uber.org/zap"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	bodyLimit    = 64 * 1024
)

// Dependencies bundles the services required by the HTTP server.
type Dependencies struct {
	Logger    *zap.Logger
	Links     service.LinkService
	Redirects service.RedirectService
	Stats     service.StatsService
	// Origin is used to compose short URLs in create responses.
	Origin service.Origin
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "snaplink",
		DisableStartupMessage: true,
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           idleTimeout,
		BodyLimit:             bodyLimit,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(
		middleware.Recovery(s.deps.Logger),
		middleware.RequestID(),
		middleware.Logger(s.deps.Logger),
		middleware.CORS(),
	)
}

func (s *Server) registerRoutes() {
	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:       s.deps.Logger,
		LinkService:  s.deps.Links,
		StatsService: s.deps.Stats,
		Origin:       s.deps.Origin,
	})
	apiHandler.Register(s.app)

	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:    s.deps.Logger,
		Redirects: s.deps.Redirects,
	})
	redirectHandler.Register(s.app)
}
