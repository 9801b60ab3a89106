package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/snaplink/internal/app/service"
	"go.uber.org/zap"
)

const timeLayout = time.RFC3339

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger    *zap.Logger
	Redirects service.RedirectService
}

// RedirectHandler serves short link redirects and liveness probes.
type RedirectHandler struct {
	logger    *zap.Logger
	redirects service.RedirectService
	started   time.Time
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:    logger,
		redirects: deps.Redirects,
		started:   time.Now(),
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/:id", h.Resolve)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	now := time.Now()
	return c.JSON(fiber.Map{
		"service": "snaplink",
		"status":  "ok",
		"time":    now.UTC().Format(timeLayout),
		"uptime":  now.Sub(h.started).Round(time.Second).String(),
	})
}

// Resolve handles GET /:id with a permanent, uncached redirect.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	// Fiber reuses these buffers once the handler returns; telemetry may outlive it.
	id := utils.CopyString(c.Params("id"))
	telemetry := service.ClickTelemetry{
		Referrer:  utils.CopyString(c.Get(fiber.HeaderReferer)),
		UserAgent: utils.CopyString(c.Get(fiber.HeaderUserAgent)),
	}

	redirect, err := h.redirects.Resolve(c.UserContext(), id, telemetry)
	if err != nil {
		status, message := errorStatus(err)
		if status >= fiber.StatusInternalServerError {
			h.logger.Error("failed to resolve link", zap.String("id", id), zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{"error": message})
	}

	if redirect.Telemetry.Err != nil {
		h.logger.Debug("click not dispatched", zap.String("id", id), zap.Error(redirect.Telemetry.Err))
	}

	c.Set(fiber.HeaderCacheControl, redirect.CacheControl)
	return c.Redirect(redirect.Location, fiber.StatusMovedPermanently)
}
