package handler

import (
	"encoding/json"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/snaplink/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger       *zap.Logger
	LinkService  service.LinkService
	StatsService service.StatsService
	Origin       service.Origin
}

// APIHandler implements the link management endpoints.
type APIHandler struct {
	logger       *zap.Logger
	linkService  service.LinkService
	statsService service.StatsService
	origin       service.Origin
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:       logger,
		linkService:  deps.LinkService,
		statsService: deps.StatsService,
		origin:       deps.Origin,
	}
}

// Register wires API routes onto the provided router. It must run before
// the catch-all redirect route.
func (h *APIHandler) Register(router fiber.Router) {
	links := router.Group("/links")
	{
		links.Post("/", h.CreateLink)
		links.Get("/:id/stats", h.Stats)
	}
}

// CreateLinkRequest represents the request body for creating a link.
// OriginalURL is accepted as an alias of URL.
type CreateLinkRequest struct {
	URL         string `json:"url"`
	OriginalURL string `json:"originalUrl"`
}

// Target returns the destination, preferring URL over OriginalURL.
func (r CreateLinkRequest) Target() string {
	if r.URL != "" {
		return r.URL
	}
	return r.OriginalURL
}

// Validate checks that one of the destination fields is present.
func (r CreateLinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.When(r.OriginalURL == "", validation.Required)),
		validation.Field(&r.OriginalURL, validation.When(r.URL == "", validation.Required)),
	)
}

// CreateLinkResponse represents the response for creating a link.
type CreateLinkResponse struct {
	ID          string  `json:"id"`
	ShortURL    string  `json:"shortUrl"`
	OriginalURL string  `json:"originalUrl"`
	ExpiresAt   *string `json:"expiresAt,omitempty"`
}

// StatsResponse represents the click summary of one link.
type StatsResponse struct {
	ID               string   `json:"id"`
	TotalClicks      int      `json:"totalClicks"`
	RecentReferrers  []string `json:"recentReferrers"`
	RecentUserAgents []string `json:"recentUserAgents"`
}

// CreateLink handles POST /links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	req, err := decodeCreateLink(c.Body())
	if err != nil {
		return h.writeError(c, err)
	}

	created, err := h.linkService.CreateLink(c.UserContext(), service.CreateLinkInput{
		URL:    req.Target(),
		Origin: h.origin,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	resp := CreateLinkResponse{
		ID:          created.ID,
		ShortURL:    created.ShortURL,
		OriginalURL: created.OriginalURL,
	}
	if created.ExpiresAt != nil {
		expiresAt := created.ExpiresAt.UTC().Format(timeLayout)
		resp.ExpiresAt = &expiresAt
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Stats handles GET /links/:id/stats
func (h *APIHandler) Stats(c *fiber.Ctx) error {
	id := utils.CopyString(c.Params("id"))

	stats, err := h.statsService.Stats(c.UserContext(), id)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(StatsResponse{
		ID:               stats.ID,
		TotalClicks:      stats.TotalClicks,
		RecentReferrers:  nonNil(stats.RecentReferrers),
		RecentUserAgents: nonNil(stats.RecentUserAgents),
	})
}

func decodeCreateLink(body []byte) (CreateLinkRequest, error) {
	var req CreateLinkRequest
	if len(body) == 0 {
		return req, service.ErrMissingBody
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, service.ErrMalformedBody
	}
	if err := req.Validate(); err != nil {
		return req, service.ErrMalformedBody
	}
	return req, nil
}

// writeError maps service errors onto status codes and error bodies.
func (h *APIHandler) writeError(c *fiber.Ctx, err error) error {
	status, message := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingBody):
		return fiber.StatusBadRequest, "Missing body"
	case errors.Is(err, service.ErrMalformedBody):
		return fiber.StatusBadRequest, "Body must be JSON"
	case errors.Is(err, service.ErrInvalidURL):
		return fiber.StatusBadRequest, "Invalid URL"
	case errors.Is(err, service.ErrMissingID):
		return fiber.StatusBadRequest, "Missing id"
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest, "Bad request"
	case errors.Is(err, service.ErrLinkNotFound):
		return fiber.StatusNotFound, "Not found"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
