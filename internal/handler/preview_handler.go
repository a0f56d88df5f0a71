package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/preview"
	"github.com/akashmaurya09/intelligrade/internal/utils"
)

// PreviewHandler serves the bytes behind preview handles. A handle is an
// unguessable capability, so the route does not require a bearer token and
// can back plain <img> tags.
type PreviewHandler struct {
	registry preview.Registry
	logger   zerolog.Logger
}

// NewPreviewHandler constructs the handler.
func NewPreviewHandler(registry preview.Registry, logger zerolog.Logger) *PreviewHandler {
	return &PreviewHandler{
		registry: registry,
		logger:   logger.With().Str("component", "preview_handler").Logger(),
	}
}

// Register binds the preview route.
func (h *PreviewHandler) Register(router fiber.Router) {
	router.Get("/:handle", h.serve)
}

func (h *PreviewHandler) serve(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("handle"))
	if token == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "preview handle required")
	}

	attachment, err := h.registry.Resolve(requestContext(c), preview.HandlePrefix+token)
	if err != nil {
		if errors.Is(err, preview.ErrHandleNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "preview not found")
		}
		return handleError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, attachment.MediaType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	c.Set("X-Content-Type-Options", "nosniff")
	return c.Status(fiber.StatusOK).Send(attachment.Bytes)
}
