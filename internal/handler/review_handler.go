package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/dto"
	"github.com/akashmaurya09/intelligrade/internal/middleware"
	"github.com/akashmaurya09/intelligrade/internal/service"
	"github.com/akashmaurya09/intelligrade/internal/utils"
)

// ReviewHandler exposes disputes, resolutions and teacher comments.
type ReviewHandler struct {
	review    service.ReviewService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(review service.ReviewService, validator *validator.Validate, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		review:    review,
		validator: validator,
		logger:    logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register binds the result review routes under the submissions group.
func (h *ReviewHandler) Register(router fiber.Router) {
	teacher := middleware.AuthOptions{Role: middleware.AuthRoleTeacher}

	router.Post("/:id/results/:questionId/dispute", middleware.WithAuth(h.dispute, middleware.AuthOptions{RequireUser: true}))
	router.Post("/:id/results/:questionId/resolve", middleware.WithAuth(h.resolve, teacher))
	router.Post("/:id/results/:questionId/comments", middleware.WithAuth(h.comment, teacher))
}

func (h *ReviewHandler) dispute(c *fiber.Ctx) error {
	var request dto.DisputeRequest
	if err := h.parse(c, &request); err != nil {
		return handleError(c, h.logger, err)
	}

	updated, err := h.review.Dispute(requestContext(c), c.Params("id"), c.Params("questionId"), request.Reason)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "result disputed", dto.NewSubmissionResponse(updated))
}

func (h *ReviewHandler) resolve(c *fiber.Ctx) error {
	var request dto.ResolveRequest
	if err := h.parse(c, &request); err != nil {
		return handleError(c, h.logger, err)
	}

	updated, err := h.review.Resolve(requestContext(c), c.Params("id"), c.Params("questionId"), *request.Marks, request.Comment)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "dispute resolved", dto.NewSubmissionResponse(updated))
}

func (h *ReviewHandler) comment(c *fiber.Ctx) error {
	var request dto.CommentRequest
	if err := h.parse(c, &request); err != nil {
		return handleError(c, h.logger, err)
	}

	updated, err := h.review.AddComment(requestContext(c), c.Params("id"), c.Params("questionId"), request.Text)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "comment added", dto.NewSubmissionResponse(updated))
}

func (h *ReviewHandler) parse(c *fiber.Ctx, target interface{}) error {
	if err := c.BodyParser(target); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request payload")
	}
	return h.validator.Struct(target)
}
