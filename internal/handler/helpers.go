package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/middleware"
	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/preview"
	"github.com/akashmaurya09/intelligrade/internal/service"
	"github.com/akashmaurya09/intelligrade/internal/utils"
	"github.com/akashmaurya09/intelligrade/pkg/ai"
)

// MaxUploadBytes bounds a single uploaded attachment.
const MaxUploadBytes = 20 << 20

var errUnsupportedMedia = errors.New("only image and pdf uploads are accepted")

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func userIDFromContext(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.LocalUserID).(string)
	return strings.TrimSpace(id)
}

func userRoleFromContext(c *fiber.Ctx) models.Role {
	role, _ := c.Locals(middleware.LocalRole).(string)
	return models.ParseRole(role)
}

// readUpload returns the named multipart file as a fresh attachment, or nil
// when the field is absent. The media type is sniffed from the content.
func readUpload(c *fiber.Ctx, field string) (*models.Attachment, error) {
	header, err := c.FormFile(field)
	if err != nil || header == nil {
		return nil, nil
	}
	if header.Size > MaxUploadBytes {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", field, MaxUploadBytes))
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", field, MaxUploadBytes))
	}
	if len(data) == 0 {
		return nil, nil
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") && !detected.Is("application/pdf") {
		return nil, errUnsupportedMedia
	}

	return models.NewUpload(data, detected.String()), nil
}

func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return utils.SendError(c, fiberErr.Code, fiberErr.Message)
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, err)
	case errors.Is(err, service.ErrPaperNotFound),
		errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrResultNotFound),
		errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, preview.ErrHandleNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrModelAnswerRequired),
		errors.Is(err, service.ErrNoAnswerSheet),
		errors.Is(err, service.ErrEmptyRubric),
		errors.Is(err, service.ErrEmptyText),
		errors.Is(err, service.ErrMarksOutOfRange),
		errors.Is(err, ai.ErrNoImage),
		errors.Is(err, errUnsupportedMedia):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGradingInProgress),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, service.ErrNotDisputed),
		errors.Is(err, service.ErrEmailTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrSeedDisabled):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, ai.ErrInvalidImageContent):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ai.ErrMalformedResponse):
		return utils.SendError(c, fiber.StatusBadGateway, "grading provider returned an unusable response")
	default:
		requestLogger := middleware.RequestLogger(logger, c)
		requestLogger.Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
