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

// AuthHandler handles sign-up, sign-in, sign-out and profile lookup.
type AuthHandler struct {
	auth      service.AuthService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(auth service.AuthService, validator *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		validator: validator,
		logger:    logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register binds the auth routes. protected guards the routes that need a
// signed-in identity; limit throttles credential submission. Either may be nil.
func (h *AuthHandler) Register(router fiber.Router, protected, limit fiber.Handler) {
	if protected == nil {
		protected = passThrough
	}
	if limit == nil {
		limit = passThrough
	}

	router.Post("/signup", limit, h.signup)
	router.Post("/login", limit, h.login)
	router.Post("/logout", protected, h.logout)
	router.Get("/me", protected, h.me)
}

func (h *AuthHandler) signup(c *fiber.Ctx) error {
	var request service.SignupRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid signup payload")
	}

	session, err := h.auth.Signup(requestContext(c), request)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "account created", session)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var request dto.LoginRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid login payload")
	}
	if err := h.validator.Struct(request); err != nil {
		return handleError(c, h.logger, err)
	}

	session, err := h.auth.Login(requestContext(c), request.Email, request.Password)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "signed in", session)
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	token := middleware.TokenFromContext(c)
	if token == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	if err := h.auth.Logout(requestContext(c), token); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "signed out", nil)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	profile, err := h.auth.Profile(requestContext(c), claims)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}
