package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/dto"
	"github.com/akashmaurya09/intelligrade/internal/middleware"
	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/service"
	"github.com/akashmaurya09/intelligrade/internal/utils"
)

// WorkspaceSnapshot is the whole workspace as served to clients.
type WorkspaceSnapshot struct {
	Papers      []dto.PaperResponse      `json:"papers"`
	Submissions []dto.SubmissionResponse `json:"submissions"`
}

// WorkspaceHandler exposes whole-workspace operations.
type WorkspaceHandler struct {
	workspace service.WorkspaceService
	logger    zerolog.Logger
}

// NewWorkspaceHandler constructs the handler.
func NewWorkspaceHandler(workspace service.WorkspaceService, logger zerolog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspace: workspace,
		logger:    logger.With().Str("component", "workspace_handler").Logger(),
	}
}

// Register binds the workspace routes.
func (h *WorkspaceHandler) Register(router fiber.Router) {
	teacherOnly := middleware.RequireRole(models.RoleTeacher)

	router.Get("", middleware.WithAuth(h.snapshot, middleware.AuthOptions{RequireUser: true}))
	router.Post("/refresh", teacherOnly, h.refresh)
	router.Post("/samples", teacherOnly, h.samples)
}

func (h *WorkspaceHandler) snapshot(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "workspace retrieved", h.current())
}

func (h *WorkspaceHandler) refresh(c *fiber.Ctx) error {
	if _, err := h.workspace.RefreshData(requestContext(c)); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "workspace refreshed", h.current())
}

func (h *WorkspaceHandler) samples(c *fiber.Ctx) error {
	if err := h.workspace.LoadSamples(requestContext(c)); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "sample data loaded", h.current())
}

func (h *WorkspaceHandler) current() WorkspaceSnapshot {
	return WorkspaceSnapshot{
		Papers:      dto.NewPaperResponseSlice(h.workspace.Papers()),
		Submissions: dto.NewSubmissionResponseSlice(h.workspace.Submissions()),
	}
}
