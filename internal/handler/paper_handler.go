package handler

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/dto"
	"github.com/akashmaurya09/intelligrade/internal/middleware"
	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/service"
	"github.com/akashmaurya09/intelligrade/internal/utils"
)

// PaperHandler wires question paper HTTP routes.
type PaperHandler struct {
	workspace service.WorkspaceService
	grading   service.GradingService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPaperHandler constructs the handler.
func NewPaperHandler(workspace service.WorkspaceService, grading service.GradingService, validator *validator.Validate, logger zerolog.Logger) *PaperHandler {
	return &PaperHandler{
		workspace: workspace,
		grading:   grading,
		validator: validator,
		logger:    logger.With().Str("component", "paper_handler").Logger(),
	}
}

// Register attaches paper endpoints to the router group. Reads are open to
// any signed-in user; writes are teacher only.
func (h *PaperHandler) Register(router fiber.Router) {
	teacher := middleware.AuthOptions{Role: middleware.AuthRoleTeacher}

	router.Get("", middleware.WithAuth(h.list, middleware.AuthOptions{RequireUser: true}))
	router.Get("/:id", middleware.WithAuth(h.get, middleware.AuthOptions{RequireUser: true}))
	router.Post("/extract", middleware.WithAuth(h.extract, teacher))
	router.Post("", middleware.WithAuth(h.create, teacher))
	router.Put("/:id", middleware.WithAuth(h.update, teacher))
	router.Delete("/:id", middleware.WithAuth(h.delete, teacher))
}

func (h *PaperHandler) list(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "papers retrieved", dto.NewPaperResponseSlice(h.workspace.Papers()))
}

func (h *PaperHandler) get(c *fiber.Ctx) error {
	paper, ok := h.workspace.Paper(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusNotFound, "question paper not found")
	}
	return utils.SendSuccess(c, "paper retrieved", dto.NewPaperResponse(paper))
}

func (h *PaperHandler) create(c *fiber.Ctx) error {
	request, err := h.parsePaper(c)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	paper := request.Paper("")
	if paper.ModelAnswer, err = readUpload(c, "model_answer"); err != nil {
		return handleError(c, h.logger, err)
	}

	created, err := h.workspace.AddQuestionPaper(requestContext(c), paper)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "paper created", dto.NewPaperResponse(created))
}

func (h *PaperHandler) update(c *fiber.Ctx) error {
	id := c.Params("id")
	existing, ok := h.workspace.Paper(id)
	if !ok {
		return utils.SendError(c, fiber.StatusNotFound, "question paper not found")
	}

	request, err := h.parsePaper(c)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	paper := request.Paper(id)
	if paper.ModelAnswer, err = readUpload(c, "model_answer"); err != nil {
		return handleError(c, h.logger, err)
	}
	if paper.ModelAnswer == nil {
		paper.ModelAnswer = existing.ModelAnswer
	}

	updated, err := h.workspace.UpdateQuestionPaper(requestContext(c), paper)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "paper updated", dto.NewPaperResponse(updated))
}

func (h *PaperHandler) delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.workspace.DeleteQuestionPaper(requestContext(c), id); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "paper deleted", fiber.Map{"id": id})
}

func (h *PaperHandler) extract(c *fiber.Ctx) error {
	image, err := readUpload(c, "image")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if image == nil {
		return utils.SendError(c, fiber.StatusBadRequest, "image is required")
	}

	items, err := h.grading.ExtractRubric(requestContext(c), *image)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "questions extracted", items)
}

// parsePaper reads the paper document from the "paper" form field, or from
// the body when the request is plain JSON.
func (h *PaperHandler) parsePaper(c *fiber.Ctx) (dto.PaperRequest, error) {
	var request dto.PaperRequest

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := c.BodyParser(&request); err != nil {
			return request, fiber.NewError(fiber.StatusBadRequest, "invalid paper payload")
		}
	} else {
		raw := c.FormValue("paper")
		if raw == "" {
			return request, fiber.NewError(fiber.StatusBadRequest, "paper field is required")
		}
		if err := json.Unmarshal([]byte(raw), &request); err != nil {
			return request, fiber.NewError(fiber.StatusBadRequest, "invalid paper payload")
		}
	}

	if request.Rubric == nil {
		request.Rubric = []models.RubricItem{}
	}
	if err := h.validator.Struct(request); err != nil {
		return request, err
	}
	return request, nil
}
