package handler

import (
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

// SubmissionHandler wires student submission routes.
type SubmissionHandler struct {
	workspace service.WorkspaceService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(workspace service.WorkspaceService, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		workspace: workspace,
		validator: validator,
		logger:    logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission endpoints to the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	signedIn := middleware.AuthOptions{RequireUser: true}

	router.Get("", middleware.WithAuth(h.list, signedIn))
	router.Get("/:id", middleware.WithAuth(h.get, signedIn))
	router.Post("", middleware.WithAuth(h.create, signedIn))
	router.Patch("/:id", middleware.WithAuth(h.update, middleware.AuthOptions{Role: middleware.AuthRoleTeacher}))
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	submissions := h.workspace.Submissions()

	if paperID := strings.TrimSpace(c.Query("paper_id")); paperID != "" {
		filtered := submissions[:0]
		for _, submission := range submissions {
			if submission.PaperID == paperID {
				filtered = append(filtered, submission)
			}
		}
		submissions = filtered
	}

	return utils.SendSuccess(c, "submissions retrieved", dto.NewSubmissionResponseSlice(submissions))
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	submission, ok := h.workspace.Submission(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	}
	return utils.SendSuccess(c, "submission retrieved", dto.NewSubmissionResponse(submission))
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	var request dto.SubmissionCreateRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission payload")
	}
	if err := h.validator.Struct(request); err != nil {
		return handleError(c, h.logger, err)
	}

	if _, ok := h.workspace.Paper(request.PaperID); !ok {
		return utils.SendError(c, fiber.StatusNotFound, "question paper not found")
	}

	answerSheet, err := readUpload(c, "answer_sheet")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if answerSheet == nil && request.SourceURL == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "answer_sheet or source_url is required")
	}

	created, err := h.workspace.AddStudentSubmission(requestContext(c), models.StudentSubmission{
		PaperID:      request.PaperID,
		StudentName:  strings.TrimSpace(request.StudentName),
		UploadMethod: models.UploadMethod(request.UploadMethod),
		SourceURL:    request.SourceURL,
		AnswerSheet:  answerSheet,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", dto.NewSubmissionResponse(created))
}

// update edits metadata and optionally replaces the answer sheet. The change
// is applied to the latest cached state so a concurrent grading run is not
// overwritten.
func (h *SubmissionHandler) update(c *fiber.Ctx) error {
	var request dto.SubmissionUpdateRequest
	if err := c.BodyParser(&request); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission payload")
	}
	if err := h.validator.Struct(request); err != nil {
		return handleError(c, h.logger, err)
	}

	answerSheet, err := readUpload(c, "answer_sheet")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	updated, err := h.workspace.ModifySubmission(requestContext(c), c.Params("id"), func(submission *models.StudentSubmission) error {
		if request.StudentName != nil {
			submission.StudentName = strings.TrimSpace(*request.StudentName)
		}
		if request.SourceURL != nil {
			submission.SourceURL = strings.TrimSpace(*request.SourceURL)
		}
		if answerSheet != nil {
			submission.AnswerSheet = answerSheet
		}
		return nil
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission updated", dto.NewSubmissionResponse(updated))
}
