package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/dto"
	"github.com/akashmaurya09/intelligrade/internal/middleware"
	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/service"
	"github.com/akashmaurya09/intelligrade/internal/utils"
)

const gradingPingInterval = 25 * time.Second

// GradingHandler starts and cancels grading runs and streams their status.
type GradingHandler struct {
	grading   service.GradingService
	workspace service.WorkspaceService
	logger    zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(grading service.GradingService, workspace service.WorkspaceService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading:   grading,
		workspace: workspace,
		logger:    logger.With().Str("component", "grading_handler").Logger(),
	}
}

// RegisterSubmissionRoutes binds grade and cancel under the submissions group.
func (h *GradingHandler) RegisterSubmissionRoutes(router fiber.Router) {
	teacherOnly := middleware.RequireRole(models.RoleTeacher)
	router.Post("/:id/grade", teacherOnly, h.grade)
	router.Delete("/:id/grade", teacherOnly, h.cancel)
}

// Register binds the grading status websocket.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.feed))
}

// grade starts a run in the background and answers 202. With ?wait=true the
// request blocks until the run finishes and returns the graded submission.
func (h *GradingHandler) grade(c *fiber.Ctx) error {
	id := c.Params("id")
	ctx := requestContext(c)

	if c.QueryBool("wait") {
		graded, err := h.grading.Grade(ctx, id)
		if err != nil {
			return handleError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "submission graded", dto.NewSubmissionResponse(graded))
	}

	if err := h.grading.Start(ctx, id); err != nil {
		return handleError(c, h.logger, err)
	}

	submission, _ := h.workspace.Submission(id)
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "grading started", dto.NewSubmissionResponse(submission))
}

func (h *GradingHandler) cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := h.workspace.Submission(id); !ok {
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	}

	cancelled := h.grading.Cancel(id)
	return utils.SendSuccess(c, "grading cancellation processed", fiber.Map{"id": id, "cancelled": cancelled})
}

// feed streams grading events, optionally filtered by ?submission_id.
func (h *GradingHandler) feed(conn *websocket.Conn) {
	if uid, _ := conn.Locals(middleware.LocalUserID).(string); uid == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	filter := strings.TrimSpace(conn.Query("submission_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	events, unsubscribe := h.grading.Subscribe()
	defer unsubscribe()

	if err := conn.WriteJSON(gradingEventMessage{Type: "subscribed"}); err != nil {
		return
	}

	// The read loop only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(gradingPingInterval)
	defer ticker.Stop()

	h.logger.Debug().Str("submission_id", filter).Msg("grading feed connected")
	defer h.logger.Debug().Str("submission_id", filter).Msg("grading feed disconnected")

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if filter != "" && event.SubmissionID != filter {
				continue
			}
			if err := conn.WriteJSON(gradingMessage(event)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// gradingEventMessage is one websocket frame. The first frame of a
// connection is "subscribed"; every later one is a "grading_status" event.
type gradingEventMessage struct {
	Type  string               `json:"type"`
	Event *models.GradingEvent `json:"event,omitempty"`
}

func gradingMessage(event models.GradingEvent) gradingEventMessage {
	return gradingEventMessage{Type: "grading_status", Event: &event}
}
