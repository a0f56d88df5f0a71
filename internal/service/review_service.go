package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

var (
	// ErrResultNotFound indicates the submission has no graded result for the question.
	ErrResultNotFound = errors.New("graded result not found")
	// ErrEmptyText indicates a comment or reason was blank after sanitization.
	ErrEmptyText = errors.New("text must not be empty")
	// ErrNotDisputed indicates a resolution was attempted on an undisputed result.
	ErrNotDisputed = errors.New("graded result is not disputed")
	// ErrMarksOutOfRange indicates adjusted marks fall outside the question's total.
	ErrMarksOutOfRange = errors.New("marks outside the allowed range")
)

// ReviewService handles student disputes and teacher annotations on graded
// results. Every change is a metadata-only write.
type ReviewService interface {
	Dispute(ctx context.Context, submissionID, questionID, reason string) (models.StudentSubmission, error)
	Resolve(ctx context.Context, submissionID, questionID string, marks float64, comment string) (models.StudentSubmission, error)
	AddComment(ctx context.Context, submissionID, questionID, text string) (models.StudentSubmission, error)
}

type reviewService struct {
	workspace WorkspaceService
	notifier  NotificationService
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReviewService constructs the review workflow service.
func NewReviewService(workspace WorkspaceService, notifier NotificationService, logger zerolog.Logger) ReviewService {
	return &reviewService{
		workspace: workspace,
		notifier:  notifier,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "review_service").Logger(),
		now:       time.Now,
	}
}

func (s *reviewService) Dispute(ctx context.Context, submissionID, questionID, reason string) (models.StudentSubmission, error) {
	clean := s.clean(reason)

	updated, err := s.workspace.ModifySubmission(ctx, submissionID, func(submission *models.StudentSubmission) error {
		result, idx, ok := submission.ResultFor(questionID)
		if !ok {
			return ErrResultNotFound
		}
		result.Disputed = true
		result.DisputeReason = clean
		submission.GradedResults[idx] = result
		return nil
	})
	if err != nil {
		return models.StudentSubmission{}, err
	}

	s.notify(ctx, models.NotificationInfo, fmt.Sprintf("%s disputed a result", updated.StudentName))
	s.logger.Info().Str("submission_id", submissionID).Str("question_id", questionID).Msg("result disputed")
	return updated, nil
}

// Resolve sets the teacher's final marks for a disputed result and clears
// the dispute. Marks must lie within the question's total.
func (s *reviewService) Resolve(ctx context.Context, submissionID, questionID string, marks float64, comment string) (models.StudentSubmission, error) {
	clean := s.clean(comment)

	submission, ok := s.workspace.Submission(submissionID)
	if !ok {
		return models.StudentSubmission{}, ErrSubmissionNotFound
	}

	total := math.Inf(1)
	if paper, ok := s.workspace.Paper(submission.PaperID); ok {
		if item, ok := paper.RubricItemByID(questionID); ok && item.TotalMarks > 0 {
			total = item.TotalMarks
		}
	}
	if math.IsNaN(marks) || marks < 0 || marks > total {
		return models.StudentSubmission{}, fmt.Errorf("%w: %g not in [0, %g]", ErrMarksOutOfRange, marks, total)
	}

	updated, err := s.workspace.ModifySubmission(ctx, submissionID, func(submission *models.StudentSubmission) error {
		result, idx, ok := submission.ResultFor(questionID)
		if !ok {
			return ErrResultNotFound
		}
		if !result.Disputed {
			return ErrNotDisputed
		}
		result.MarksAwarded = marks
		result.Disputed = false
		result.ResolutionComment = clean
		submission.GradedResults[idx] = result
		return nil
	})
	if err != nil {
		return models.StudentSubmission{}, err
	}

	s.notify(ctx, models.NotificationSuccess, fmt.Sprintf("Dispute resolved for %s", updated.StudentName))
	s.logger.Info().
		Str("submission_id", submissionID).
		Str("question_id", questionID).
		Float64("marks", marks).
		Msg("dispute resolved")
	return updated, nil
}

func (s *reviewService) AddComment(ctx context.Context, submissionID, questionID, text string) (models.StudentSubmission, error) {
	clean := s.clean(text)
	if clean == "" {
		return models.StudentSubmission{}, ErrEmptyText
	}

	updated, err := s.workspace.ModifySubmission(ctx, submissionID, func(submission *models.StudentSubmission) error {
		result, idx, ok := submission.ResultFor(questionID)
		if !ok {
			return ErrResultNotFound
		}
		result.TeacherComments = append(result.TeacherComments, models.TeacherComment{
			Text:      clean,
			Timestamp: s.now().UTC(),
		})
		submission.GradedResults[idx] = result
		return nil
	})
	if err != nil {
		return models.StudentSubmission{}, err
	}

	s.logger.Debug().Str("submission_id", submissionID).Str("question_id", questionID).Msg("teacher comment added")
	return updated, nil
}

func (s *reviewService) clean(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}

func (s *reviewService) notify(ctx context.Context, level models.NotificationLevel, message string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, level, message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to emit notification")
	}
}
