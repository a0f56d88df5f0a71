package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/observability"
	"github.com/akashmaurya09/intelligrade/pkg/ai"
)

var (
	// ErrGradingInProgress indicates the submission is already being graded.
	ErrGradingInProgress = errors.New("grading already in progress")
	// ErrNoAnswerSheet indicates the submission has neither a stored answer sheet nor a source URL.
	ErrNoAnswerSheet = errors.New("submission has no answer sheet to grade")
	// ErrEmptyRubric indicates the paper has no questions to grade against.
	ErrEmptyRubric = errors.New("question paper has no rubric items")
)

const defaultGradingConcurrency = 4

// GradingService runs the AI grading cycle for submissions.
type GradingService interface {
	Grade(ctx context.Context, submissionID string) (models.StudentSubmission, error)
	Start(ctx context.Context, submissionID string) error
	Cancel(submissionID string) bool
	Running(submissionID string) bool
	RecoverInterrupted(ctx context.Context) (int, error)
	ExtractRubric(ctx context.Context, attachment models.Attachment) ([]models.RubricItem, error)
	Subscribe() (<-chan models.GradingEvent, func())
}

type gradingService struct {
	workspace   WorkspaceService
	grader      ai.Grader
	notifier    NotificationService
	concurrency int
	logger      zerolog.Logger
	tracer      trace.Tracer
	events      *broker[models.GradingEvent]
	now         func() time.Time

	mu      sync.Mutex
	running map[string]*gradingRun
}

type gradingRun struct {
	token        string
	submissionID string
	paper        models.QuestionPaper
	image        ai.Image
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewGradingService constructs the grading coordinator. concurrency bounds
// how many questions of one submission are graded at once.
func NewGradingService(workspace WorkspaceService, grader ai.Grader, notifier NotificationService, concurrency int, logger zerolog.Logger) GradingService {
	if concurrency <= 0 {
		concurrency = defaultGradingConcurrency
	}

	return &gradingService{
		workspace:   workspace,
		grader:      grader,
		notifier:    notifier,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/akashmaurya09/intelligrade/internal/service/grading"),
		events:      newBroker[models.GradingEvent](),
		now:         time.Now,
		running:     make(map[string]*gradingRun),
	}
}

// Grade grades every rubric question of the submission and blocks until the
// run finishes. A cancelled run leaves the submission IDLE and is not an error.
func (s *gradingService) Grade(ctx context.Context, submissionID string) (models.StudentSubmission, error) {
	run, err := s.begin(ctx, submissionID)
	if err != nil {
		return models.StudentSubmission{}, err
	}
	return s.execute(run)
}

// Start begins grading in the background. Preconditions are checked before it
// returns; the run outlives ctx's cancellation.
func (s *gradingService) Start(ctx context.Context, submissionID string) error {
	run, err := s.begin(context.WithoutCancel(ctx), submissionID)
	if err != nil {
		return err
	}

	go func() {
		if _, err := s.execute(run); err != nil {
			s.logger.Debug().Err(err).Str("submission_id", submissionID).Msg("background grading finished with error")
		}
	}()
	return nil
}

// Cancel aborts a running grading cycle. Cancelling an unknown or finished
// run is a no-op.
func (s *gradingService) Cancel(submissionID string) bool {
	s.mu.Lock()
	run, ok := s.running[submissionID]
	s.mu.Unlock()

	if !ok {
		return false
	}

	run.cancel()
	s.logger.Info().Str("submission_id", submissionID).Msg("grading cancellation requested")
	return true
}

func (s *gradingService) Running(submissionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[submissionID]
	return ok
}

// RecoverInterrupted moves submissions left in GRADING by a previous process
// back to IDLE so they can be graded again.
func (s *gradingService) RecoverInterrupted(ctx context.Context) (int, error) {
	recovered := 0
	for _, submission := range s.workspace.Submissions() {
		if submission.Status() != models.GradingStatusGrading || s.Running(submission.ID) {
			continue
		}

		_, err := s.workspace.ModifySubmission(ctx, submission.ID, func(current *models.StudentSubmission) error {
			return applyStatus(current, models.GradingStatusIdle)
		})
		if err != nil {
			return recovered, fmt.Errorf("recover submission %s: %w", submission.ID, err)
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Warn().Int("count", recovered).Msg("reset interrupted grading runs")
	}
	return recovered, nil
}

func (s *gradingService) ExtractRubric(ctx context.Context, attachment models.Attachment) ([]models.RubricItem, error) {
	if len(attachment.Bytes) == 0 {
		return nil, ai.ErrNoImage
	}

	ctx, span := s.tracer.Start(ctx, "grading.extract_rubric", trace.WithAttributes(
		attribute.String("provider", s.grader.Name()),
	))
	defer span.End()

	questions, err := s.grader.ExtractQuestions(ctx, ai.Image{Data: attachment.Bytes, MediaType: attachment.MediaType})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("extract questions: %w", err)
	}

	items := make([]models.RubricItem, 0, len(questions))
	for _, question := range questions {
		items = append(items, models.RubricItem{
			ID:         uuid.NewString(),
			Question:   question.Question,
			TotalMarks: question.TotalMarks,
		})
	}
	return items, nil
}

func (s *gradingService) Subscribe() (<-chan models.GradingEvent, func()) {
	return s.events.subscribe()
}

func (s *gradingService) begin(ctx context.Context, submissionID string) (*gradingRun, error) {
	submission, ok := s.workspace.Submission(submissionID)
	if !ok {
		return nil, ErrSubmissionNotFound
	}

	paper, ok := s.workspace.Paper(submission.PaperID)
	if !ok {
		return nil, fmt.Errorf("%w: submission %s references %q", ErrPaperNotFound, submissionID, submission.PaperID)
	}
	if len(paper.Rubric) == 0 {
		return nil, ErrEmptyRubric
	}

	image, err := answerSheetImage(submission)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.running[submissionID]; exists {
		s.mu.Unlock()
		return nil, ErrGradingInProgress
	}
	// GRADING without a registered run was left behind by a run whose final
	// write failed or by a previous process; it is reset on the way in.
	status := submission.Status()
	if status != models.GradingStatusGrading && !status.CanTransition(models.GradingStatusGrading) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, status, models.GradingStatusGrading)
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &gradingRun{
		token:        uuid.NewString(),
		submissionID: submissionID,
		paper:        paper,
		image:        image,
		ctx:          runCtx,
		cancel:       cancel,
	}
	s.running[submissionID] = run
	s.mu.Unlock()

	interrupted := false
	_, err = s.workspace.ModifySubmission(ctx, submissionID, func(current *models.StudentSubmission) error {
		if current.Status() == models.GradingStatusGrading {
			if err := applyStatus(current, models.GradingStatusIdle); err != nil {
				return err
			}
			interrupted = true
		}
		return applyStatus(current, models.GradingStatusGrading)
	})
	if err != nil {
		s.release(run)
		return nil, err
	}
	if interrupted {
		s.logger.Warn().Str("submission_id", submissionID).Msg("reset interrupted grading run")
	}

	s.publish(models.GradingEvent{SubmissionID: submissionID, Status: models.GradingStatusGrading})
	return run, nil
}

func (s *gradingService) execute(run *gradingRun) (models.StudentSubmission, error) {
	defer s.release(run)

	ctx, span := s.tracer.Start(run.ctx, "grading.run", trace.WithAttributes(
		attribute.String("submission_id", run.submissionID),
		attribute.String("provider", s.grader.Name()),
		attribute.Int("questions", len(run.paper.Rubric)),
	))
	defer span.End()

	start := s.now()
	results, gradeErr := s.gradeAll(ctx, run)
	duration := s.now().Sub(start)

	// The run context may be cancelled; persistence must still happen.
	persistCtx := context.WithoutCancel(run.ctx)

	switch {
	case gradeErr == nil:
		return s.finishSuccess(persistCtx, run, results, duration)
	case errors.Is(gradeErr, context.Canceled):
		return s.finishCancelled(persistCtx, run)
	default:
		span.RecordError(gradeErr)
		return s.finishError(persistCtx, run, gradeErr, duration)
	}
}

func (s *gradingService) gradeAll(ctx context.Context, run *gradingRun) ([]models.GradedResult, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	results := make([]models.GradedResult, len(run.paper.Rubric))
	for i, item := range run.paper.Rubric {
		group.Go(func() error {
			result, err := s.grader.GradeAnswerSheet(groupCtx, ai.GradeRequest{
				Image:        run.image,
				Rubric:       toAIRubric(item),
				Instructions: run.paper.GradingInstructions,
			})
			if err != nil {
				return fmt.Errorf("grade question %s: %w", item.ID, err)
			}
			results[i] = fromAIResult(item.ID, result)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return results, nil
}

func (s *gradingService) finishSuccess(ctx context.Context, run *gradingRun, results []models.GradedResult, duration time.Duration) (models.StudentSubmission, error) {
	updated, err := s.workspace.ModifySubmission(ctx, run.submissionID, func(current *models.StudentSubmission) error {
		if err := applyStatus(current, models.GradingStatusSuccess); err != nil {
			return err
		}
		current.GradedResults = models.MergeGradedResults(current.GradedResults, results)
		current.GradingDuration = &duration
		return nil
	})
	if err != nil {
		observability.GradingRuns().WithLabelValues("persist_error").Inc()
		return models.StudentSubmission{}, err
	}

	observability.GradingRuns().WithLabelValues(string(models.GradingStatusSuccess)).Inc()
	observability.GradingDuration().Observe(duration.Seconds())
	s.publish(models.GradingEvent{SubmissionID: run.submissionID, Status: models.GradingStatusSuccess, DurationMs: duration.Milliseconds()})
	s.notify(ctx, models.NotificationSuccess, fmt.Sprintf("Grading completed for %s", updated.StudentName))

	s.logger.Info().
		Str("submission_id", run.submissionID).
		Dur("duration", duration).
		Float64("marks", updated.MarksAwarded()).
		Msg("submission graded")
	return updated, nil
}

func (s *gradingService) finishCancelled(ctx context.Context, run *gradingRun) (models.StudentSubmission, error) {
	updated, err := s.workspace.ModifySubmission(ctx, run.submissionID, func(current *models.StudentSubmission) error {
		return applyStatus(current, models.GradingStatusIdle)
	})
	if err != nil {
		return models.StudentSubmission{}, err
	}

	observability.GradingRuns().WithLabelValues("CANCELLED").Inc()
	s.publish(models.GradingEvent{SubmissionID: run.submissionID, Status: models.GradingStatusIdle})
	s.notify(ctx, models.NotificationInfo, "Grading cancelled")

	s.logger.Info().Str("submission_id", run.submissionID).Msg("grading cancelled")
	return updated, nil
}

func (s *gradingService) finishError(ctx context.Context, run *gradingRun, gradeErr error, duration time.Duration) (models.StudentSubmission, error) {
	_, err := s.workspace.ModifySubmission(ctx, run.submissionID, func(current *models.StudentSubmission) error {
		if err := applyStatus(current, models.GradingStatusError); err != nil {
			return err
		}
		current.GradingDuration = &duration
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("submission_id", run.submissionID).Msg("failed to persist grading error")
	}

	observability.GradingRuns().WithLabelValues(string(models.GradingStatusError)).Inc()
	s.publish(models.GradingEvent{SubmissionID: run.submissionID, Status: models.GradingStatusError, Error: gradeErr.Error()})

	message := "Grading failed, please try again"
	if errors.Is(gradeErr, ai.ErrInvalidImageContent) {
		message = "The answer sheet does not look like a student's academic work"
	}
	s.notify(ctx, models.NotificationError, message)

	s.logger.Error().Err(gradeErr).Str("submission_id", run.submissionID).Msg("grading failed")
	return models.StudentSubmission{}, gradeErr
}

// release drops the run's registration so the submission can be graded again.
func (s *gradingService) release(run *gradingRun) {
	run.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.running[run.submissionID]; ok && current.token == run.token {
		delete(s.running, run.submissionID)
	}
}

func (s *gradingService) publish(event models.GradingEvent) {
	event.At = s.now().UTC()
	s.events.broadcast(event)
}

func (s *gradingService) notify(ctx context.Context, level models.NotificationLevel, message string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, level, message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to emit notification")
	}
}

func applyStatus(submission *models.StudentSubmission, next models.GradingStatus) error {
	status, err := submission.Status().Transition(next)
	if err != nil {
		return err
	}
	submission.GradingStatus = status
	submission.IsGrading = status == models.GradingStatusGrading
	return nil
}

func answerSheetImage(submission models.StudentSubmission) (ai.Image, error) {
	if submission.AnswerSheet != nil && len(submission.AnswerSheet.Bytes) > 0 {
		return ai.Image{Data: submission.AnswerSheet.Bytes, MediaType: submission.AnswerSheet.MediaType}, nil
	}
	if submission.SourceURL != "" {
		return ai.Image{URL: submission.SourceURL}, nil
	}
	return ai.Image{}, ErrNoAnswerSheet
}

func toAIRubric(item models.RubricItem) ai.Rubric {
	rubric := ai.Rubric{
		QuestionID:     item.ID,
		Question:       item.Question,
		TotalMarks:     item.TotalMarks,
		ExpectedAnswer: item.ExpectedAnswer,
	}
	for _, step := range item.Steps {
		rubric.Steps = append(rubric.Steps, ai.RubricStep{Description: step.Description, Marks: step.Marks})
	}
	for _, keyword := range item.Keywords {
		rubric.Keywords = append(rubric.Keywords, ai.RubricKeyword{Keyword: keyword.Keyword, Marks: keyword.Marks})
	}
	return rubric
}

func fromAIResult(questionID string, result ai.GradeResult) models.GradedResult {
	graded := models.GradedResult{
		QuestionID:             questionID,
		MarksAwarded:           result.MarksAwarded,
		Feedback:               result.Feedback,
		ImprovementSuggestions: result.ImprovementSuggestions,
	}
	for _, step := range result.StepScores {
		graded.StepScores = append(graded.StepScores, models.StepScore{
			Description:  step.Description,
			MarksAwarded: step.MarksAwarded,
			MaxMarks:     step.MaxMarks,
		})
	}
	for _, keyword := range result.KeywordScores {
		graded.KeywordScores = append(graded.KeywordScores, models.KeywordScore{
			Keyword:      keyword.Keyword,
			Found:        keyword.Found,
			MarksAwarded: keyword.MarksAwarded,
			MaxMarks:     keyword.MaxMarks,
		})
	}
	return graded
}
