package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/preview"
)

var (
	// ErrPaperNotFound indicates the requested question paper is not in the workspace.
	ErrPaperNotFound = errors.New("question paper not found")
	// ErrSubmissionNotFound indicates the requested submission is not in the workspace.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrModelAnswerRequired indicates a new paper was saved without its model answer.
	ErrModelAnswerRequired = errors.New("model answer attachment is required")
)

// Seeder fills an empty workspace with sample data.
type Seeder interface {
	Seed(ctx context.Context) error
}

// WorkspaceService is the in-memory source of truth for papers and
// submissions. Every mutation writes through storage and then reloads both
// collections.
type WorkspaceService interface {
	Init(ctx context.Context) error
	RefreshData(ctx context.Context) ([]models.QuestionPaper, error)
	AddQuestionPaper(ctx context.Context, paper models.QuestionPaper) (models.QuestionPaper, error)
	UpdateQuestionPaper(ctx context.Context, paper models.QuestionPaper) (models.QuestionPaper, error)
	DeleteQuestionPaper(ctx context.Context, id string) error
	AddStudentSubmission(ctx context.Context, submission models.StudentSubmission) (models.StudentSubmission, error)
	UpdateSubmission(ctx context.Context, submission models.StudentSubmission) (models.StudentSubmission, error)
	ModifySubmission(ctx context.Context, id string, mutate func(*models.StudentSubmission) error) (models.StudentSubmission, error)
	LoadSamples(ctx context.Context) error
	Papers() []models.QuestionPaper
	Submissions() []models.StudentSubmission
	Paper(id string) (models.QuestionPaper, bool)
	Submission(id string) (models.StudentSubmission, bool)
}

type workspaceService struct {
	storage   StorageService
	previews  preview.Registry
	seeder    Seeder
	notifier  NotificationService
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time

	writers  map[models.Collection]*sync.Mutex
	entities *keyedMutex

	refreshMu   sync.Mutex
	cacheMu     sync.RWMutex
	papers      []models.QuestionPaper
	submissions []models.StudentSubmission

	initMu      sync.Mutex
	initialized bool
}

// NewWorkspaceService wires the workspace. previews, seeder and notifier may
// be nil.
func NewWorkspaceService(storage StorageService, previews preview.Registry, seeder Seeder, notifier NotificationService, validate *validator.Validate, logger zerolog.Logger) WorkspaceService {
	return &workspaceService{
		storage:   storage,
		previews:  previews,
		seeder:    seeder,
		notifier:  notifier,
		validator: validate,
		logger:    logger.With().Str("component", "workspace_service").Logger(),
		now:       time.Now,
		writers: map[models.Collection]*sync.Mutex{
			models.CollectionPapers:      {},
			models.CollectionSubmissions: {},
		},
		entities: newKeyedMutex(),
	}
}

// Init loads the workspace. Only the first call seeds, and only when no
// papers exist; later empty states are left empty.
func (s *workspaceService) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	papers, err := s.RefreshData(ctx)
	if err != nil {
		return err
	}

	if s.initialized {
		return nil
	}
	s.initialized = true

	if len(papers) > 0 || s.seeder == nil {
		return nil
	}

	s.logger.Info().Msg("empty workspace on first load, seeding samples")
	return s.LoadSamples(ctx)
}

// RefreshData reloads both collections and swaps them into the cache
// together. Preview handles of the replaced snapshot are released.
func (s *workspaceService) RefreshData(ctx context.Context) ([]models.QuestionPaper, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	papers, err := s.storage.GetAllQuestionPapers(ctx)
	if err != nil {
		s.notifyError(ctx, "Failed to load question papers", err)
		return nil, err
	}

	submissions, err := s.storage.GetAllSubmissions(ctx)
	if err != nil {
		s.releasePaperPreviews(ctx, papers)
		s.notifyError(ctx, "Failed to load submissions", err)
		return nil, err
	}

	s.cacheMu.Lock()
	stalePapers, staleSubmissions := s.papers, s.submissions
	s.papers, s.submissions = papers, submissions
	s.cacheMu.Unlock()

	s.releasePaperPreviews(ctx, stalePapers)
	s.releaseSubmissionPreviews(ctx, staleSubmissions)

	s.logger.Debug().Int("papers", len(papers)).Int("submissions", len(submissions)).Msg("workspace refreshed")
	return clonePapers(papers), nil
}

func (s *workspaceService) AddQuestionPaper(ctx context.Context, paper models.QuestionPaper) (models.QuestionPaper, error) {
	if paper.ID == "" {
		paper.ID = uuid.NewString()
	}
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = s.now().UTC()
	}
	assignRubricIDs(paper.Rubric)

	if err := s.validatePaper(ctx, paper); err != nil {
		return models.QuestionPaper{}, err
	}
	if paper.ModelAnswer.Size() == 0 {
		s.notifyError(ctx, "A model answer is required", ErrModelAnswerRequired)
		return models.QuestionPaper{}, ErrModelAnswerRequired
	}

	if err := s.savePaper(ctx, paper); err != nil {
		return models.QuestionPaper{}, err
	}

	s.notify(ctx, models.NotificationSuccess, fmt.Sprintf("Question paper %q created", paper.Title))
	return s.loadedPaper(paper.ID)
}

// UpdateQuestionPaper saves an edited paper. A round-tripped stored model
// answer is written back as-is; only a fresh upload is compressed.
func (s *workspaceService) UpdateQuestionPaper(ctx context.Context, paper models.QuestionPaper) (models.QuestionPaper, error) {
	existing, ok := s.Paper(paper.ID)
	if !ok {
		return models.QuestionPaper{}, ErrPaperNotFound
	}
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = existing.CreatedAt
	}
	assignRubricIDs(paper.Rubric)

	if err := s.validatePaper(ctx, paper); err != nil {
		return models.QuestionPaper{}, err
	}

	if err := s.savePaper(ctx, paper); err != nil {
		return models.QuestionPaper{}, err
	}

	s.notify(ctx, models.NotificationSuccess, fmt.Sprintf("Question paper %q updated", paper.Title))
	return s.loadedPaper(paper.ID)
}

func (s *workspaceService) DeleteQuestionPaper(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrPaperNotFound
	}

	unlock := s.entities.Lock(entityKey(models.CollectionPapers, id))
	defer unlock()

	writer := s.writers[models.CollectionPapers]
	writer.Lock()
	err := s.storage.DeleteQuestionPaper(ctx, id)
	writer.Unlock()
	if err != nil {
		s.notifyError(ctx, "Failed to delete question paper", err)
		return err
	}

	if _, err := s.RefreshData(ctx); err != nil {
		return err
	}

	s.notify(ctx, models.NotificationSuccess, "Question paper deleted")
	return nil
}

func (s *workspaceService) AddStudentSubmission(ctx context.Context, submission models.StudentSubmission) (models.StudentSubmission, error) {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmissionDate.IsZero() {
		submission.SubmissionDate = s.now().UTC()
	}
	if submission.UploadMethod == "" {
		submission.UploadMethod = models.UploadMethodIndividual
	}
	if submission.GradingStatus == "" {
		submission.GradingStatus = models.GradingStatusIdle
	}

	if err := s.validateSubmission(ctx, submission); err != nil {
		return models.StudentSubmission{}, err
	}

	unlock := s.entities.Lock(entityKey(models.CollectionSubmissions, submission.ID))
	defer unlock()

	if err := s.saveSubmissionLocked(ctx, submission); err != nil {
		return models.StudentSubmission{}, err
	}

	s.notify(ctx, models.NotificationSuccess, fmt.Sprintf("Submission from %s received", submission.StudentName))
	return s.loadedSubmission(submission.ID)
}

// UpdateSubmission saves the submission's metadata. The stored answer sheet
// is only replaced when a fresh upload is attached.
func (s *workspaceService) UpdateSubmission(ctx context.Context, submission models.StudentSubmission) (models.StudentSubmission, error) {
	if _, ok := s.Submission(submission.ID); !ok {
		return models.StudentSubmission{}, ErrSubmissionNotFound
	}

	if err := s.validateSubmission(ctx, submission); err != nil {
		return models.StudentSubmission{}, err
	}

	unlock := s.entities.Lock(entityKey(models.CollectionSubmissions, submission.ID))
	defer unlock()

	if err := s.saveSubmissionLocked(ctx, submission); err != nil {
		return models.StudentSubmission{}, err
	}

	return s.loadedSubmission(submission.ID)
}

// ModifySubmission applies mutate to the cached submission and saves the
// result while holding the submission's lock, so concurrent read-modify-write
// cycles on one submission never interleave.
func (s *workspaceService) ModifySubmission(ctx context.Context, id string, mutate func(*models.StudentSubmission) error) (models.StudentSubmission, error) {
	unlock := s.entities.Lock(entityKey(models.CollectionSubmissions, id))
	defer unlock()

	current, ok := s.Submission(id)
	if !ok {
		return models.StudentSubmission{}, ErrSubmissionNotFound
	}

	if err := mutate(&current); err != nil {
		return models.StudentSubmission{}, err
	}

	if err := s.validateSubmission(ctx, current); err != nil {
		return models.StudentSubmission{}, err
	}

	if err := s.saveSubmissionLocked(ctx, current); err != nil {
		return models.StudentSubmission{}, err
	}

	return s.loadedSubmission(id)
}

func (s *workspaceService) LoadSamples(ctx context.Context) error {
	if s.seeder == nil {
		return errors.New("no sample seeder configured")
	}

	paperWriter := s.writers[models.CollectionPapers]
	submissionWriter := s.writers[models.CollectionSubmissions]
	paperWriter.Lock()
	submissionWriter.Lock()
	err := s.seeder.Seed(ctx)
	submissionWriter.Unlock()
	paperWriter.Unlock()
	if err != nil {
		s.notifyError(ctx, "Failed to load sample data", err)
		return err
	}

	if _, err := s.RefreshData(ctx); err != nil {
		return err
	}

	s.notify(ctx, models.NotificationSuccess, "Sample data loaded")
	return nil
}

func (s *workspaceService) Papers() []models.QuestionPaper {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return clonePapers(s.papers)
}

func (s *workspaceService) Submissions() []models.StudentSubmission {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return cloneSubmissions(s.submissions)
}

func (s *workspaceService) Paper(id string) (models.QuestionPaper, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	for _, paper := range s.papers {
		if paper.ID == id {
			paper.Rubric = append([]models.RubricItem(nil), paper.Rubric...)
			return paper, true
		}
	}
	return models.QuestionPaper{}, false
}

func (s *workspaceService) Submission(id string) (models.StudentSubmission, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	for _, submission := range s.submissions {
		if submission.ID == id {
			submission.GradedResults = cloneResults(submission.GradedResults)
			return submission, true
		}
	}
	return models.StudentSubmission{}, false
}

func (s *workspaceService) savePaper(ctx context.Context, paper models.QuestionPaper) error {
	unlock := s.entities.Lock(entityKey(models.CollectionPapers, paper.ID))
	defer unlock()

	writer := s.writers[models.CollectionPapers]
	writer.Lock()
	err := s.storage.SaveQuestionPaper(ctx, paper)
	writer.Unlock()
	if err != nil {
		s.notifyError(ctx, "Failed to save question paper", err)
		return err
	}

	_, err = s.RefreshData(ctx)
	return err
}

// saveSubmissionLocked expects the caller to hold the submission's entity lock.
func (s *workspaceService) saveSubmissionLocked(ctx context.Context, submission models.StudentSubmission) error {
	if submission.AnswerSheet != nil && !submission.AnswerSheet.Fresh {
		submission.AnswerSheet = nil
	}

	writer := s.writers[models.CollectionSubmissions]
	writer.Lock()
	err := s.storage.SaveSubmission(ctx, submission)
	writer.Unlock()
	if err != nil {
		s.notifyError(ctx, "Failed to save submission", err)
		return err
	}

	_, err = s.RefreshData(ctx)
	return err
}

func (s *workspaceService) loadedPaper(id string) (models.QuestionPaper, error) {
	paper, ok := s.Paper(id)
	if !ok {
		return models.QuestionPaper{}, ErrPaperNotFound
	}
	return paper, nil
}

func (s *workspaceService) loadedSubmission(id string) (models.StudentSubmission, error) {
	submission, ok := s.Submission(id)
	if !ok {
		return models.StudentSubmission{}, ErrSubmissionNotFound
	}
	return submission, nil
}

func (s *workspaceService) validatePaper(ctx context.Context, paper models.QuestionPaper) error {
	if err := s.validator.Struct(paper); err != nil {
		s.notifyError(ctx, "Question paper is incomplete", err)
		return err
	}
	return nil
}

func (s *workspaceService) validateSubmission(ctx context.Context, submission models.StudentSubmission) error {
	if err := s.validator.Struct(submission); err != nil {
		s.notifyError(ctx, "Submission is incomplete", err)
		return err
	}
	return nil
}

func (s *workspaceService) notify(ctx context.Context, level models.NotificationLevel, message string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, level, message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to emit notification")
	}
}

func (s *workspaceService) notifyError(ctx context.Context, message string, err error) {
	s.logger.Error().Err(err).Msg(message)
	s.notify(ctx, models.NotificationError, message)
}

func (s *workspaceService) releasePaperPreviews(ctx context.Context, papers []models.QuestionPaper) {
	for _, paper := range papers {
		s.releasePreview(ctx, paper.PreviewURL)
	}
}

func (s *workspaceService) releaseSubmissionPreviews(ctx context.Context, submissions []models.StudentSubmission) {
	for _, submission := range submissions {
		s.releasePreview(ctx, submission.PreviewURL)
	}
}

func (s *workspaceService) releasePreview(ctx context.Context, handle string) {
	if s.previews == nil || !preview.IsHandle(handle) {
		return
	}
	if err := s.previews.Release(ctx, handle); err != nil {
		s.logger.Warn().Err(err).Str("handle", handle).Msg("failed to release preview handle")
	}
}

func entityKey(collection models.Collection, id string) string {
	return string(collection) + "/" + id
}

func assignRubricIDs(items []models.RubricItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}
}

func clonePapers(papers []models.QuestionPaper) []models.QuestionPaper {
	return append([]models.QuestionPaper(nil), papers...)
}

func cloneSubmissions(submissions []models.StudentSubmission) []models.StudentSubmission {
	return append([]models.StudentSubmission(nil), submissions...)
}

func cloneResults(results []models.GradedResult) []models.GradedResult {
	if results == nil {
		return nil
	}
	cloned := make([]models.GradedResult, len(results))
	for i, result := range results {
		result.ImprovementSuggestions = append([]string(nil), result.ImprovementSuggestions...)
		result.TeacherComments = append([]models.TeacherComment(nil), result.TeacherComments...)
		result.StepScores = append([]models.StepScore(nil), result.StepScores...)
		result.KeywordScores = append([]models.KeywordScore(nil), result.KeywordScores...)
		cloned[i] = result
	}
	return cloned
}
