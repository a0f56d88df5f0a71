package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/preview"
	"github.com/akashmaurya09/intelligrade/internal/repository"
)

func TestWorkspaceAddQuestionPaperRefreshesCache(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)

	paper, err := stack.workspace.AddQuestionPaper(ctx, samplePaper(t))
	require.NoError(t, err)
	require.Equal(t, "p1", paper.ID)
	require.False(t, paper.CreatedAt.IsZero())
	require.True(t, preview.IsHandle(paper.PreviewURL))
	require.Len(t, stack.workspace.Papers(), 1)
	require.Equal(t, models.NotificationSuccess, stack.notifier.last().Level)
}

func TestWorkspaceAddQuestionPaperValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)

	noRubric := samplePaper(t)
	noRubric.Rubric = nil
	_, err := stack.workspace.AddQuestionPaper(ctx, noRubric)
	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))

	noAttachment := samplePaper(t)
	noAttachment.ModelAnswer = nil
	_, err = stack.workspace.AddQuestionPaper(ctx, noAttachment)
	require.ErrorIs(t, err, ErrModelAnswerRequired)

	papers, err := stack.storage.GetAllQuestionPapers(ctx)
	require.NoError(t, err)
	require.Empty(t, papers)
	require.Equal(t, []models.NotificationLevel{models.NotificationError, models.NotificationError}, stack.notifier.levels())
}

func TestWorkspaceUpdateQuestionPaperDoesNotRecompressStoredBinary(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)

	created, err := stack.workspace.AddQuestionPaper(ctx, samplePaper(t))
	require.NoError(t, err)
	storedBytes := append([]byte(nil), created.ModelAnswer.Bytes...)

	created.Title = "Quiz v2"
	updated, err := stack.workspace.UpdateQuestionPaper(ctx, created)
	require.NoError(t, err)
	require.Equal(t, "Quiz v2", updated.Title)
	require.Equal(t, storedBytes, updated.ModelAnswer.Bytes)
	require.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())
}

func TestWorkspaceUpdateQuestionPaperUnknownID(t *testing.T) {
	stack := newTestStack(t, nil)

	_, err := stack.workspace.UpdateQuestionPaper(context.Background(), samplePaper(t))
	require.ErrorIs(t, err, ErrPaperNotFound)
}

func TestWorkspaceRefreshReleasesSupersededPreviews(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)

	created, err := stack.workspace.AddQuestionPaper(ctx, samplePaper(t))
	require.NoError(t, err)
	require.Equal(t, 1, stack.previews.Len())

	papers, err := stack.workspace.RefreshData(ctx)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	require.NotEqual(t, created.PreviewURL, papers[0].PreviewURL)
	require.Equal(t, 1, stack.previews.Len())

	_, err = stack.previews.Resolve(ctx, created.PreviewURL)
	require.ErrorIs(t, err, preview.ErrHandleNotFound)
}

func TestWorkspaceDeleteQuestionPaperOrphansSubmissions(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)

	_, err := stack.workspace.AddQuestionPaper(ctx, samplePaper(t))
	require.NoError(t, err)
	_, err = stack.workspace.AddStudentSubmission(ctx, models.StudentSubmission{ID: "s1", PaperID: "p1", StudentName: "Asha"})
	require.NoError(t, err)

	require.NoError(t, stack.workspace.DeleteQuestionPaper(ctx, "p1"))

	_, ok := stack.workspace.Paper("p1")
	require.False(t, ok)
	submission, ok := stack.workspace.Submission("s1")
	require.True(t, ok)
	require.Equal(t, "p1", submission.PaperID)
}

func TestWorkspaceAddSubmissionDefaults(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)

	submission, err := stack.workspace.AddStudentSubmission(ctx, models.StudentSubmission{
		PaperID:     "p1",
		StudentName: "Asha",
		AnswerSheet: models.NewUpload(testJPEG(t, 800, 600), "image/jpeg"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, submission.ID)
	require.Equal(t, models.UploadMethodIndividual, submission.UploadMethod)
	require.Equal(t, models.GradingStatusIdle, submission.Status())
	require.False(t, submission.SubmissionDate.IsZero())
	require.NotNil(t, submission.AnswerSheet)

	_, err = stack.workspace.AddStudentSubmission(ctx, models.StudentSubmission{PaperID: "p1"})
	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))
}

func TestWorkspaceUpdateSubmissionKeepsStoredAnswerSheet(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)

	created, err := stack.workspace.AddStudentSubmission(ctx, models.StudentSubmission{
		ID:          "s1",
		PaperID:     "p1",
		StudentName: "Asha",
		AnswerSheet: models.NewUpload([]byte("%PDF-1.4 sheet"), "application/pdf"),
	})
	require.NoError(t, err)

	created.GradedResults = []models.GradedResult{{QuestionID: "q1", MarksAwarded: 1, Feedback: "ok"}}
	created.AnswerSheet = nil
	updated, err := stack.workspace.UpdateSubmission(ctx, created)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4 sheet"), updated.AnswerSheet.Bytes)
	require.Len(t, updated.GradedResults, 1)

	replacement := models.NewUpload([]byte("%PDF-1.4 replacement"), "application/pdf")
	updated.AnswerSheet = replacement
	replaced, err := stack.workspace.UpdateSubmission(ctx, updated)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4 replacement"), replaced.AnswerSheet.Bytes)
}

func TestWorkspaceModifySubmissionSerialisesWriters(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)

	_, err := stack.workspace.AddStudentSubmission(ctx, models.StudentSubmission{
		ID:            "s1",
		PaperID:       "p1",
		StudentName:   "Asha",
		GradedResults: []models.GradedResult{{QuestionID: "q1"}},
	})
	require.NoError(t, err)

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := stack.workspace.ModifySubmission(ctx, "s1", func(s *models.StudentSubmission) error {
				s.GradedResults[0].TeacherComments = append(s.GradedResults[0].TeacherComments, models.TeacherComment{
					Text:      fmt.Sprintf("comment %d", i),
					Timestamp: time.Now(),
				})
				return nil
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	submission, ok := stack.workspace.Submission("s1")
	require.True(t, ok)
	require.Len(t, submission.GradedResults[0].TeacherComments, writers)
}

func TestWorkspaceModifySubmissionUnknownID(t *testing.T) {
	stack := newTestStack(t, nil)

	_, err := stack.workspace.ModifySubmission(context.Background(), "missing", func(*models.StudentSubmission) error { return nil })
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestWorkspaceInitSeedsOnlyOnFirstEmptyLoad(t *testing.T) {
	ctx := context.Background()
	seeder := &countingSeeder{}
	stack := newTestStack(t, seeder)
	seeder.storage = stack.storage

	require.NoError(t, stack.workspace.Init(ctx))
	require.Equal(t, 1, seeder.runs)
	require.Len(t, stack.workspace.Papers(), 1)

	for _, paper := range stack.workspace.Papers() {
		require.NoError(t, stack.workspace.DeleteQuestionPaper(ctx, paper.ID))
	}
	require.Empty(t, stack.workspace.Papers())

	require.NoError(t, stack.workspace.Init(ctx))
	require.Equal(t, 1, seeder.runs)
	require.Empty(t, stack.workspace.Papers())
}

func TestWorkspaceInitSkipsSeedWhenPapersExist(t *testing.T) {
	ctx := context.Background()
	seeder := &countingSeeder{}
	stack := newTestStack(t, seeder)
	seeder.storage = stack.storage

	require.NoError(t, stack.storage.SaveQuestionPaper(ctx, samplePaper(t)))
	require.NoError(t, stack.workspace.Init(ctx))
	require.Zero(t, seeder.runs)
	require.Len(t, stack.workspace.Papers(), 1)
}

func TestWorkspaceLoadSamplesSeedsAgainOnDemand(t *testing.T) {
	ctx := context.Background()
	seeder := &countingSeeder{}
	stack := newTestStack(t, seeder)
	seeder.storage = stack.storage

	require.NoError(t, stack.workspace.LoadSamples(ctx))
	require.NoError(t, stack.workspace.LoadSamples(ctx))
	require.Equal(t, 2, seeder.runs)
	require.Len(t, stack.workspace.Papers(), 2)
}

type failingStore struct {
	repository.AttachmentStore
	err error
}

func (f failingStore) Put(context.Context, models.Collection, string, interface{}, *models.Attachment) error {
	return f.err
}

func TestWorkspaceStoreFailureNotifiesAndPropagates(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)
	boom := errors.New("disk full")

	storage := NewStorageService(failingStore{AttachmentStore: stack.store, err: boom}, nil, nil, testLogger())
	workspace := NewWorkspaceService(storage, stack.previews, nil, stack.notifier, validator.New(), testLogger())

	_, err := workspace.AddQuestionPaper(ctx, samplePaper(t))
	require.ErrorIs(t, err, boom)
	require.Equal(t, models.NotificationError, stack.notifier.last().Level)
	require.Empty(t, workspace.Papers())
}
