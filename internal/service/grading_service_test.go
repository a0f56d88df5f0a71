package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/pkg/ai"
)

func newGradingFixture(t *testing.T, grader *stubGrader) (*testStack, GradingService) {
	t.Helper()
	ctx := context.Background()
	stack := newTestStack(t, nil)

	_, err := stack.workspace.AddQuestionPaper(ctx, samplePaper(t))
	require.NoError(t, err)
	_, err = stack.workspace.AddStudentSubmission(ctx, models.StudentSubmission{
		ID:          "s1",
		PaperID:     "p1",
		StudentName: "Asha",
		AnswerSheet: models.NewUpload(testJPEG(t, 400, 600), "image/jpeg"),
	})
	require.NoError(t, err)

	return stack, NewGradingService(stack.workspace, grader, stack.notifier, 2, testLogger())
}

func collectEvents(t *testing.T, events <-chan models.GradingEvent, until models.GradingStatus) []models.GradingStatus {
	t.Helper()
	var statuses []models.GradingStatus
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event := <-events:
			statuses = append(statuses, event.Status)
			if event.Status == until {
				return statuses
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, saw %v", until, statuses)
		}
	}
}

func TestGradingServiceGradesEveryQuestion(t *testing.T) {
	grader := &stubGrader{}
	stack, grading := newGradingFixture(t, grader)
	events, stop := grading.Subscribe()
	defer stop()

	graded, err := grading.Grade(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, models.GradingStatusSuccess, graded.GradingStatus)
	require.False(t, graded.IsGrading)
	require.NotNil(t, graded.GradingDuration)
	require.Len(t, graded.GradedResults, 2)
	require.Equal(t, 5.0, graded.MarksAwarded())
	require.Equal(t, 2, grader.callCount())

	require.Equal(t, []models.GradingStatus{models.GradingStatusGrading, models.GradingStatusSuccess}, collectEvents(t, events, models.GradingStatusSuccess))
	require.Equal(t, models.NotificationSuccess, stack.notifier.last().Level)
	require.False(t, grading.Running("s1"))

	for _, request := range grader.requests {
		require.NotEmpty(t, request.Image.Data)
		require.Equal(t, "image/jpeg", request.Image.MediaType)
	}
}

func TestGradingServiceRegradePreservesTeacherAnnotations(t *testing.T) {
	ctx := context.Background()
	grader := &stubGrader{}
	stack, grading := newGradingFixture(t, grader)

	_, err := grading.Grade(ctx, "s1")
	require.NoError(t, err)

	comments := []models.TeacherComment{{Text: "Neat working", Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}}
	_, err = stack.workspace.ModifySubmission(ctx, "s1", func(s *models.StudentSubmission) error {
		s.GradedResults[0].TeacherComments = comments
		s.GradedResults[0].ResolutionComment = "Checked by hand"
		return nil
	})
	require.NoError(t, err)

	grader.grade = func(_ context.Context, req ai.GradeRequest) (ai.GradeResult, error) {
		return ai.GradeResult{QuestionID: req.Rubric.QuestionID, MarksAwarded: 1, Feedback: "Regraded"}, nil
	}
	regraded, err := grading.Grade(ctx, "s1")
	require.NoError(t, err)

	result, _, ok := regraded.ResultFor("q1")
	require.True(t, ok)
	require.Equal(t, "Regraded", result.Feedback)
	require.Equal(t, "Checked by hand", result.ResolutionComment)
	require.Len(t, result.TeacherComments, 1)
	require.Equal(t, "Neat working", result.TeacherComments[0].Text)
	require.True(t, comments[0].Timestamp.Equal(result.TeacherComments[0].Timestamp))
}

func TestGradingServiceCancelRevertsToIdle(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{}, 2)
	grader := &stubGrader{grade: func(ctx context.Context, _ ai.GradeRequest) (ai.GradeResult, error) {
		started <- struct{}{}
		<-ctx.Done()
		return ai.GradeResult{}, ctx.Err()
	}}
	stack, grading := newGradingFixture(t, grader)
	events, stop := grading.Subscribe()
	defer stop()

	require.NoError(t, grading.Start(ctx, "s1"))
	<-started

	submission, ok := stack.workspace.Submission("s1")
	require.True(t, ok)
	require.Equal(t, models.GradingStatusGrading, submission.GradingStatus)
	require.True(t, submission.IsGrading)

	require.True(t, grading.Cancel("s1"))
	require.Equal(t, []models.GradingStatus{models.GradingStatusGrading, models.GradingStatusIdle}, collectEvents(t, events, models.GradingStatusIdle))
	require.Eventually(t, func() bool { return !grading.Running("s1") }, 2*time.Second, 10*time.Millisecond)
	require.False(t, grading.Cancel("s1"))

	submission, _ = stack.workspace.Submission("s1")
	require.Equal(t, models.GradingStatusIdle, submission.GradingStatus)
	require.False(t, submission.IsGrading)
	require.Equal(t, models.NotificationInfo, stack.notifier.last().Level)

	grader.grade = nil
	graded, err := grading.Grade(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, models.GradingStatusSuccess, graded.GradingStatus)
}

func TestGradingServiceRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	grader := &stubGrader{grade: func(ctx context.Context, req ai.GradeRequest) (ai.GradeResult, error) {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return ai.GradeResult{}, ctx.Err()
		}
		return ai.GradeResult{QuestionID: req.Rubric.QuestionID, MarksAwarded: 1, Feedback: "ok"}, nil
	}}
	_, grading := newGradingFixture(t, grader)

	require.NoError(t, grading.Start(ctx, "s1"))
	<-started

	_, err := grading.Grade(ctx, "s1")
	require.ErrorIs(t, err, ErrGradingInProgress)

	close(release)
	require.Eventually(t, func() bool { return !grading.Running("s1") }, 2*time.Second, 10*time.Millisecond)
}

func TestGradingServiceInvalidImageMarksError(t *testing.T) {
	ctx := context.Background()
	grader := &stubGrader{grade: func(context.Context, ai.GradeRequest) (ai.GradeResult, error) {
		return ai.GradeResult{}, ai.ErrInvalidImageContent
	}}
	stack, grading := newGradingFixture(t, grader)

	_, err := grading.Grade(ctx, "s1")
	require.ErrorIs(t, err, ai.ErrInvalidImageContent)

	submission, ok := stack.workspace.Submission("s1")
	require.True(t, ok)
	require.Equal(t, models.GradingStatusError, submission.GradingStatus)
	require.False(t, submission.IsGrading)
	require.Equal(t, models.NotificationError, stack.notifier.last().Level)
	require.False(t, grading.Running("s1"))

	grader.grade = nil
	graded, err := grading.Grade(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, models.GradingStatusSuccess, graded.GradingStatus)
}

func TestGradingServiceUsesSourceURLWithoutBinary(t *testing.T) {
	ctx := context.Background()
	grader := &stubGrader{}
	stack, grading := newGradingFixture(t, grader)

	_, err := stack.workspace.AddStudentSubmission(ctx, models.StudentSubmission{
		ID:           "bulk",
		PaperID:      "p1",
		StudentName:  "Imported",
		UploadMethod: models.UploadMethodBulk,
		SourceURL:    "https://files.example.com/bulk.jpg",
	})
	require.NoError(t, err)
	_, err = stack.workspace.AddStudentSubmission(ctx, models.StudentSubmission{
		ID:           "empty",
		PaperID:      "p1",
		StudentName:  "Nobody",
		UploadMethod: models.UploadMethodBulk,
	})
	require.NoError(t, err)

	_, err = grading.Grade(ctx, "bulk")
	require.NoError(t, err)
	require.Equal(t, "https://files.example.com/bulk.jpg", grader.requests[0].Image.URL)
	require.Empty(t, grader.requests[0].Image.Data)

	_, err = grading.Grade(ctx, "empty")
	require.ErrorIs(t, err, ErrNoAnswerSheet)
	submission, _ := stack.workspace.Submission("empty")
	require.Equal(t, models.GradingStatusIdle, submission.Status())
}

func TestGradingServicePreconditions(t *testing.T) {
	ctx := context.Background()
	stack, grading := newGradingFixture(t, &stubGrader{})

	_, err := grading.Grade(ctx, "missing")
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = stack.workspace.AddStudentSubmission(ctx, models.StudentSubmission{ID: "orphan", PaperID: "gone", StudentName: "Orphan", SourceURL: "https://files.example.com/o.jpg"})
	require.NoError(t, err)
	_, err = grading.Grade(ctx, "orphan")
	require.ErrorIs(t, err, ErrPaperNotFound)
}

func TestGradingServiceRecoversInterruptedRuns(t *testing.T) {
	ctx := context.Background()
	stack, grading := newGradingFixture(t, &stubGrader{})
	markGrading(t, stack, "s1")

	recovered, err := grading.RecoverInterrupted(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, recovered)

	submission, _ := stack.workspace.Submission("s1")
	require.Equal(t, models.GradingStatusIdle, submission.GradingStatus)
	require.False(t, submission.IsGrading)

	recovered, err = grading.RecoverInterrupted(ctx)
	require.NoError(t, err)
	require.Zero(t, recovered)

	_, err = grading.Grade(ctx, "s1")
	require.NoError(t, err)
}

func TestGradingServiceRegradesStaleGradingStatus(t *testing.T) {
	stack, grading := newGradingFixture(t, &stubGrader{})
	markGrading(t, stack, "s1")
	require.False(t, grading.Running("s1"))

	graded, err := grading.Grade(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, models.GradingStatusSuccess, graded.GradingStatus)
	require.False(t, graded.IsGrading)
}

func TestGradingServiceRetryableAfterFailedFinalWrite(t *testing.T) {
	ctx := context.Background()
	var blockWrites sync.Once
	var stack *testStack
	grader := &stubGrader{}
	grader.grade = func(context.Context, ai.GradeRequest) (ai.GradeResult, error) {
		blockWrites.Do(func() {
			err := stack.db.Exec(`CREATE TRIGGER block_record_updates BEFORE UPDATE ON attachment_records
BEGIN SELECT RAISE(ABORT, 'store unavailable'); END`).Error
			if err != nil {
				t.Errorf("create trigger: %v", err)
			}
		})
		return ai.GradeResult{}, errors.New("provider unavailable")
	}
	stack, grading := newGradingFixture(t, grader)

	_, err := grading.Grade(ctx, "s1")
	require.Error(t, err)

	submission, _ := stack.workspace.Submission("s1")
	require.Equal(t, models.GradingStatusGrading, submission.GradingStatus)
	require.False(t, grading.Running("s1"))
	require.False(t, grading.Cancel("s1"))

	require.NoError(t, stack.db.Exec("DROP TRIGGER block_record_updates").Error)
	grader.grade = nil

	graded, err := grading.Grade(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, models.GradingStatusSuccess, graded.GradingStatus)
	require.Len(t, graded.GradedResults, 2)
}

func markGrading(t *testing.T, stack *testStack, id string) {
	t.Helper()
	_, err := stack.workspace.ModifySubmission(context.Background(), id, func(s *models.StudentSubmission) error {
		s.GradingStatus = models.GradingStatusGrading
		s.IsGrading = true
		return nil
	})
	require.NoError(t, err)
}

func TestGradingServiceExtractRubric(t *testing.T) {
	grader := &stubGrader{extract: func(_ context.Context, image ai.Image) ([]ai.ExtractedQuestion, error) {
		if len(image.Data) == 0 {
			return nil, errors.New("no data")
		}
		return []ai.ExtractedQuestion{{Question: "Define osmosis", TotalMarks: 3}, {Question: "Name two organelles", TotalMarks: 2}}, nil
	}}
	_, grading := newGradingFixture(t, grader)

	items, err := grading.ExtractRubric(context.Background(), models.Attachment{Bytes: []byte("img"), MediaType: "image/png"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotEmpty(t, items[0].ID)
	require.NotEqual(t, items[0].ID, items[1].ID)
	require.Equal(t, "Define osmosis", items[0].Question)
	require.Equal(t, 3.0, items[0].TotalMarks)

	_, err = grading.ExtractRubric(context.Background(), models.Attachment{})
	require.ErrorIs(t, err, ai.ErrNoImage)
}
