package service

import (
	"bytes"
	"context"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

func TestSeedServiceWritesSampleWorkspace(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t, nil)
	seeder := NewSeedService(stack.storage, true, testLogger())

	require.NoError(t, seeder.Seed(ctx))

	papers, err := stack.storage.GetAllQuestionPapers(ctx)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	submissions, err := stack.storage.GetAllSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, submissions, 3)

	paperIDs := map[string]bool{}
	for _, paper := range papers {
		paperIDs[paper.ID] = true
		require.NotEmpty(t, paper.Rubric)
		require.NotNil(t, paper.ModelAnswer)
		require.NotEmpty(t, paper.PreviewURL)
	}

	var bulk int
	for _, submission := range submissions {
		require.True(t, paperIDs[submission.PaperID])
		require.Equal(t, models.GradingStatusIdle, submission.Status())
		if submission.UploadMethod == models.UploadMethodBulk {
			bulk++
			require.Nil(t, submission.AnswerSheet)
			require.NotEmpty(t, submission.SourceURL)
			continue
		}
		require.NotNil(t, submission.AnswerSheet)
	}
	require.Equal(t, 1, bulk)
}

func TestSeedServiceDisabled(t *testing.T) {
	stack := newTestStack(t, nil)
	seeder := NewSeedService(stack.storage, false, testLogger())

	require.ErrorIs(t, seeder.Seed(context.Background()), ErrSeedDisabled)

	papers, err := stack.storage.GetAllQuestionPapers(context.Background())
	require.NoError(t, err)
	require.Empty(t, papers)
}

func TestSampleSheetIsJPEG(t *testing.T) {
	data := sampleSheet(color.RGBA{A: 255}, 3)
	require.NotEmpty(t, data)

	config, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 600, config.Width)
	require.Equal(t, 800, config.Height)
}
