package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

// ErrSeedDisabled indicates sample seeding is disabled by configuration.
var ErrSeedDisabled = errors.New("seeding is disabled")

// SeedService writes the sample workspace used for first-run demos.
type SeedService interface {
	Seed(ctx context.Context) error
}

type seedService struct {
	storage StorageService
	enabled bool
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSeedService constructs a seeding service that writes through storage.
func NewSeedService(storage StorageService, enabled bool, logger zerolog.Logger) SeedService {
	return &seedService{
		storage: storage,
		enabled: enabled,
		logger:  logger.With().Str("component", "seed_service").Logger(),
		now:     time.Now,
	}
}

func (s *seedService) Seed(ctx context.Context) error {
	if !s.enabled {
		return ErrSeedDisabled
	}

	now := s.now().UTC()
	papers := samplePapers(now)
	for _, paper := range papers {
		if err := s.storage.SaveQuestionPaper(ctx, paper); err != nil {
			return fmt.Errorf("seed paper %q: %w", paper.Title, err)
		}
	}

	submissions := sampleSubmissions(papers, now)
	for _, submission := range submissions {
		if err := s.storage.SaveSubmission(ctx, submission); err != nil {
			return fmt.Errorf("seed submission for %s: %w", submission.StudentName, err)
		}
	}

	s.logger.Info().Int("papers", len(papers)).Int("submissions", len(submissions)).Msg("sample workspace seeded")
	return nil
}

func samplePapers(now time.Time) []models.QuestionPaper {
	return []models.QuestionPaper{
		{
			ID:                  uuid.NewString(),
			Title:               "Algebra Quiz",
			Subject:             "Mathematics",
			Description:         "Linear equations and simplification.",
			CreatedAt:           now.Add(-48 * time.Hour),
			GradingInstructions: "Award method marks even when the final answer is wrong.",
			Rubric: []models.RubricItem{
				{
					ID:             uuid.NewString(),
					Question:       "Solve 2x + 3 = 11.",
					TotalMarks:     4,
					ExpectedAnswer: "x = 4",
					Steps: []models.RubricStep{
						{Description: "Subtract 3 from both sides", Marks: 2},
						{Description: "Divide by 2", Marks: 2},
					},
				},
				{
					ID:             uuid.NewString(),
					Question:       "Simplify 3(a + 2) - a.",
					TotalMarks:     2,
					ExpectedAnswer: "2a + 6",
				},
			},
			ModelAnswer: models.NewUpload(sampleSheet(color.RGBA{R: 30, G: 60, B: 160, A: 255}, 4), "image/jpeg"),
		},
		{
			ID:          uuid.NewString(),
			Title:       "Photosynthesis Short Answers",
			Subject:     "Biology",
			Description: "Explain the light-dependent reactions.",
			CreatedAt:   now.Add(-24 * time.Hour),
			Rubric: []models.RubricItem{
				{
					ID:         uuid.NewString(),
					Question:   "Describe what happens during the light-dependent reactions.",
					TotalMarks: 5,
					Keywords: []models.RubricKeyword{
						{Keyword: "chlorophyll", Marks: 1},
						{Keyword: "ATP", Marks: 2},
						{Keyword: "oxygen", Marks: 1},
					},
				},
			},
			ModelAnswer: models.NewUpload(sampleSheet(color.RGBA{R: 20, G: 120, B: 40, A: 255}, 6), "image/jpeg"),
		},
	}
}

func sampleSubmissions(papers []models.QuestionPaper, now time.Time) []models.StudentSubmission {
	algebra, biology := papers[0], papers[1]

	return []models.StudentSubmission{
		{
			ID:             uuid.NewString(),
			PaperID:        algebra.ID,
			StudentName:    "Aarav Sharma",
			SubmissionDate: now.Add(-6 * time.Hour),
			UploadMethod:   models.UploadMethodIndividual,
			GradingStatus:  models.GradingStatusIdle,
			AnswerSheet:    models.NewUpload(sampleSheet(color.RGBA{R: 40, G: 40, B: 40, A: 255}, 5), "image/jpeg"),
		},
		{
			ID:             uuid.NewString(),
			PaperID:        biology.ID,
			StudentName:    "Meera Iyer",
			SubmissionDate: now.Add(-3 * time.Hour),
			UploadMethod:   models.UploadMethodIndividual,
			GradingStatus:  models.GradingStatusIdle,
			AnswerSheet:    models.NewUpload(sampleSheet(color.RGBA{R: 60, G: 30, B: 30, A: 255}, 7), "image/jpeg"),
		},
		{
			ID:             uuid.NewString(),
			PaperID:        algebra.ID,
			StudentName:    "Rohan Verma",
			SubmissionDate: now.Add(-1 * time.Hour),
			UploadMethod:   models.UploadMethodBulk,
			GradingStatus:  models.GradingStatusIdle,
			SourceURL:      "https://storage.example.com/bulk/rohan-verma-algebra.jpg",
		},
	}
}

// sampleSheet renders a ruled page with a few ink strokes standing in for
// handwriting.
func sampleSheet(ink color.RGBA, lines int) []byte {
	const width, height = 600, 800

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	rule := color.RGBA{R: 200, G: 215, B: 235, A: 255}
	for y := 60; y < height; y += 40 {
		draw.Draw(canvas, image.Rect(40, y, width-40, y+1), image.NewUniform(rule), image.Point{}, draw.Src)
	}

	for i := 0; i < lines; i++ {
		y := 50 + i*80
		length := 180 + (i*97)%300
		draw.Draw(canvas, image.Rect(60, y, 60+length, y+4), image.NewUniform(ink), image.Point{}, draw.Src)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 80}); err != nil {
		return nil
	}
	return buf.Bytes()
}
