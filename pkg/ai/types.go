package ai

import (
	"context"
	"errors"
)

// InvalidImageSentinel is the feedback text a model returns when the supplied
// image is not an academic document.
const InvalidImageSentinel = "FATAL_ERROR: INVALID_IMAGE_CONTENT"

var (
	// ErrInvalidImageContent indicates the model rejected the image as not gradable.
	ErrInvalidImageContent = errors.New("image is not a valid academic document")
	// ErrMalformedResponse indicates the model reply failed parsing or schema validation.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrNoImage indicates neither image bytes nor an image URL were supplied.
	ErrNoImage = errors.New("image data or url is required")
)

// Image is the answer sheet or paper handed to the model, either inline or by URL.
type Image struct {
	Data      []byte
	MediaType string
	URL       string
}

// Empty reports whether the image carries neither bytes nor a URL.
func (i Image) Empty() bool {
	return len(i.Data) == 0 && i.URL == ""
}

// RubricStep describes one scoring step.
type RubricStep struct {
	Description string
	Marks       float64
}

// RubricKeyword describes one scoring keyword.
type RubricKeyword struct {
	Keyword string
	Marks   float64
}

// Rubric is the single question being graded.
type Rubric struct {
	QuestionID     string
	Question       string
	TotalMarks     float64
	ExpectedAnswer string
	Steps          []RubricStep
	Keywords       []RubricKeyword
}

// GradeRequest asks for one question of an answer sheet to be graded.
type GradeRequest struct {
	Image        Image
	Rubric       Rubric
	Instructions string
}

// StepScore is the per-step breakdown returned by the model.
type StepScore struct {
	Description  string  `json:"description"`
	MarksAwarded float64 `json:"marksAwarded"`
	MaxMarks     float64 `json:"maxMarks"`
}

// KeywordScore is the per-keyword breakdown returned by the model.
type KeywordScore struct {
	Keyword      string  `json:"keyword"`
	Found        bool    `json:"found"`
	MarksAwarded float64 `json:"marksAwarded"`
	MaxMarks     float64 `json:"maxMarks"`
}

// GradeResult is the structured grading outcome for one question.
type GradeResult struct {
	QuestionID             string         `json:"questionId"`
	MarksAwarded           float64        `json:"marksAwarded"`
	Feedback               string         `json:"feedback"`
	ImprovementSuggestions []string       `json:"improvementSuggestions"`
	Disputed               bool           `json:"disputed"`
	StepScores             []StepScore    `json:"stepScores,omitempty"`
	KeywordScores          []KeywordScore `json:"keywordScores,omitempty"`
}

// ExtractedQuestion is a question read off a paper image.
type ExtractedQuestion struct {
	Question   string  `json:"question"`
	TotalMarks float64 `json:"totalMarks"`
}

// Grader describes a hosted model capable of grading answer sheets.
type Grader interface {
	GradeAnswerSheet(ctx context.Context, req GradeRequest) (GradeResult, error)
	ExtractQuestions(ctx context.Context, image Image) ([]ExtractedQuestion, error)
	Name() string
}
