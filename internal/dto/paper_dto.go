package dto

import (
	"strings"
	"time"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/preview"
)

// PreviewRoutePrefix is where preview handles are served.
const PreviewRoutePrefix = "/api/v1/previews/"

// PaperRequest is the JSON document carried in the "paper" form field when a
// paper is created or updated.
type PaperRequest struct {
	Title               string              `json:"title" validate:"required,max=255"`
	Subject             string              `json:"subject" validate:"max=255"`
	Description         string              `json:"description"`
	GradingInstructions string              `json:"grading_instructions"`
	Rubric              []models.RubricItem `json:"rubric" validate:"required,min=1,dive"`
}

// Paper converts the request into a model with the given id.
func (r PaperRequest) Paper(id string) models.QuestionPaper {
	return models.QuestionPaper{
		ID:                  id,
		Title:               strings.TrimSpace(r.Title),
		Subject:             strings.TrimSpace(r.Subject),
		Description:         r.Description,
		GradingInstructions: r.GradingInstructions,
		Rubric:              r.Rubric,
	}
}

// AttachmentResponse describes a stored binary without its bytes.
type AttachmentResponse struct {
	MediaType string `json:"media_type"`
	Size      int    `json:"size"`
}

// PaperResponse is the serialized representation of a question paper.
type PaperResponse struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Subject             string              `json:"subject,omitempty"`
	Description         string              `json:"description,omitempty"`
	GradingInstructions string              `json:"grading_instructions,omitempty"`
	Rubric              []models.RubricItem `json:"rubric"`
	TotalMarks          float64             `json:"total_marks"`
	CreatedAt           time.Time           `json:"created_at"`
	ModelAnswer         *AttachmentResponse `json:"model_answer,omitempty"`
	PreviewURL          string              `json:"preview_url,omitempty"`
	RemoteURL           string              `json:"remote_url,omitempty"`
}

// NewPaperResponse converts a model into a DTO.
func NewPaperResponse(paper models.QuestionPaper) PaperResponse {
	return PaperResponse{
		ID:                  paper.ID,
		Title:               paper.Title,
		Subject:             paper.Subject,
		Description:         paper.Description,
		GradingInstructions: paper.GradingInstructions,
		Rubric:              paper.Rubric,
		TotalMarks:          paper.TotalMarks(),
		CreatedAt:           paper.CreatedAt,
		ModelAnswer:         newAttachmentResponse(paper.ModelAnswer),
		PreviewURL:          PreviewURL(paper.PreviewURL),
		RemoteURL:           paper.RemoteURL,
	}
}

// NewPaperResponseSlice converts a slice of models into DTOs.
func NewPaperResponseSlice(papers []models.QuestionPaper) []PaperResponse {
	responses := make([]PaperResponse, 0, len(papers))
	for _, paper := range papers {
		responses = append(responses, NewPaperResponse(paper))
	}
	return responses
}

// PreviewURL turns a preview handle into its HTTP route. Anything else, such
// as the placeholder, is returned unchanged.
func PreviewURL(value string) string {
	if !preview.IsHandle(value) {
		return value
	}
	return PreviewRoutePrefix + strings.TrimPrefix(value, preview.HandlePrefix)
}

func newAttachmentResponse(attachment *models.Attachment) *AttachmentResponse {
	if attachment == nil {
		return nil
	}
	return &AttachmentResponse{MediaType: attachment.MediaType, Size: attachment.Size()}
}
