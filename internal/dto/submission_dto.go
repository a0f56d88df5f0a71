package dto

import (
	"time"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

// SubmissionCreateRequest describes the form fields of a new submission.
type SubmissionCreateRequest struct {
	PaperID      string `form:"paper_id" validate:"required"`
	StudentName  string `form:"student_name" validate:"required,max=255"`
	UploadMethod string `form:"upload_method" validate:"omitempty,oneof=individual bulk"`
	SourceURL    string `form:"source_url" validate:"omitempty,url"`
}

// SubmissionUpdateRequest describes the editable fields of a submission.
type SubmissionUpdateRequest struct {
	StudentName *string `form:"student_name" validate:"omitempty,max=255"`
	SourceURL   *string `form:"source_url" validate:"omitempty,url"`
}

// SubmissionResponse is the serialized representation of a submission.
type SubmissionResponse struct {
	ID                string                `json:"id"`
	PaperID           string                `json:"paper_id"`
	StudentName       string                `json:"student_name"`
	SubmissionDate    time.Time             `json:"submission_date"`
	UploadMethod      models.UploadMethod   `json:"upload_method"`
	SourceURL         string                `json:"source_url,omitempty"`
	RemoteURL         string                `json:"remote_url,omitempty"`
	IsGrading         bool                  `json:"is_grading"`
	GradingStatus     models.GradingStatus  `json:"grading_status"`
	GradingDurationMs *int64                `json:"grading_duration_ms,omitempty"`
	GradedResults     []models.GradedResult `json:"graded_results"`
	MarksAwarded      float64               `json:"marks_awarded"`
	AnswerSheet       *AttachmentResponse   `json:"answer_sheet,omitempty"`
	PreviewURL        string                `json:"preview_url,omitempty"`
}

// NewSubmissionResponse converts a model into a DTO.
func NewSubmissionResponse(submission models.StudentSubmission) SubmissionResponse {
	response := SubmissionResponse{
		ID:             submission.ID,
		PaperID:        submission.PaperID,
		StudentName:    submission.StudentName,
		SubmissionDate: submission.SubmissionDate,
		UploadMethod:   submission.UploadMethod,
		SourceURL:      submission.SourceURL,
		RemoteURL:      submission.RemoteURL,
		IsGrading:      submission.IsGrading,
		GradingStatus:  submission.Status(),
		GradedResults:  submission.GradedResults,
		MarksAwarded:   submission.MarksAwarded(),
		AnswerSheet:    newAttachmentResponse(submission.AnswerSheet),
		PreviewURL:     PreviewURL(submission.PreviewURL),
	}
	if response.GradedResults == nil {
		response.GradedResults = []models.GradedResult{}
	}
	if submission.GradingDuration != nil {
		ms := submission.GradingDuration.Milliseconds()
		response.GradingDurationMs = &ms
	}
	return response
}

// NewSubmissionResponseSlice converts a slice of models into DTOs.
func NewSubmissionResponseSlice(submissions []models.StudentSubmission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}
