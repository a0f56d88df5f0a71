package models

import "time"

// UploadMethod tags how a submission entered the workspace.
type UploadMethod string

const (
	// UploadMethodIndividual is a single answer sheet uploaded by hand.
	UploadMethodIndividual UploadMethod = "individual"
	// UploadMethodBulk is a submission created by a bulk import.
	UploadMethodBulk UploadMethod = "bulk"
)

// StudentSubmission is one student's attempt at one paper.
type StudentSubmission struct {
	ID              string         `json:"id"`
	PaperID         string         `json:"paper_id" validate:"required"`
	StudentName     string         `json:"student_name" validate:"required"`
	SubmissionDate  time.Time      `json:"submission_date"`
	UploadMethod    UploadMethod   `json:"upload_method,omitempty" validate:"omitempty,oneof=individual bulk"`
	SourceURL       string         `json:"source_url,omitempty" validate:"omitempty,url"`
	RemoteURL       string         `json:"remote_url,omitempty"`
	IsGrading       bool           `json:"is_grading"`
	GradingStatus   GradingStatus  `json:"grading_status,omitempty"`
	GradingDuration *time.Duration `json:"grading_duration,omitempty"`
	GradedResults   []GradedResult `json:"graded_results,omitempty"`
	AnswerSheet     *Attachment    `json:"answer_sheet,omitempty"`
	PreviewURL      string         `json:"preview_url,omitempty"`
}

// Status returns the grading status, treating an unset value as idle.
func (s StudentSubmission) Status() GradingStatus {
	if s.GradingStatus == "" {
		return GradingStatusIdle
	}
	return s.GradingStatus
}

// ResultFor returns the graded result for the question, if any.
func (s StudentSubmission) ResultFor(questionID string) (GradedResult, int, bool) {
	for i, result := range s.GradedResults {
		if result.QuestionID == questionID {
			return result, i, true
		}
	}
	return GradedResult{}, -1, false
}

// MarksAwarded sums the marks across every graded result.
func (s StudentSubmission) MarksAwarded() float64 {
	var total float64
	for _, result := range s.GradedResults {
		total += result.MarksAwarded
	}
	return total
}
