package models

import "time"

// QuestionPaper is a teacher-authored assignment definition.
type QuestionPaper struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title" validate:"required"`
	Subject             string       `json:"subject,omitempty"`
	Description         string       `json:"description,omitempty"`
	Rubric              []RubricItem `json:"rubric" validate:"required,min=1,dive"`
	CreatedAt           time.Time    `json:"created_at"`
	GradingInstructions string       `json:"grading_instructions,omitempty"`
	RemoteURL           string       `json:"remote_url,omitempty"`
	ModelAnswer         *Attachment  `json:"model_answer,omitempty"`
	PreviewURL          string       `json:"preview_url,omitempty"`
}

// RubricItem is one gradable question within a paper. TotalMarks is
// authoritative; step and keyword marks are not required to add up to it.
type RubricItem struct {
	ID             string          `json:"id"`
	Question       string          `json:"question" validate:"required"`
	TotalMarks     float64         `json:"total_marks" validate:"gte=0"`
	ExpectedAnswer string          `json:"expected_answer,omitempty"`
	Steps          []RubricStep    `json:"steps,omitempty" validate:"dive"`
	Keywords       []RubricKeyword `json:"keywords,omitempty" validate:"dive"`
}

// RubricStep awards marks for one step of a worked answer.
type RubricStep struct {
	Description string  `json:"description" validate:"required"`
	Marks       float64 `json:"marks" validate:"gte=0"`
}

// RubricKeyword awards marks when a keyword appears in the answer.
type RubricKeyword struct {
	Keyword string  `json:"keyword" validate:"required"`
	Marks   float64 `json:"marks" validate:"gte=0"`
}

// RubricItemByID looks up a rubric item of the paper.
func (p QuestionPaper) RubricItemByID(id string) (RubricItem, bool) {
	for _, item := range p.Rubric {
		if item.ID == id {
			return item, true
		}
	}
	return RubricItem{}, false
}

// TotalMarks sums the authoritative totals of every rubric item.
func (p QuestionPaper) TotalMarks() float64 {
	var total float64
	for _, item := range p.Rubric {
		total += item.TotalMarks
	}
	return total
}
