package models

import (
	"time"

	"gorm.io/datatypes"
)

// Collection names one of the logical record collections of the attachment store.
type Collection string

const (
	CollectionPapers      Collection = "papers"
	CollectionSubmissions Collection = "submissions"
)

// AttachmentRecord is the durable row behind every paper and submission.
type AttachmentRecord struct {
	Collection Collection     `gorm:"primaryKey;size:32"`
	ID         string         `gorm:"primaryKey;size:64"`
	Metadata   datatypes.JSON `gorm:"not null"`
	Blob       []byte
	MediaType  string `gorm:"size:128"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName pins the table used for both collections.
func (AttachmentRecord) TableName() string {
	return "attachment_records"
}

// PaperMetadata is the persisted, attachment-free shape of a paper.
type PaperMetadata struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Subject             string       `json:"subject,omitempty"`
	Description         string       `json:"description,omitempty"`
	Rubric              []RubricItem `json:"rubric"`
	CreatedAt           time.Time    `json:"createdAt"`
	GradingInstructions string       `json:"gradingInstructions,omitempty"`
	RemoteURL           string       `json:"remoteUrl,omitempty"`
}

// SubmissionMetadata is the persisted, attachment-free shape of a submission.
type SubmissionMetadata struct {
	ID                string         `json:"id"`
	PaperID           string         `json:"paperId"`
	StudentName       string         `json:"studentName"`
	SubmissionDate    time.Time      `json:"submissionDate"`
	UploadMethod      UploadMethod   `json:"uploadMethod,omitempty"`
	SourceURL         string         `json:"sourceUrl,omitempty"`
	RemoteURL         string         `json:"remoteUrl,omitempty"`
	IsGrading         bool           `json:"isGrading"`
	GradingStatus     GradingStatus  `json:"gradingStatus,omitempty"`
	GradingDurationMs *int64         `json:"gradingDuration,omitempty"`
	GradedResults     []GradedResult `json:"gradedResults,omitempty"`
}

// NewPaperMetadata copies every non-attachment field of the paper.
func NewPaperMetadata(p QuestionPaper) PaperMetadata {
	return PaperMetadata{
		ID:                  p.ID,
		Title:               p.Title,
		Subject:             p.Subject,
		Description:         p.Description,
		Rubric:              p.Rubric,
		CreatedAt:           p.CreatedAt,
		GradingInstructions: p.GradingInstructions,
		RemoteURL:           p.RemoteURL,
	}
}

// Paper rebuilds the in-memory paper without attachment or preview.
func (m PaperMetadata) Paper() QuestionPaper {
	return QuestionPaper{
		ID:                  m.ID,
		Title:               m.Title,
		Subject:             m.Subject,
		Description:         m.Description,
		Rubric:              m.Rubric,
		CreatedAt:           m.CreatedAt,
		GradingInstructions: m.GradingInstructions,
		RemoteURL:           m.RemoteURL,
	}
}

// NewSubmissionMetadata copies every non-attachment field of the submission.
func NewSubmissionMetadata(s StudentSubmission) SubmissionMetadata {
	meta := SubmissionMetadata{
		ID:             s.ID,
		PaperID:        s.PaperID,
		StudentName:    s.StudentName,
		SubmissionDate: s.SubmissionDate,
		UploadMethod:   s.UploadMethod,
		SourceURL:      s.SourceURL,
		RemoteURL:      s.RemoteURL,
		IsGrading:      s.IsGrading,
		GradingStatus:  s.GradingStatus,
		GradedResults:  s.GradedResults,
	}
	if s.GradingDuration != nil {
		ms := s.GradingDuration.Milliseconds()
		meta.GradingDurationMs = &ms
	}
	return meta
}

// Submission rebuilds the in-memory submission without attachment or preview.
func (m SubmissionMetadata) Submission() StudentSubmission {
	submission := StudentSubmission{
		ID:             m.ID,
		PaperID:        m.PaperID,
		StudentName:    m.StudentName,
		SubmissionDate: m.SubmissionDate,
		UploadMethod:   m.UploadMethod,
		SourceURL:      m.SourceURL,
		RemoteURL:      m.RemoteURL,
		IsGrading:      m.IsGrading,
		GradingStatus:  m.GradingStatus,
		GradedResults:  m.GradedResults,
	}
	if m.GradingDurationMs != nil {
		d := time.Duration(*m.GradingDurationMs) * time.Millisecond
		submission.GradingDuration = &d
	}
	return submission
}
