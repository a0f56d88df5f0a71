package models

import (
	"errors"
	"fmt"
	"time"
)

// GradingStatus tracks where a submission is in the grading cycle.
type GradingStatus string

const (
	GradingStatusIdle    GradingStatus = "IDLE"
	GradingStatusGrading GradingStatus = "GRADING"
	GradingStatusSuccess GradingStatus = "SUCCESS"
	GradingStatusError   GradingStatus = "ERROR"
)

// ErrInvalidTransition indicates a grading status change outside the state machine.
var ErrInvalidTransition = errors.New("invalid grading status transition")

var gradingTransitions = map[GradingStatus][]GradingStatus{
	GradingStatusIdle:    {GradingStatusGrading},
	GradingStatusGrading: {GradingStatusSuccess, GradingStatusError, GradingStatusIdle},
	GradingStatusSuccess: {GradingStatusGrading},
	GradingStatusError:   {GradingStatusGrading},
}

// CanTransition reports whether moving from s to next is allowed.
func (s GradingStatus) CanTransition(next GradingStatus) bool {
	from := s
	if from == "" {
		from = GradingStatusIdle
	}
	for _, allowed := range gradingTransitions[from] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates the change and returns the new status.
func (s GradingStatus) Transition(next GradingStatus) (GradingStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// GradedResult is one question's grading outcome within a submission.
type GradedResult struct {
	QuestionID             string           `json:"question_id"`
	MarksAwarded           float64          `json:"marks_awarded"`
	Feedback               string           `json:"feedback"`
	ImprovementSuggestions []string         `json:"improvement_suggestions"`
	Disputed               bool             `json:"disputed"`
	DisputeReason          string           `json:"dispute_reason,omitempty"`
	ResolutionComment      string           `json:"resolution_comment,omitempty"`
	TeacherComments        []TeacherComment `json:"teacher_comments,omitempty"`
	StepScores             []StepScore      `json:"step_scores,omitempty"`
	KeywordScores          []KeywordScore   `json:"keyword_scores,omitempty"`
}

// TeacherComment is one entry of the teacher's comment log.
type TeacherComment struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// StepScore mirrors a rubric step with the marks awarded for it.
type StepScore struct {
	Description  string  `json:"description"`
	MarksAwarded float64 `json:"marks_awarded"`
	MaxMarks     float64 `json:"max_marks"`
}

// KeywordScore mirrors a rubric keyword with the marks awarded for it.
type KeywordScore struct {
	Keyword      string  `json:"keyword"`
	Found        bool    `json:"found"`
	MarksAwarded float64 `json:"marks_awarded"`
	MaxMarks     float64 `json:"max_marks"`
}

// MergeGradedResults overlays fresh grading output on the existing results.
// Human annotations (teacher comments, resolution comments) on existing
// results survive; results for questions that were not regraded are kept.
func MergeGradedResults(existing, fresh []GradedResult) []GradedResult {
	merged := make([]GradedResult, 0, len(existing)+len(fresh))
	index := make(map[string]int, len(existing))
	for _, result := range existing {
		index[result.QuestionID] = len(merged)
		merged = append(merged, result)
	}

	for _, result := range fresh {
		pos, ok := index[result.QuestionID]
		if !ok {
			index[result.QuestionID] = len(merged)
			merged = append(merged, result)
			continue
		}
		previous := merged[pos]
		result.TeacherComments = previous.TeacherComments
		result.ResolutionComment = previous.ResolutionComment
		merged[pos] = result
	}

	return merged
}
