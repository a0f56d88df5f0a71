package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ParseGradeResponse validates the model's JSON reply against the grading
// schema and normalises it for the rubric that was asked about.
func ParseGradeResponse(content string, rubric Rubric) (GradeResult, error) {
	if err := compileSchemas(); err != nil {
		return GradeResult{}, err
	}

	body := []byte(stripCodeFence(content))
	if err := validateAgainst(gradeSchema, body); err != nil {
		return GradeResult{}, err
	}

	var result GradeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return GradeResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if strings.Contains(result.Feedback, InvalidImageSentinel) {
		return GradeResult{}, ErrInvalidImageContent
	}

	result.QuestionID = rubric.QuestionID
	result.Disputed = false
	result.MarksAwarded = clampMarks(result.MarksAwarded, rubric.TotalMarks)
	if result.ImprovementSuggestions == nil {
		result.ImprovementSuggestions = []string{}
	}
	for i := range result.StepScores {
		if result.StepScores[i].MaxMarks <= 0 && i < len(rubric.Steps) {
			result.StepScores[i].MaxMarks = rubric.Steps[i].Marks
		}
		result.StepScores[i].MarksAwarded = clampMarks(result.StepScores[i].MarksAwarded, result.StepScores[i].MaxMarks)
	}
	for i := range result.KeywordScores {
		if result.KeywordScores[i].MaxMarks <= 0 && i < len(rubric.Keywords) {
			result.KeywordScores[i].MaxMarks = rubric.Keywords[i].Marks
		}
		result.KeywordScores[i].MarksAwarded = clampMarks(result.KeywordScores[i].MarksAwarded, result.KeywordScores[i].MaxMarks)
	}

	return result, nil
}

// ParseExtractionResponse validates and decodes a question extraction reply.
func ParseExtractionResponse(content string) ([]ExtractedQuestion, error) {
	if err := compileSchemas(); err != nil {
		return nil, err
	}

	body := []byte(stripCodeFence(content))
	if err := validateAgainst(extractionSchema, body); err != nil {
		return nil, err
	}

	var questions []ExtractedQuestion
	if err := json.Unmarshal(body, &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	cleaned := questions[:0]
	for _, q := range questions {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			continue
		}
		cleaned = append(cleaned, q)
	}
	return cleaned, nil
}

func clampMarks(value, max float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if max > 0 && value > max {
		return max
	}
	return value
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
