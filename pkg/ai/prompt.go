package ai

import (
	"fmt"
	"strings"
)

func graderSystemPrompt() string {
	return "You are an experienced examiner grading a scanned, handwritten answer sheet against a rubric. " +
		"Read the student's answer for the named question only. Award marks strictly according to the rubric and never exceed the total. " +
		"If the image is not a student's academic work, set feedback to exactly \"" + InvalidImageSentinel + "\" and award 0 marks. " +
		"Respond with a JSON object containing marksAwarded, feedback, improvementSuggestions and, when the rubric lists them, stepScores and keywordScores."
}

func extractionSystemPrompt() string {
	return "You read exam question papers. List every question on the page in order with the marks it carries. " +
		"Respond with a JSON array of objects with question and totalMarks. Use 0 when the marks are not printed."
}

func buildGradingPrompt(req GradeRequest) string {
	rubric := req.Rubric
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(rubric.Question)
	builder.WriteString(fmt.Sprintf("\n\n## Total Marks\n%g", rubric.TotalMarks))

	if rubric.ExpectedAnswer != "" {
		builder.WriteString("\n\n## Expected Final Answer\n")
		builder.WriteString(rubric.ExpectedAnswer)
	}

	if len(rubric.Steps) > 0 {
		builder.WriteString("\n\n## Marking Steps\n")
		for i, step := range rubric.Steps {
			builder.WriteString(fmt.Sprintf("%d. %s (%g marks)\n", i+1, step.Description, step.Marks))
		}
	}

	if len(rubric.Keywords) > 0 {
		builder.WriteString("\n\n## Keywords\n")
		for _, keyword := range rubric.Keywords {
			builder.WriteString(fmt.Sprintf("- %s (%g marks)\n", keyword.Keyword, keyword.Marks))
		}
	}

	if strings.TrimSpace(req.Instructions) != "" {
		builder.WriteString("\n\n## Teacher Instructions\n")
		builder.WriteString(req.Instructions)
	}

	builder.WriteString("\n\nReturn JSON.")
	return builder.String()
}
