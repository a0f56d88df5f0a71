package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const gradeResponseSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["marksAwarded", "feedback", "improvementSuggestions"],
  "properties": {
    "marksAwarded": {"type": "number"},
    "feedback": {"type": "string"},
    "improvementSuggestions": {"type": "array", "items": {"type": "string"}},
    "stepScores": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description", "marksAwarded"],
        "properties": {
          "description": {"type": "string"},
          "marksAwarded": {"type": "number"},
          "maxMarks": {"type": "number"}
        }
      }
    },
    "keywordScores": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["keyword", "found"],
        "properties": {
          "keyword": {"type": "string"},
          "found": {"type": "boolean"},
          "marksAwarded": {"type": "number"},
          "maxMarks": {"type": "number"}
        }
      }
    }
  }
}`

const extractionResponseSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["question", "totalMarks"],
    "properties": {
      "question": {"type": "string", "minLength": 1},
      "totalMarks": {"type": "number", "minimum": 0}
    }
  }
}`

var (
	schemasOnce      sync.Once
	gradeSchema      *jsonschema.Schema
	extractionSchema *jsonschema.Schema
	schemasErr       error
)

func compileSchemas() error {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("grade.json", strings.NewReader(gradeResponseSchemaJSON)); err != nil {
			schemasErr = err
			return
		}
		if err := compiler.AddResource("extraction.json", strings.NewReader(extractionResponseSchemaJSON)); err != nil {
			schemasErr = err
			return
		}
		if gradeSchema, schemasErr = compiler.Compile("grade.json"); schemasErr != nil {
			return
		}
		extractionSchema, schemasErr = compiler.Compile("extraction.json")
	})
	return schemasErr
}

func validateAgainst(schema *jsonschema.Schema, content []byte) error {
	var document interface{}
	if err := json.Unmarshal(content, &document); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
