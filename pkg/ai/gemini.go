package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const providerGemini = "gemini"

// GeminiConfig defines configuration options for the Gemini grader.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// GeminiGrader implements Grader against the Gemini API using response
// schemas to constrain the model output.
type GeminiGrader struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiGrader builds a new grader using the provided configuration.
func NewGeminiGrader(ctx context.Context, cfg GeminiConfig) (*GeminiGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGrader{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/akashmaurya09/intelligrade/pkg/ai/gemini"),
		logger: logger.With().Str("component", "gemini_grader").Logger(),
	}, nil
}

// Name identifies the provider.
func (g *GeminiGrader) Name() string {
	return providerGemini
}

// GradeAnswerSheet sends one rubric question and the answer sheet to the model.
func (g *GeminiGrader) GradeAnswerSheet(parent context.Context, req GradeRequest) (GradeResult, error) {
	ctx, span := g.tracer.Start(parent, "gemini.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("question_id", req.Rubric.QuestionID),
	))
	defer span.End()

	content, err := g.generate(ctx, "grade", graderSystemPrompt(), buildGradingPrompt(req), req.Image, gradeResponseSchema())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradeResult{}, err
	}

	result, err := ParseGradeResponse(content, req.Rubric)
	if err != nil {
		aiFailures.WithLabelValues(providerGemini, "grade").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradeResult{}, err
	}
	return result, nil
}

// ExtractQuestions reads the questions printed on a paper image.
func (g *GeminiGrader) ExtractQuestions(parent context.Context, image Image) ([]ExtractedQuestion, error) {
	ctx, span := g.tracer.Start(parent, "gemini.extract", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	content, err := g.generate(ctx, "extract", extractionSystemPrompt(), "Extract the questions.", image, extractionResponseSchema())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	questions, err := ParseExtractionResponse(content)
	if err != nil {
		aiFailures.WithLabelValues(providerGemini, "extract").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return questions, nil
}

func (g *GeminiGrader) generate(ctx context.Context, operation, system, prompt string, image Image, schema *genai.Schema) (string, error) {
	if image.Empty() {
		return "", ErrNoImage
	}
	if len(image.Data) == 0 {
		fetched, err := FetchImage(ctx, g.cfg.HTTPClient, image.URL)
		if err != nil {
			return "", err
		}
		image = fetched
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image.Data, image.MediaType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
		Temperature:       genai.Ptr(g.cfg.Temperature),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
	aiDuration.WithLabelValues(providerGemini, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(providerGemini, operation).Inc()
		return "", fmt.Errorf("gemini %s: %w", operation, err)
	}

	text := resp.Text()
	if text == "" {
		aiFailures.WithLabelValues(providerGemini, operation).Inc()
		return "", fmt.Errorf("%w: empty gemini response", ErrMalformedResponse)
	}

	if resp.UsageMetadata != nil {
		g.logger.Debug().
			Str("operation", operation).
			Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount).
			Int32("candidate_tokens", resp.UsageMetadata.CandidatesTokenCount).
			Msg("gemini response received")
	}

	return text, nil
}

func gradeResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"marksAwarded": {Type: genai.TypeNumber},
			"feedback":     {Type: genai.TypeString},
			"improvementSuggestions": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"stepScores": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"description":  {Type: genai.TypeString},
						"marksAwarded": {Type: genai.TypeNumber},
						"maxMarks":     {Type: genai.TypeNumber},
					},
					Required: []string{"description", "marksAwarded"},
				},
			},
			"keywordScores": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"keyword":      {Type: genai.TypeString},
						"found":        {Type: genai.TypeBoolean},
						"marksAwarded": {Type: genai.TypeNumber},
						"maxMarks":     {Type: genai.TypeNumber},
					},
					Required: []string{"keyword", "found"},
				},
			},
		},
		Required: []string{"marksAwarded", "feedback", "improvementSuggestions"},
	}
}

func extractionResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question":   {Type: genai.TypeString},
				"totalMarks": {Type: genai.TypeNumber},
			},
			Required: []string{"question", "totalMarks"},
		},
	}
}
