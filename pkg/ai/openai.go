package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const providerOpenAI = "openai"

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGrader implements Grader against the OpenAI chat completion API with
// image inputs.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a new grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIGrader{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/akashmaurya09/intelligrade/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_grader").Logger(),
	}, nil
}

// Name identifies the provider.
func (g *OpenAIGrader) Name() string {
	return providerOpenAI
}

// GradeAnswerSheet sends one rubric question and the answer sheet to the model.
func (g *OpenAIGrader) GradeAnswerSheet(parent context.Context, req GradeRequest) (GradeResult, error) {
	ctx, span := g.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("question_id", req.Rubric.QuestionID),
	))
	defer span.End()

	content, err := g.complete(ctx, "grade", graderSystemPrompt(), buildGradingPrompt(req), req.Image)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradeResult{}, err
	}

	result, err := ParseGradeResponse(content, req.Rubric)
	if err != nil {
		aiFailures.WithLabelValues(providerOpenAI, "grade").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradeResult{}, err
	}

	return result, nil
}

// ExtractQuestions reads the questions printed on a paper image.
func (g *OpenAIGrader) ExtractQuestions(parent context.Context, image Image) ([]ExtractedQuestion, error) {
	ctx, span := g.tracer.Start(parent, "openai.extract", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	// JSON object mode cannot return a bare array, so the list is wrapped.
	content, err := g.complete(ctx, "extract", extractionSystemPrompt()+" Wrap the array as {\"questions\": [...]}.", "Extract the questions.", image)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	questions, err := ParseExtractionResponse(unwrapQuestions(content))
	if err != nil {
		aiFailures.WithLabelValues(providerOpenAI, "extract").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return questions, nil
}

func (g *OpenAIGrader) complete(ctx context.Context, operation, system, prompt string, image Image) (string, error) {
	imageURL, err := imageReference(image)
	if err != nil {
		return "", err
	}

	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL, Detail: openai.ImageURLDetailHigh}},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(providerOpenAI, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(providerOpenAI, operation).Inc()
		return "", fmt.Errorf("openai %s: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues(providerOpenAI, operation).Inc()
		return "", fmt.Errorf("%w: no choices returned from openai", ErrMalformedResponse)
	}

	g.logger.Debug().
		Str("operation", operation).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("openai completion received")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func imageReference(image Image) (string, error) {
	if len(image.Data) > 0 {
		mediaType := image.MediaType
		if mediaType == "" {
			mediaType = mimetype.Detect(image.Data).String()
		}
		return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(image.Data), nil
	}
	if image.URL != "" {
		return image.URL, nil
	}
	return "", ErrNoImage
}

func unwrapQuestions(content string) string {
	trimmed := stripCodeFence(content)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var wrapper struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil || len(wrapper.Questions) == 0 {
		return trimmed
	}
	return string(wrapper.Questions)
}
