package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/robalyx/guardian/internal/ai/client"
	"github.com/robalyx/guardian/internal/moderation"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/robalyx/guardian/pkg/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// TextGenerator sends a prompt to a language model and returns its raw text output.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenAIClient creates a Gemini API client.
func NewGenAIClient(ctx context.Context, cfg *config.TextBackend) (*genai.Client, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return c, nil
}

// GeminiGenerator generates text with a Gemini model.
type GeminiGenerator struct {
	model *genai.GenerativeModel
}

// NewGeminiGenerator configures a Gemini model for JSON moderation output.
func NewGeminiGenerator(c *genai.Client, cfg *config.TextBackend) *GeminiGenerator {
	// Create a new Gemini model
	model := c.GenerativeModel(cfg.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(TextSystemPrompt))

	// Configure model to return JSON verdicts
	model.GenerationConfig.ResponseMIMEType = ApplicationJSON
	model.GenerationConfig.Temperature = utils.Ptr(cfg.Temperature)
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"flagged": {
				Type:        genai.TypeBoolean,
				Description: "Whether the text is inappropriate",
			},
			"reason": {
				Type:        genai.TypeString,
				Description: "Short explanation of the violation, or None",
			},
		},
		Required: []string{"flagged", "reason"},
	}

	// Let the prompt decide instead of the built-in filters
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}

	return &GeminiGenerator{model: model}
}

// Generate implements TextGenerator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", fmt.Errorf("%w: %w", ErrContentBlocked, err)
		}
		return "", fmt.Errorf("%w: gemini API error: %w", moderation.ErrBackendUnavailable, err)
	}

	// Check for empty response
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: %w: no response from model", moderation.ErrBackendFormat, ErrModelResponse)
	}

	// Extract response text
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	return b.String(), nil
}

// TextAnalyzer classifies text with a language model.
type TextAnalyzer struct {
	generator TextGenerator
	guard     *client.Guard
	timeout   time.Duration
	logger    *zap.Logger
}

// NewTextAnalyzer creates a TextAnalyzer. A positive timeout bounds each call.
func NewTextAnalyzer(generator TextGenerator, guard *client.Guard, timeout time.Duration, logger *zap.Logger) *TextAnalyzer {
	return &TextAnalyzer{
		generator: generator,
		guard:     guard,
		timeout:   timeout,
		logger:    logger.Named("text_analyzer"),
	}
}

// Analyze implements moderation.Analyzer.
func (a *TextAnalyzer) Analyze(ctx context.Context, unit *moderation.ContentUnit) (*moderation.Verdict, error) {
	prompt := fmt.Sprintf(TextAnalysisPrompt, string(unit.Payload))

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := client.Call(callCtx, a.guard, func(ctx context.Context) (string, error) {
		return a.generator.Generate(ctx, prompt)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrContentBlocked):
			// The model refusing the text is itself a strong signal
			a.logger.Debug("Text blocked by model", zap.Error(err))
			return &moderation.Verdict{Flagged: true, Reason: ReasonBlocked, UnitRef: unit.SourceRef}, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: request timed out: %w", moderation.ErrBackendUnavailable, err)
		default:
			return nil, err
		}
	}

	verdict, err := decodeVerdict(raw)
	if err != nil {
		a.logger.Warn("Failed to decode text verdict",
			zap.Error(err),
			zap.String("response", raw))
		return nil, err
	}
	verdict.UnitRef = unit.SourceRef

	return verdict, nil
}
