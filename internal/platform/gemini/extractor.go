package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/template"

	"github.com/phrazzld/scry-import/internal/config"
	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/generation"
	"google.golang.org/genai"
)

//go:embed prompts/exercise.tmpl
var defaultPrompt string

// contentGenerator is the part of the genai client the Extractor uses.
// *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Extractor implements the generation.Extractor interface using
// Google's Gemini API.
type Extractor struct {
	// logger is used for structured logging
	logger *slog.Logger

	// models performs the GenerateContent calls
	models contentGenerator

	// model is the name of the Gemini model to use
	model string

	// promptTemplate is the parsed template for creating prompts
	promptTemplate *template.Template

	// genConfig is sent with every request
	genConfig *genai.GenerateContentConfig
}

var _ generation.Extractor = (*Extractor)(nil)

// NewExtractor creates a new instance of Extractor with the provided dependencies.
//
// Parameters:
//   - ctx: Context for the operation, which can be used for cancellation
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing API key, model name, and other settings
//
// Returns:
//   - A properly initialized Extractor or an error if initialization fails
func NewExtractor(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Extractor, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return newExtractor(logger, cfg, client.Models)
}

// newExtractor builds an Extractor around an existing content generator.
func newExtractor(logger *slog.Logger, cfg config.LLMConfig, models contentGenerator) (*Extractor, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if models == nil {
		return nil, fmt.Errorf("%w: content generator cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	tmpl, err := loadPromptTemplate(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		logger:         logger.With("component", "gemini_extractor"),
		models:         models,
		model:          cfg.ModelName,
		promptTemplate: tmpl,
		genConfig: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr(cfg.Temperature),
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema(),
			CandidateCount:   1,
		},
	}, nil
}

func loadPromptTemplate(path string) (*template.Template, error) {
	text := defaultPrompt
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				generation.ErrInvalidConfig, path, err)
		}
		text = string(content)
	}

	tmpl, err := template.New("exercise").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}
	return tmpl, nil
}

// createPrompt renders the prompt template for img.
func (e *Extractor) createPrompt(img generation.Image) (string, error) {
	data := promptData{
		Filename: img.Filename,
		Kinds:    domain.ExerciseKinds,
		Scale:    domain.RegionScale,
	}

	var buf bytes.Buffer
	if err := e.promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// Extract sends one image to the model and returns the exercise it found.
//
// Parameters:
//   - ctx: Context for the operation, which can be used for cancellation
//   - img: The image to analyze
//
// Returns:
//   - The extracted exercise
//   - An error wrapping a generation sentinel on failure
func (e *Extractor) Extract(ctx context.Context, img generation.Image) (*domain.Exercise, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", generation.ErrEmptyPayload, img.Filename)
	}

	prompt, err := e.createPrompt(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(img.Data)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	e.logger.DebugContext(ctx, "calling Gemini API",
		"model", e.model,
		"filename", img.Filename,
		"image_bytes", len(img.Data),
		"prompt_length", len(prompt))

	resp, err := e.models.GenerateContent(ctx, e.model, contents, e.genConfig)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		mapped := mapAPIError(err)
		e.logger.WarnContext(ctx, "Gemini API call failed",
			"filename", img.Filename,
			"error", mapped)
		return nil, mapped
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}

	exercise := parsed.toExercise()
	e.logger.DebugContext(ctx, "Gemini API call successful",
		"filename", img.Filename,
		"kind", exercise.Kind,
		"question_count", len(exercise.Questions))

	return exercise, nil
}

// responseText validates the response envelope and returns its text.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}
	return text, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// occasionally add despite the JSON response type.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
