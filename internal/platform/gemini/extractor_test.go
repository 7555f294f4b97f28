package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/scry-import/internal/config"
	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeModels is a function-field mock of the genai Models service.
type fakeModels struct {
	GenerateContentFn func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	return f.GenerateContentFn(ctx, model, contents, cfg)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{GeminiAPIKey: "test-key", ModelName: "gemini-test", Temperature: 0.2}
}

func newTestExtractor(t *testing.T, fn func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)) *Extractor {
	t.Helper()
	e, err := newExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)), testLLMConfig(), &fakeModels{GenerateContentFn: fn})
	require.NoError(t, err)
	return e
}

var testImage = generation.Image{Filename: "worksheet.png", Data: []byte("\x89PNG\r\n\x1a\nfake"), MIMEType: "image/png"}

const validJSON = `{
  "title": "Irregular verbs",
  "instructions": " Fill in the past tense. ",
  "kind": "Fill_Blank",
  "questions": [{"prompt": "I ___ (go) home.", "answer": "went"}],
  "tags": ["english"],
  "box_2d": [120, 40, 560, 960]
}`

func TestExtract_Success(t *testing.T) {
	t.Parallel()

	var gotModel string
	var gotContents []*genai.Content
	var gotConfig *genai.GenerateContentConfig
	e := newTestExtractor(t, func(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotModel, gotContents, gotConfig = model, contents, cfg
		return textResponse(validJSON), nil
	})

	ex, err := e.Extract(context.Background(), testImage)
	require.NoError(t, err)

	assert.Equal(t, "Irregular verbs", ex.Title)
	assert.Equal(t, "Fill in the past tense.", ex.Instructions)
	assert.Equal(t, domain.KindFillBlank, ex.Kind)
	require.Len(t, ex.Questions, 1)
	assert.Equal(t, "went", ex.Questions[0].Answer)
	require.NotNil(t, ex.Region)
	assert.Equal(t, domain.Region{YMin: 120, XMin: 40, YMax: 560, XMax: 960}, *ex.Region)
	assert.NoError(t, ex.Validate())

	assert.Equal(t, "gemini-test", gotModel)
	require.Len(t, gotContents, 1)
	parts := gotContents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Contains(t, parts[1].Text, "worksheet.png")
	assert.Contains(t, parts[1].Text, `"multiple_choice"`)
	assert.Equal(t, "application/json", gotConfig.ResponseMIMEType)
	require.NotNil(t, gotConfig.ResponseSchema)
	assert.Contains(t, gotConfig.ResponseSchema.Required, "questions")
}

func TestExtract_Failures(t *testing.T) {
	t.Parallel()

	blocked := textResponse(validJSON)
	blocked.Candidates[0].FinishReason = genai.FinishReasonSafety

	promptBlocked := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	}

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		err     error
		wantErr error
	}{
		{"rate limited", nil, genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}, generation.ErrRateLimited},
		{"overloaded", nil, genai.APIError{Code: 503, Status: "UNAVAILABLE", Message: "overloaded"}, generation.ErrServiceOverloaded},
		{"bad request", nil, genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, generation.ErrGenerationFailed},
		{"transport", nil, errors.New("connection reset"), generation.ErrGenerationFailed},
		{"nil response", nil, nil, generation.ErrInvalidResponse},
		{"no candidates", &genai.GenerateContentResponse{}, nil, generation.ErrInvalidResponse},
		{"safety", blocked, nil, generation.ErrContentBlocked},
		{"prompt blocked", promptBlocked, nil, generation.ErrContentBlocked},
		{"not json", textResponse("Sorry, I cannot read this."), nil, generation.ErrInvalidResponse},
		{"empty text", textResponse("   "), nil, generation.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestExtractor(t, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return tt.resp, tt.err
			})
			_, err := e.Extract(context.Background(), testImage)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExtract_EmptyPayload(t *testing.T) {
	t.Parallel()

	e := newTestExtractor(t, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	_, err := e.Extract(context.Background(), generation.Image{Filename: "x.png"})
	assert.ErrorIs(t, err, generation.ErrEmptyPayload)
}

func TestExtract_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	e := newTestExtractor(t, func(ctx context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		cancel()
		return nil, fmt.Errorf("doing request: %w", ctx.Err())
	})
	_, err := e.Extract(ctx, testImage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_CodeFencedJSON(t *testing.T) {
	t.Parallel()

	e := newTestExtractor(t, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return textResponse("```json\n" + validJSON + "\n```"), nil
	})
	ex, err := e.Extract(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, "Irregular verbs", ex.Title)
}

func TestResponseSchema_IgnoresMalformedBox(t *testing.T) {
	t.Parallel()

	r := ResponseSchema{Title: "t", Kind: "open", Questions: []QuestionSchema{{Prompt: "p"}}, Box: []int{1, 2, 3}}
	assert.Nil(t, r.toExercise().Region)
}

func TestNewExtractor_Validation(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewExtractor(context.Background(), logger, config.LLMConfig{ModelName: "m"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = newExtractor(nil, testLLMConfig(), &fakeModels{})
	assert.Error(t, err)

	cfg := testLLMConfig()
	cfg.ModelName = ""
	_, err = newExtractor(logger, cfg, &fakeModels{})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	cfg = testLLMConfig()
	cfg.PromptTemplatePath = filepath.Join(t.TempDir(), "missing.tmpl")
	_, err = newExtractor(logger, cfg, &fakeModels{})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	bad := filepath.Join(t.TempDir(), "bad.tmpl")
	require.NoError(t, os.WriteFile(bad, []byte("{{.Filename"), 0o600))
	cfg.PromptTemplatePath = bad
	_, err = newExtractor(logger, cfg, &fakeModels{})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestCustomPromptTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Describe {{.Filename}} on a 0-{{.Scale}} grid."), 0o600))

	cfg := testLLMConfig()
	cfg.PromptTemplatePath = path
	e, err := newExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, &fakeModels{})
	require.NoError(t, err)

	prompt, err := e.createPrompt(testImage)
	require.NoError(t, err)
	assert.Equal(t, "Describe worksheet.png on a 0-1000 grid.", prompt)
}

func TestMapAPIError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapAPIError(nil))

	ptrErr := &genai.APIError{Code: 429, Message: "slow down"}
	assert.ErrorIs(t, mapAPIError(fmt.Errorf("wrapped: %w", ptrErr)), generation.ErrRateLimited)
	assert.ErrorIs(t, mapAPIError(genai.APIError{Code: 504}), generation.ErrServiceOverloaded)
}
