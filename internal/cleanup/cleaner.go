package cleanup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

var (
	ErrMissingCredential = errors.New("generative API key is not configured")
	ErrEmptyResponse     = errors.New("model returned no text")
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Cleaner rewrites dictated text. One call is one attempt.
type Cleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

// GeminiCleaner calls the Gemini API through the genai SDK.
type GeminiCleaner struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// GeminiOptions configures the client. BaseURL and HTTPClient are for tests
// and proxies.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewGeminiCleaner(ctx context.Context, opts GeminiOptions) (*GeminiCleaner, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	cc := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(opts.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiCleaner{client: client, model: model, config: generationConfig()}, nil
}

// generationConfig favors deterministic output and blocks medium-and-above
// harmful content.
func generationConfig() *genai.GenerateContentConfig {
	block := genai.HarmBlockThresholdBlockMediumAndAbove
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.2),
		TopK:            genai.Ptr[float32](1),
		TopP:            genai.Ptr[float32](1),
		MaxOutputTokens: 2048,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: block},
			{Category: genai.HarmCategoryHateSpeech, Threshold: block},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: block},
			{Category: genai.HarmCategoryDangerousContent, Threshold: block},
		},
	}
}

func (c *GeminiCleaner) Model() string { return c.model }

func (c *GeminiCleaner) Clean(ctx context.Context, text string) (string, error) {
	ctx, span := otel.Tracer("github.com/ent0n29/katibim/internal/cleanup").Start(ctx, "cleanup.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("gen_ai.request.model", c.model),
		attribute.Int("cleanup.input_chars", len([]rune(text))),
	)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(BuildPrompt(text)), c.config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}
	out := resp.Text()
	if strings.TrimSpace(out) == "" {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}
	return out, nil
}
