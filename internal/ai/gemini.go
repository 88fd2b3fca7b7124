package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

type GeminiOptions struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	HTTPClient     *http.Client
}

type geminiProvider struct {
	opts GeminiOptions
}

func NewGemini(opts GeminiOptions) Provider {
	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = defaultGeminiEmbeddingModel
	}
	return &geminiProvider{opts: opts}
}

func (p *geminiProvider) Name() string { return ProviderGemini }

func (p *geminiProvider) OwnsModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "gemini")
}

func (p *geminiProvider) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.opts.HTTPClient,
	}
	if p.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.opts.BaseURL}
	}
	return genai.NewClient(ctx, cfg)
}

var relaxedSafety = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
}

// GenerateText treats a response without text as blocked content.
func (p *geminiProvider) GenerateText(ctx context.Context, apiKey, prompt, model string) (string, error) {
	if model == "" {
		model = p.opts.Model
	}

	client, err := p.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:    genai.Ptr[float32](defaultTemperature),
		SafetySettings: relaxedSafety,
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		reason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("content blocked: no text returned (finish reason %s)", reason)
	}
	return text, nil
}

func (p *geminiProvider) Embedding(ctx context.Context, apiKey, text string) ([]float64, error) {
	client, err := p.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.EmbedContent(ctx, p.opts.EmbeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_DOCUMENT",
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("response has no embedding")
	}

	values := resp.Embeddings[0].Values
	vec := make([]float64, len(values))
	for i, v := range values {
		vec[i] = float64(v)
	}
	return vec, nil
}
