package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const (
	defaultOpenAIModel          = "gpt-3.5-turbo"
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	openAIMaxTokens             = 512
	defaultTemperature          = 0.7
)

type OpenAIOptions struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	HTTPClient     *http.Client
}

type openAIProvider struct {
	opts OpenAIOptions
}

func NewOpenAI(opts OpenAIOptions) Provider {
	if opts.Model == "" {
		opts.Model = defaultOpenAIModel
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = defaultOpenAIEmbeddingModel
	}
	return &openAIProvider{opts: opts}
}

func (p *openAIProvider) Name() string { return ProviderOpenAI }

// OwnsModel claims every model that is not Gemini's.
func (p *openAIProvider) OwnsModel(model string) bool {
	return !strings.HasPrefix(strings.ToLower(model), "gemini")
}

// client is built per call since keys belong to users, not the process.
// Retries are left to the facade.
func (p *openAIProvider) client(apiKey string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if p.opts.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.opts.BaseURL))
	}
	if p.opts.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(p.opts.HTTPClient))
	}
	return openai.NewClient(opts...)
}

func (p *openAIProvider) GenerateText(ctx context.Context, apiKey, prompt, model string) (string, error) {
	if model == "" {
		model = p.opts.Model
	}

	client := p.client(apiKey)
	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       model,
		MaxTokens:   openai.Int(openAIMaxTokens),
		Temperature: openai.Float(defaultTemperature),
	})
	if err != nil {
		return "", describeOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("response has no choices")
	}

	text := completion.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty completion (finish reason %q)", completion.Choices[0].FinishReason)
	}
	return text, nil
}

func (p *openAIProvider) Embedding(ctx context.Context, apiKey, text string) ([]float64, error) {
	client := p.client(apiKey)
	resp, err := client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(p.opts.EmbeddingModel),
	})
	if err != nil {
		return nil, describeOpenAIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("response has no embedding")
	}
	return resp.Data[0].Embedding, nil
}

func describeOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("status %d: %w", apiErr.StatusCode, err)
	}
	return err
}
