package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/ap-invoices/internal/config"
	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"
)

// Model is a text-in, text-out language model.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// NewModel builds the model selected by cfg.Provider.
// It returns ErrNotConfigured when the provider has no API key.
func NewModel(ctx context.Context, cfg config.AssistantConfig) (Model, error) {
	if cfg.APIKey() == "" {
		return nil, ErrNotConfigured
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIModel(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	case "gemini", "":
		return NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("assistant.NewModel: unknown provider %q", cfg.Provider)
	}
}

// GeminiModel calls Google's Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewGeminiModel(ctx context.Context, apiKey, modelName string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}
	return &GeminiModel{
		client: client,
		model:  client.GenerativeModel(modelName),
		name:   modelName,
	}, nil
}

func (g *GeminiModel) Name() string { return "gemini/" + g.name }

func (g *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no content returned from model")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func (g *GeminiModel) Close() error { return g.client.Close() }

// OpenAIModel calls an OpenAI-compatible chat completion endpoint.
type OpenAIModel struct {
	client *openai.Client
	model  string
}

// NewOpenAIModel creates the client. An empty baseURL uses the public API.
func NewOpenAIModel(apiKey, model, baseURL string) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIModel{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAIModel) Name() string { return "openai/" + o.model }

func (o *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned from model")
	}
	return resp.Choices[0].Message.Content, nil
}
