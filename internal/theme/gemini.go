package theme

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/prompts"
)

// GeminiStrategy asks Google Gemini for a theme.
type GeminiStrategy struct {
	client      *genai.Client
	name        string
	model       string
	prompt      string
	temperature float32
	maxTokens   int32
}

// NewGeminiStrategy creates a Gemini strategy. httpClient may be nil.
func NewGeminiStrategy(ctx context.Context, cfg *config.ThemeSourceConfig, httpClient *http.Client) (*GeminiStrategy, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	maxTokens := int32(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 32
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.9
	}

	return &GeminiStrategy{
		client:      client,
		name:        cfg.Name,
		model:       cfg.Model,
		prompt:      cfg.Prompt,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

func (s *GeminiStrategy) Name() string { return s.name }
func (s *GeminiStrategy) Kind() string { return config.ThemeKindGemini }

func (s *GeminiStrategy) Produce(ctx context.Context, req Request) (string, error) {
	userPrompt, err := prompts.Render(s.prompt, prompts.NewPromptData(req.Now))
	if err != nil {
		return "", err
	}

	temperature := s.temperature
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: prompts.ThemeSystemPrompt}},
		},
		Temperature:     &temperature,
		MaxOutputTokens: s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %v", domain.ErrSourceUnavailable, err)
	}
	return Normalize(resp.Text()), nil
}
