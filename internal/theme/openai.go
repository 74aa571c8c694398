package theme

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/prompts"
)

// OpenAIStrategy asks an OpenAI-compatible chat completions endpoint (OpenAI,
// Ollama, llama.cpp, LocalAI) for a theme.
type OpenAIStrategy struct {
	client      *resty.Client
	name        string
	model       string
	endpoint    string
	prompt      string
	temperature float32
	maxTokens   int
}

// NewOpenAIStrategy creates a chat completions strategy. The request timeout
// comes from the resolver's per-source context.
func NewOpenAIStrategy(cfg *config.ThemeSourceConfig) *OpenAIStrategy {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 32
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.9
	}

	return &OpenAIStrategy{
		client:      client,
		name:        cfg.Name,
		model:       cfg.Model,
		endpoint:    baseURL + "/chat/completions",
		prompt:      cfg.Prompt,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (s *OpenAIStrategy) Name() string { return s.name }
func (s *OpenAIStrategy) Kind() string { return config.ThemeKindOpenAI }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *OpenAIStrategy) Produce(ctx context.Context, req Request) (string, error) {
	userPrompt, err := prompts.Render(s.prompt, prompts.NewPromptData(req.Now))
	if err != nil {
		return "", err
	}

	body := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.ThemeSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: chat completions call failed: %v", domain.ErrSourceUnavailable, err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if resp.Error != nil {
			return "", fmt.Errorf("%w: chat completions error: %s", domain.ErrSourceUnavailable, resp.Error.Message)
		}
		return "", fmt.Errorf("%w: chat completions error: status %d", domain.ErrSourceUnavailable, httpResp.StatusCode())
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return Normalize(resp.Choices[0].Message.Content), nil
}
