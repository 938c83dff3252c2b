package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed marks a failed AI text generation attempt.
var ErrAIGenerationFailed = errors.New("AI text generation failed")

// UsageInfo carries the token accounting of one AI call.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIClient abstracts the AI chat backend.
type AIClient interface {
	// GenerateText sends a system prompt plus user input and returns the
	// generated text with usage information.
	GenerateText(ctx context.Context, systemPrompt, userInput string) (string, UsageInfo, error)
}

// AIConfig holds the backend selection and connection settings.
type AIConfig struct {
	ClientType string // openai | ollama
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
}

// --- OpenAI-compatible implementation ---

type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, UsageInfo, error) {
	usage := UsageInfo{}

	if strings.TrimSpace(systemPrompt) == "" {
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role: openaigo.ChatMessageRoleUser, Content: userInput,
		})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("AI API call failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn("AI API returned an empty response", zap.Duration("duration", duration))
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	usage.PromptTokens = resp.Usage.PromptTokens
	usage.CompletionTokens = resp.Usage.CompletionTokens
	usage.TotalTokens = resp.Usage.TotalTokens

	c.logger.Debug("AI API call succeeded",
		zap.Duration("duration", duration),
		zap.Int("totalTokens", usage.TotalTokens),
	)
	return resp.Choices[0].Message.Content, usage, nil
}

// --- Ollama implementation ---

type ollamaClient struct {
	client  *ollamaapi.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, UsageInfo, error) {
	usage := UsageInfo{}

	if strings.TrimSpace(systemPrompt) == "" {
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrAIGenerationFailed)
	}

	messages := []ollamaapi.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, ollamaapi.Message{Role: "user", Content: userInput})
	}

	stream := false
	req := &ollamaapi.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var resp ollamaapi.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r ollamaapi.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("Ollama API call failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		c.logger.Warn("Ollama API returned an empty response", zap.Duration("duration", duration))
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	return resp.Message.Content, usage, nil
}

// NewAIClient builds the configured AI backend client.
func NewAIClient(cfg AIConfig, logger *zap.Logger) (AIClient, error) {
	switch strings.ToLower(cfg.ClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
		openaiConfig.BaseURL = cfg.BaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		client := openaigo.NewClientWithConfig(openaiConfig)
		logger.Info("OpenAI client created",
			zap.String("baseURL", cfg.BaseURL),
			zap.String("model", cfg.Model),
			zap.Duration("timeout", cfg.Timeout),
		)
		return &openAIClient{client: client, model: cfg.Model, logger: logger.Named("OpenAIClient")}, nil
	case "ollama":
		// The native Ollama API wants the URL without the /v1 suffix.
		baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/v1"), "/")
		parsedURL, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Ollama base URL %q: %w", baseURL, err)
		}
		client := ollamaapi.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout})
		logger.Info("Ollama client created",
			zap.String("baseURL", baseURL),
			zap.String("model", cfg.Model),
			zap.Duration("timeout", cfg.Timeout),
		)
		return &ollamaClient{client: client, model: cfg.Model, timeout: cfg.Timeout, logger: logger.Named("OllamaClient")}, nil
	default:
		return nil, fmt.Errorf("unknown AI client type: %q", cfg.ClientType)
	}
}
