package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"portfolio-radar/internal/config"
)

// Outbound request rate: 50 requests per minute with small bursts, to
// stay inside free-tier provider limits.
const (
	chatRateLimit = rate.Limit(50.0 / 60.0)
	chatRateBurst = 5
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient is the outbound model interface. Implementations perform
// exactly one call per invocation; retry policy lives in the scoring
// orchestrator, which owns the temperature escalation.
type ChatClient interface {
	// Complete sends the messages and returns the assistant's text.
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)

	// Name identifies the provider/model for logging.
	Name() string
}

// TransportError is a failed or rejected model call: the request never
// produced response text, so there is nothing to extract or repair.
// It is never retried by the scoring layer.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model call failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("model call failed: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewChatClient builds the configured provider client.
func NewChatClient(cfg *config.LLMConfig, logger *zap.Logger) (ChatClient, error) {
	switch cfg.Provider {
	case "openrouter":
		return newOpenRouterClient(cfg, logger), nil
	case "gemini":
		return newGeminiClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

// openRouterClient talks to OpenRouter's OpenAI-compatible chat API.
type openRouterClient struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

func newOpenRouterClient(cfg *config.LLMConfig, logger *zap.Logger) *openRouterClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	return &openRouterClient{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		baseURL:   baseURL,
		maxTokens: cfg.MaxTokens,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(chatRateLimit, chatRateBurst),
		logger:  logger,
	}
}

func (c *openRouterClient) Name() string {
	return "openrouter/" + c.model
}

type openRouterRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Role             string `json:"role"`
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (c *openRouterClient) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", &TransportError{Message: "OpenRouter API key not configured"}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &TransportError{Message: "rate limiter wait cancelled", Err: err}
	}

	payload := openRouterRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var apiResp openRouterResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", &TransportError{Message: "failed to decode response", Err: err}
	}
	if apiResp.Error != nil {
		return "", &TransportError{StatusCode: apiResp.Error.Code, Message: apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return "", &TransportError{Message: "no response choices returned"}
	}

	content := apiResp.Choices[0].Message.Content
	if content == "" {
		// Some reasoning models put the answer into reasoning_content.
		content = apiResp.Choices[0].Message.ReasoningContent
		if content != "" {
			c.logger.Debug("using reasoning_content as response text")
		}
	}
	if content == "" {
		return "", &TransportError{Message: "model returned empty content"}
	}

	return content, nil
}

// geminiClient talks to the Google Generative Language REST API.
type geminiClient struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

func newGeminiClient(cfg *config.LLMConfig, logger *zap.Logger) *geminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &geminiClient{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		baseURL:   baseURL,
		maxTokens: cfg.MaxTokens,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(chatRateLimit, chatRateBurst),
		logger:  logger,
	}
}

func (c *geminiClient) Name() string {
	return "gemini/" + c.model
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", &TransportError{Message: "Gemini API key not configured"}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &TransportError{Message: "rate limiter wait cancelled", Err: err}
	}

	var payload geminiRequest
	for _, m := range messages {
		if m.Role == "system" {
			payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
			continue
		}
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		payload.Contents = append(payload.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	payload.GenerationConfig.Temperature = temperature
	payload.GenerationConfig.MaxOutputTokens = c.maxTokens

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", &TransportError{Message: "failed to decode response", Err: err}
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", &TransportError{Message: "model returned no candidates"}
	}

	var text string
	for _, part := range apiResp.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", &TransportError{Message: "model returned empty content"}
	}

	return text, nil
}

var (
	_ ChatClient = (*openRouterClient)(nil)
	_ ChatClient = (*geminiClient)(nil)
)
