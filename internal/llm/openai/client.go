package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoice-backend/internal/llm"
	"invoice-backend/internal/shared/apperr"
	"invoice-backend/internal/shared/telemetry"
)

const (
	defaultBaseURL   = "https://api.venice.ai/api/v1"
	defaultMaxTokens = 2000
	maxErrorBody     = 512
)

// Options configures an OpenAI-compatible chat completions client.
type Options struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	MaxTokens int
	// JSONMode sends response_format=json_object. Some vision models reject it.
	JSONMode bool
}

// Client implements llm.Extractor using an OpenAI-compatible Chat Completions API.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	maxTokens  int
	jsonMode   bool
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		endpoint:   baseURL + "/chat/completions",
		apiKey:     opts.APIKey,
		model:      strings.TrimSpace(opts.Model),
		maxTokens:  maxTokens,
		jsonMode:   opts.JSONMode,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Extract sends one completion request and returns the raw content.
// Every failure is reported as ExtractionUnavailable.
func (c *Client) Extract(ctx context.Context, input llm.Input) (string, error) {
	content, err := c.complete(ctx, input)
	if err != nil {
		return "", apperr.WrapError(apperr.ErrExtractionUnavailable, "llm.openai", err)
	}
	return content, nil
}

func (c *Client) complete(ctx context.Context, input llm.Input) (string, error) {
	payload, err := json.Marshal(c.buildRequest(input))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("openai request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("openai http status %d: %s", resp.StatusCode, truncate(body))
		}
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("openai http status %d: %s", resp.StatusCode, truncate(body))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}

	c.logUsage(parsed, input, time.Since(start))

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response empty content")
	}
	return content, nil
}

func (c *Client) buildRequest(input llm.Input) chatRequest {
	parts := []contentPart{{Type: "text", Text: llm.UserText(input)}}
	if input.IsImage() {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: input.ImageDataURL}})
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: parts},
		},
		MaxTokens: c.maxTokens,
	}
	if !isGPT5(c.model) {
		temp := float32(0)
		req.Temperature = &temp
	}
	if c.jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req
}

func (c *Client) logUsage(parsed chatResponse, input llm.Input, elapsed time.Duration) {
	fields := map[string]any{
		"model":         c.model,
		"input":         inputKind(input),
		"finish_reason": parsed.Choices[0].FinishReason,
		"duration_ms":   float64(elapsed.Microseconds()) / 1000.0,
	}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
		fields["total_tokens"] = parsed.Usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

func inputKind(input llm.Input) string {
	if input.IsImage() {
		return "image"
	}
	return "text"
}

// isGPT5 reports models that only accept the default temperature.
func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

var _ llm.Extractor = (*Client)(nil)
