package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default values for the OpenAI provider.
const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o"
	defaultEmbedModel = "text-embedding-3-small"
	defaultMaxTokens  = 4096
	defaultRetryDelay = 2 * time.Second
)

// chatRequest represents the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatMessage represents a single message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat specifies the output format for the API response.
type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse represents the OpenAI Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// chatChoice represents a single completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage contains token usage information.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// embeddingRequest represents the OpenAI Embeddings API request body.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse represents the OpenAI Embeddings API response body.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// apiErrorResponse represents an error response from the OpenAI API.
type apiErrorResponse struct {
	Error apiErrorDetail `json:"error"`
}

// apiErrorDetail contains error details from the OpenAI API.
type apiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// OpenAIConfig holds the parameters needed to create an OpenAI provider.
// This is defined in the llm package to avoid importing the config package.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the chat model identifier (e.g. "gpt-4o").
	Model string
	// EmbeddingModel is the embeddings model identifier.
	EmbeddingModel string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
	// Temperature is the default sampling temperature.
	Temperature float64
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int
}

// OpenAIProvider implements Service and Embedder using the OpenAI API.
type OpenAIProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	embedModel  string
	baseURL     string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// Compile-time interface checks.
var (
	_ Service  = (*OpenAIProvider)(nil)
	_ Embedder = (*OpenAIProvider)(nil)
)

// NewOpenAIProvider creates a new OpenAI provider. Transient errors (5xx and
// 429) are retried up to MaxRetries times with linear backoff.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &OpenAIProvider{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.APIKey,
		model:       model,
		embedModel:  embedModel,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxRetries:  maxRetries,
		retryDelay:  defaultRetryDelay,
	}
}

// Provider returns the name of the LLM provider.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Model returns the chat model identifier being used.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// GenerateText returns a free-form completion for the request.
func (p *OpenAIProvider) GenerateText(ctx context.Context, req Request) (string, Usage, error) {
	return p.complete(ctx, req, nil)
}

// GenerateStructured requests a JSON-object completion and unmarshals it into out.
func (p *OpenAIProvider) GenerateStructured(ctx context.Context, req Request, out interface{}) (Usage, error) {
	content, usage, err := p.complete(ctx, req, &responseFormat{Type: "json_object"})
	if err != nil {
		return usage, err
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return usage, fmt.Errorf("openai: failed to parse structured response: %w", err)
	}
	return usage, nil
}

// EmbedText embeds a single text via the Embeddings API.
func (p *OpenAIProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.embedModel, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("openai: failed to marshal embedding request: %w", err)
	}

	respBody, err := p.post(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("openai: failed to unmarshal embedding response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: empty embedding data in response")
	}

	return resp.Data[0].Embedding, nil
}

// complete performs a chat completion with retry on transient errors.
func (p *OpenAIProvider) complete(ctx context.Context, req Request, format *responseFormat) (string, Usage, error) {
	temperature := p.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	var messages []chatMessage
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	chatReq := chatRequest{
		Model:          p.model,
		Messages:       messages,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: format,
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return "", Usage{}, fmt.Errorf("openai: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		content, usage, err := p.doChat(ctx, chatReq)
		if err == nil {
			return content, usage, nil
		}

		// Only retry on transient errors (5xx, 429, network).
		if !IsTransient(err) {
			return "", Usage{}, err
		}
		lastErr = err
	}

	return "", Usage{}, fmt.Errorf("openai: exhausted %d retries: %w", p.maxRetries, lastErr)
}

// doChat performs a single API request to the Chat Completions endpoint.
func (p *OpenAIProvider) doChat(ctx context.Context, chatReq chatRequest) (string, Usage, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	respBody, err := p.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", Usage{}, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", Usage{}, fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("openai: empty choices in response")
	}

	usage := Usage{
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}
	return chatResp.Choices[0].Message.Content, usage, nil
}

// post performs a single authenticated POST against an API path and returns
// the response body, converting non-200 responses into *APIError.
func (p *OpenAIProvider) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	endpoint := p.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// No HTTP response received: report as a transient APIError.
		return nil, &APIError{Provider: "openai", StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// parseAPIError parses an OpenAI API error from the response status code and body.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp apiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}

	return apiErr
}
