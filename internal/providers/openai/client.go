package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/biodoia/roundtable/internal/providers"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrModelNotFound      = errors.New("model not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrEmptyResponse      = errors.New("empty response")
)

// Client implementa un client OpenAI-compatible (vLLM, llama.cpp, OpenAI)
type Client struct {
	*providers.BaseProvider
	httpClient *resty.Client
	apiPrefix  string
}

// NewClient crea un nuovo client OpenAI
func NewClient(name, baseURL, apiKey string) *Client {
	base := strings.TrimRight(baseURL, "/")

	client := &Client{
		BaseProvider: providers.NewBaseProvider(name, base, apiKey),
		httpClient:   resty.New(),
		apiPrefix:    "/v1",
	}
	// base URL già comprensiva di /v1 (es. http://host:8000/v1)
	if strings.HasSuffix(base, "/v1") {
		client.apiPrefix = ""
	}

	client.configureHTTPClient()
	return client
}

// NewFromConfig crea un client a partire da un preset di configurazione
func NewFromConfig(name string, cfg config.ModelConfig) *Client {
	c := NewClient(name, cfg.BaseURL, cfg.APIKey)
	c.SetTimeout(cfg.Timeout)
	c.SetMaxRetries(cfg.MaxRetries)
	c.configureHTTPClient()
	return c
}

// NewEndpoint crea l'endpoint registrabile per un preset
func NewEndpoint(name string, cfg config.ModelConfig) providers.Endpoint {
	return providers.Endpoint{
		Name:        name,
		Provider:    NewFromConfig(name, cfg),
		Model:       cfg.ID,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

// configureHTTPClient configura il client HTTP con retry e timeout
func (c *Client) configureHTTPClient() {
	c.httpClient = resty.New()
	c.httpClient.
		SetBaseURL(c.GetBaseURL()).
		SetTimeout(c.GetTimeout()).
		SetRetryCount(c.GetMaxRetries()).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on 5xx errors and specific 4xx errors
			if r == nil {
				return err != nil && !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() >= 500 ||
				r.StatusCode() == 429 || // Rate limit
				r.StatusCode() == 408 // Request timeout
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	// Set API key if present
	if c.GetAPIKey() != "" {
		c.httpClient.SetHeader("Authorization", "Bearer "+c.GetAPIKey())
	}

	c.httpClient.OnBeforeRequest(func(client *resty.Client, req *resty.Request) error {
		log.Debug().
			Str("provider", c.Name()).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("Model API request")
		return nil
	})

	c.httpClient.OnAfterResponse(func(client *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("provider", c.Name()).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("Model API response")
		return nil
	})
}

func (c *Client) path(p string) string {
	return c.apiPrefix + p
}

// ChatCompletion esegue una richiesta di chat completion
func (c *Client) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	openaiReq := c.convertToOpenAIRequest(req)
	openaiReq.Stream = false

	var openaiResp ChatCompletionResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(openaiReq).
		SetResult(&openaiResp).
		SetError(&errResp).
		Post(c.path("/chat/completions"))

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		return nil, c.handleErrorResponse(resp.StatusCode(), &errResp)
	}

	if len(openaiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned by %s", ErrEmptyResponse, c.Name())
	}

	return c.convertFromOpenAIResponse(&openaiResp), nil
}

// Stream esegue una richiesta di chat completion con streaming
func (c *Client) Stream(ctx context.Context, req *providers.ChatRequest, handler providers.StreamHandler) error {
	openaiReq := c.convertToOpenAIRequest(req)
	openaiReq.Stream = true
	openaiReq.StreamOpts = &StreamOptions{IncludeUsage: true}

	httpReq, err := c.createStreamRequest(ctx, openaiReq)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Il client resty ha un timeout sull'intera risposta: per lo stream si usa
	// lo stesso transport ma si lascia la durata al context del chiamante.
	httpClient := &http.Client{Transport: c.httpClient.GetClient().Transport}
	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return c.handleStreamError(httpResp)
	}

	return c.processStream(httpResp.Body, handler)
}

// createStreamRequest crea una richiesta HTTP per lo streaming
func (c *Client) createStreamRequest(ctx context.Context, req *ChatCompletionRequest) (*http.Request, error) {
	url := c.GetBaseURL() + c.path("/chat/completions")

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Connection", "keep-alive")

	if c.GetAPIKey() != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.GetAPIKey())
	}

	return httpReq, nil
}

// processStream processa lo stream SSE
func (c *Client) processStream(body io.Reader, handler providers.StreamHandler) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var usage *providers.Usage

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			continue
		}

		// Parse SSE format: "data: {...}" (alcuni server omettono lo spazio)
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if data == "[DONE]" {
			return handler(&providers.StreamChunk{
				Done:  true,
				Usage: usage,
			})
		}

		var streamResp ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
			log.Warn().Err(err).Str("data", data).Msg("Failed to parse stream chunk")
			continue
		}

		chunk := c.convertStreamChunk(&streamResp)
		if chunk.Usage != nil {
			usage = chunk.Usage
		}

		// Il chunk finale con sola usage non porta testo
		if chunk.Delta == "" && chunk.FinishReason == "" {
			continue
		}

		if err := handler(chunk); err != nil {
			return fmt.Errorf("handler error: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read error: %w", err)
	}

	// Stream chiuso senza [DONE]
	return handler(&providers.StreamChunk{Done: true, Usage: usage})
}

// convertStreamChunk converte un chunk OpenAI in formato generico
func (c *Client) convertStreamChunk(resp *ChatCompletionStreamResponse) *providers.StreamChunk {
	chunk := &providers.StreamChunk{}

	if resp.Usage != nil {
		chunk.Usage = &providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 {
		return chunk
	}

	choice := resp.Choices[0]
	chunk.Delta = str(choice.Delta.Content)
	chunk.FinishReason = choice.FinishReason

	return chunk
}

// HealthCheck verifica lo stato del provider
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.listModels(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// GetModels restituisce la lista dei modelli disponibili
func (c *Client) GetModels(ctx context.Context) ([]providers.ModelInfo, error) {
	result, err := c.listModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get models: %w", err)
	}

	models := make([]providers.ModelInfo, len(result.Data))
	for i, model := range result.Data {
		models[i] = providers.ModelInfo{
			ID:       model.ID,
			Name:     model.ID,
			Provider: c.Name(),
			OwnedBy:  model.OwnedBy,
		}
	}

	return models, nil
}

func (c *Client) listModels(ctx context.Context) (*ModelsResponse, error) {
	var result ModelsResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&errResp).
		Get(c.path("/models"))

	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		return nil, c.handleErrorResponse(resp.StatusCode(), &errResp)
	}

	return &result, nil
}

// convertToOpenAIRequest converte una richiesta generica in formato OpenAI
func (c *Client) convertToOpenAIRequest(req *providers.ChatRequest) *ChatCompletionRequest {
	openaiReq := &ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		Stop:        req.Stop,
		User:        req.User,
	}

	openaiReq.Messages = make([]ChatMessage, len(req.Messages))
	for i, msg := range req.Messages {
		openaiReq.Messages[i] = ChatMessage{
			Role:    msg.Role,
			Content: ptr(msg.Content),
			Name:    msg.Name,
		}
	}

	return openaiReq
}

// convertFromOpenAIResponse converte una risposta OpenAI in formato generico
func (c *Client) convertFromOpenAIResponse(resp *ChatCompletionResponse) *providers.ChatResponse {
	choices := make([]providers.Choice, len(resp.Choices))
	for i, choice := range resp.Choices {
		choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: str(choice.Message.Content),
				Name:    choice.Message.Name,
			},
			FinishReason: choice.FinishReason,
		}
	}

	return &providers.ChatResponse{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
		Choices: choices,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}

// handleErrorResponse gestisce gli errori dalla risposta API
func (c *Client) handleErrorResponse(statusCode int, errResp *ErrorResponse) error {
	msg := errResp.message()
	if msg == "" {
		msg = fmt.Sprintf("API error: status %d", statusCode)
	}

	baseErr := fmt.Errorf("%s (provider: %s)", msg, c.Name())

	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, baseErr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimitExceeded, baseErr)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrModelNotFound, baseErr)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", ErrInvalidRequest, baseErr)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, baseErr)
	default:
		return baseErr
	}
}

// handleStreamError gestisce gli errori nello streaming
func (c *Client) handleStreamError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("stream error: status %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return c.handleErrorResponse(resp.StatusCode, &ErrorResponse{Detail: strings.TrimSpace(string(body))})
	}

	return c.handleErrorResponse(resp.StatusCode, &errResp)
}
