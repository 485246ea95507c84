package providers

import (
	"context"
	"time"
)

// Provider è l'interfaccia base per un endpoint chat-completions
type Provider interface {
	// ChatCompletion esegue una richiesta di chat completion
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream esegue una richiesta di chat completion con streaming
	Stream(ctx context.Context, req *ChatRequest, handler StreamHandler) error

	// Name restituisce il nome del provider
	Name() string

	// HealthCheck verifica lo stato di salute del provider
	HealthCheck(ctx context.Context) error

	// GetModels restituisce la lista dei modelli disponibili
	GetModels(ctx context.Context) ([]ModelInfo, error)
}

// StreamHandler è la callback per gestire eventi di streaming
type StreamHandler func(chunk *StreamChunk) error

// StreamChunk rappresenta un chunk di risposta streaming
type StreamChunk struct {
	Delta        string // Contenuto incrementale
	FinishReason string // Motivo di fine stream
	Done         bool   // Se true, lo stream è terminato
	Usage        *Usage // Usage finale (solo nell'ultimo chunk)
}

// GetDelta espone il testo incrementale del chunk
func (c *StreamChunk) GetDelta() string {
	return c.Delta
}

// Message rappresenta un messaggio nella conversazione
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ChatRequest rappresenta una richiesta generica di chat completion
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	Stop        []string  `json:"stop,omitempty"`

	// Metadata
	User     string                 `json:"user,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ChatResponse rappresenta una risposta generica di chat completion
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// GetContent restituisce il contenuto della prima choice
func (r *ChatResponse) GetContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice rappresenta una scelta nella risposta
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage rappresenta le statistiche di utilizzo
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add somma due usage
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// ModelInfo contiene informazioni su un modello
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	OwnedBy  string `json:"owned_by,omitempty"`
}

// BaseProvider fornisce funzionalità comuni per i provider
type BaseProvider struct {
	name       string
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries int
}

// NewBaseProvider crea un nuovo BaseProvider
func NewBaseProvider(name, baseURL, apiKey string) *BaseProvider {
	return &BaseProvider{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    120 * time.Second,
		maxRetries: 2,
	}
}

// Name restituisce il nome del provider
func (b *BaseProvider) Name() string {
	return b.name
}

// SetTimeout imposta il timeout delle richieste
func (b *BaseProvider) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		b.timeout = timeout
	}
}

// SetMaxRetries imposta il numero massimo di retry
func (b *BaseProvider) SetMaxRetries(retries int) {
	if retries >= 0 {
		b.maxRetries = retries
	}
}

// GetBaseURL restituisce la base URL
func (b *BaseProvider) GetBaseURL() string {
	return b.baseURL
}

// GetAPIKey restituisce la API key
func (b *BaseProvider) GetAPIKey() string {
	return b.apiKey
}

// GetTimeout restituisce il timeout
func (b *BaseProvider) GetTimeout() time.Duration {
	return b.timeout
}

// GetMaxRetries restituisce il numero massimo di retry
func (b *BaseProvider) GetMaxRetries() int {
	return b.maxRetries
}
