package openai

// OpenAI API Types - sottoinsieme usato da vLLM e server compatibili

// ChatCompletionRequest rappresenta una richiesta OpenAI API
type ChatCompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []ChatMessage  `json:"messages"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
	Stop        []string       `json:"stop,omitempty"`
	User        string         `json:"user,omitempty"`
	StreamOpts  *StreamOptions `json:"stream_options,omitempty"`
}

// StreamOptions richiede l'usage nell'ultimo chunk dello stream
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatCompletionResponse rappresenta una risposta OpenAI API
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// ChatCompletionStreamResponse rappresenta un chunk di streaming
type ChatCompletionStreamResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"` // Solo nell'ultimo chunk con stream_options
}

// ChatMessage rappresenta un messaggio nella conversazione
type ChatMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content,omitempty"`
	Name    string  `json:"name,omitempty"`

	// Alcuni modelli "thinking" serviti da vLLM espongono il ragionamento separato
	ReasoningContent *string `json:"reasoning_content,omitempty"`
}

// Choice rappresenta una scelta nella risposta
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", "content_filter"
}

// StreamChoice rappresenta una scelta nello streaming
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        ChatMessage `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// Usage rappresenta le statistiche di utilizzo token
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelsResponse rappresenta la risposta di /models
type ModelsResponse struct {
	Object string      `json:"object"`
	Data   []ModelData `json:"data"`
}

// ModelData rappresenta un modello
type ModelData struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ErrorResponse rappresenta un errore dell'API
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code,omitempty"`
	} `json:"error"`
	// vLLM/FastAPI a volte risponde con {"detail": "..."}
	Detail string `json:"detail,omitempty"`
}

func (e *ErrorResponse) message() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Detail
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	return &s
}
