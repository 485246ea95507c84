package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/biodoia/roundtable/internal/providers"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_APIPrefix(t *testing.T) {
	assert.Equal(t, "/v1/chat/completions", NewClient("a", "http://localhost:8000", "").path("/chat/completions"))
	assert.Equal(t, "/chat/completions", NewClient("b", "http://localhost:8000/v1/", "").path("/chat/completions"))
}

func TestClient_ChatCompletion(t *testing.T) {
	var received ChatCompletionRequest

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer EMPTY", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","model":"qwen","choices":[{"index":0,"message":{"role":"assistant","content":"  你好  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	})

	client := NewClient("vllm", srv.URL, "EMPTY")
	endpoint := providers.Endpoint{Provider: client, Model: "qwen", MaxTokens: 256, Temperature: 0.5}

	resp, err := client.ChatCompletion(context.Background(), endpoint.Request([]providers.Message{
		{Role: "system", Content: "你是Alice"},
		{Role: "user", Content: "讨论主题"},
	}, false))
	require.NoError(t, err)

	assert.Equal(t, "  你好  ", resp.GetContent())
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "qwen", received.Model)
	require.NotNil(t, received.MaxTokens)
	assert.Equal(t, 256, *received.MaxTokens)
	require.NotNil(t, received.Temperature)
	assert.InDelta(t, 0.5, *received.Temperature, 1e-9)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.False(t, received.Stream)
}

func TestClient_ChatCompletion_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"auth"}}`, ErrInvalidAPIKey},
		{"model not found", http.StatusNotFound, `{"error":{"message":"no such model"}}`, ErrModelNotFound},
		{"bad request detail", http.StatusBadRequest, `{"detail":"max_tokens too large"}`, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			client := NewFromConfig("vllm", config.ModelConfig{BaseURL: srv.URL + "/v1", MaxRetries: 0})
			_, err := client.ChatCompletion(context.Background(), &providers.ChatRequest{Model: "x"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_ChatCompletion_NoChoices(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","choices":[]}`)
	})

	_, err := NewClient("vllm", srv.URL, "").ChatCompletion(context.Background(), &providers.ChatRequest{Model: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClient_Stream(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.NotNil(t, req.StreamOpts)
		assert.True(t, req.StreamOpts.IncludeUsage)

		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`data: {"choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
			`data: {"choices":[{"index":0,"delta":{"content":"每个"}}]}`,
			`: keep-alive`,
			`data: not-json`,
			`data:{"choices":[{"index":0,"delta":{"content":"挑战"}}]}`,
			`data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`data: {"choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
			`data: [DONE]`,
		}
		fmt.Fprint(w, strings.Join(lines, "\n\n")+"\n\n")
	})

	client := NewClient("vllm", srv.URL+"/v1", "")

	var deltas []string
	var final *providers.StreamChunk
	err := client.Stream(context.Background(), &providers.ChatRequest{Model: "x"}, func(chunk *providers.StreamChunk) error {
		if chunk.Done {
			final = chunk
			return nil
		}
		if chunk.Delta != "" {
			deltas = append(deltas, chunk.Delta)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"每个", "挑战"}, deltas)
	require.NotNil(t, final)
	require.NotNil(t, final.Usage)
	assert.Equal(t, 7, final.Usage.TotalTokens)
}

func TestClient_Stream_HTTPError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "overloaded")
	})

	err := NewClient("vllm", srv.URL, "").Stream(context.Background(), &providers.ChatRequest{Model: "x"}, func(*providers.StreamChunk) error {
		t.Fatal("handler must not be called")
		return nil
	})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestClient_GetModels(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"Qwen3-32B","owned_by":"vllm"}]}`)
	})

	client := NewClient("vllm", srv.URL, "")
	models, err := client.GetModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "Qwen3-32B", models[0].ID)
	assert.Equal(t, "vllm", models[0].Provider)

	assert.NoError(t, client.HealthCheck(context.Background()))
}
