package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/internal/providers"
	"github.com/biodoia/roundtable/internal/store"
	"github.com/biodoia/roundtable/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProvider è un provider finto per i test
type MockProvider struct {
	reply   string
	deltas  []string
	err     error
	usage   providers.Usage
	lastReq *providers.ChatRequest
}

func (m *MockProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &providers.ChatResponse{
		Model: req.Model,
		Choices: []providers.Choice{
			{Message: providers.Message{Role: "assistant", Content: m.reply}},
		},
		Usage: m.usage,
	}, nil
}

func (m *MockProvider) Stream(ctx context.Context, req *providers.ChatRequest, handler providers.StreamHandler) error {
	m.lastReq = req
	for _, d := range m.deltas {
		if err := handler(&providers.StreamChunk{Delta: d}); err != nil {
			return err
		}
	}
	if m.err != nil {
		return m.err
	}
	usage := m.usage
	return handler(&providers.StreamChunk{Done: true, FinishReason: "stop", Usage: &usage})
}

func (m *MockProvider) Name() string { return "mock" }
func (m *MockProvider) HealthCheck(ctx context.Context) error { return nil }
func (m *MockProvider) GetModels(ctx context.Context) ([]providers.ModelInfo, error) {
	return nil, nil
}

func newAgent(mock *MockProvider, s store.Store) *Agent {
	endpoint := providers.Endpoint{Provider: mock, Model: "test-model", MaxTokens: 512, Temperature: 0.7}
	return New(persona.Defaults()[0], endpoint, WithStore(s))
}

func TestAgent_RunNonStreamed(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mock := &MockProvider{reply: "  你好  ", usage: providers.Usage{PromptTokens: 12, CompletionTokens: 3}}
	a := newAgent(mock, mem)

	resp, err := a.Run(ctx, "讨论主题", RunOptions{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)

	assert.False(t, stream.IsStreamed(resp))
	assert.Equal(t, "  你好  ", stream.Extract(resp))

	require.NotNil(t, mock.lastReq)
	require.Len(t, mock.lastReq.Messages, 2)
	assert.Equal(t, "system", mock.lastReq.Messages[0].Role)
	assert.Contains(t, mock.lastReq.Messages[0].Content, "你是Alice")
	assert.Equal(t, "讨论主题", mock.lastReq.Messages[1].Content)
	assert.Equal(t, "u1", mock.lastReq.User)
	assert.Equal(t, "test-model", mock.lastReq.Model)

	runs, err := mem.Runs(ctx, "s1", "Alice")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 12, runs[0].PromptTokens)
	assert.False(t, runs[0].Streamed)
}

func TestAgent_RunStreamed(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mock := &MockProvider{deltas: []string{"你", "", "好"}, usage: providers.Usage{CompletionTokens: 2}}
	a := newAgent(mock, mem)

	resp, err := a.Run(ctx, "p", RunOptions{SessionID: "s1", Stream: true})
	require.NoError(t, err)
	require.True(t, stream.IsStreamed(resp))

	var fragments []string
	result, err := stream.Collect(ctx, resp, func(s string) error {
		fragments = append(fragments, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "你好", result.Text)
	assert.Equal(t, []string{"你", "好"}, fragments)

	streaming, ok := resp.(*Streaming)
	require.True(t, ok)
	assert.Equal(t, 2, streaming.Usage().CompletionTokens)

	runs, err := mem.Runs(ctx, "s1", "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "你好", runs[0].Response)
	assert.True(t, runs[0].Streamed)
}

func TestAgent_RunErrorIsRecorded(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	boom := errors.New("endpoint down")
	a := newAgent(&MockProvider{err: boom}, mem)

	_, err := a.Run(ctx, "p", RunOptions{SessionID: "s1"})
	assert.ErrorIs(t, err, boom)

	resp, err := a.Run(ctx, "p", RunOptions{SessionID: "s1", Stream: true})
	require.NoError(t, err)
	_, err = stream.Collect(ctx, resp, nil)
	assert.ErrorIs(t, err, boom)

	runs, err := mem.Runs(ctx, "s1", "")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.True(t, r.Failed())
	}
}

func TestAgent_WithSystemPrompt(t *testing.T) {
	mock := &MockProvider{reply: "ok"}
	endpoint := providers.Endpoint{Provider: mock, Model: "m"}

	a := New(persona.Defaults()[1], endpoint, WithSystemPrompt("你是一个助手"))
	assert.Equal(t, "你是一个助手", a.SystemPrompt())

	unchanged := New(persona.Defaults()[1], endpoint, WithSystemPrompt("   "))
	assert.Contains(t, unchanged.SystemPrompt(), "你是Bob")
}

func TestAgent_RecordsCallsOnRegistry(t *testing.T) {
	ctx := context.Background()
	registry := providers.NewRegistry()
	mock := &MockProvider{reply: "ok", deltas: []string{"o", "k"}, usage: providers.Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}}
	require.NoError(t, registry.Register("main", providers.Endpoint{Provider: mock, Model: "m"}))

	endpoint, err := registry.Get("main")
	require.NoError(t, err)
	a := New(persona.Defaults()[0], endpoint, WithRecorder(registry))

	_, err = a.Run(ctx, "p", RunOptions{})
	require.NoError(t, err)

	resp, err := a.Run(ctx, "p", RunOptions{Stream: true})
	require.NoError(t, err)
	_, err = stream.Collect(ctx, resp, nil)
	require.NoError(t, err)

	meta, err := registry.GetMetadata("main")
	require.NoError(t, err)
	assert.Equal(t, 2, meta.SuccessCount)
	assert.Equal(t, 0, meta.ErrorCount)
	assert.Equal(t, providers.Usage{PromptTokens: 8, CompletionTokens: 4, TotalTokens: 12}, meta.Usage)

	mock.err = errors.New("endpoint down")
	_, err = a.Run(ctx, "p", RunOptions{})
	require.Error(t, err)

	meta, err = registry.GetMetadata("main")
	require.NoError(t, err)
	assert.Equal(t, 1, meta.ErrorCount)
	assert.Equal(t, 2, meta.SuccessCount)
}
