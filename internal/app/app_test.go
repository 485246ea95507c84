package app

import (
	"context"
	"testing"

	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/internal/providers"
	"github.com/biodoia/roundtable/internal/store"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Model: config.ModelConfig{
			BaseURL:     "http://localhost:8000/v1",
			ID:          "Qwen3-32B",
			MaxTokens:   512,
			Temperature: 0.7,
		},
		Models: map[string]config.ModelConfig{
			"q72b": {ID: "Qwen2.5-72B-Instruct"},
		},
		SessionStore: config.SessionStoreConfig{Type: config.StoreMemory},
		Chat: config.ChatConfig{
			CharactersFile: "does-not-exist.json",
			UserID:         "tester",
		},
	}
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(testConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{providers.DefaultEndpoint, "q72b"}, registry.List())

	preset, err := registry.Get("q72b")
	require.NoError(t, err)
	assert.Equal(t, "Qwen2.5-72B-Instruct", preset.Model)
	assert.Equal(t, 512, preset.MaxTokens)
}

func TestNew_SelectsEndpoint(t *testing.T) {
	a, err := New(context.Background(), testConfig(), WithoutTracing(), WithEndpoint("q72b"))
	require.NoError(t, err)
	defer a.Close()

	endpoint, err := a.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "Qwen2.5-72B-Instruct", endpoint.Model)
	assert.IsType(t, &store.MemoryStore{}, a.Store)
}

func TestNew_UnknownEndpoint(t *testing.T) {
	_, err := New(context.Background(), testConfig(), WithoutTracing(), WithEndpoint("missing"))
	assert.ErrorIs(t, err, providers.ErrProviderNotFound)
}

func TestApp_PersonasFallBack(t *testing.T) {
	a, err := New(context.Background(), testConfig(), WithoutTracing(), WithStore(store.NewMemoryStore()))
	require.NoError(t, err)
	defer a.Close()

	result := a.Personas("")
	assert.Equal(t, persona.SourceDefaults, result.Source)
	assert.Len(t, result.Personas, 4)

	orch, err := a.Orchestrator()
	require.NoError(t, err)
	assert.NotNil(t, orch)

	ag, err := a.NewAgent(result.Personas[0])
	require.NoError(t, err)
	assert.Equal(t, "Alice", ag.Persona().Name)
}
