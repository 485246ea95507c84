package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000/v1", cfg.Model.BaseURL)
	assert.Equal(t, 120*time.Second, cfg.Model.Timeout)
	assert.Equal(t, StoreSQL, cfg.SessionStore.Type)
	assert.Equal(t, 1, cfg.Chat.DefaultRounds)
	assert.Equal(t, 10, cfg.Chat.DefaultDurationSeconds)
	assert.Equal(t, 168*time.Hour, cfg.Redis.TTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
model:
  id: q72b
models:
  q3_32b:
    id: Qwen3-32B
    temperature: 0.3
chat:
  default_rounds: 3
`), 0o644))

	t.Setenv("ROUNDTABLE_CHAT_USER_ID", "tester")
	t.Setenv("CHAT_SERVER_HOST", "127.0.0.1")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-lf-1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "q72b", cfg.Model.ID)
	assert.Equal(t, 3, cfg.Chat.DefaultRounds)
	assert.Equal(t, "tester", cfg.Chat.UserID)
	assert.Equal(t, "pk-lf-1", cfg.Langfuse.PublicKey)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())

	preset, err := cfg.ResolveModel("q3_32b")
	require.NoError(t, err)
	assert.Equal(t, "Qwen3-32B", preset.ID)
	assert.Equal(t, 0.3, preset.Temperature)
	assert.Equal(t, cfg.Model.BaseURL, preset.BaseURL)
	assert.Equal(t, cfg.Model.MaxTokens, preset.MaxTokens)

	_, err = cfg.ResolveModel("missing")
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"OPENAI_BASE_URL=http://vllm:8000/v1\nLANGFUSE_SECRET_KEY=sk-lf-secret\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://vllm:8000/v1", cfg.Model.BaseURL)
	assert.Equal(t, "sk-lf-secret", cfg.Langfuse.SecretKey)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing base url", func(c *Config) { c.Model.BaseURL = " " }},
		{"missing model id", func(c *Config) { c.Model.ID = "" }},
		{"unknown store", func(c *Config) { c.SessionStore.Type = "mongo" }},
		{"too many rounds", func(c *Config) { c.Chat.DefaultRounds = 11 }},
		{"duration too long", func(c *Config) { c.Chat.DefaultDurationSeconds = 121 }},
		{"langfuse without keys", func(c *Config) { c.Langfuse.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Defaults()
	cfg.Model.APIKey = "sk-1234567890"
	cfg.Langfuse.SecretKey = "short"
	cfg.Database.Type = "postgres"
	cfg.Database.Connection = "host=db user=rt password=hunter2 dbname=rt"
	cfg.Models = map[string]ModelConfig{"q72b": {APIKey: "sk-abcdefghij"}}

	r := cfg.Redacted()
	assert.Equal(t, "sk-1****", r.Model.APIKey)
	assert.Equal(t, "****", r.Langfuse.SecretKey)
	assert.Equal(t, "host=db user=rt password=**** dbname=rt", r.Database.Connection)
	assert.Equal(t, "sk-a****", r.Models["q72b"].APIKey)

	assert.Equal(t, "sk-1234567890", cfg.Model.APIKey)
	assert.Equal(t, "sk-abcdefghij", cfg.Models["q72b"].APIKey)
}
