package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statuses(outcomes []Outcome) []Status {
	out := make([]Status, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Status
	}
	return out
}

func TestWrite_CreatesFiles(t *testing.T) {
	dir := t.TempDir()

	outcomes, err := Write(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusCreated, StatusCreated, StatusCreated}, statuses(outcomes))

	env, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "LANGFUSE_PUBLIC_KEY=")
	assert.Contains(t, string(env), "OPENAI_BASE_URL=")

	result := persona.Load(filepath.Join(dir, "characters_config.json"))
	assert.Equal(t, persona.SourceFile, result.Source)
	assert.NoError(t, result.FallbackReason)
	require.Len(t, result.Personas, 4)
	assert.Equal(t, "Alice", result.Personas[0].Name)
	assert.Equal(t, persona.Defaults()[3].Catchphrase, result.Personas[3].Catchphrase)

	cfg, err := config.Load(filepath.Join(dir, "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults().Model.Timeout, cfg.Model.Timeout)
	assert.Equal(t, config.Defaults().Chat.CharactersFile, cfg.Chat.CharactersFile)
}

func TestWrite_SkipsExistingUnlessForced(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CUSTOM=1\n"), 0o600))

	outcomes, err := Write(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusSkipped, StatusCreated, StatusCreated}, statuses(outcomes))

	data, err := os.ReadFile(envPath)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM=1\n", string(data))

	outcomes, err = Write(dir, true)
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusOverwritten, StatusOverwritten, StatusOverwritten}, statuses(outcomes))

	data, err = os.ReadFile(envPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "CUSTOM")
}
