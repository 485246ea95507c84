// Package scaffold crea i file iniziali di un progetto roundtable:
// .env, configs/config.yaml e characters_config.json.
package scaffold

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Status è l'esito della scrittura di un file
type Status string

const (
	StatusCreated     Status = "created"
	StatusSkipped     Status = "skipped"
	StatusOverwritten Status = "overwritten"
)

// File è un file da generare
type File struct {
	Path    string
	Content []byte
	Mode    fs.FileMode
}

// Outcome riporta cosa è stato fatto per un file
type Outcome struct {
	Path   string
	Status Status
}

const envTemplate = `# Langfuse (tracing)
LANGFUSE_PUBLIC_KEY=pk-lf-your-public-key
LANGFUSE_SECRET_KEY=sk-lf-your-secret-key
LANGFUSE_HOST=http://localhost:3000

# Endpoint OpenAI-compatible (vLLM)
OPENAI_BASE_URL=http://localhost:8000/v1
OPENAI_API_KEY=EMPTY
ROUNDTABLE_MODEL_ID=Qwen3-32B

# Server HTTP
CHAT_SERVER_HOST=0.0.0.0
CHAT_SERVER_PORT=8000
`

// Files restituisce i file del progetto con i valori di default
func Files() ([]File, error) {
	cfg := config.Defaults()

	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	cfgYAML = append([]byte("# roundtable configuration\n# Ogni chiave può essere sovrascritta con ROUNDTABLE_<SEZIONE>_<CHIAVE>\n"), cfgYAML...)

	characters, err := json.MarshalIndent(map[string]any{
		"characters": persona.Defaults(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render characters: %w", err)
	}

	return []File{
		{Path: ".env", Content: []byte(envTemplate), Mode: 0o600},
		{Path: filepath.Join("configs", "config.yaml"), Content: cfgYAML, Mode: 0o644},
		{Path: cfg.Chat.CharactersFile, Content: append(characters, '\n'), Mode: 0o644},
	}, nil
}

// Write scrive i file sotto dir. I file esistenti vengono saltati
// a meno che force sia true.
func Write(dir string, force bool) ([]Outcome, error) {
	files, err := Files()
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.Path)

		status := StatusCreated
		if _, err := os.Stat(path); err == nil {
			if !force {
				outcomes = append(outcomes, Outcome{Path: path, Status: StatusSkipped})
				continue
			}
			status = StatusOverwritten
		} else if !errors.Is(err, fs.ErrNotExist) {
			return outcomes, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return outcomes, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(path, f.Content, f.Mode); err != nil {
			return outcomes, fmt.Errorf("failed to write %s: %w", path, err)
		}

		log.Debug().Str("path", path).Str("status", string(status)).Msg("scaffold file written")
		outcomes = append(outcomes, Outcome{Path: path, Status: status})
	}

	return outcomes, nil
}
