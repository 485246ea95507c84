package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/biodoia/roundtable/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckModel_ReportsLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models") {
			http.NotFound(w, r)
			return
		}
		time.Sleep(5 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"Qwen3-32B","object":"model"}]}`))
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Model.BaseURL = srv.URL + "/v1"
	cfg.Model.ID = "Qwen3-32B"
	cfg.Model.MaxRetries = 0
	cfg.Models = nil

	var out bytes.Buffer
	require.NoError(t, checkModel(context.Background(), cfg, &out))
	assert.Regexp(t, `✓ default \(Qwen3-32B\) reachable in \d+ms`, out.String())
}

func TestCheckModel_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"down"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Model.BaseURL = srv.URL
	cfg.Model.MaxRetries = 0
	cfg.Models = nil

	var out bytes.Buffer
	err := checkModel(context.Background(), cfg, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1/1 model endpoints unreachable")
	assert.Contains(t, out.String(), "✗ default")
}
