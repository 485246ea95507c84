package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/biodoia/roundtable/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestEndpointAndAuth(t *testing.T) {
	assert.Equal(t, "http://localhost:3000/api/public/otel/v1/traces", Endpoint("http://localhost:3000/"))
	// base64("pk:sk")
	assert.Equal(t, "Basic cGs6c2s=", BasicAuth("pk", "sk"))
}

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.LangfuseConfig{Enabled: false}, "roundtable")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_MissingKeys(t *testing.T) {
	_, err := Init(context.Background(), config.LangfuseConfig{Enabled: true, Host: "http://localhost:3000"}, "roundtable")
	assert.Error(t, err)
}

func TestInit_ExportsToLangfuse(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		auths []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	shutdown, err := Init(context.Background(), config.LangfuseConfig{
		Enabled:   true,
		Host:      server.URL,
		PublicKey: "pk-lf-test",
		SecretKey: "sk-lf-test",
	}, "roundtable-test")
	require.NoError(t, err)

	ctx, root := StartForumSpan(context.Background(), "multi-chat-test", "multi-agent-forum", "测试", 1, 2)
	_, llm := StartLLMSpan(ctx, "Qwen3-32B", "prompt", false)
	EndLLMSpan(llm, "output", 10, 20, errors.New("boom"))
	root.End()

	require.NoError(t, shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.Equal(t, OTLPPath, paths[0])
	assert.Equal(t, BasicAuth("pk-lf-test", "sk-lf-test"), auths[0])
}
