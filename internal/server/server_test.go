package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/biodoia/roundtable/internal/agent"
	"github.com/biodoia/roundtable/internal/forum"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/internal/store"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoSpeaker struct {
	p   persona.Persona
	err error
}

func (e *echoSpeaker) Persona() persona.Persona { return e.p }

func (e *echoSpeaker) Run(ctx context.Context, prompt string, opts agent.RunOptions) (any, error) {
	if e.err != nil {
		return nil, e.err
	}
	if opts.Stream {
		return []any{e.p.Name + "：", "我的观点"}, nil
	}
	return "  " + e.p.Name + " 的发言  ", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 8000, CORSOrigins: "*"},
		Metrics: config.MetricsConfig{Enabled: true},
		Chat: config.ChatConfig{
			CharactersFile:         "missing.json",
			DefaultRounds:          1,
			DefaultDurationSeconds: 10,
		},
	}
}

func setupServer(t *testing.T, failWith error) (*Server, store.Store) {
	t.Helper()

	st := store.NewMemoryStore()
	orch := forum.New(func(p persona.Persona) forum.Speaker {
		return &echoSpeaker{p: p, err: failWith}
	}, forum.WithStore(st))

	return New(testConfig(), orch, st), st
}

func postChat(t *testing.T, s *Server, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	s, _ := setupServer(t, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, map[string]string{"status": "ok"}, body)
}

func TestChat_NonStreamed(t *testing.T) {
	s, _ := setupServer(t, nil)

	resp := postChat(t, s, `{
		"topic": "测试",
		"rounds": 2,
		"duration_seconds": 20,
		"characters": [{"name": "A", "title": "甲"}, {"name": "B", "title": "乙"}, {"title": "无名"}]
	}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result forum.Result
	decode(t, resp, &result)

	assert.Equal(t, "测试", result.Topic)
	assert.Equal(t, 2, result.Rounds)
	assert.Equal(t, 20, result.DurationSeconds)
	assert.True(t, strings.HasPrefix(result.SessionID, "api-multi-chat-topic-"))
	require.Len(t, result.Transcript, 4)

	assert.Equal(t, 1, result.Transcript[0].Round)
	assert.Equal(t, "A 的发言", result.Transcript[0].Content)
	assert.Contains(t, result.Transcript[1].Speaker, "B - 乙")
	assert.Equal(t, 2, result.Transcript[3].Round)
}

func TestChat_DefaultsToFallbackPersonas(t *testing.T) {
	s, _ := setupServer(t, nil)

	resp := postChat(t, s, `{"topic": "AI", "session_id": "fixed"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result forum.Result
	decode(t, resp, &result)
	assert.Equal(t, "fixed", result.SessionID)
	assert.Equal(t, 1, result.Rounds)
	assert.Equal(t, 10, result.DurationSeconds)
	assert.Len(t, result.Transcript, 4)
}

func TestChat_ValidationErrors(t *testing.T) {
	s, _ := setupServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing topic", `{"topic": "  "}`},
		{"too many rounds", `{"topic": "x", "rounds": 11}`},
		{"zero rounds", `{"topic": "x", "rounds": 0}`},
		{"duration too long", `{"topic": "x", "duration_seconds": 121}`},
		{"malformed body", `{"topic": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postChat(t, s, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			decode(t, resp, &body)
			assert.NotEmpty(t, body["detail"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestChat_ModelFailureIs500(t *testing.T) {
	s, _ := setupServer(t, errors.New("connection refused"))

	resp := postChat(t, s, `{"topic": "x"}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["detail"], "connection refused")
}

func readEvents(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var events []map[string]any
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestChat_Streamed(t *testing.T) {
	s, _ := setupServer(t, nil)

	resp := postChat(t, s, `{"topic": "测试", "stream": true, "session_id": "s1",
		"characters": [{"name": "A", "title": "甲"}, {"name": "B", "title": "乙"}]}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := readEvents(t, resp)

	var types []string
	for _, ev := range events {
		types = append(types, ev["type"].(string))
	}
	assert.Equal(t, []string{"chunk", "chunk", "message", "chunk", "chunk", "message", "summary"}, types)

	assert.Equal(t, "A：", events[0]["delta"])
	assert.Equal(t, "s1", events[0]["session_id"])
	assert.Equal(t, "A：我的观点", events[2]["content"])
	assert.Equal(t, "测试", events[6]["topic"])
	assert.EqualValues(t, 1, events[6]["rounds"])
}

func TestChat_StreamedFailureEmitsError(t *testing.T) {
	s, _ := setupServer(t, errors.New("upstream down"))

	resp := postChat(t, s, `{"topic": "x", "stream": true}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	events := readEvents(t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0]["type"])
	assert.EqualValues(t, 500, events[0]["status"])
	assert.Contains(t, events[0]["detail"], "upstream down")
}

func TestSessions(t *testing.T) {
	s, _ := setupServer(t, nil)

	resp := postChat(t, s, `{"topic": "t", "session_id": "persisted",
		"characters": [{"name": "A", "title": "甲"}]}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/sessions/persisted", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var session SessionResponse
	decode(t, resp, &session)
	assert.Equal(t, "persisted", session.Session.ID)
	require.Len(t, session.Transcript, 1)
	assert.Equal(t, "A 的发言", session.Transcript[0].Content)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/sessions?limit=5", nil))
	require.NoError(t, err)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, resp, &list)
	assert.Equal(t, 1, list.Count)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/sessions/unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/sessions?limit=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReadyAndMetrics(t *testing.T) {
	s, _ := setupServer(t, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "roundtable_active_discussions")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 400, StatusFor(forum.ErrInvalidRequest))
	assert.Equal(t, 404, StatusFor(store.ErrSessionNotFound))
	assert.Equal(t, 409, StatusFor(forum.ErrConcurrentRun))
	assert.Equal(t, 418, StatusFor(fiber.NewError(418, "teapot")))
	assert.Equal(t, 500, StatusFor(&forum.RunError{Round: 1, Speaker: "A", Err: errors.New("x")}))
}

func TestCORS_RejectedOriginUsesErrorShape(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORSOrigins = "http://ok.example"
	s := New(cfg, forum.New(func(p persona.Persona) forum.Speaker {
		return &echoSpeaker{p: p}
	}), store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "origin not allowed", body["detail"])
	assert.NotEmpty(t, body["request_id"])
	assert.NotContains(t, body, "error")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://ok.example")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://ok.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
