package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	var seen string
	app.Get("/test", func(c fiber.Ctx) error {
		seen = GetRequestID(c)
		return c.SendString("OK")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, resp.Header.Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Use(Recovery())

	app.Get("/panic", func(c fiber.Ctx) error {
		panic("test panic")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"detail":"test panic"`)
	assert.Contains(t, string(body), resp.Header.Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSFromOrigins("http://a.example, *.b.example")))
	app.Get("/", func(c fiber.Ctx) error { return c.SendString("OK") })

	tests := []struct {
		name   string
		origin string
		status int
	}{
		{"no origin", "", fiber.StatusOK},
		{"exact", "http://a.example", fiber.StatusOK},
		{"wildcard subdomain", "http://x.b.example", fiber.StatusOK},
		{"rejected", "http://evil.example", fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://a.example")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
}

func TestCORSFromOrigins_Empty(t *testing.T) {
	assert.Equal(t, []string{"*"}, CORSFromOrigins(" , ").AllowedOrigins)
}

func TestCORSConfig_Allows(t *testing.T) {
	cfg := CORSFromOrigins("http://a.example, *.b.example")

	assert.True(t, cfg.Allows("http://a.example"))
	assert.True(t, cfg.Allows("https://api.b.example"))
	assert.False(t, cfg.Allows("http://b.example.evil"))
	assert.False(t, cfg.Allows("http://c.example"))
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(RateLimitConfig{
		RequestsPerMinute: 2,
		KeyFunc:           func(c fiber.Ctx) string { return c.Get("X-Client") },
	}))
	app.Post("/chat", func(c fiber.Ctx) error { return c.SendString("OK") })

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("X-Client", client)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, send("a"))
	assert.Equal(t, fiber.StatusOK, send("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, send("a"))
	assert.Equal(t, fiber.StatusOK, send("b"))
}

func TestRateLimit_Disabled(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(RateLimitConfig{}))
	app.Get("/", func(c fiber.Ctx) error { return c.SendString("OK") })

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics(MetricsConfig{SkipPaths: []string{"/metrics"}}))
	app.Get("/sessions/:id", func(c fiber.Ctx) error { return c.SendString(c.Params("id")) })
	app.Get("/metrics", PrometheusHandler())

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	assert.True(t, strings.Contains(string(body), `roundtable_http_requests_total{method="GET",route="/sessions/:id",status="200"}`))
	assert.NotContains(t, string(body), `route="/metrics"`)
}
