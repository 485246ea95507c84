// Package client parla con un server roundtable remoto: POST /chat in JSON
// o in streaming SSE, più le route di sessione.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/biodoia/roundtable/internal/forum"
	"github.com/biodoia/roundtable/internal/server"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// ErrStreamIncomplete indica uno stream chiuso prima dell'evento summary
var ErrStreamIncomplete = errors.New("stream ended before summary")

// APIError è un errore restituito dal server ({detail, request_id})
type APIError struct {
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("server error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server error %d: %s (request %s)", e.Status, e.Detail, e.RequestID)
}

// Client è il client HTTP di un server roundtable
type Client struct {
	http *resty.Client
}

// New crea un client per baseURL (es. http://localhost:8000).
// Nessun timeout globale: una discussione dura quanto il context del chiamante.
func New(baseURL string) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json")

	httpClient.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("roundtable server response")
		return nil
	})

	return &Client{http: httpClient}
}

// Health interroga GET /health
func (c *Client) Health(ctx context.Context) error {
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Get("/health")
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), &apiErr)
	}
	return nil
}

// Chat esegue una discussione non in streaming
func (c *Client) Chat(ctx context.Context, req server.ChatRequest) (*forum.Result, error) {
	req.Stream = false

	var result forum.Result
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat")
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), &apiErr)
	}

	return &result, nil
}

// Stream esegue una discussione in streaming e passa ogni evento a emit.
// Un evento "error" del server diventa un *APIError.
func (c *Client) Stream(ctx context.Context, req server.ChatRequest, emit func(forum.Event) error) error {
	req.Stream = true

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		SetDoNotParseResponse(true).
		Post("/chat")
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		var apiErr APIError
		if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
			apiErr.Detail = http.StatusText(resp.StatusCode())
		}
		return apiError(resp.StatusCode(), &apiErr)
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(data), &probe); err != nil {
			log.Warn().Err(err).Str("data", data).Msg("Failed to parse stream event")
			continue
		}

		if probe.Type == "error" {
			var apiErr APIError
			_ = json.Unmarshal([]byte(data), &apiErr)
			return apiError(apiErr.Status, &apiErr)
		}

		var ev forum.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("invalid event: %w", err)
		}
		if err := emit(ev); err != nil {
			return err
		}
		if ev.Type == forum.EventSummary {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read error: %w", err)
	}
	return ErrStreamIncomplete
}

// Session scarica una sessione con il suo transcript
func (c *Client) Session(ctx context.Context, id string) (*server.SessionResponse, error) {
	var result server.SessionResponse
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&result).
		SetError(&apiErr).
		Get("/sessions/{id}")
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), &apiErr)
	}
	return &result, nil
}

func apiError(status int, e *APIError) *APIError {
	if status != 0 {
		e.Status = status
	}
	if e.Detail == "" {
		e.Detail = http.StatusText(e.Status)
	}
	return e
}
