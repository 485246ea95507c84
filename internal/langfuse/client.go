// Package langfuse è un client minimale per l'API pubblica di Langfuse
package langfuse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/biodoia/roundtable/pkg/config"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthorized   = errors.New("langfuse: invalid credentials")
	ErrPromptNotFound = errors.New("langfuse: prompt not found")
)

// Project è un progetto visibile con le chiavi correnti
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type projectsResponse struct {
	Data []Project `json:"data"`
}

// ChatMessage è un messaggio di un prompt di tipo chat
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt è un prompt gestito su Langfuse
type Prompt struct {
	Name    string          `json:"name"`
	Version int             `json:"version"`
	Type    string          `json:"type"` // "text" o "chat"
	Prompt  json.RawMessage `json:"prompt"`
	Labels  []string        `json:"labels"`
}

// Text restituisce il testo del prompt; per i prompt chat unisce i messaggi di sistema
func (p *Prompt) Text() string {
	var text string
	if err := json.Unmarshal(p.Prompt, &text); err == nil {
		return text
	}

	var messages []ChatMessage
	if err := json.Unmarshal(p.Prompt, &messages); err != nil {
		return ""
	}
	var parts []string
	for _, m := range messages {
		if m.Role == "system" || len(messages) == 1 {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// Health è lo stato restituito da /api/public/health
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client parla con l'API REST di Langfuse in basic auth
type Client struct {
	http *resty.Client
}

// NewClient crea un client per l'istanza configurata
func NewClient(cfg config.LangfuseConfig) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Host, "/")).
		SetBasicAuth(cfg.PublicKey, cfg.SecretKey).
		SetTimeout(10 * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")

	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("Langfuse API response")
		return nil
	})

	return &Client{http: c}
}

// Health interroga l'endpoint di salute (non richiede credenziali valide)
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	resp, err := c.http.R().SetContext(ctx).SetResult(&health).Get("/api/public/health")
	if err != nil {
		return nil, fmt.Errorf("langfuse health request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("langfuse health: HTTP %d", resp.StatusCode())
	}
	return &health, nil
}

// AuthCheck verifica le chiavi e restituisce i progetti accessibili
func (c *Client) AuthCheck(ctx context.Context) ([]Project, error) {
	var result projectsResponse
	var errResp apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&errResp).
		Get("/api/public/projects")
	if err != nil {
		return nil, fmt.Errorf("langfuse auth request failed: %w", err)
	}
	if err := checkStatus(resp, &errResp); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// GetPrompt scarica un prompt per nome; label vuota significa "production"
func (c *Client) GetPrompt(ctx context.Context, name, label string) (*Prompt, error) {
	if label == "" {
		label = "production"
	}

	var prompt Prompt
	var errResp apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("label", label).
		SetResult(&prompt).
		SetError(&errResp).
		Get("/api/public/v2/prompts/" + url.PathEscape(name))
	if err != nil {
		return nil, fmt.Errorf("langfuse prompt request failed: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, fmt.Errorf("%w: %s (label %s)", ErrPromptNotFound, name, label)
	}
	if err := checkStatus(resp, &errResp); err != nil {
		return nil, err
	}
	return &prompt, nil
}

func checkStatus(resp *resty.Response, errResp *apiError) error {
	if !resp.IsError() {
		return nil
	}
	msg := errResp.Message
	if msg == "" {
		msg = errResp.Error
	}
	switch resp.StatusCode() {
	case 401, 403:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	default:
		return fmt.Errorf("langfuse API error (HTTP %d): %s", resp.StatusCode(), msg)
	}
}
