// Package agent lega una persona a un endpoint del modello e allo store di sessione.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/internal/providers"
	"github.com/biodoia/roundtable/internal/store"
	"github.com/biodoia/roundtable/internal/stream"
	"github.com/biodoia/roundtable/internal/tracing"
	"github.com/biodoia/roundtable/pkg/metrics"
	"github.com/biodoia/roundtable/pkg/models"
	"github.com/rs/zerolog/log"
)

// RunOptions parametri di una singola invocazione
type RunOptions struct {
	SessionID string
	UserID    string
	Stream    bool
}

// CallRecorder raccoglie l'esito delle chiamate per endpoint (*providers.Registry)
type CallRecorder interface {
	RecordSuccess(name string, latency time.Duration, usage providers.Usage)
	RecordError(name string)
}

// Agent parla con la voce di una persona
type Agent struct {
	persona      persona.Persona
	endpoint     providers.Endpoint
	store        store.Store
	recorder     CallRecorder
	systemPrompt string
}

// Option configura un Agent
type Option func(*Agent)

// WithStore registra ogni scambio nello store indicato
func WithStore(s store.Store) Option {
	return func(a *Agent) { a.store = s }
}

// WithRecorder riporta latenza, token ed errori di ogni chiamata
func WithRecorder(r CallRecorder) Option {
	return func(a *Agent) { a.recorder = r }
}

// WithSystemPrompt sostituisce il prompt di sistema derivato dalla persona
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if strings.TrimSpace(prompt) != "" {
			a.systemPrompt = prompt
		}
	}
}

// New crea un agente per la persona
func New(p persona.Persona, endpoint providers.Endpoint, opts ...Option) *Agent {
	a := &Agent{
		persona:      p,
		endpoint:     endpoint,
		systemPrompt: p.SystemPrompt(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Persona restituisce la persona dell'agente
func (a *Agent) Persona() persona.Persona {
	return a.persona
}

// SystemPrompt restituisce il prompt di sistema effettivo
func (a *Agent) SystemPrompt() string {
	return a.systemPrompt
}

// Streaming è la risposta incrementale di un agente.
// Usage è valorizzato quando lo stream è stato consumato fino in fondo.
type Streaming struct {
	*stream.Channel
	usage providers.Usage
}

// Usage restituisce l'usage riportato dall'endpoint
func (s *Streaming) Usage() providers.Usage {
	return s.usage
}

// Run invia il prompt al modello. Senza streaming restituisce
// *providers.ChatResponse, altrimenti *Streaming di *providers.StreamChunk.
// Lo storico della sessione non viene aggiunto al contesto.
func (a *Agent) Run(ctx context.Context, prompt string, opts RunOptions) (any, error) {
	messages := []providers.Message{
		{Role: "system", Content: a.systemPrompt},
		{Role: "user", Content: prompt},
	}
	req := a.endpoint.Request(messages, opts.Stream)
	req.User = opts.UserID
	req.Metadata = map[string]interface{}{"session_id": opts.SessionID}

	run := &models.AgentRun{
		SessionID: opts.SessionID,
		UserID:    opts.UserID,
		Agent:     a.persona.Name,
		Model:     a.endpoint.Model,
		Prompt:    prompt,
		Streamed:  opts.Stream,
	}

	if !opts.Stream {
		return a.complete(ctx, req, run)
	}
	return a.stream(ctx, req, run), nil
}

func (a *Agent) complete(ctx context.Context, req *providers.ChatRequest, run *models.AgentRun) (*providers.ChatResponse, error) {
	ctx, span := tracing.StartLLMSpan(ctx, req.Model, run.Prompt, false)
	start := time.Now()

	resp, err := a.endpoint.Provider.ChatCompletion(ctx, req)

	var usage providers.Usage
	if resp != nil {
		usage = resp.Usage
	}
	a.finish(ctx, run, resp.GetContent(), usage, time.Since(start), err)
	tracing.EndLLMSpan(span, run.Response, usage.PromptTokens, usage.CompletionTokens, err)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *Agent) stream(ctx context.Context, req *providers.ChatRequest, run *models.AgentRun) *Streaming {
	s := &Streaming{}

	s.Channel = stream.NewChannel(ctx, func(ctx context.Context, send func(any) error) error {
		ctx, span := tracing.StartLLMSpan(ctx, req.Model, run.Prompt, true)
		start := time.Now()
		var content strings.Builder

		err := a.endpoint.Provider.Stream(ctx, req, func(chunk *providers.StreamChunk) error {
			if chunk.Usage != nil {
				s.usage = *chunk.Usage
			}
			if chunk.Done || chunk.Delta == "" {
				return nil
			}
			content.WriteString(chunk.Delta)
			return send(chunk)
		})

		// lo scambio viene registrato anche se il consumatore chiude prima della fine
		a.finish(context.WithoutCancel(ctx), run, content.String(), s.usage, time.Since(start), err)
		tracing.EndLLMSpan(span, run.Response, s.usage.PromptTokens, s.usage.CompletionTokens, err)
		return err
	})

	return s
}

func (a *Agent) finish(ctx context.Context, run *models.AgentRun, content string, usage providers.Usage, latency time.Duration, err error) {
	run.Response = content
	run.PromptTokens = usage.PromptTokens
	run.CompletionTokens = usage.CompletionTokens
	run.LatencyMs = latency.Milliseconds()
	if err != nil {
		run.Error = err.Error()
	}

	metrics.ObserveTokens(run.Model, usage.PromptTokens, usage.CompletionTokens)
	a.record(latency, usage, err)

	log.Debug().
		Str("agent", run.Agent).
		Str("session_id", run.SessionID).
		Str("model", run.Model).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Dur("latency", latency).
		Err(err).
		Msg("Agent run completed")

	if a.store == nil || run.SessionID == "" {
		return
	}
	if serr := a.store.AppendRun(ctx, run); serr != nil {
		log.Warn().Err(serr).Str("session_id", run.SessionID).Msg("Failed to persist agent run")
	}
}

func (a *Agent) record(latency time.Duration, usage providers.Usage, err error) {
	if a.recorder == nil || a.endpoint.Name == "" {
		return
	}
	if err != nil {
		a.recorder.RecordError(a.endpoint.Name)
		return
	}
	a.recorder.RecordSuccess(a.endpoint.Name, latency, usage)
}
