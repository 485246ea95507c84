// Package app assembla i componenti condivisi da CLI e server HTTP:
// store di sessione, endpoint del modello, tracing e orchestratore.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/biodoia/roundtable/internal/agent"
	"github.com/biodoia/roundtable/internal/forum"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/internal/providers"
	"github.com/biodoia/roundtable/internal/providers/openai"
	"github.com/biodoia/roundtable/internal/store"
	"github.com/biodoia/roundtable/internal/tracing"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/rs/zerolog/log"
)

// ServiceName è il nome del servizio negli span esportati
const ServiceName = "roundtable"

// App contiene le dipendenze di un processo
type App struct {
	Config    *config.Config
	Store     store.Store
	Endpoints *providers.Registry

	endpoint string
	shutdown tracing.ShutdownFunc
}

// Option configura la costruzione di App
type Option func(*options)

type options struct {
	store    store.Store
	endpoint string
	tracing  bool
}

// WithStore usa uno store già costruito invece di quello da configurazione
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithEndpoint seleziona il preset di modello usato dagli agenti
func WithEndpoint(name string) Option {
	return func(o *options) { o.endpoint = name }
}

// WithoutTracing non inizializza l'exporter Langfuse
func WithoutTracing() Option {
	return func(o *options) { o.tracing = false }
}

// New costruisce l'applicazione dalla configurazione
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{tracing: true}
	for _, opt := range opts {
		opt(&o)
	}

	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := registry.GetOrDefault(o.endpoint); err != nil {
		return nil, fmt.Errorf("model endpoint: %w", err)
	}

	a := &App{
		Config:    cfg,
		Endpoints: registry,
		endpoint:  o.endpoint,
		shutdown:  func(context.Context) error { return nil },
	}

	if o.tracing {
		shutdown, err := tracing.Init(ctx, cfg.Langfuse, ServiceName)
		if err != nil {
			return nil, err
		}
		a.shutdown = shutdown
	}

	a.Store = o.store
	if a.Store == nil {
		s, err := store.New(cfg)
		if err != nil {
			a.shutdown(ctx)
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		a.Store = s
	}

	log.Debug().
		Str("store", cfg.SessionStore.Type).
		Strs("endpoints", registry.List()).
		Bool("langfuse", cfg.Langfuse.Enabled).
		Msg("Application initialized")

	return a, nil
}

// NewRegistry registra l'endpoint di default (model.*) e i preset models.*
func NewRegistry(cfg *config.Config) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	if err := registry.Register(providers.DefaultEndpoint, openai.NewEndpoint(providers.DefaultEndpoint, cfg.Model)); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Models))
	for name := range cfg.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		preset, err := cfg.ResolveModel(name)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(name, openai.NewEndpoint(name, preset)); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Endpoint restituisce l'endpoint selezionato
func (a *App) Endpoint() (providers.Endpoint, error) {
	return a.Endpoints.GetOrDefault(a.endpoint)
}

// NewAgent crea l'agente di una persona sull'endpoint selezionato
func (a *App) NewAgent(p persona.Persona, opts ...agent.Option) (*agent.Agent, error) {
	endpoint, err := a.Endpoint()
	if err != nil {
		return nil, err
	}
	return agent.New(p, endpoint, append(a.agentOptions(), opts...)...), nil
}

func (a *App) agentOptions() []agent.Option {
	return []agent.Option{agent.WithStore(a.Store), agent.WithRecorder(a.Endpoints)}
}

// Orchestrator crea l'orchestratore del forum legato allo store
func (a *App) Orchestrator() (*forum.Orchestrator, error) {
	endpoint, err := a.Endpoint()
	if err != nil {
		return nil, err
	}

	factory := func(p persona.Persona) forum.Speaker {
		return agent.New(p, endpoint, a.agentOptions()...)
	}

	return forum.New(factory,
		forum.WithStore(a.Store),
		forum.WithUserID(a.Config.Chat.UserID),
	), nil
}

// Personas risolve le persona dal file indicato o da quello di configurazione
func (a *App) Personas(path string) persona.LoadResult {
	if path == "" {
		path = a.Config.Chat.CharactersFile
	}
	return persona.Load(path)
}

// Close svuota il tracer e chiude lo store
func (a *App) Close() error {
	a.logEndpointStats()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) logEndpointStats() {
	for _, meta := range a.Endpoints.Stats() {
		if meta.SuccessCount == 0 && meta.ErrorCount == 0 {
			continue
		}
		log.Info().
			Str("endpoint", meta.Name).
			Str("model", meta.Model).
			Int("calls", meta.SuccessCount).
			Int("errors", meta.ErrorCount).
			Dur("avg_latency", meta.AvgLatency).
			Int("total_tokens", meta.Usage.TotalTokens).
			Msg("Endpoint usage")
	}
}
