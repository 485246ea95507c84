package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrProviderAlreadyExists = errors.New("provider already exists")
	ErrNoProvidersAvailable  = errors.New("no providers available")
)

// DefaultEndpoint è il nome dell'endpoint configurato sotto model.*
const DefaultEndpoint = "default"

// Endpoint associa un provider ai parametri di generazione di un modello
type Endpoint struct {
	// Name è assegnato dal Registry alla registrazione
	Name        string
	Provider    Provider
	Model       string
	MaxTokens   int
	Temperature float64
}

// Request costruisce una ChatRequest con i parametri dell'endpoint
func (e Endpoint) Request(messages []Message, stream bool) *ChatRequest {
	req := &ChatRequest{
		Model:    e.Model,
		Messages: messages,
		Stream:   stream,
	}
	if e.MaxTokens > 0 {
		maxTokens := e.MaxTokens
		req.MaxTokens = &maxTokens
	}
	temperature := e.Temperature
	req.Temperature = &temperature
	return req
}

// HealthStatus rappresenta lo stato di salute di un endpoint
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// EndpointMetadata contiene metadata su un endpoint registrato
type EndpointMetadata struct {
	Name              string
	Model             string
	RegisteredAt      time.Time
	LastHealthCheck   time.Time
	HealthCheckStatus HealthStatus
	ErrorCount        int
	SuccessCount      int
	AvgLatency        time.Duration
	// Usage somma i token di tutte le chiamate riuscite
	Usage Usage
}

// Registry gestisce gli endpoint di modello disponibili
type Registry struct {
	endpoints map[string]Endpoint
	metadata  map[string]*EndpointMetadata
	mu        sync.RWMutex
}

// NewRegistry crea un nuovo registry
func NewRegistry() *Registry {
	return &Registry{
		endpoints: make(map[string]Endpoint),
		metadata:  make(map[string]*EndpointMetadata),
	}
}

// Register registra un nuovo endpoint
func (r *Registry) Register(name string, endpoint Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.endpoints[name]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyExists, name)
	}

	endpoint.Name = name
	r.endpoints[name] = endpoint
	r.metadata[name] = &EndpointMetadata{
		Name:              name,
		Model:             endpoint.Model,
		RegisteredAt:      time.Now(),
		HealthCheckStatus: HealthStatusUnknown,
	}

	log.Debug().
		Str("endpoint", name).
		Str("provider", endpoint.Provider.Name()).
		Str("model", endpoint.Model).
		Msg("Endpoint registered")

	return nil
}

// Get restituisce un endpoint per nome
func (r *Registry) Get(name string) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	endpoint, exists := r.endpoints[name]
	if !exists {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return endpoint, nil
}

// GetOrDefault restituisce l'endpoint specificato, o quello di default
func (r *Registry) GetOrDefault(name string) (Endpoint, error) {
	if name != "" {
		return r.Get(name)
	}

	endpoint, err := r.Get(DefaultEndpoint)
	if err == nil {
		return endpoint, nil
	}

	names := r.List()
	if len(names) == 0 {
		return Endpoint{}, ErrNoProvidersAvailable
	}
	return r.Get(names[0])
}

// List restituisce i nomi degli endpoint in ordine alfabetico
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetMetadata restituisce una copia dei metadata di un endpoint
func (r *Registry) GetMetadata(name string) (*EndpointMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}

	metaCopy := *meta
	return &metaCopy, nil
}

// Stats restituisce i metadata degli endpoint in ordine alfabetico
func (r *Registry) Stats() []EndpointMetadata {
	names := r.List()
	stats := make([]EndpointMetadata, 0, len(names))
	for _, name := range names {
		if meta, err := r.GetMetadata(name); err == nil {
			stats = append(stats, *meta)
		}
	}
	return stats
}

// HealthCheck esegue health check su tutti gli endpoint
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	names := r.List()

	results := make(map[string]error)
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(endpointName string) {
			defer wg.Done()

			r.mu.RLock()
			provider := r.endpoints[endpointName].Provider
			r.mu.RUnlock()

			start := time.Now()
			err := provider.HealthCheck(ctx)
			latency := time.Since(start)

			r.mu.Lock()
			meta := r.metadata[endpointName]
			meta.LastHealthCheck = time.Now()
			if err != nil {
				meta.ErrorCount++
				meta.HealthCheckStatus = HealthStatusUnhealthy
			} else {
				meta.SuccessCount++
				meta.HealthCheckStatus = HealthStatusHealthy
				meta.observeLatency(latency)
			}
			r.mu.Unlock()

			if err != nil {
				log.Warn().
					Err(err).
					Str("endpoint", endpointName).
					Msg("Endpoint health check failed")

				resultsMu.Lock()
				results[endpointName] = err
				resultsMu.Unlock()
				return
			}

			log.Debug().
				Str("endpoint", endpointName).
				Dur("latency", latency).
				Msg("Endpoint health check succeeded")
		}(name)
	}

	wg.Wait()
	return results
}

// RecordSuccess registra una chiamata riuscita e i token consumati
func (r *Registry) RecordSuccess(name string, latency time.Duration, usage Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if meta, exists := r.metadata[name]; exists {
		meta.SuccessCount++
		meta.Usage = meta.Usage.Add(usage)
		meta.observeLatency(latency)
	}
}

func (m *EndpointMetadata) observeLatency(latency time.Duration) {
	if m.AvgLatency == 0 {
		m.AvgLatency = latency
		return
	}
	m.AvgLatency = (m.AvgLatency + latency) / 2
}

// RecordError registra un errore
func (r *Registry) RecordError(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if meta, exists := r.metadata[name]; exists {
		meta.ErrorCount++

		if meta.ErrorCount > 5 && meta.HealthCheckStatus != HealthStatusUnhealthy {
			meta.HealthCheckStatus = HealthStatusUnhealthy
			log.Warn().
				Str("endpoint", name).
				Int("error_count", meta.ErrorCount).
				Msg("Endpoint marked as unhealthy")
		}
	}
}

// Count restituisce il numero totale di endpoint
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}
