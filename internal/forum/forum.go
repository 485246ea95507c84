// Package forum conduce la discussione a turni tra le persona.
//
// Ogni round dà la parola a tutte le persona, nell'ordine ricevuto e una alla
// volta: il prompt di ciascun turno dipende dai turni già registrati.
package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/biodoia/roundtable/internal/agent"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/internal/providers"
	"github.com/biodoia/roundtable/internal/store"
	"github.com/biodoia/roundtable/internal/stream"
	"github.com/biodoia/roundtable/internal/tracing"
	"github.com/biodoia/roundtable/pkg/metrics"
	"github.com/biodoia/roundtable/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	MaxRounds          = 10
	MaxDurationSeconds = 120

	// DefaultUserID è l'utente associato alle sessioni del forum
	DefaultUserID = "multi-agent-forum"
)

var (
	// ErrInvalidRequest segnala parametri non validi
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConcurrentRun segnala una seconda esecuzione sulla stessa sessione
	ErrConcurrentRun = errors.New("a discussion is already running for this session")
)

// RunError descrive il turno in cui la discussione si è interrotta
type RunError struct {
	Round   int
	Speaker string
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("round %d, %s: %v", e.Round, e.Speaker, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Speaker è un partecipante in grado di rispondere a un prompt
type Speaker interface {
	Persona() persona.Persona
	Run(ctx context.Context, prompt string, opts agent.RunOptions) (any, error)
}

// SpeakerFactory crea il partecipante di una persona
type SpeakerFactory func(p persona.Persona) Speaker

// Request parametri di una discussione
type Request struct {
	Topic           string
	Rounds          int
	DurationSeconds int
	Personas        []persona.Persona
	SessionID       string
	Mode            models.SessionMode
}

// Result è l'esito di una discussione; su errore contiene i turni già registrati
type Result struct {
	Topic           string `json:"topic"`
	Rounds          int    `json:"rounds"`
	DurationSeconds int    `json:"duration_seconds"`
	SessionID       string `json:"session_id"`
	Transcript      []Turn `json:"transcript"`
}

// Orchestrator esegue le discussioni
type Orchestrator struct {
	newSpeaker SpeakerFactory
	store      store.Store
	userID     string

	mu     sync.Mutex
	active map[string]struct{}
}

// Option configura l'Orchestrator
type Option func(*Orchestrator)

// WithStore persiste sessioni e turni
func WithStore(s store.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithUserID imposta l'utente delle sessioni
func WithUserID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.userID = id
		}
	}
}

// New crea un Orchestrator
func New(factory SpeakerFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		newSpeaker: factory,
		userID:     DefaultUserID,
		active:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate controlla i parametri della richiesta
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}
	if r.Rounds < 1 || r.Rounds > MaxRounds {
		return fmt.Errorf("%w: rounds must be between 1 and %d", ErrInvalidRequest, MaxRounds)
	}
	if r.DurationSeconds < 1 || r.DurationSeconds > MaxDurationSeconds {
		return fmt.Errorf("%w: duration_seconds must be between 1 and %d", ErrInvalidRequest, MaxDurationSeconds)
	}
	if len(r.Personas) == 0 {
		return fmt.Errorf("%w: at least one persona is required", ErrInvalidRequest)
	}
	return nil
}

// Run esegue la discussione senza streaming
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	return o.execute(ctx, req, nil)
}

// Stream esegue la discussione emettendo chunk, message e infine summary.
// Un errore di emit interrompe la discussione.
func (o *Orchestrator) Stream(ctx context.Context, req Request, emit func(Event) error) (*Result, error) {
	if emit == nil {
		return nil, fmt.Errorf("%w: nil emitter", ErrInvalidRequest)
	}
	return o.execute(ctx, req, emit)
}

func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[sessionID]; busy {
		return false
	}
	o.active[sessionID] = struct{}{}
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	delete(o.active, sessionID)
	o.mu.Unlock()
}

type run struct {
	req          Request
	sessionID    string
	runID        uuid.UUID
	speakers     []Speaker
	participants []string
	budget       LengthBudget
	emit         func(Event) error
	transcript   Transcript
}

func (o *Orchestrator) execute(ctx context.Context, req Request, emit func(Event) error) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		req:       req,
		sessionID: ResolveSessionID(req.SessionID, req.Topic, req.Mode),
		runID:     uuid.New(),
		budget:    Budget(req.DurationSeconds, len(req.Personas)),
		emit:      emit,
	}
	for _, p := range req.Personas {
		r.speakers = append(r.speakers, o.newSpeaker(p))
		r.participants = append(r.participants, p.DisplayName())
	}

	result := &Result{
		Topic:           req.Topic,
		Rounds:          req.Rounds,
		DurationSeconds: req.DurationSeconds,
		SessionID:       r.sessionID,
	}

	if !o.acquire(r.sessionID) {
		return result, fmt.Errorf("%w: %s", ErrConcurrentRun, r.sessionID)
	}
	defer o.release(r.sessionID)

	metrics.ActiveDiscussions.Inc()
	defer metrics.ActiveDiscussions.Dec()

	ctx, span := tracing.StartForumSpan(ctx, r.sessionID, o.userID, req.Topic, req.Rounds, len(r.speakers))
	defer span.End()

	logger := log.With().Str("session_id", r.sessionID).Str("topic", req.Topic).Logger()
	logger.Info().
		Int("rounds", req.Rounds).
		Int("participants", len(r.speakers)).
		Int("duration_seconds", req.DurationSeconds).
		Msg("Discussion started")

	o.ensureSession(ctx, r)

	err := o.loop(ctx, r)
	result.Transcript = r.transcript.Turns()
	if err != nil {
		tracing.RecordError(span, err)
		logger.Error().Err(err).Int("turns", r.transcript.Len()).Msg("Discussion aborted")
		return result, err
	}

	if emit != nil {
		if err := emit(Event{
			Type:         EventSummary,
			Topic:        req.Topic,
			Participants: strings.Join(r.participants, "、"),
			Rounds:       req.Rounds,
			SessionID:    r.sessionID,
		}); err != nil {
			return result, err
		}
	}

	logger.Info().Int("turns", r.transcript.Len()).Msg("Discussion completed")
	return result, nil
}

func (o *Orchestrator) loop(ctx context.Context, r *run) error {
	for round := 1; round <= r.req.Rounds; round++ {
		for pos, speaker := range r.speakers {
			turn, err := o.turn(ctx, r, round, pos, speaker)
			if err != nil {
				return &RunError{Round: round, Speaker: r.participants[pos], Err: err}
			}
			r.transcript.Append(turn)
			o.persistTurn(ctx, r, turn)

			if r.emit != nil {
				if err := r.emit(Event{
					Type:      EventMessage,
					Round:     round,
					Speaker:   turn.Speaker,
					Content:   turn.Content,
					Elapsed:   turn.Elapsed,
					SessionID: r.sessionID,
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (o *Orchestrator) turn(ctx context.Context, r *run, round, pos int, speaker Speaker) (Turn, error) {
	p := speaker.Persona()
	name := r.participants[pos]

	ctx, span := tracing.StartAgentSpan(ctx, r.sessionID, o.userID, p.Name)
	defer span.End()

	prompt := BuildPrompt(r.req.Topic, r.transcript.Recent(HistoryWindow), r.participants, r.budget)
	start := time.Now()

	resp, err := speaker.Run(ctx, prompt, agent.RunOptions{
		SessionID: r.sessionID,
		UserID:    o.userID,
		Stream:    r.emit != nil,
	})
	if err != nil {
		tracing.RecordError(span, err)
		metrics.ObserveTurn(p.Name, time.Since(start), err)
		return Turn{}, err
	}

	var onFragment func(string) error
	if r.emit != nil {
		onFragment = func(delta string) error {
			return r.emit(Event{
				Type:      EventChunk,
				Round:     round,
				Speaker:   name,
				Delta:     delta,
				Elapsed:   seconds(time.Since(start)),
				SessionID: r.sessionID,
			})
		}
	}

	collected, err := stream.Collect(ctx, resp, onFragment)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.ObserveTurn(p.Name, time.Since(start), err)
		return Turn{}, err
	}

	content := strings.TrimSpace(collected.Text)
	if r.emit != nil && !collected.Streamed && content != "" {
		if err := onFragment(content); err != nil {
			return Turn{}, err
		}
	}

	elapsed := time.Since(start)
	metrics.ObserveTurn(p.Name, elapsed, nil)

	log.Debug().
		Str("session_id", r.sessionID).
		Int("round", round).
		Str("speaker", p.Name).
		Float64("elapsed", seconds(elapsed)).
		Int("chars", len([]rune(content))).
		Msg("Turn recorded")

	return Turn{
		Round:    round,
		Position: pos,
		Speaker:  name,
		Persona:  p.Name,
		Content:  content,
		Elapsed:  seconds(elapsed),
		Usage:    usageOf(resp),
	}, nil
}

func (o *Orchestrator) ensureSession(ctx context.Context, r *run) {
	if o.store == nil {
		return
	}
	mode := r.req.Mode
	if mode == "" {
		mode = models.SessionModeCLI
	}
	if err := o.store.EnsureSession(ctx, store.SessionInfo{
		ID:           r.sessionID,
		Topic:        r.req.Topic,
		UserID:       o.userID,
		Mode:         mode,
		Participants: r.participants,
	}); err != nil {
		log.Warn().Err(err).Str("session_id", r.sessionID).Msg("Failed to persist session")
	}
}

func (o *Orchestrator) persistTurn(ctx context.Context, r *run, turn Turn) {
	if o.store == nil {
		return
	}
	if err := o.store.AppendTurn(ctx, ToModel(r.sessionID, r.runID, turn)); err != nil {
		log.Warn().Err(err).Str("session_id", r.sessionID).Int("round", turn.Round).Msg("Failed to persist turn")
	}
}

type usageReporter interface {
	Usage() providers.Usage
}

func usageOf(resp any) providers.Usage {
	switch v := resp.(type) {
	case *providers.ChatResponse:
		if v != nil {
			return v.Usage
		}
	case usageReporter:
		return v.Usage()
	}
	return providers.Usage{}
}
