package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/biodoia/roundtable/pkg/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MemoryStore tiene tutto in memoria; usato nei test e con --store memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	turns    map[string][]models.Turn
	runs     map[string][]models.AgentRun
}

// NewMemoryStore crea uno store vuoto
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		turns:    make(map[string][]models.Turn),
		runs:     make(map[string][]models.AgentRun),
	}
}

// EnsureSession crea la sessione o incrementa Runs se esiste già
func (m *MemoryStore) EnsureSession(_ context.Context, info SessionInfo) error {
	participants, err := json.Marshal(info.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	session, ok := m.sessions[info.ID]
	if !ok {
		session = &models.Session{
			ID:        info.ID,
			UserID:    info.UserID,
			Mode:      info.Mode,
			CreatedAt: now,
		}
		m.sessions[info.ID] = session
	}
	session.Topic = info.Topic
	session.Participants = datatypes.JSON(participants)
	session.Runs++
	session.UpdatedAt = now
	return nil
}

// AppendTurn accoda un turno assegnando il prossimo Seq
func (m *MemoryStore) AppendTurn(_ context.Context, turn *models.Turn) error {
	if err := validateTurn(turn); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.turns[turn.SessionID] {
		if t.RunID == turn.RunID && t.Round == turn.Round && t.Position == turn.Position {
			return fmt.Errorf("duplicate turn: round %d position %d", turn.Round, turn.Position)
		}
	}

	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	turn.Seq = len(m.turns[turn.SessionID]) + 1
	m.turns[turn.SessionID] = append(m.turns[turn.SessionID], *turn)

	if session, ok := m.sessions[turn.SessionID]; ok {
		session.TurnCount++
	}
	return nil
}

// AppendRun accoda uno scambio di un agente
func (m *MemoryStore) AppendRun(_ context.Context, run *models.AgentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs[run.SessionID] = append(m.runs[run.SessionID], *run)
	return nil
}

// Session restituisce una copia della sessione
func (m *MemoryStore) Session(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	cp := *session
	return &cp, nil
}

// Transcript restituisce una copia dei turni di una sessione
func (m *MemoryStore) Transcript(ctx context.Context, sessionID string) ([]models.Turn, error) {
	if _, err := m.Session(ctx, sessionID); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Turn(nil), m.turns[sessionID]...), nil
}

// Runs restituisce gli scambi di una sessione, filtrati per agente se indicato
func (m *MemoryStore) Runs(_ context.Context, sessionID, agent string) ([]models.AgentRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var runs []models.AgentRun
	for _, r := range m.runs[sessionID] {
		if agent == "" || r.Agent == agent {
			runs = append(runs, r)
		}
	}
	return runs, nil
}

// Sessions restituisce le sessioni ordinate per ultimo aggiornamento
func (m *MemoryStore) Sessions(_ context.Context, limit int) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Ping non fa nulla
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close non fa nulla
func (m *MemoryStore) Close() error { return nil }
