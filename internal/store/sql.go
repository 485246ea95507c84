package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/biodoia/roundtable/pkg/database"
	"github.com/biodoia/roundtable/pkg/models"
	"gorm.io/datatypes"
)

// SQLStore persiste su database relazionale tramite gorm
type SQLStore struct {
	db *database.DB
}

// NewSQLStore crea uno store su una connessione già migrata
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB restituisce la connessione sottostante
func (s *SQLStore) DB() *database.DB {
	return s.db
}

// EnsureSession crea la sessione o incrementa Runs se esiste già
func (s *SQLStore) EnsureSession(ctx context.Context, info SessionInfo) error {
	participants, err := json.Marshal(info.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	session := &models.Session{
		ID:           info.ID,
		Topic:        info.Topic,
		UserID:       info.UserID,
		Mode:         info.Mode,
		Participants: datatypes.JSON(participants),
		Runs:         1,
	}
	if err := s.db.UpsertSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session %s: %w", info.ID, err)
	}
	return nil
}

// AppendTurn salva un turno assegnando il prossimo Seq nella stessa transazione
func (s *SQLStore) AppendTurn(ctx context.Context, turn *models.Turn) error {
	if err := validateTurn(turn); err != nil {
		return err
	}
	return s.db.AppendTurn(ctx, turn)
}

// AppendRun salva uno scambio di un agente
func (s *SQLStore) AppendRun(ctx context.Context, run *models.AgentRun) error {
	return s.db.CreateAgentRun(ctx, run)
}

// Session restituisce una sessione per ID
func (s *SQLStore) Session(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.db.GetSession(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, err
}

// Transcript restituisce i turni di una sessione in ordine di Seq
func (s *SQLStore) Transcript(ctx context.Context, sessionID string) ([]models.Turn, error) {
	if _, err := s.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.db.GetTurns(ctx, sessionID)
}

// Runs restituisce gli scambi di una sessione, filtrati per agente se indicato
func (s *SQLStore) Runs(ctx context.Context, sessionID, agent string) ([]models.AgentRun, error) {
	return s.db.GetAgentRuns(ctx, sessionID, agent)
}

// Sessions restituisce le sessioni più recenti
func (s *SQLStore) Sessions(ctx context.Context, limit int) ([]models.Session, error) {
	return s.db.ListSessions(ctx, limit)
}

// Ping verifica la connessione al database
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close chiude la connessione al database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
