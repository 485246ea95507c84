// Package store persiste sessioni, turni e scambi degli agenti.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/biodoia/roundtable/pkg/config"
	"github.com/biodoia/roundtable/pkg/database"
	"github.com/biodoia/roundtable/pkg/models"
)

// ErrSessionNotFound è restituito per sessioni sconosciute
var ErrSessionNotFound = errors.New("session not found")

// SessionInfo descrive una sessione all'avvio di un'esecuzione
type SessionInfo struct {
	ID           string
	Topic        string
	UserID       string
	Mode         models.SessionMode
	Participants []string
}

// Store è il contratto comune dei backend di persistenza.
// Le implementazioni serializzano le scritture; il forum non le invoca in parallelo.
type Store interface {
	// EnsureSession crea la sessione o ne registra una nuova esecuzione
	EnsureSession(ctx context.Context, info SessionInfo) error
	// AppendTurn accoda un turno assegnandogli il prossimo Seq
	AppendTurn(ctx context.Context, turn *models.Turn) error
	AppendRun(ctx context.Context, run *models.AgentRun) error

	Session(ctx context.Context, id string) (*models.Session, error)
	Transcript(ctx context.Context, sessionID string) ([]models.Turn, error)
	Runs(ctx context.Context, sessionID, agent string) ([]models.AgentRun, error)
	Sessions(ctx context.Context, limit int) ([]models.Session, error)

	Ping(ctx context.Context) error
	Close() error
}

// New costruisce lo store indicato dalla configurazione
func New(cfg *config.Config) (Store, error) {
	switch strings.ToLower(cfg.SessionStore.Type) {
	case config.StoreSQL, "":
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return NewSQLStore(db), nil
	case config.StoreRedis:
		return NewRedisStore(cfg.Redis)
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.SessionStore.Type)
	}
}

func validateTurn(turn *models.Turn) error {
	if turn == nil || strings.TrimSpace(turn.SessionID) == "" {
		return errors.New("turn without session id")
	}
	return nil
}
