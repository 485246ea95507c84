package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/biodoia/roundtable/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound è restituito quando la sessione richiesta non esiste
var ErrNotFound = errors.New("record not found")

// Config contiene la configurazione del database
type Config struct {
	Type       string `mapstructure:"type" yaml:"type"`             // "postgres" or "sqlite"
	Connection string `mapstructure:"connection" yaml:"connection"` // Connection string
	MaxConns   int    `mapstructure:"max_conns" yaml:"max_conns"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
}

// DB wrappa la connessione GORM
type DB struct {
	*gorm.DB
}

// New crea una nuova connessione al database
func New(cfg *Config) (*DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.Connection)
	case "sqlite":
		if err := ensureDir(cfg.Connection); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.Connection)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	// Configure logger
	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Type == "sqlite" {
		// sqlite serializza comunque le scritture; :memory: richiede una sola connessione
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: db}, nil
}

func ensureDir(conn string) error {
	if conn == "" || conn == ":memory:" || strings.HasPrefix(conn, "file:") {
		return nil
	}
	dir := filepath.Dir(conn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// AutoMigrate esegue le migrazioni del database
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.Session{},
		&models.Turn{},
		&models.AgentRun{},
	)
}

// Ping verifica la connessione
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close chiude la connessione al database
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertSession crea la sessione o ne aggiorna topic e partecipanti
func (db *DB) UpsertSession(ctx context.Context, session *models.Session) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"topic":        session.Topic,
			"participants": session.Participants,
			"runs":         gorm.Expr("sessions.runs + 1"),
			"updated_at":   time.Now().UTC(),
		}),
	}).Create(session).Error
}

// GetSession restituisce una sessione per ID
func (db *DB) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return &session, err
}

// ListSessions restituisce le sessioni più recenti
func (db *DB) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	var sessions []models.Session
	q := db.WithContext(ctx).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&sessions).Error
	return sessions, err
}

// AppendTurn aggiunge un turno in coda alla sessione assegnandogli il prossimo Seq
func (db *DB) AppendTurn(ctx context.Context, turn *models.Turn) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Model(&models.Turn{}).
			Where("session_id = ?", turn.SessionID).
			Select("COALESCE(MAX(seq), 0) + 1").
			Scan(&next).Error; err != nil {
			return fmt.Errorf("failed to compute turn sequence: %w", err)
		}
		turn.Seq = next

		if err := tx.Create(turn).Error; err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}

		return tx.Model(&models.Session{}).
			Where("id = ?", turn.SessionID).
			UpdateColumn("turn_count", gorm.Expr("turn_count + 1")).Error
	})
}

// GetTurns restituisce i turni di una sessione in ordine di registrazione
func (db *DB) GetTurns(ctx context.Context, sessionID string) ([]models.Turn, error) {
	var turns []models.Turn
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&turns).Error
	return turns, err
}

// CreateAgentRun registra uno scambio agente/modello
func (db *DB) CreateAgentRun(ctx context.Context, run *models.AgentRun) error {
	return db.WithContext(ctx).Create(run).Error
}

// GetAgentRuns restituisce gli scambi di un agente in una sessione
func (db *DB) GetAgentRuns(ctx context.Context, sessionID, agent string) ([]models.AgentRun, error) {
	var runs []models.AgentRun
	q := db.WithContext(ctx).Where("session_id = ?", sessionID)
	if agent != "" {
		q = q.Where("agent = ?", agent)
	}
	err := q.Order("created_at ASC").Find(&runs).Error
	return runs, err
}
