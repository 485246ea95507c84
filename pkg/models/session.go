package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionMode indica da quale superficie è stata aperta la sessione
type SessionMode string

const (
	SessionModeCLI SessionMode = "cli"
	SessionModeAPI SessionMode = "api"
)

// Session rappresenta una discussione persistita, identificata dal session id
type Session struct {
	ID     string      `json:"id" gorm:"primaryKey;size:191"`
	Topic  string      `json:"topic" gorm:"not null"`
	UserID string      `json:"user_id" gorm:"index"`
	Mode   SessionMode `json:"mode" gorm:"size:16"`

	// Snapshot dei partecipanti dell'ultima esecuzione
	Participants datatypes.JSON `json:"participants"`
	// Example: ["🌟 [bold bright_green] Alice - 乐观主义者", ...]

	Runs      int `json:"runs" gorm:"default:0"`
	TurnCount int `json:"turn_count" gorm:"default:0"`

	Turns []Turn `json:"turns,omitempty" gorm:"foreignKey:SessionID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifica il nome della tabella
func (Session) TableName() string {
	return "sessions"
}

// Turn rappresenta un intervento registrato in una sessione
type Turn struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	SessionID string    `json:"session_id" gorm:"size:191;not null;index;uniqueIndex:idx_turn_seq"`
	Seq       int       `json:"seq" gorm:"not null;uniqueIndex:idx_turn_seq"`

	// Posizione nella singola esecuzione del forum
	RunID    uuid.UUID `json:"run_id" gorm:"type:uuid;not null;uniqueIndex:idx_turn_slot"`
	Round    int       `json:"round" gorm:"not null;uniqueIndex:idx_turn_slot"`
	Position int       `json:"position" gorm:"not null;uniqueIndex:idx_turn_slot"`

	Speaker   string `json:"speaker" gorm:"not null"`
	Persona   string `json:"persona"`
	Content   string `json:"content" gorm:"type:text"`
	ElapsedMs int64  `json:"elapsed_ms"`

	// {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
	Usage datatypes.JSON `json:"usage"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook
func (t *Turn) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Elapsed restituisce la durata del turno
func (t *Turn) Elapsed() time.Duration {
	return time.Duration(t.ElapsedMs) * time.Millisecond
}

// TableName specifica il nome della tabella
func (Turn) TableName() string {
	return "turns"
}

// AgentRun registra un singolo scambio prompt/risposta di un agente.
// È la memoria per-agente condivisa tra le esecuzioni della stessa sessione.
type AgentRun struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	SessionID string    `json:"session_id" gorm:"size:191;not null;index"`
	UserID    string    `json:"user_id" gorm:"index"`
	Agent     string    `json:"agent" gorm:"not null;index"`
	Model     string    `json:"model"`

	Prompt   string `json:"prompt" gorm:"type:text"`
	Response string `json:"response" gorm:"type:text"`
	Streamed bool   `json:"streamed"`

	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	LatencyMs        int64 `json:"latency_ms"`

	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook
func (r *AgentRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Failed indica se la chiamata al modello è fallita
func (r *AgentRun) Failed() bool {
	return r.Error != ""
}

// TableName specifica il nome della tabella
func (AgentRun) TableName() string {
	return "agent_runs"
}
