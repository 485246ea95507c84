package forum

import (
	"encoding/json"
	"math"
	"time"

	"github.com/biodoia/roundtable/internal/providers"
	"github.com/biodoia/roundtable/pkg/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Turn è un intervento registrato; immutabile una volta aggiunto al Transcript
type Turn struct {
	Round    int     `json:"round"`
	Position int     `json:"-"`
	Speaker  string  `json:"speaker"`
	Content  string  `json:"content"`
	Elapsed  float64 `json:"elapsed"`

	// Persona è il nome breve, Speaker il nome visualizzato
	Persona string          `json:"-"`
	Usage   providers.Usage `json:"-"`
}

// Summary restituisce la riga "{speaker}: {content}" usata nei prompt successivi
func (t Turn) Summary() string {
	return t.Speaker + ": " + t.Content
}

// Transcript è la sequenza ordinata dei turni di un'esecuzione
type Transcript struct {
	turns   []Turn
	history []string
}

// Append aggiunge un turno in coda
func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
	t.history = append(t.history, turn.Summary())
}

// Turns restituisce una copia dei turni registrati
func (t *Transcript) Turns() []Turn {
	return append([]Turn(nil), t.turns...)
}

// Len restituisce il numero di turni
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Recent restituisce le ultime n righe di storico
func (t *Transcript) Recent(n int) []string {
	return RecentWindow(t.history, n)
}

// seconds arrotonda la durata al millisecondo
func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// ToModel converte un turno nel record persistito
func ToModel(sessionID string, runID uuid.UUID, t Turn) *models.Turn {
	usage, _ := json.Marshal(t.Usage)
	return &models.Turn{
		SessionID: sessionID,
		RunID:     runID,
		Round:     t.Round,
		Position:  t.Position,
		Speaker:   t.Speaker,
		Persona:   t.Persona,
		Content:   t.Content,
		ElapsedMs: int64(math.Round(t.Elapsed * 1000)),
		Usage:     datatypes.JSON(usage),
	}
}

// FromModel ricostruisce un turno da un record persistito
func FromModel(m models.Turn) Turn {
	t := Turn{
		Round:    m.Round,
		Position: m.Position,
		Speaker:  m.Speaker,
		Persona:  m.Persona,
		Content:  m.Content,
		Elapsed:  seconds(m.Elapsed()),
	}
	if len(m.Usage) > 0 {
		_ = json.Unmarshal(m.Usage, &t.Usage)
	}
	return t
}
