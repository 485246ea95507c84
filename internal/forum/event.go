package forum

import "encoding/json"

// EventType identifica gli eventi emessi in streaming
type EventType string

const (
	EventChunk   EventType = "chunk"
	EventMessage EventType = "message"
	EventSummary EventType = "summary"
)

// Event è un evento della discussione in streaming.
// I campi valorizzati dipendono dal tipo.
type Event struct {
	Type      EventType
	Round     int
	Speaker   string
	Delta     string
	Content   string
	Elapsed   float64
	SessionID string

	// solo summary
	Topic        string
	Participants string
	Rounds       int
}

type chunkWire struct {
	Type      EventType `json:"type"`
	Round     int       `json:"round"`
	Speaker   string    `json:"speaker"`
	Delta     string    `json:"delta"`
	Elapsed   float64   `json:"elapsed"`
	SessionID string    `json:"session_id"`
}

type messageWire struct {
	Type      EventType `json:"type"`
	Round     int       `json:"round"`
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Elapsed   float64   `json:"elapsed"`
	SessionID string    `json:"session_id"`
}

type summaryWire struct {
	Type         EventType `json:"type"`
	Topic        string    `json:"topic"`
	Participants string    `json:"participants"`
	Rounds       int       `json:"rounds"`
	SessionID    string    `json:"session_id"`
}

type eventWire struct {
	Type         EventType `json:"type"`
	Round        int       `json:"round"`
	Speaker      string    `json:"speaker"`
	Delta        string    `json:"delta"`
	Content      string    `json:"content"`
	Elapsed      float64   `json:"elapsed"`
	SessionID    string    `json:"session_id"`
	Topic        string    `json:"topic"`
	Participants string    `json:"participants"`
	Rounds       int       `json:"rounds"`
}

// MarshalJSON serializza solo i campi del tipo di evento
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventChunk:
		return json.Marshal(chunkWire{e.Type, e.Round, e.Speaker, e.Delta, e.Elapsed, e.SessionID})
	case EventMessage:
		return json.Marshal(messageWire{e.Type, e.Round, e.Speaker, e.Content, e.Elapsed, e.SessionID})
	case EventSummary:
		return json.Marshal(summaryWire{e.Type, e.Topic, e.Participants, e.Rounds, e.SessionID})
	default:
		return json.Marshal(eventWire(e))
	}
}

// UnmarshalJSON accetta qualunque tipo di evento
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event(w)
	return nil
}
