// Package stream raccoglie le risposte del modello, sia finali che incrementali.
package stream

import (
	"fmt"
	"strings"
)

// Fragment è un qualunque portatore di testo estraibile
type Fragment interface {
	Text() string
}

// ContentCarrier espone un campo content (es. una risposta completa)
type ContentCarrier interface {
	GetContent() string
}

// DeltaCarrier espone un campo delta (es. un chunk di streaming)
type DeltaCarrier interface {
	GetDelta() string
}

// String adatta una stringa
type String string

func (s String) Text() string { return string(s) }

// Bytes adatta un buffer di byte; le sequenze UTF-8 non valide vengono scartate
type Bytes []byte

func (b Bytes) Text() string { return strings.ToValidUTF8(string(b), "") }

// Attribute adatta un oggetto con content e/o delta; content ha la precedenza
type Attribute struct {
	V any
}

func (a Attribute) Text() string {
	if c, ok := a.V.(ContentCarrier); ok {
		if s := c.GetContent(); s != "" {
			return s
		}
	}
	if d, ok := a.V.(DeltaCarrier); ok {
		if s := d.GetDelta(); s != "" {
			return s
		}
	}
	return ""
}

// Mapping adatta una mappa; le chiavi sono provate nell'ordine content, delta, text
type Mapping map[string]any

var mappingKeys = [...]string{"content", "delta", "text"}

func (m Mapping) Text() string {
	for _, key := range mappingKeys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case []byte:
			if s := Bytes(v).Text(); s != "" {
				return s
			}
		case nil:
		default:
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// empty è l'adapter per forme non riconosciute
type empty struct{}

func (empty) Text() string { return "" }

// Adapt seleziona l'adapter in base al tipo del frammento.
// Ordine: stringa, byte, Fragment, content/delta, mappa.
func Adapt(v any) Fragment {
	switch f := v.(type) {
	case string:
		return String(f)
	case []byte:
		return Bytes(f)
	case Fragment:
		return f
	case ContentCarrier, DeltaCarrier:
		return Attribute{V: f}
	case map[string]any:
		return Mapping(f)
	case map[string]string:
		m := make(Mapping, len(f))
		for k, s := range f {
			m[k] = s
		}
		return m
	default:
		return empty{}
	}
}

// Extract restituisce il testo di un frammento, "" se la forma non è riconosciuta
func Extract(v any) string {
	return Adapt(v).Text()
}
