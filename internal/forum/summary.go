package forum

import (
	"math"
	"unicode/utf8"
)

const previewRunes = 100

// Preview è l'anteprima di un turno
type Preview struct {
	Round   int    `json:"round"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Summary riassume una discussione conclusa
type Summary struct {
	Participants []string  `json:"participants"`
	Turns        int       `json:"turns"`
	Rounds       int       `json:"rounds"`
	TotalChars   int       `json:"total_chars"`
	TotalElapsed float64   `json:"total_elapsed"`
	Previews     []Preview `json:"previews"`
}

// Summarize calcola le statistiche dei turni: partecipanti in ordine di
// prima apparizione, caratteri totali (rune) e tempo complessivo.
func Summarize(turns []Turn) Summary {
	s := Summary{Turns: len(turns)}
	seen := make(map[string]bool)

	var total float64
	for _, t := range turns {
		if !seen[t.Speaker] {
			seen[t.Speaker] = true
			s.Participants = append(s.Participants, t.Speaker)
		}
		s.Rounds = max(s.Rounds, t.Round)
		s.TotalChars += utf8.RuneCountInString(t.Content)
		total += t.Elapsed
		s.Previews = append(s.Previews, Preview{
			Round:   t.Round,
			Speaker: t.Speaker,
			Text:    truncate(t.Content, previewRunes),
		})
	}
	s.TotalElapsed = math.Round(total*1000) / 1000
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
