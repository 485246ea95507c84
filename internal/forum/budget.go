package forum

import "fmt"

const (
	baselineSeconds = 10
	baseTotalMin    = 600
	baseTotalMax    = 900

	minPerPersona = 80
	minSpread     = 40
)

// LengthBudget è l'obiettivo di lunghezza in caratteri di una discussione
type LengthBudget struct {
	TotalMin int `json:"total_min"`
	TotalMax int `json:"total_max"`
	PerMin   int `json:"per_min"`
	PerMax   int `json:"per_max"`
}

// Budget scala linearmente la lunghezza attesa rispetto alla base di 10 secondi
// (600-900 caratteri in totale). La durata minima considerata è 1 secondo.
func Budget(durationSeconds, personas int) LengthBudget {
	duration := max(durationSeconds, 1)
	factor := float64(duration) / baselineSeconds
	count := max(personas, 1)

	b := LengthBudget{
		TotalMin: int(baseTotalMin * factor),
		TotalMax: int(baseTotalMax * factor),
	}
	b.PerMin = max(minPerPersona, b.TotalMin/count)
	b.PerMax = max(b.PerMin+minSpread, b.TotalMax/count)
	return b
}

// Guidance restituisce l'istruzione di lunghezza inclusa nel prompt
func (b LengthBudget) Guidance() string {
	return fmt.Sprintf(
		"整体目标长度约为%d-%d字，每位成员控制在%d-%d字之间，请自然断句并保留对话的节奏感。",
		b.TotalMin, b.TotalMax, b.PerMin, b.PerMax,
	)
}
