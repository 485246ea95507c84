// Package console stampa discussioni, riepiloghi e personaggi sul terminale.
package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ansiColors mappa i nomi di colore dei file di personaggi ai codici ANSI 0-15
var ansiColors = map[string]string{
	"black":          "0",
	"red":            "1",
	"green":          "2",
	"yellow":         "3",
	"blue":           "4",
	"magenta":        "5",
	"cyan":           "6",
	"white":          "7",
	"bright_black":   "8",
	"grey":           "8",
	"bright_red":     "9",
	"bright_green":   "10",
	"bright_yellow":  "11",
	"bright_blue":    "12",
	"bright_magenta": "13",
	"bright_cyan":    "14",
	"bright_white":   "15",
}

// ParseStyle converte uno stile testuale ("bold bright_green", "italic #ff8800")
// in uno stile lipgloss. Le parole sconosciute vengono ignorate.
func ParseStyle(r *lipgloss.Renderer, spec string) lipgloss.Style {
	style := r.NewStyle()

	for _, token := range strings.Fields(strings.ToLower(spec)) {
		switch {
		case token == "bold":
			style = style.Bold(true)
		case token == "italic":
			style = style.Italic(true)
		case token == "underline":
			style = style.Underline(true)
		case token == "dim":
			style = style.Faint(true)
		case strings.HasPrefix(token, "#"):
			style = style.Foreground(lipgloss.Color(token))
		default:
			if code, ok := ansiColors[token]; ok {
				style = style.Foreground(lipgloss.Color(code))
			}
		}
	}

	return style
}
