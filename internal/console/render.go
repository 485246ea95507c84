package console

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/biodoia/roundtable/internal/forum"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var styleTag = regexp.MustCompile(`^(.*?)\[([^\]]+)\]\s*(.*)$`)

// SplitSpeaker separa il tag di stile dal nome visualizzato:
// "🌟 [bold green] Alice - X" -> ("🌟 Alice - X", "bold green")
func SplitSpeaker(speaker string) (label, style string) {
	m := styleTag.FindStringSubmatch(speaker)
	if m == nil {
		return speaker, ""
	}
	label = strings.TrimSpace(strings.TrimSpace(m[1]) + " " + strings.TrimSpace(m[3]))
	return label, m[2]
}

// Renderer stampa l'andamento di una discussione.
// Non è sicuro per l'uso concorrente: gli eventi arrivano in ordine da un solo produttore.
type Renderer struct {
	out      io.Writer
	lg       *lipgloss.Renderer
	title    lipgloss.Style
	dim      lipgloss.Style
	done     lipgloss.Style
	warn     lipgloss.Style
	round    int
	active   string
	buffers  map[string]*strings.Builder
	rendered map[string]string
}

// NewRenderer crea un renderer; i colori dipendono dalle capacità di w
func NewRenderer(w io.Writer) *Renderer {
	lg := lipgloss.NewRenderer(w)
	return &Renderer{
		out:      w,
		lg:       lg,
		title:    lg.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		dim:      lg.NewStyle().Faint(true),
		done:     lg.NewStyle().Foreground(lipgloss.Color("10")),
		warn:     lg.NewStyle().Foreground(lipgloss.Color("11")),
		buffers:  make(map[string]*strings.Builder),
		rendered: make(map[string]string),
	}
}

// DisableColor forza l'output senza sequenze ANSI
func (r *Renderer) DisableColor() {
	r.lg.SetColorProfile(termenv.Ascii)
	r.rendered = make(map[string]string)
}

// Speaker restituisce il nome visualizzato con lo stile del personaggio
func (r *Renderer) Speaker(speaker string) string {
	if s, ok := r.rendered[speaker]; ok {
		return s
	}
	label, style := SplitSpeaker(speaker)
	s := ParseStyle(r.lg, style).Render(label)
	r.rendered[speaker] = s
	return s
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Header stampa l'intestazione di una discussione in streaming
func (r *Renderer) Header() {
	r.printf("%s\n", r.title.Render("===== 开始流式讨论 ====="))
}

// Event stampa un evento in streaming: i chunk in linea dietro al nome,
// una riga di conferma per ogni message e il blocco finale per summary.
func (r *Renderer) Event(ev forum.Event) error {
	switch ev.Type {
	case forum.EventChunk:
		if ev.Round != r.round {
			r.round = ev.Round
			r.printf("\n%s\n", r.title.Render(fmt.Sprintf("--- 第 %d 轮 ---", ev.Round)))
			r.active = ""
		}
		if ev.Delta == "" {
			return nil
		}
		r.buffer(ev.Speaker).WriteString(ev.Delta)
		if r.active != ev.Speaker {
			if r.active != "" {
				r.printf("\n")
			}
			r.printf("[%s] ", r.Speaker(ev.Speaker))
			r.active = ev.Speaker
		}
		r.printf("%s", ev.Delta)

	case forum.EventMessage:
		content := ev.Content
		if content == "" {
			content = r.buffer(ev.Speaker).String()
		}
		delete(r.buffers, ev.Speaker)

		if r.active == ev.Speaker {
			r.printf("\n")
		}
		if strings.TrimSpace(content) != "" && r.active != ev.Speaker {
			r.printf("[%s] %s\n", r.Speaker(ev.Speaker), strings.TrimSpace(content))
		}
		r.printf("%s\n", r.done.Render(fmt.Sprintf("✔️  %s 发言完成（耗时 %ss）", stripTag(ev.Speaker), formatSeconds(ev.Elapsed))))
		r.active = ""

	case forum.EventSummary:
		r.printf("\n%s\n", r.title.Render("===== 讨论总结 ====="))
		r.printf("Topic     : %s\n", ev.Topic)
		r.printf("Participants: %s\n", ev.Participants)
		r.printf("Rounds    : %d\n", ev.Rounds)
		r.printf("Session ID: %s\n", ev.SessionID)

	default:
		r.printf("\n%s %+v\n", r.warn.Render("[未知事件]"), ev)
	}
	return nil
}

func (r *Renderer) buffer(speaker string) *strings.Builder {
	b, ok := r.buffers[speaker]
	if !ok {
		b = &strings.Builder{}
		r.buffers[speaker] = b
	}
	return b
}

// Result stampa un transcript non in streaming
func (r *Renderer) Result(res *forum.Result) {
	r.printf("%s\n", r.title.Render("===== 非流式讨论结果 ====="))
	r.printf("Session ID: %s\n", res.SessionID)
	r.printf("Topic     : %s\n", res.Topic)
	r.printf("Rounds    : %d\n", res.Rounds)
	r.printf("\n")

	for _, t := range res.Transcript {
		r.printf("[Round %d] %s (%ss):\n", t.Round, r.Speaker(t.Speaker), formatSeconds(t.Elapsed))
		r.printf("%s\n", t.Content)
		r.printf("%s\n", r.dim.Render(strings.Repeat("-", 60)))
	}
}

// Summary stampa le statistiche finali di una discussione
func (r *Renderer) Summary(s forum.Summary) {
	r.printf("\n%s\n", r.title.Render("📊 讨论统计"))
	r.printf("参与人数: %d\n", len(s.Participants))
	r.printf("发言次数: %d\n", s.Turns)
	r.printf("讨论轮次: %d\n", s.Rounds)
	r.printf("总字数  : %d\n", s.TotalChars)
	r.printf("总耗时  : %ss\n", formatSeconds(s.TotalElapsed))

	if len(s.Previews) == 0 {
		return
	}
	r.printf("\n%s\n", r.title.Render("📝 发言摘要"))
	for _, p := range s.Previews {
		r.printf("  [%d] %s: %s\n", p.Round, r.Speaker(p.Speaker), strings.ReplaceAll(p.Text, "\n", " "))
	}
}

// Personas stampa i personaggi risolti e gli eventuali avvisi di caricamento
func (r *Renderer) Personas(result persona.LoadResult) {
	source := string(result.Source)
	if result.Path != "" && result.Source == persona.SourceFile {
		source += " (" + result.Path + ")"
	}
	r.printf("%s\n", r.title.Render(fmt.Sprintf("🎭 %d 位角色 · 来源: %s", len(result.Personas), source)))

	for _, w := range result.Warnings {
		r.printf("%s\n", r.warn.Render("⚠ "+w))
	}
	if result.FallbackReason != nil {
		r.printf("%s\n", r.warn.Render("⚠ 使用默认角色: "+result.FallbackReason.Error()))
	}

	for i, p := range result.Personas {
		r.printf("\n%d. %s\n", i+1, r.Speaker(p.DisplayName()))
		for _, line := range []struct{ label, value string }{
			{"身份设定", p.Identity},
			{"性格特点", p.Personality},
			{"说话风格", p.SpeakingStyle},
			{"专业领域", p.Expertise},
			{"口头禅", p.Catchphrase},
		} {
			r.printf("   %s %s\n", r.dim.Render(line.label+":"), line.value)
		}
		for _, k := range p.ExtraKeys() {
			r.printf("   %s %s\n", r.dim.Render(k+":"), p.Extra[k])
		}
	}
}

func stripTag(speaker string) string {
	label, _ := SplitSpeaker(speaker)
	return label
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
