// Package tui mostra una discussione in corso con bubbletea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/biodoia/roundtable/internal/console"
	"github.com/biodoia/roundtable/internal/forum"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// EventMsg trasporta un evento della discussione nel programma
type EventMsg forum.Event

// DoneMsg segnala la fine della discussione
type DoneMsg struct {
	Err error
}

// TickMsg anima l'indicatore di attesa
type TickMsg time.Time

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type turnView struct {
	round   int
	speaker string
	text    strings.Builder
	elapsed float64
	done    bool
}

// Model è lo stato della vista live
type Model struct {
	topic     string
	sessionID string
	turns     []*turnView
	round     int
	rounds    int
	frame     int
	finished  bool
	err       error
	width     int
	height    int
	cancel    func()

	speakers map[string]lipgloss.Style

	headerStyle lipgloss.Style
	roundStyle  lipgloss.Style
	footerStyle lipgloss.Style
	errorStyle  lipgloss.Style
	doneStyle   lipgloss.Style
}

// NewModel crea il modello; cancel viene invocata quando l'utente esce prima della fine
func NewModel(topic string, rounds int, cancel func()) *Model {
	if cancel == nil {
		cancel = func() {}
	}
	return &Model{
		topic:    topic,
		rounds:   rounds,
		cancel:   cancel,
		width:    80,
		height:   24,
		speakers: make(map[string]lipgloss.Style),
		headerStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("#1A1A2E")).
			Foreground(lipgloss.Color("#FF10F0")).
			Bold(true).
			Padding(0, 2),
		roundStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF")).
			Bold(true),
		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#808080")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true),
		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B")),
	}
}

// Init avvia l'animazione
func (m *Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update gestisce eventi, tasti e ridimensionamenti
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.finished {
				m.cancel()
			}
			return m, tea.Quit
		}

	case TickMsg:
		if m.finished {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, m.tickCmd()

	case EventMsg:
		m.apply(forum.Event(msg))

	case DoneMsg:
		m.finished = true
		m.err = msg.Err
	}

	return m, nil
}

func (m *Model) apply(ev forum.Event) {
	if ev.SessionID != "" {
		m.sessionID = ev.SessionID
	}

	switch ev.Type {
	case forum.EventChunk:
		m.round = ev.Round
		t := m.current(ev.Round, ev.Speaker)
		t.text.WriteString(ev.Delta)
		t.elapsed = ev.Elapsed

	case forum.EventMessage:
		m.round = ev.Round
		t := m.current(ev.Round, ev.Speaker)
		if t.text.Len() == 0 {
			t.text.WriteString(ev.Content)
		}
		t.elapsed = ev.Elapsed
		t.done = true

	case forum.EventSummary:
		if ev.Topic != "" {
			m.topic = ev.Topic
		}
		m.rounds = ev.Rounds
	}
}

// current restituisce il turno aperto dello speaker o ne apre uno nuovo
func (m *Model) current(round int, speaker string) *turnView {
	if n := len(m.turns); n > 0 {
		last := m.turns[n-1]
		if !last.done && last.round == round && last.speaker == speaker {
			return last
		}
	}
	t := &turnView{round: round, speaker: speaker}
	m.turns = append(m.turns, t)
	return t
}

func (m *Model) speaker(s string) string {
	label, spec := console.SplitSpeaker(s)
	style, ok := m.speakers[s]
	if !ok {
		style = console.ParseStyle(lipgloss.DefaultRenderer(), spec)
		m.speakers[s] = style
	}
	return style.Render(label)
}

// View renderizza header, transcript e footer; il transcript mostra le righe più recenti
func (m *Model) View() string {
	header := m.headerStyle.Width(m.width).Render(fmt.Sprintf("🎙  %s", m.topic))

	var lines []string
	round := 0
	for _, t := range m.turns {
		if t.round != round {
			round = t.round
			lines = append(lines, "", m.roundStyle.Render(fmt.Sprintf("--- 第 %d 轮 ---", round)))
		}
		text := strings.TrimSpace(t.text.String())
		status := spinnerFrames[m.frame]
		if t.done {
			status = m.doneStyle.Render(fmt.Sprintf("✔ %.1fs", t.elapsed))
		}
		lines = append(lines, fmt.Sprintf("%s %s", m.speaker(t.speaker), status))
		body := lipgloss.NewStyle().Width(max(m.width-2, 10)).PaddingLeft(2).Render(text)
		lines = append(lines, strings.Split(body, "\n")...)
	}

	available := max(m.height-3, 1)
	if len(lines) > available {
		lines = lines[len(lines)-available:]
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		strings.Join(lines, "\n"),
		m.footer(),
	)
}

func (m *Model) footer() string {
	switch {
	case m.err != nil:
		return m.errorStyle.Render("✗ " + m.err.Error() + "  [q] esci")
	case m.finished:
		return m.footerStyle.Render(fmt.Sprintf("Sessione %s · %d interventi · [q] esci", m.sessionID, len(m.turns)))
	default:
		return m.footerStyle.Render(fmt.Sprintf("%s round %d/%d · [q] interrompi", spinnerFrames[m.frame], m.round, m.rounds))
	}
}

// Err restituisce l'errore con cui si è chiusa la discussione
func (m *Model) Err() error {
	return m.err
}

// Finished indica se la discussione è terminata
func (m *Model) Finished() bool {
	return m.finished
}
