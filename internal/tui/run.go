package tui

import (
	"context"
	"errors"

	"github.com/biodoia/roundtable/internal/forum"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrInterrupted indica che l'utente ha chiuso la vista prima della fine
var ErrInterrupted = errors.New("discussion interrupted")

// RunFunc esegue una discussione inviando gli eventi a emit
type RunFunc func(ctx context.Context, emit func(forum.Event) error) error

// Run mostra la discussione eseguita da run finché l'utente non esce
func Run(ctx context.Context, topic string, rounds int, run RunFunc, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(topic, rounds, cancel)
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)...)

	go func() {
		err := run(ctx, func(ev forum.Event) error {
			p.Send(EventMsg(ev))
			return ctx.Err()
		})
		p.Send(DoneMsg{Err: err})
	}()

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	fm, ok := final.(*Model)
	if !ok || !fm.Finished() {
		return ErrInterrupted
	}
	return fm.Err()
}
