package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/biodoia/roundtable/internal/forum"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(m *Model, msgs ...tea.Msg) {
	for _, msg := range msgs {
		m.Update(msg)
	}
}

func TestModel_AccumulatesTurns(t *testing.T) {
	m := NewModel("AI", 2, nil)
	send(m,
		tea.WindowSizeMsg{Width: 100, Height: 40},
		EventMsg{Type: forum.EventChunk, Round: 1, Speaker: "🌟 [bold green] A - 甲", Delta: "你好", SessionID: "s1"},
		EventMsg{Type: forum.EventChunk, Round: 1, Speaker: "🌟 [bold green] A - 甲", Delta: "世界"},
		EventMsg{Type: forum.EventMessage, Round: 1, Speaker: "🌟 [bold green] A - 甲", Content: "你好世界", Elapsed: 1.2},
		EventMsg{Type: forum.EventMessage, Round: 1, Speaker: "B - 乙", Content: "同意", Elapsed: 0.4},
		EventMsg{Type: forum.EventChunk, Round: 2, Speaker: "🌟 [bold green] A - 甲", Delta: "第二轮"},
	)

	require.Len(t, m.turns, 3)
	assert.Equal(t, "你好世界", m.turns[0].text.String())
	assert.True(t, m.turns[0].done)
	assert.Equal(t, "同意", m.turns[1].text.String())
	assert.False(t, m.turns[2].done)
	assert.Equal(t, 2, m.round)
	assert.Equal(t, "s1", m.sessionID)

	view := m.View()
	assert.Contains(t, view, "AI")
	assert.Contains(t, view, "--- 第 2 轮 ---")
	assert.Contains(t, view, "A - 甲")
	assert.Contains(t, view, "第二轮")
	assert.NotContains(t, view, "[bold green]")
}

func TestModel_Done(t *testing.T) {
	m := NewModel("AI", 1, nil)
	send(m,
		EventMsg{Type: forum.EventMessage, Round: 1, Speaker: "A", Content: "x", SessionID: "s9"},
		EventMsg{Type: forum.EventSummary, Topic: "AI", Rounds: 1, SessionID: "s9"},
		DoneMsg{},
	)

	assert.True(t, m.Finished())
	assert.NoError(t, m.Err())
	assert.Contains(t, m.View(), "Sessione s9")

	_, cmd := m.Update(TickMsg{})
	assert.Nil(t, cmd)
}

func TestModel_Error(t *testing.T) {
	m := NewModel("AI", 1, nil)
	send(m, DoneMsg{Err: errors.New("upstream down")})

	assert.EqualError(t, m.Err(), "upstream down")
	assert.Contains(t, m.View(), "upstream down")
}

func TestModel_QuitCancelsRunningDiscussion(t *testing.T) {
	cancelled := false
	m := NewModel("AI", 1, func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, cancelled)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_ViewKeepsMostRecentLines(t *testing.T) {
	m := NewModel("AI", 10, nil)
	send(m, tea.WindowSizeMsg{Width: 60, Height: 8})
	for r := 1; r <= 10; r++ {
		send(m, EventMsg{Type: forum.EventMessage, Round: r, Speaker: "A", Content: "round text"})
	}

	view := m.View()
	assert.Contains(t, view, "--- 第 10 轮 ---")
	assert.NotContains(t, view, "--- 第 1 轮 ---")
	assert.LessOrEqual(t, len(strings.Split(view, "\n")), 8)
}
