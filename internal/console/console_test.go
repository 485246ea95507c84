package console

import (
	"bytes"
	"errors"
	"testing"

	"github.com/biodoia/roundtable/internal/forum"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func plain() (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	r.DisableColor()
	return r, &buf
}

func TestSplitSpeaker(t *testing.T) {
	label, style := SplitSpeaker("🌟 [bold bright_green] Alice - 乐观主义者")
	assert.Equal(t, "🌟 Alice - 乐观主义者", label)
	assert.Equal(t, "bold bright_green", style)

	label, style = SplitSpeaker("Bob - 现实主义者")
	assert.Equal(t, "Bob - 现实主义者", label)
	assert.Empty(t, style)
}

func TestParseStyle(t *testing.T) {
	lg := lipgloss.NewRenderer(&bytes.Buffer{})
	lg.SetColorProfile(termenv.ANSI)

	style := ParseStyle(lg, "bold bright_green unknown")
	assert.True(t, style.GetBold())
	assert.Equal(t, lipgloss.Color("10"), style.GetForeground())

	style = ParseStyle(lg, "italic #ff8800")
	assert.True(t, style.GetItalic())
	assert.Equal(t, lipgloss.Color("#ff8800"), style.GetForeground())
}

func TestRenderer_StreamEvents(t *testing.T) {
	r, buf := plain()
	a := "🌟 [bold green] A - 甲"
	b := "📊 [bold blue] B - 乙"

	events := []forum.Event{
		{Type: forum.EventChunk, Round: 1, Speaker: a, Delta: "你好"},
		{Type: forum.EventChunk, Round: 1, Speaker: a, Delta: "世界"},
		{Type: forum.EventMessage, Round: 1, Speaker: a, Content: "你好世界", Elapsed: 1.5},
		{Type: forum.EventMessage, Round: 1, Speaker: b, Content: "直接结论", Elapsed: 2},
		{Type: forum.EventChunk, Round: 2, Speaker: b, Delta: "再来"},
		{Type: forum.EventMessage, Round: 2, Speaker: b, Elapsed: 0.25},
		{Type: forum.EventSummary, Topic: "测试", Participants: a + "、" + b, Rounds: 2, SessionID: "s1"},
	}
	for _, ev := range events {
		assert.NoError(t, r.Event(ev))
	}

	expected := "\n--- 第 1 轮 ---\n" +
		"[🌟 A - 甲] 你好世界\n" +
		"✔️  🌟 A - 甲 发言完成（耗时 1.5s）\n" +
		"[📊 B - 乙] 直接结论\n" +
		"✔️  📊 B - 乙 发言完成（耗时 2s）\n" +
		"\n--- 第 2 轮 ---\n" +
		"[📊 B - 乙] 再来\n" +
		"✔️  📊 B - 乙 发言完成（耗时 0.25s）\n" +
		"\n===== 讨论总结 =====\n" +
		"Topic     : 测试\n" +
		"Participants: " + a + "、" + b + "\n" +
		"Rounds    : 2\n" +
		"Session ID: s1\n"
	assert.Equal(t, expected, buf.String())
}

func TestRenderer_Result(t *testing.T) {
	r, buf := plain()

	r.Result(&forum.Result{
		Topic:     "测试",
		Rounds:    1,
		SessionID: "s1",
		Transcript: []forum.Turn{
			{Round: 1, Speaker: "A - 甲", Content: "观点", Elapsed: 3.2},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Session ID: s1\n")
	assert.Contains(t, out, "[Round 1] A - 甲 (3.2s):\n观点\n")
}

func TestRenderer_Summary(t *testing.T) {
	r, buf := plain()

	r.Summary(forum.Summarize([]forum.Turn{
		{Round: 1, Speaker: "A", Content: "一二三", Elapsed: 1},
		{Round: 1, Speaker: "B", Content: "四五", Elapsed: 2},
	}))

	out := buf.String()
	assert.Contains(t, out, "参与人数: 2\n")
	assert.Contains(t, out, "总字数  : 5\n")
	assert.Contains(t, out, "总耗时  : 3s\n")
	assert.Contains(t, out, "  [1] B: 四五\n")
}

func TestRenderer_Personas(t *testing.T) {
	r, buf := plain()

	r.Personas(persona.LoadResult{
		Personas:       persona.Defaults()[:1],
		Source:         persona.SourceDefaults,
		FallbackReason: errors.New("characters file not found"),
		Warnings:       []string{"character #2 skipped: missing name or title"},
	})

	out := buf.String()
	assert.Contains(t, out, "🎭 1 位角色 · 来源: defaults")
	assert.Contains(t, out, "⚠ character #2 skipped")
	assert.Contains(t, out, "⚠ 使用默认角色: characters file not found")
	assert.Contains(t, out, "1. 🌟 Alice - 乐观主义者")
	assert.Contains(t, out, "口头禅: 每个挑战都是成长的机会！")
}
