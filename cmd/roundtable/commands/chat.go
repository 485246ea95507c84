package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/biodoia/roundtable/internal/app"
	"github.com/biodoia/roundtable/internal/client"
	"github.com/biodoia/roundtable/internal/console"
	"github.com/biodoia/roundtable/internal/forum"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/internal/server"
	"github.com/biodoia/roundtable/internal/tui"
	"github.com/biodoia/roundtable/pkg/models"
	"github.com/spf13/cobra"
)

// ChatCmd rappresenta il comando chat
var ChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run a multi-persona discussion",
	Long: `Run a round-table discussion on a topic.

Each character speaks once per round, in order, responding to what the
others said. Output is streamed to the terminal by default; use --no-stream
for the batch transcript or --tui for a live full-screen view. With --server
the discussion runs on a remote roundtable server.`,
	Example: `  # Two rounds of the default characters
  roundtable chat --topic "AI 会取代程序员吗？" --rounds 2

  # Custom characters, longer answers, batch output
  roundtable chat --topic "远程办公" --characters team.json --duration-seconds 30 --no-stream

  # Continue an existing session
  roundtable chat --topic "远程办公" --session-id multi-chat-remote

  # Run on a remote server
  roundtable chat --topic "AI" --server http://localhost:8000`,
	RunE: runChat,
}

var (
	chatTopic      string
	chatRounds     int
	chatDuration   int
	chatSessionID  string
	chatCharacters string
	chatStream     bool
	chatNoStream   bool
	chatServer     string
	chatTUI        bool
	chatModel      string
	chatStore      string
	chatShuffle    bool
	chatNoColor    bool
)

func init() {
	ChatCmd.Flags().StringVarP(&chatTopic, "topic", "t", "", "Discussion topic (required)")
	ChatCmd.Flags().IntVarP(&chatRounds, "rounds", "r", 0, "Number of rounds, 1-10 (default chat.default_rounds)")
	ChatCmd.Flags().IntVarP(&chatDuration, "duration-seconds", "d", 0, "Target speaking time per round, 1-120 (default chat.default_duration_seconds)")
	ChatCmd.Flags().StringVar(&chatSessionID, "session-id", "", "Session id (derived from the topic if empty)")
	ChatCmd.Flags().StringVar(&chatCharacters, "characters", "", "Characters JSON file (default chat.characters_file)")
	ChatCmd.Flags().BoolVar(&chatStream, "stream", true, "Stream replies as they are generated")
	ChatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "Print the transcript once the discussion ends")
	ChatCmd.Flags().StringVar(&chatServer, "server", "", "Remote roundtable server URL")
	ChatCmd.Flags().BoolVar(&chatTUI, "tui", false, "Live full-screen view")
	ChatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model preset from models.* (default model.*)")
	ChatCmd.Flags().StringVar(&chatStore, "store", "", "Session store override (sql, redis, memory)")
	ChatCmd.Flags().BoolVar(&chatShuffle, "shuffle", false, "Shuffle the speaking order")
	ChatCmd.Flags().BoolVar(&chatNoColor, "no-color", false, "Disable colored output")

	_ = ChatCmd.MarkFlagRequired("topic")
	ChatCmd.MarkFlagsMutuallyExclusive("stream", "no-stream")
	ChatCmd.MarkFlagsMutuallyExclusive("tui", "no-stream")
}

// discussion astrae l'esecuzione locale e quella su server remoto
type discussion interface {
	Run(ctx context.Context) (*forum.Result, error)
	Stream(ctx context.Context, emit func(forum.Event) error) error
}

type localDiscussion struct {
	orchestrator *forum.Orchestrator
	req          forum.Request
}

func (d *localDiscussion) Run(ctx context.Context) (*forum.Result, error) {
	return d.orchestrator.Run(ctx, d.req)
}

func (d *localDiscussion) Stream(ctx context.Context, emit func(forum.Event) error) error {
	_, err := d.orchestrator.Stream(ctx, d.req, emit)
	return err
}

type remoteDiscussion struct {
	client *client.Client
	req    server.ChatRequest
}

func (d *remoteDiscussion) Run(ctx context.Context) (*forum.Result, error) {
	return d.client.Chat(ctx, d.req)
}

func (d *remoteDiscussion) Stream(ctx context.Context, emit func(forum.Event) error) error {
	return d.client.Stream(ctx, d.req, emit)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if chatStore != "" {
		cfg.SessionStore.Type = chatStore
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	rounds := cfg.Chat.DefaultRounds
	if cmd.Flags().Changed("rounds") {
		rounds = chatRounds
	}
	duration := cfg.Chat.DefaultDurationSeconds
	if cmd.Flags().Changed("duration-seconds") {
		duration = chatDuration
	}

	var d discussion
	if chatServer != "" {
		d, err = newRemoteDiscussion(rounds, duration)
	} else {
		var a *app.App
		a, err = newApp(ctx, cfg, app.WithEndpoint(chatModel))
		if err != nil {
			return err
		}
		defer a.Close()
		d, err = newLocalDiscussion(a, rounds, duration)
	}
	if err != nil {
		return err
	}

	renderer := console.NewRenderer(cmd.OutOrStdout())
	if chatNoColor {
		renderer.DisableColor()
	}

	var transcript []forum.Turn
	collect := func(ev forum.Event) {
		if ev.Type == forum.EventMessage {
			transcript = append(transcript, forum.Turn{
				Round:   ev.Round,
				Speaker: ev.Speaker,
				Content: ev.Content,
				Elapsed: ev.Elapsed,
			})
		}
	}

	switch {
	case chatTUI:
		err = tui.Run(ctx, chatTopic, rounds, func(ctx context.Context, emit func(forum.Event) error) error {
			return d.Stream(ctx, func(ev forum.Event) error {
				collect(ev)
				return emit(ev)
			})
		})
	case chatStream && !chatNoStream:
		renderer.Header()
		err = d.Stream(ctx, func(ev forum.Event) error {
			collect(ev)
			return renderer.Event(ev)
		})
	default:
		var result *forum.Result
		result, err = d.Run(ctx)
		if result != nil {
			renderer.Result(result)
			transcript = result.Transcript
		}
	}

	if len(transcript) > 0 {
		renderer.Summary(forum.Summarize(transcript))
	}

	if errors.Is(err, tui.ErrInterrupted) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("discussion interrupted after %d turns", len(transcript))
	}
	return err
}

func newLocalDiscussion(a *app.App, rounds, duration int) (*localDiscussion, error) {
	loaded := a.Personas(chatCharacters)
	personas := loaded.Personas
	if chatShuffle {
		personas = append([]persona.Persona(nil), personas...)
		rand.Shuffle(len(personas), func(i, j int) {
			personas[i], personas[j] = personas[j], personas[i]
		})
	}

	orchestrator, err := a.Orchestrator()
	if err != nil {
		return nil, err
	}

	return &localDiscussion{
		orchestrator: orchestrator,
		req: forum.Request{
			Topic:           strings.TrimSpace(chatTopic),
			Rounds:          rounds,
			DurationSeconds: duration,
			Personas:        personas,
			SessionID:       chatSessionID,
			Mode:            models.SessionModeCLI,
		},
	}, nil
}

// newRemoteDiscussion invia i personaggi solo se --characters è indicato:
// altrimenti il server usa il proprio file
func newRemoteDiscussion(rounds, duration int) (*remoteDiscussion, error) {
	req := server.ChatRequest{
		Topic:           strings.TrimSpace(chatTopic),
		Rounds:          &rounds,
		DurationSeconds: &duration,
		SessionID:       chatSessionID,
	}

	if chatCharacters != "" {
		loaded := persona.Load(chatCharacters)
		if loaded.Source != persona.SourceFile {
			return nil, fmt.Errorf("cannot use characters file %s: %w", chatCharacters, loaded.FallbackReason)
		}
		req.Characters = characterMaps(loaded.Personas)
	}

	return &remoteDiscussion{client: client.New(chatServer), req: req}, nil
}

func characterMaps(personas []persona.Persona) []map[string]any {
	out := make([]map[string]any, len(personas))
	for i, p := range personas {
		m := make(map[string]any)
		for k, v := range p.ToMap() {
			m[k] = v
		}
		out[i] = m
	}
	return out
}
