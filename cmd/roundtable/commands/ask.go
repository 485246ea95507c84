package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/biodoia/roundtable/internal/agent"
	"github.com/biodoia/roundtable/internal/app"
	"github.com/biodoia/roundtable/internal/langfuse"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/internal/providers"
	"github.com/biodoia/roundtable/internal/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultSystemPrompt = "你是一个乐于助人的助手。"

// AskCmd rappresenta il comando ask
var AskCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send a single prompt to the model",
	Long: `Send a single prompt to the configured model and print the reply.

Useful to check an endpoint or a Langfuse prompt before running a full
discussion. With --as the reply comes from one of the characters.`,
	Example: `  # Quick test of the default endpoint
  roundtable ask "你好，介绍一下你自己"

  # Use a model preset and stream the answer
  roundtable ask --model q72b --stream "解释一下量子纠缠"

  # System prompt managed in Langfuse
  roundtable ask --prompt-name forum-moderator "总结一下今天的讨论"

  # Speak as a character
  roundtable ask --as Charlie "远程办公真的更高效吗？"`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

var (
	askPrompt      string
	askModel       string
	askStream      bool
	askSystem      string
	askPromptName  string
	askPromptLabel string
	askSessionID   string
	askAs          string
)

func init() {
	AskCmd.Flags().StringVarP(&askPrompt, "prompt", "p", "", "Prompt (alternative to positional arguments)")
	AskCmd.Flags().StringVarP(&askModel, "model", "m", "", "Model preset from models.* (default model.*)")
	AskCmd.Flags().BoolVar(&askStream, "stream", false, "Stream the reply")
	AskCmd.Flags().StringVar(&askSystem, "system", "", "System prompt")
	AskCmd.Flags().StringVar(&askPromptName, "prompt-name", "", "Fetch the system prompt from Langfuse by name")
	AskCmd.Flags().StringVar(&askPromptLabel, "prompt-label", "production", "Langfuse prompt label")
	AskCmd.Flags().StringVar(&askSessionID, "session-id", "", "Session id (random if empty)")
	AskCmd.Flags().StringVar(&askAs, "as", "", "Answer as the named character")

	AskCmd.MarkFlagsMutuallyExclusive("system", "prompt-name")
}

func runAsk(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(askPrompt)
	if prompt == "" {
		prompt = strings.TrimSpace(strings.Join(args, " "))
	}
	if prompt == "" {
		return fmt.Errorf("a prompt is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, cfg, app.WithEndpoint(askModel))
	if err != nil {
		return err
	}
	defer a.Close()

	speaker, err := askPersona(a)
	if err != nil {
		return err
	}

	system, err := askSystemPrompt(ctx, a, speaker)
	if err != nil {
		return err
	}

	ag, err := a.NewAgent(speaker, agent.WithSystemPrompt(system))
	if err != nil {
		return err
	}

	sessionID := askSessionID
	if sessionID == "" {
		sessionID = "ask-" + uuid.NewString()
	}

	start := time.Now()
	resp, err := ag.Run(ctx, prompt, agent.RunOptions{
		SessionID: sessionID,
		UserID:    cfg.Chat.UserID,
		Stream:    askStream,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result, err := stream.Collect(ctx, resp, func(fragment string) error {
		_, err := io.WriteString(out, fragment)
		return err
	})
	if err != nil {
		return err
	}
	if !result.Streamed {
		fmt.Fprint(out, result.Text)
	}
	fmt.Fprintln(out)

	usage := askUsage(resp)
	fmt.Fprintf(cmd.ErrOrStderr(), "\n[session %s · %.2fs · tokens %d prompt / %d completion]\n",
		sessionID, time.Since(start).Seconds(), usage.PromptTokens, usage.CompletionTokens)

	return nil
}

// askPersona restituisce il personaggio indicato da --as o un assistente generico
func askPersona(a *app.App) (persona.Persona, error) {
	if askAs == "" {
		return persona.Persona{Name: "assistant", Title: "助手"}, nil
	}

	loaded := a.Personas("")
	for _, p := range loaded.Personas {
		if strings.EqualFold(p.Name, askAs) {
			return p, nil
		}
	}
	return persona.Persona{}, fmt.Errorf("unknown character %q (available: %s)",
		askAs, strings.Join(persona.Names(loaded.Personas), ", "))
}

// askSystemPrompt sceglie il prompt di sistema: Langfuse, --system,
// la persona scelta con --as oppure quello di default
func askSystemPrompt(ctx context.Context, a *app.App, p persona.Persona) (string, error) {
	switch {
	case askPromptName != "":
		lf := langfuse.NewClient(a.Config.Langfuse)
		prompt, err := lf.GetPrompt(ctx, askPromptName, askPromptLabel)
		if err != nil {
			return "", fmt.Errorf("failed to fetch Langfuse prompt %q: %w", askPromptName, err)
		}
		log.Debug().
			Str("prompt", prompt.Name).
			Int("version", prompt.Version).
			Msg("Using Langfuse prompt")
		return prompt.Text(), nil
	case askSystem != "":
		return askSystem, nil
	case askAs != "":
		return p.SystemPrompt(), nil
	default:
		return defaultSystemPrompt, nil
	}
}

func askUsage(resp any) providers.Usage {
	switch r := resp.(type) {
	case *providers.ChatResponse:
		return r.Usage
	case *agent.Streaming:
		return r.Usage()
	default:
		return providers.Usage{}
	}
}
