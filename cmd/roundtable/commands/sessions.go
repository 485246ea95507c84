package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/biodoia/roundtable/internal/console"
	"github.com/biodoia/roundtable/internal/forum"
	"github.com/biodoia/roundtable/internal/store"
	"github.com/spf13/cobra"
)

// SessionsCmd rappresenta il comando sessions
var SessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored discussions",
	Long:  `List stored sessions or print the transcript of one of them.`,
	Example: `  # Most recent sessions
  roundtable sessions list --limit 10

  # Full transcript
  roundtable sessions show multi-chat-ai`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a stored transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var (
	sessionsLimit   int
	sessionsRuns    bool
	sessionsNoColor bool
)

func init() {
	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Maximum number of sessions")
	sessionsShowCmd.Flags().BoolVar(&sessionsRuns, "runs", false, "Also print the raw agent exchanges")
	sessionsShowCmd.Flags().BoolVar(&sessionsNoColor, "no-color", false, "Disable colored output")

	SessionsCmd.AddCommand(sessionsListCmd)
	SessionsCmd.AddCommand(sessionsShowCmd)
}

func openStore(cmd *cobra.Command) (store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return st, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	sessions, err := st.Sessions(ctx, sessionsLimit)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tMODE\tRUNS\tTOPIC\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Mode, s.Runs, truncate(s.Topic, 40), s.UpdatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	id := args[0]
	session, err := st.Session(ctx, id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	records, err := st.Transcript(ctx, id)
	if err != nil {
		return err
	}

	turns := make([]forum.Turn, len(records))
	rounds := 0
	for i, r := range records {
		turns[i] = forum.FromModel(r)
		rounds = max(rounds, turns[i].Round)
	}

	renderer := console.NewRenderer(cmd.OutOrStdout())
	if sessionsNoColor {
		renderer.DisableColor()
	}
	renderer.Result(&forum.Result{
		Topic:      session.Topic,
		Rounds:     rounds,
		SessionID:  session.ID,
		Transcript: turns,
	})
	if len(turns) > 0 {
		renderer.Summary(forum.Summarize(turns))
	}

	if !sessionsRuns {
		return nil
	}

	runs, err := st.Runs(ctx, id, "")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%d agent runs\n", len(runs))
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "error: " + r.Error
		}
		fmt.Fprintf(out, "- %s %s [%s] %d+%d tokens %dms %s\n",
			r.CreatedAt.Format(time.DateTime), r.Agent, r.Model,
			r.PromptTokens, r.CompletionTokens, r.LatencyMs, status)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
