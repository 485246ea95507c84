package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/biodoia/roundtable/internal/app"
	"github.com/biodoia/roundtable/internal/langfuse"
	"github.com/biodoia/roundtable/internal/persona"
	"github.com/biodoia/roundtable/internal/store"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/spf13/cobra"
)

// DoctorCmd rappresenta il comando doctor
var DoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run environment diagnostics",
	Long: `Check everything a discussion depends on: configuration, characters
file, model endpoints, session store, Redis, Langfuse credentials and the
docker tooling used to run vLLM and Langfuse locally.`,
	Example: `  # Run all checks
  roundtable doctor

  # Only the model endpoints
  roundtable doctor --check model

  # Verbose output
  roundtable doctor --verbose`,
	RunE: runDoctor,
}

var (
	doctorCheck   string
	doctorVerbose bool
	doctorTimeout time.Duration
)

func init() {
	DoctorCmd.Flags().StringVar(&doctorCheck, "check", "", "Run a single check (config, characters, model, store, redis, langfuse, docker)")
	DoctorCmd.Flags().BoolVarP(&doctorVerbose, "verbose", "v", false, "Verbose output")
	DoctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 10*time.Second, "Timeout of each network check")
}

// errSkipped marca un controllo non applicabile alla configurazione
var errSkipped = errors.New("skipped")

type doctorCheckFunc func(ctx context.Context, cfg *config.Config, out io.Writer) error

type diagnostic struct {
	name     string
	title    string
	run      doctorCheckFunc
	optional bool
}

var diagnostics = []diagnostic{
	{name: "config", title: "Configuration", run: checkConfig},
	{name: "characters", title: "Characters", run: checkCharacters},
	{name: "model", title: "Model endpoints", run: checkModel},
	{name: "store", title: "Session store", run: checkStore},
	{name: "redis", title: "Redis", run: checkRedis},
	{name: "langfuse", title: "Langfuse", run: checkLangfuse},
	{name: "docker", title: "Docker tooling", run: checkDocker, optional: true},
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return err
	}

	selected := diagnostics
	if doctorCheck != "" {
		selected = nil
		for _, d := range diagnostics {
			if d.name == doctorCheck {
				selected = append(selected, d)
			}
		}
		if len(selected) == 0 {
			return fmt.Errorf("unknown check: %s", doctorCheck)
		}
	}

	fmt.Fprintln(out, "Roundtable System Health Check")
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)

	results := make([]error, len(selected))
	for i, d := range selected {
		header := fmt.Sprintf("[%d/%d] %s", i+1, len(selected), d.title)
		fmt.Fprintln(out, header)
		fmt.Fprintln(out, strings.Repeat("-", len(header)))

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		results[i] = d.run(ctx, cfg, out)
		cancel()

		switch {
		case results[i] == nil:
		case errors.Is(results[i], errSkipped):
			fmt.Fprintf(out, "- %v\n", results[i])
		default:
			fmt.Fprintf(out, "✗ %v\n", results[i])
		}
		fmt.Fprintln(out)
	}

	// Print summary
	fmt.Fprintln(out, "Summary")
	fmt.Fprintln(out, "-------")
	failed := 0
	for i, d := range selected {
		status := "✓ PASS"
		switch err := results[i]; {
		case err == nil:
		case errors.Is(err, errSkipped):
			status = "- SKIP"
		case d.optional:
			status = "⚠ WARN"
		default:
			status = "✗ FAIL"
			failed++
		}
		fmt.Fprintf(out, "%-15s %s\n", d.name+":", status)
	}

	fmt.Fprintln(out)
	if failed > 0 {
		fmt.Fprintln(out, "✗ Some checks failed - please review errors above")
		return fmt.Errorf("%d health checks failed", failed)
	}
	fmt.Fprintln(out, "✓ All checks passed - ready for discussions")
	return nil
}

func checkConfig(_ context.Context, cfg *config.Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Configuration is valid")
	if doctorVerbose {
		fmt.Fprintf(out, "  Server: %s\n", cfg.Server.Addr())
		fmt.Fprintf(out, "  Model:  %s @ %s\n", cfg.Model.ID, cfg.Model.BaseURL)
		fmt.Fprintf(out, "  Store:  %s\n", cfg.SessionStore.Type)
	}
	return nil
}

func checkCharacters(_ context.Context, cfg *config.Config, out io.Writer) error {
	result := persona.Load(cfg.Chat.CharactersFile)
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "⚠️  %s\n", w)
	}
	if result.FallbackReason != nil {
		fmt.Fprintf(out, "⚠️  %s: %v\n", cfg.Chat.CharactersFile, result.FallbackReason)
		fmt.Fprintf(out, "✓ Using %d built-in characters (run 'roundtable init' to create the file)\n", len(result.Personas))
		return nil
	}
	fmt.Fprintf(out, "✓ %d characters loaded from %s\n", len(result.Personas), cfg.Chat.CharactersFile)
	if doctorVerbose {
		for _, name := range persona.DisplayNames(result.Personas) {
			fmt.Fprintf(out, "  %s\n", name)
		}
	}
	return nil
}

func checkModel(ctx context.Context, cfg *config.Config, out io.Writer) error {
	registry, err := app.NewRegistry(cfg)
	if err != nil {
		return err
	}

	failed := 0
	results := registry.HealthCheck(ctx)
	for _, name := range registry.List() {
		endpoint, _ := registry.Get(name)
		if err := results[name]; err != nil {
			fmt.Fprintf(out, "✗ %s (%s): %v\n", name, endpoint.Model, err)
			failed++
			continue
		}
		line := fmt.Sprintf("✓ %s (%s) reachable", name, endpoint.Model)
		if meta, err := registry.GetMetadata(name); err == nil && meta.AvgLatency > 0 {
			line += fmt.Sprintf(" in %s", meta.AvgLatency.Round(time.Millisecond))
		}
		fmt.Fprintln(out, line)

		if doctorVerbose {
			models, err := endpoint.Provider.GetModels(ctx)
			if err == nil {
				for _, m := range models {
					fmt.Fprintf(out, "  served: %s\n", m.ID)
				}
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d/%d model endpoints unreachable", failed, registry.Count())
	}
	return nil
}

func checkStore(ctx context.Context, cfg *config.Config, out io.Writer) error {
	st, err := store.New(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	fmt.Fprintf(out, "✓ %s store reachable\n", cfg.SessionStore.Type)

	sessions, err := st.Sessions(ctx, 1000)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	fmt.Fprintf(out, "✓ %d stored sessions\n", len(sessions))
	return nil
}

func checkRedis(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if cfg.SessionStore.Type != config.StoreRedis && doctorCheck != "redis" {
		return fmt.Errorf("%w: session store is %s", errSkipped, cfg.SessionStore.Type)
	}

	st, err := store.NewRedisStore(cfg.Redis)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Redis reachable at %s (db %d)\n", cfg.Redis.Host, cfg.Redis.DB)
	return nil
}

func checkLangfuse(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if !cfg.Langfuse.Enabled && cfg.Langfuse.PublicKey == "" {
		return fmt.Errorf("%w: langfuse disabled", errSkipped)
	}

	client := langfuse.NewClient(cfg.Langfuse)

	health, err := client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Langfuse reachable at %s (%s %s)\n", cfg.Langfuse.Host, health.Status, health.Version)

	projects, err := client.AuthCheck(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Fprintf(out, "✓ API keys valid (%d project(s))\n", len(projects))
	if doctorVerbose {
		for _, p := range projects {
			fmt.Fprintf(out, "  project: %s (%s)\n", p.Name, p.ID)
		}
	}
	if !cfg.Langfuse.Enabled {
		fmt.Fprintln(out, "⚠️  Keys are set but langfuse.enabled is false: turns are not traced")
	}
	return nil
}

func checkDocker(ctx context.Context, _ *config.Config, out io.Writer) error {
	for _, args := range [][]string{{"--version"}, {"compose", "version"}} {
		output, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
		label := "docker " + strings.Join(args, " ")
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		fmt.Fprintf(out, "✓ %s\n", strings.TrimSpace(string(output)))
	}
	return nil
}
