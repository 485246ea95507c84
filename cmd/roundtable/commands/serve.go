package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/biodoia/roundtable/internal/app"
	"github.com/biodoia/roundtable/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// ServeCmd rappresenta il comando serve
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the roundtable HTTP server",
	Long: `Start the HTTP server exposing POST /chat (JSON or Server-Sent Events),
the stored sessions, health checks and Prometheus metrics.

Host and port come from server.* and can be overridden with
CHAT_SERVER_HOST / CHAT_SERVER_PORT or the flags below.`,
	Example: `  # Start with the default configuration
  roundtable serve

  # Custom address and model preset
  roundtable serve --host 127.0.0.1 --port 9000 --model q72b

  # Keep sessions in Redis
  ROUNDTABLE_SESSION_STORE_TYPE=redis roundtable serve`,
	RunE: runServe,
}

var (
	serveHost  string
	servePort  int
	serveModel string
)

func init() {
	ServeCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default server.host)")
	ServeCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default server.port)")
	ServeCmd.Flags().StringVarP(&serveModel, "model", "m", "", "Model preset from models.* (default model.*)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Info().Msg("🚀 Starting roundtable server")

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, cfg, app.WithEndpoint(serveModel))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Error during cleanup")
		}
	}()

	orchestrator, err := a.Orchestrator()
	if err != nil {
		return err
	}

	srv := server.New(cfg, orchestrator, a.Store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("store", cfg.SessionStore.Type).
		Str("model", cfg.Model.ID).
		Strs("presets", a.Endpoints.List()).
		Bool("langfuse", cfg.Langfuse.Enabled).
		Msg("Configuration loaded")
	log.Info().Msgf("🌐 Chat API: http://%s/chat", cfg.Server.Addr())
	log.Info().Msgf("📊 Health check: http://%s/health", cfg.Server.Addr())
	if cfg.Metrics.Enabled {
		log.Info().Msgf("📈 Metrics: http://%s/metrics", cfg.Server.Addr())
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("⏳ Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("✓ roundtable server stopped cleanly")
	return nil
}
