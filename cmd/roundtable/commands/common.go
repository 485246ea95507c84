// Package commands contiene i sottocomandi della CLI roundtable.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/biodoia/roundtable/internal/app"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/biodoia/roundtable/pkg/logging"
	"github.com/spf13/cobra"
)

// loadConfig carica la configurazione indicata da --config e applica
// --log-level / --log-format sopra la sezione logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	return cfg, nil
}

// newApp costruisce l'applicazione; va chiusa con Close
func newApp(ctx context.Context, cfg *config.Config, opts ...app.Option) (*app.App, error) {
	a, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}

// signalContext è annullato da SIGINT o SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
