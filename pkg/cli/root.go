package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/callbackd/callbackd/pkg/config"
	"github.com/callbackd/callbackd/pkg/logging"
)

var (
	// configPath is the persistent --config flag.
	configPath string

	// Version is injected during build.
	Version = "dev"
	// Commit is injected during build.
	Commit = "unknown"
	// BuildDate is injected during build.
	BuildDate = "unknown"
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "callbackd",
	Short: "callbackd bridges a message bus to GraphQL callback subscriptions",
	Long: `callbackd registers GraphQL subscriptions forwarded by a federated
router, consumes the configured bus topics, and dispatches a next callback
to the router for every message matching a live subscription.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "callbackd.yaml",
		"Path to the configuration file")
}

// loadConfig loads the configured file and builds the service logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.Format(cfg.Logging.Format),
	})
	return cfg, logger, nil
}
