// Package commands implements the inquest CLI.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	logLevelFlag   string
	configPathFlag string
)

var rootCmd = &cobra.Command{
	Use:   "inquest",
	Short: "Inquest - multi-agent production incident investigation",
	Long: `Inquest investigates production incidents by orchestrating specialist
analysis panels over telemetry signals (traces, logs, metrics, alerts)
and synthesizing a unified, provenance-tagged finding.`,
	Version: Version,

	// Errors are reported once, by HandleError in main
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "",
		"Path to the configuration file")

	rootCmd.AddCommand(investigateCmd)
	rootCmd.AddCommand(panelsCmd)
}

// HandleError prints error and exits
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// setupLogger builds the process logger from the --log-level flag.
func setupLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger, nil
}
