// Command ddas runs the duplicate-file detection service against a
// directory: a one-shot recursive scan, optionally followed by live
// filesystem watching, with alerts delivered over a local IPC endpoint
// (§6). Structured the way the teacher's cmd/mutagen-sidecar/main.go lays
// out a small, single-command cobra entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ddas/ddas/internal/config"
	"github.com/ddas/ddas/internal/logging"
	"github.com/ddas/ddas/internal/supervisor"
)

// rootConfiguration stores the flags accepted by the root command.
var rootConfiguration struct {
	// watch keeps the watcher running after the initial scan completes.
	watch bool
	// configPath points to an optional YAML configuration sidecar.
	configPath string
	// envPath points to an optional .env overrides file.
	envPath string
	// logLevel names the console verbosity threshold; see
	// logging.NameToLevel for the accepted set.
	logLevel string
}

func rootMain(_ *cobra.Command, args []string) error {
	root := args[0]

	logger := logging.RootLogger

	cfg, err := config.LoadFile(rootConfiguration.configPath)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}
	if err := cfg.ApplyEnv(rootConfiguration.envPath); err != nil {
		return fmt.Errorf("unable to apply environment overrides: %w", err)
	}

	// The flag overrides whatever the config/env layers resolved, since
	// it's the most specific source (only if the user actually passed it).
	if rootConfiguration.logLevel != "" {
		cfg.LogLevel = rootConfiguration.logLevel
	}
	level, ok := logging.NameToLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("invalid log level %q (want one of disabled, error, warn, info, debug)", cfg.LogLevel)
	}
	logging.CurrentLevel = level
	logger.Debugf("log level set to %s", level)

	sup := supervisor.New(logger, cfg)
	return sup.Run(context.Background(), root, rootConfiguration.watch)
}

// rootCommand is the root command: `ddas <directory> [--watch]` (§6).
var rootCommand = &cobra.Command{
	Use:          "ddas <directory>",
	Short:        "Detect duplicate files in a directory tree, live",
	Args:         cobra.ExactArgs(1),
	RunE:         rootMain,
	SilenceUsage: true,
}

func init() {
	cobra.EnableCommandSorting = false

	flags := rootCommand.Flags()
	flags.SortFlags = false

	flags.BoolVar(&rootConfiguration.watch, "watch", false,
		"keep watching for changes after the initial scan completes")
	flags.StringVar(&rootConfiguration.configPath, "config", "ddas.yaml",
		"path to an optional YAML configuration file")
	flags.StringVar(&rootConfiguration.envPath, "env", ".env",
		"path to an optional .env overrides file")
	flags.StringVar(&rootConfiguration.logLevel, "log-level", "",
		"console verbosity: disabled, error, warn, info, or debug (overrides config/env)")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
