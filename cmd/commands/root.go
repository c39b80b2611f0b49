// Package commands holds the filltrack CLI subcommands.
package commands

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fillteam/filltrack/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "filltrack",
		Usage: "Task tracking for the pharmaceutical filling team",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewSeedCommand(),
			NewExportCommand(),
			NewBriefingCommand(),
			NewStatusCommand(),
		},
	}
}

// loadConfig reads the config file named by the --config flag, falling
// back to defaults when the file is missing.
func loadConfig(cmd *cli.Command) *config.Config {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", configPath, "error", err)
		cfg = config.Default()
	}
	return cfg
}
