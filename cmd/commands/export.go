package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fillteam/filltrack/internal/export"
	"github.com/fillteam/filltrack/internal/store"
)

// NewExportCommand returns the export subcommand. It reads straight
// from storage, no running gateway required.
func NewExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all tasks as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file (default stdout)",
			},
		},
		Action: runExport,
	}
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	tasks, err := store.NewTaskStore(db, nil).FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}
	members, err := store.NewMemberStore(db, nil).FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch members: %w", err)
	}

	out := os.Stdout
	if path := cmd.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	return export.WriteCSV(out, tasks, members)
}
