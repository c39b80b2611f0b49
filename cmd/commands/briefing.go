package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/fillteam/filltrack/internal/briefing"
	"github.com/fillteam/filltrack/internal/store"
)

// NewBriefingCommand returns the briefing subcommand: a one-off morning
// briefing printed to stdout.
func NewBriefingCommand() *cli.Command {
	return &cli.Command{
		Name:   "briefing",
		Usage:  "Generate a morning briefing of the current workload",
		Action: runBriefing,
	}
}

func runBriefing(ctx context.Context, cmd *cli.Command) error {
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

	chatModel, err := briefing.NewChatModel(ctx, cfg.Briefing)
	if err != nil {
		return fmt.Errorf("init briefing model: %w", err)
	}

	text, err := briefing.NewGenerator(chatModel).MorningBriefing(ctx, tasks, members)
	if err != nil {
		return err
	}

	fmt.Println(text)
	return nil
}
