package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/fillteam/filltrack/internal/auth"
	"github.com/fillteam/filltrack/internal/model"
	"github.com/fillteam/filltrack/internal/store"
)

// NewSeedCommand returns the seed subcommand. It provisions a team
// member with a login account; accounts are never created through the
// gateway.
func NewSeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Provision a team member with a login account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Usage:    "Login username",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "Login password",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "name",
				Usage:    "Display name of the team member",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "role",
				Usage: "MANAGER or MEMBER",
				Value: string(model.RoleMember),
			},
			&cli.BoolFlag{
				Name:  "demo",
				Usage: "Also insert a few demo tasks",
			},
		},
		Action: runSeed,
	}
}

func runSeed(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	role := model.Role(strings.ToUpper(cmd.String("role")))
	if role != model.RoleManager && role != model.RoleMember {
		return fmt.Errorf("invalid role %q", cmd.String("role"))
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	members := store.NewMemberStore(db, nil)
	users := store.NewUserStore(db)

	member := &model.TeamMember{
		ID:   "member_" + uuid.NewString()[:8],
		Name: cmd.String("name"),
		Role: role,
	}
	if err := members.Save(ctx, member); err != nil {
		return fmt.Errorf("save member: %w", err)
	}

	salt := auth.NewSalt()
	user := &store.User{
		ID:           "user_" + uuid.NewString()[:8],
		Username:     cmd.String("username"),
		Salt:         salt,
		PasswordHash: auth.HashPassword(cmd.String("password"), salt),
		MemberID:     member.ID,
	}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	fmt.Printf("Created %s %q (member %s, account %s)\n", role, member.Name, member.ID, user.ID)

	if cmd.Bool("demo") {
		if err := seedDemoTasks(ctx, cfg.Workflow.TemplatePath, db, member); err != nil {
			return err
		}
	}
	return nil
}

func seedDemoTasks(ctx context.Context, templatePath string, db *store.DB, actor *model.TeamMember) error {
	template := model.DefaultTemplate()
	if templatePath != "" {
		loaded, err := model.LoadTemplate(templatePath)
		if err != nil {
			return fmt.Errorf("load template: %w", err)
		}
		template = loaded
	}

	tasks := store.NewTaskStore(db, nil)
	today := time.Now()

	demos := []struct {
		project  string
		batch    string
		priority model.Priority
	}{
		{"RS-1042", "Batch 7, 2mL vials", model.PriorityUrgent},
		{"RS-1043", "Batch 8, 5mL vials", model.PriorityNormal},
		{"RS-1050", "Batch 1, prefilled syringes", model.PriorityNormal},
	}

	for _, d := range demos {
		task := model.NewTask(template, today)
		task.ProjectNumber = d.project
		task.BatchInfo = d.batch
		task.Priority = d.priority
		task.CreatedBy = actor.ID
		if _, err := tasks.Save(ctx, actor, task); err != nil {
			return fmt.Errorf("seed task %s: %w", d.project, err)
		}
	}

	fmt.Printf("Inserted %d demo tasks\n", len(demos))
	return nil
}
