package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/fillteam/filltrack/internal/auth"
	"github.com/fillteam/filltrack/internal/briefing"
	"github.com/fillteam/filltrack/internal/config"
	"github.com/fillteam/filltrack/internal/controller"
	"github.com/fillteam/filltrack/internal/events"
	"github.com/fillteam/filltrack/internal/gateway"
	"github.com/fillteam/filltrack/internal/heartbeat"
	"github.com/fillteam/filltrack/internal/notify"
	"github.com/fillteam/filltrack/internal/scheduler"
	"github.com/fillteam/filltrack/internal/store"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the filltrack gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(_ context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	tasks := store.NewTaskStore(db, bus)
	members := store.NewMemberStore(db, bus)
	users := store.NewUserStore(db)

	authSvc := auth.NewService(users, members, bus, cfg.Auth.ProfileTimeout.Duration())

	// The briefing model is optional: without one the briefing routes
	// answer 503 and everything else works.
	var briefer controller.Briefer
	chatModel, err := briefing.NewChatModel(ctx, cfg.Briefing)
	if err != nil {
		slog.Warn("briefing model unavailable", "driver", cfg.Briefing.Driver, "error", err)
	} else {
		briefer = briefing.NewGenerator(chatModel)
	}

	ctrl := controller.New(controller.Config{
		Tasks:          tasks,
		Members:        members,
		TaskNotifier:   notify.NewTaskNotifier(bus, tasks, cfg.Notify.Debounce.Duration(), logRefetchError),
		MemberNotifier: notify.NewMemberNotifier(bus, members, cfg.Notify.Debounce.Duration(), logRefetchError),
		Briefer:        briefer,
	})
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}
	defer ctrl.Stop()

	if cfg.Briefing.Cron != "" && briefer != nil {
		sched, err := scheduler.New(cfg.Briefing.Cron, func(ctx context.Context) (string, error) {
			return ctrl.GenerateBriefing(ctx)
		}, bus)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	server := gateway.NewServer(bus, authSvc, ctrl, cfg.Gateway.Host, cfg.Gateway.Port)

	hb := heartbeat.NewWriter(
		filepath.Join(config.BasePath(), "heartbeat.json"),
		fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
	)
	hb.Start()
	defer hb.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func logRefetchError(err error) {
	slog.Error("snapshot refetch failed, keeping prior state", "error", err)
}
