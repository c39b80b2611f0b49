package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	wsclient "github.com/fillteam/filltrack/clients/ws"
	"github.com/fillteam/filltrack/internal/config"
	"github.com/fillteam/filltrack/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show filltrack gateway status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Stay connected and print change events as they arrive",
			},
		},
		Action: runStatus,
	}
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	base := fmt.Sprintf("http://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(base + "/api/health")
	if err != nil {
		// Port not answering; the heartbeat file distinguishes a hung
		// process from a dead one.
		hbPath := filepath.Join(config.BasePath(), "heartbeat.json")
		status, hb, hbErr := heartbeat.Check(hbPath, 2*time.Minute)
		if hbErr != nil {
			return fmt.Errorf("check heartbeat: %w", hbErr)
		}
		switch status {
		case heartbeat.StatusAlive:
			fmt.Printf("Gateway: NOT ANSWERING (PID %d on %s, uptime %s)\n", hb.PID, hb.Addr, hb.Uptime)
		case heartbeat.StatusStale:
			fmt.Printf("Gateway: STALE (PID %d, last heartbeat %s ago)\n",
				hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
		default:
			fmt.Println("Gateway: NOT RUNNING")
		}
		return nil
	}
	defer resp.Body.Close()

	var health struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health: %w", err)
	}
	fmt.Printf("Gateway: %s (%d connected clients)\n", health.Status, health.Clients)

	if !cmd.Bool("watch") {
		return nil
	}

	wsURL := fmt.Sprintf("ws://%s:%d/api/ws", cfg.Gateway.Host, cfg.Gateway.Port)
	conn, err := wsclient.Dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	fmt.Println("Watching for change events (Ctrl-C to stop)...")
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if frame.Event == "" {
			continue
		}
		fmt.Printf("%s %s %s\n", time.Now().Format(time.TimeOnly), frame.Event, frame.Payload)
	}
}
