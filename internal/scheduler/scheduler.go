// Package scheduler runs the cron-gated morning briefing.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fillteam/filltrack/internal/events"
)

// Job produces the briefing text for one scheduled run.
type Job func(ctx context.Context) (string, error)

// Scheduler fires a Job on a cron schedule and publishes the result on
// the event bus as a briefing.ready event. A failed run is logged and
// skipped; the next activation tries again.
type Scheduler struct {
	cron *CronExpr
	job  Job
	bus  *events.Bus

	mu      sync.Mutex
	lastRun time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Scheduler. The cron expression uses the standard
// 5-field form, e.g. "0 7 * * 1-5" for weekday mornings.
func New(cronExpr string, job Job, bus *events.Bus) (*Scheduler, error) {
	expr, err := ParseCron(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cron: expr,
		job:  job,
		bus:  bus,
		done: make(chan struct{}),
	}, nil
}

// Start begins the minute ticker loop.
func (s *Scheduler) Start() {
	slog.Info("scheduler started", "cron", s.cron.String(), "next", s.cron.Next(time.Now()))
	go s.loop()
}

// Stop halts the scheduler. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		slog.Info("scheduler stopped")
	})
}

// NextRun returns the next scheduled activation after now.
func (s *Scheduler) NextRun() time.Time {
	return s.cron.Next(time.Now())
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.check(now)
		}
	}
}

func (s *Scheduler) check(now time.Time) {
	if !s.cron.Matches(now) {
		return
	}

	s.mu.Lock()
	// Guard against a slow tick and a fast tick landing in the same minute.
	if !s.lastRun.IsZero() && now.Truncate(time.Minute).Equal(s.lastRun.Truncate(time.Minute)) {
		s.mu.Unlock()
		return
	}
	s.lastRun = now
	s.mu.Unlock()

	s.run(now)
}

func (s *Scheduler) run(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	text, err := s.job(ctx)
	if err != nil {
		slog.Error("scheduled briefing failed", "error", err)
		return
	}

	s.bus.Publish(events.NewEvent(events.EventBriefingReady, events.SourceScheduler, map[string]any{
		"text":         text,
		"scheduled_at": now.Format(time.RFC3339),
	}))
	slog.Info("scheduled briefing published", "chars", len(text))
}
