// Package digest periodically tells each user how many cards they have due.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-co-op/gocron"
)

// Source reports due card counts per user.
type Source interface {
	DueByUser(ctx context.Context) (map[string]int, error)
}

// Notifier delivers a due-card reminder to one user.
type Notifier interface {
	Notify(ctx context.Context, user string, due int) error
}

// LogNotifier writes reminders to the structured log.
type LogNotifier struct{}

// Notify logs the due count for user.
func (LogNotifier) Notify(_ context.Context, user string, due int) error {
	slog.Info("Cards due for review", "user", user, "due", due)
	return nil
}

// Digest runs the reminder job on a gocron scheduler.
type Digest struct {
	source    Source
	notifier  Notifier
	scheduler *gocron.Scheduler
}

// New creates a Digest. It does nothing until Start.
func New(source Source, notifier Notifier) *Digest {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Digest{source: source, notifier: notifier, scheduler: s}
}

// Start schedules Run every interval, beginning immediately. Runs share ctx.
func (d *Digest) Start(ctx context.Context, interval time.Duration) error {
	_, err := d.scheduler.Every(interval).Do(func() {
		if _, err := d.Run(ctx); err != nil {
			slog.Error("Digest run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule digest: %w", err)
	}
	d.scheduler.StartAsync()
	slog.Info("Digest scheduled", "interval", interval)
	return nil
}

// Stop halts the scheduler.
func (d *Digest) Stop() {
	d.scheduler.Stop()
}

// Run notifies every user with due cards once and returns how many were
// notified. A failing notification is logged and the run continues.
func (d *Digest) Run(ctx context.Context) (int, error) {
	counts, err := d.source.DueByUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}

	users := make([]string, 0, len(counts))
	for user, n := range counts {
		if n > 0 {
			users = append(users, user)
		}
	}
	sort.Strings(users)

	sent := 0
	for _, user := range users {
		if err := d.notifier.Notify(ctx, user, counts[user]); err != nil {
			slog.Warn("Failed to notify user", "user", user, "error", err)
			continue
		}
		sent++
	}
	slog.Info("Digest run complete", "users", len(users), "notified", sent)
	return sent, nil
}
