package ownership

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/onnwee/jackbot/users"
)

// DefaultRefreshSchedule re-correlates stored users hourly.
const DefaultRefreshSchedule = "@every 1h"

// RefreshAll re-correlates every stored user. Per-user failures are logged and
// counted; the number of failures is returned.
func RefreshAll(ctx context.Context, c *Correlator, repo users.Repository) (failed int, err error) {
	all, err := repo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load users: %w", err)
	}
	for _, rec := range all {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		if _, err := c.Correlate(ctx, rec); err != nil {
			failed++
			slog.Warn("ownership refresh failed", slog.String("username", rec.Username), slog.Any("err", err), slog.String("component", "ownership_refresh"))
		}
	}
	return failed, nil
}

// StartRefreshJob schedules RefreshAll on schedule (cron spec or @every) and
// stops the scheduler when ctx is cancelled or stop is called. An empty
// schedule disables the job.
func StartRefreshJob(ctx context.Context, schedule string, c *Correlator, repo users.Repository) (stop func(), err error) {
	if schedule == "" {
		slog.Info("ownership refresh disabled", slog.String("component", "ownership_refresh"))
		return func() {}, nil
	}
	sched := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = sched.AddFunc(schedule, func() {
		start := time.Now()
		failed, err := RefreshAll(ctx, c, repo)
		if err != nil {
			slog.Error("ownership refresh aborted", slog.Any("err", err), slog.String("component", "ownership_refresh"))
			return
		}
		slog.Info("ownership refresh complete", slog.Int("failed", failed), slog.Duration("took", time.Since(start)), slog.String("component", "ownership_refresh"))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	sched.Start()
	slog.Info("ownership refresh scheduled", slog.String("schedule", schedule), slog.String("component", "ownership_refresh"))

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		<-sched.Stop().Done()
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}
