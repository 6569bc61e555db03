// Package retention owns deletion of one-time code rows. The auth flow
// treats the table as append-only; this is the external cleanup.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/msu-life/auth-service/internal/metrics"
	"github.com/msu-life/auth-service/internal/repository"
	"github.com/robfig/cron/v3"
)

type Purger struct {
	codes    repository.CodeRepository
	logger   *slog.Logger
	schedule cron.Schedule
	grace    time.Duration
}

// NewPurger parses the cron expression up front so a bad schedule fails
// at startup, not at 3am.
func NewPurger(codes repository.CodeRepository, logger *slog.Logger, cronExpr string, grace time.Duration) (*Purger, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parse purge schedule %q: %w", cronExpr, err)
	}

	return &Purger{
		codes:    codes,
		logger:   logger.With("component", "purger"),
		schedule: schedule,
		grace:    grace,
	}, nil
}

// Start runs purge cycles on the cron schedule until ctx is cancelled.
func (p *Purger) Start(ctx context.Context) {
	p.logger.Info("purger started", "grace", p.grace)

	for {
		next := p.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("purger shut down")
			return
		case <-timer.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error("purge cycle", "error", err)
			}
		}
	}
}

// RunOnce deletes consumed rows and rows expired longer than the grace
// period.
func (p *Purger) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()

	deleted, err := p.codes.DeleteStale(ctx, time.Now().Add(-p.grace))
	if err != nil {
		return 0, fmt.Errorf("delete stale codes: %w", err)
	}

	metrics.CodesPurgedTotal.Add(float64(deleted))
	metrics.PurgeCycleDuration.Observe(time.Since(start).Seconds())

	if deleted > 0 {
		p.logger.Info("purged stale codes", "count", deleted)
	}
	return deleted, nil
}
