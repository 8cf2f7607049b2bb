// Package scheduler drives the agent's tick cadence: a fixed cron interval
// plus a manual trigger channel. Ticks are serialized by the engine's
// in-flight guard; a trigger landing mid-tick is skipped, not queued.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/moltlabs/moltagent/internal/application/agent"
)

// Reporter consumes tick summaries (console notifier in practice).
type Reporter interface {
	Report(agent.TickSummary)
}

// Scheduler owns the cron loop and the manual trigger path.
type Scheduler struct {
	cron     *cron.Cron
	engine   *agent.Engine
	reporter Reporter
	trigger  chan struct{}
}

// New creates a scheduler around the engine. reporter may be nil.
func New(engine *agent.Engine, reporter Reporter) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		engine:   engine,
		reporter: reporter,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate tick. Non-blocking; collapses into any
// already-pending trigger.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run registers the interval tick and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval < time.Minute {
		interval = time.Minute
	}
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, func() { s.runTick(ctx, "interval") }); err != nil {
		return fmt.Errorf("scheduler.Run: register tick: %w", err)
	}

	s.cron.Start()
	defer s.cron.Stop()
	slog.Info("scheduler started", "interval", interval)

	// First tick right away so a restart doesn't wait a full interval.
	s.runTick(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping")
			return nil
		case <-s.trigger:
			s.runTick(ctx, "manual")
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, source string) {
	summary, skipped, err := s.engine.TryTick(ctx)
	if err != nil {
		slog.Error("tick failed", "source", source, "err", err)
		return
	}
	if skipped {
		return
	}
	if s.reporter != nil {
		s.reporter.Report(summary)
	}
}
