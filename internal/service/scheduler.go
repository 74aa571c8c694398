package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

// ParseSchedule parses a five-field cron expression or an @every descriptor.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule.cron %q: %v", domain.ErrInvalidConfig, expr, err)
	}
	return sched, nil
}

// NextFires returns the next n fire times after from.
func NextFires(expr string, from time.Time, n int) ([]time.Time, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// Scheduler drives an Orchestrator from a cron schedule and manual triggers.
// Missed fires are not caught up; the next fire is always computed from now.
type Scheduler struct {
	orch         *Orchestrator
	schedule     cron.Schedule
	expr         string
	runOnStartup bool
	grace        time.Duration
	manual       chan struct{}
	now          func() time.Time
}

// NewScheduler creates a scheduler for orch.
func NewScheduler(orch *Orchestrator, cfg config.ScheduleConfig) (*Scheduler, error) {
	sched, err := ParseSchedule(cfg.Cron)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		orch:         orch,
		schedule:     sched,
		expr:         cfg.Cron,
		runOnStartup: cfg.RunOnStartup,
		grace:        cfg.ShutdownGrace,
		manual:       make(chan struct{}, 1),
		now:          time.Now,
	}, nil
}

// Trigger requests an immediate run. It returns domain.ErrRunInProgress when
// a run is in flight or another manual trigger is already queued.
func (s *Scheduler) Trigger() error {
	if s.orch.Busy() {
		s.orch.metrics.SkipTrigger(TriggerManual)
		return domain.ErrRunInProgress
	}
	select {
	case s.manual <- struct{}{}:
		return nil
	default:
		s.orch.metrics.SkipTrigger(TriggerManual)
		return domain.ErrRunInProgress
	}
}

// Run blocks until ctx is cancelled. An in-flight run gets the shutdown
// grace period before its context is cancelled too.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx = logger.SetComponent(ctx, "scheduler")
	s.orch.setSchedule(func(st *ScheduleState) { st.Expression = s.expr })

	if s.runOnStartup {
		s.fire(ctx, TriggerStartup)
	}

	for {
		if ctx.Err() != nil {
			break
		}

		now := s.now()
		next := s.schedule.Next(now)
		if next.IsZero() {
			return fmt.Errorf("%w: schedule %q never fires", domain.ErrInvalidConfig, s.expr)
		}
		s.orch.setSchedule(func(st *ScheduleState) { st.NextFire = next })
		s.orch.setState(StateAwaitingTrigger)
		s.orch.metrics.SetNextFire(next)
		logger.CtxInfo(ctx, "Next run at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
			s.orch.setSchedule(func(st *ScheduleState) { st.LastFire = next })
			s.fire(ctx, TriggerSchedule)
			s.skipMissed(ctx, next)
		case <-s.manual:
			timer.Stop()
			s.fire(ctx, TriggerManual)
			s.skipMissed(ctx, now)
		}
	}

	s.orch.setState(StateIdle)
	logger.CtxInfo(ctx, "Scheduler stopped")
	return nil
}

// maxMissedFires bounds the count of fires skipped after a single long run.
const maxMissedFires = 1000

// skipMissed logs and counts the fires after from that fell due while a run
// was in flight. They are dropped, not caught up. Returns the number skipped.
func (s *Scheduler) skipMissed(ctx context.Context, from time.Time) int {
	now := s.now()
	missed := 0
	for t := s.schedule.Next(from); !t.IsZero() && !t.After(now) && missed < maxMissedFires; t = s.schedule.Next(t) {
		missed++
		s.orch.metrics.SkipTrigger(TriggerSchedule)
	}
	if missed > 0 {
		logger.With(logger.Fields{logger.FieldTrigger: TriggerSchedule}).WithCount(missed).
			Warn(ctx, "Skipped %d scheduled fire(s) that fell due during the run", missed)
	}
	return missed
}

// fire runs once on a context that outlives ctx by the shutdown grace.
func (s *Scheduler) fire(ctx context.Context, trigger string) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-done:
		case <-ctx.Done():
			grace := time.NewTimer(s.grace)
			defer grace.Stop()
			select {
			case <-done:
			case <-grace.C:
				logger.CtxWarn(ctx, "Shutdown grace of %s elapsed, cancelling run", s.grace)
				cancel()
			}
		}
	}()

	if _, err := s.orch.Run(runCtx, trigger); err != nil {
		logger.CtxWarn(ctx, "Trigger %s dropped: %v", trigger, err)
	}
	close(done)
	wg.Wait()
}
