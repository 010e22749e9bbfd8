package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/coachdesk/core"
)

// Scheduler runs Generate, then Dispatch when enabled, every interval until stopped.
type Scheduler struct {
	svc      *Service
	logger   core.Logger
	interval time.Duration
	dispatch bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(svc *Service, logger core.Logger, conf *core.Config) *Scheduler {
	return &Scheduler{
		svc:      svc,
		logger:   logger,
		interval: conf.Reminders.Interval,
		dispatch: conf.Reminders.Dispatch,
	}
}

// Start runs a first pass immediately, then one per interval, in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx, core.Now())
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				s.RunOnce(ctx, t)
			}
		}
	}()
}

// Stop cancels the running pass, if any, and waits for the loop to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

// RunOnce does a single pass. Failures are logged: the next tick retries.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) {
	report, err := s.svc.Generate(ctx, now)
	if err != nil {
		s.logger.Error("reminder.Scheduler: generating: "+err.Error(), err)
		return
	}
	s.logger.Info(fmt.Sprintf(
		"reminder.Scheduler: %d due assignments, %d reminders created, %d refreshed",
		report.Assignments, report.Created, report.Refreshed))

	if !s.dispatch {
		return
	}
	sent, err := s.svc.Dispatch(ctx, now)
	if err != nil {
		s.logger.Error("reminder.Scheduler: dispatching: "+err.Error(), err)
		return
	}
	if sent > 0 {
		s.logger.Info(fmt.Sprintf("reminder.Scheduler: %d reminders sent", sent))
	}
}
