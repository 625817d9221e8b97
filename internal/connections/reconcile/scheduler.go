package reconcile

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner is implemented by *Reconciler.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Scheduler runs the reconciler on a cron spec with a seconds field.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    *zap.Logger
}

func NewScheduler(runner Runner, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner: runner,
		log:    log,
	}
}

// Start registers the job and starts the cron loop. An empty schedule disables
// the job.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		s.log.Info("reconcile job disabled")
		return nil
	}

	_, err := s.cron.AddFunc(spec, s.runOnce)
	if err != nil {
		return fmt.Errorf("schedule reconcile job %q: %w", spec, err)
	}

	s.log.Info("reconcile scheduler started", zap.String("spec", spec))
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("reconcile job still running at shutdown")
	}
}

func (s *Scheduler) runOnce() {
	if _, err := s.runner.Run(context.Background()); err != nil {
		s.log.Error("reconcile job failed", zap.Error(err))
	}
}
