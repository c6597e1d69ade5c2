package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"pnr_tracker/internal/app"
)

// Reasons reported to SkipRecorder.
const (
	SkipReasonOverlap  = "overlap"
	SkipReasonLockHeld = "lock_held"
	SkipReasonLockErr  = "lock_error"
)

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (app.Summary, error)
}

// RunGuard serializes passes across processes. Release must be called once the pass ends.
type RunGuard interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// SkipRecorder is told about every tick that did not start a pass.
type SkipRecorder interface {
	ObserveSkippedPass(reason string)
}

type ReconcileScheduler struct {
	cronEngine *cron.Cron
	reconciler Reconciler
	guard      RunGuard
	skips      SkipRecorder
	logger     *logrus.Entry
	cronSpec   string
	runOnStart bool

	running atomic.Bool
	started atomic.Bool
	startup sync.WaitGroup
}

func NewReconcileScheduler(
	reconciler Reconciler,
	guard RunGuard,
	skips SkipRecorder,
	logger *logrus.Entry,
	cronSpec string, // e.g., "*/30 * * * *" (every 30 minutes)
	runOnStart bool,
) *ReconcileScheduler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("component", "scheduler")
	cronLogger := cron.PrintfLogger(logger)
	return &ReconcileScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local), // Use server's local time for cron
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		reconciler: reconciler,
		guard:      guard,
		skips:      skips,
		logger:     logger,
		cronSpec:   cronSpec,
		runOnStart: runOnStart,
	}
}

// Start registers the reconciliation job and starts the cron engine. An invalid cron spec
// is returned as an error and nothing is started.
func (s *ReconcileScheduler) Start() error {
	s.logger.WithField("cron", s.cronSpec).Info("Starting reconciliation scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Debug("Cron job triggered for reconciliation pass.")
		s.RunPass(context.Background())
	})
	if err != nil {
		return fmt.Errorf("could not add reconciliation cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.started.Store(true)
	if s.runOnStart {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.RunPass(context.Background())
		}()
	}
	s.logger.Info("Reconciliation scheduler started.")
	return nil
}

// RunPass starts a pass unless one is already running here or, with a guard configured, on
// another replica. It reports whether a pass ran. A panicking pass is logged and counts as run.
func (s *ReconcileScheduler) RunPass(ctx context.Context) (summary app.Summary, ran bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.skip(SkipReasonOverlap, "Previous reconciliation pass still running; skipping tick.")
		return app.Summary{}, false
	}
	defer s.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Recovered from panic in reconciliation pass")
			summary, ran = app.Summary{}, true
		}
	}()

	if s.guard != nil {
		release, acquired, err := s.guard.TryAcquire(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Could not acquire reconciliation lock")
			s.skip(SkipReasonLockErr, "Skipping tick: reconciliation lock unavailable.")
			return app.Summary{}, false
		}
		if !acquired {
			s.skip(SkipReasonLockHeld, "Reconciliation pass running on another replica; skipping tick.")
			return app.Summary{}, false
		}
		defer release()
	}

	summary, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Reconciliation pass failed")
	}
	return summary, true
}

func (s *ReconcileScheduler) skip(reason, msg string) {
	s.logger.WithField("reason", reason).Warn(msg)
	if s.skips != nil {
		s.skips.ObserveSkippedPass(reason)
	}
}

// Stop stops the cron engine and waits for running jobs, including the run-on-start pass.
func (s *ReconcileScheduler) Stop() {
	if !s.started.Load() {
		return
	}
	s.logger.Info("Stopping reconciliation scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.startup.Wait()
	s.logger.Info("Reconciliation scheduler gracefully stopped.")
}
