/*
scheduler.go - Periodic batch analysis

PURPOSE:
  Runs AnalyzePending on a fixed interval so pending requests are decided
  without HR pressing the button.

DESIGN:
  - One background goroutine driven by a ticker
  - Runs once immediately on Start
  - Overlaps with manual triggers are collapsed by the Service

CONFIGURATION:
  - Interval: how often to run (default: 1 hour)
  - Enabled: whether the scheduler starts at all

USAGE:
  sched := analysis.NewScheduler(svc, 15*time.Minute, logger)
  sched.Start()
  defer sched.Stop()
*/
package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// Runner is what the scheduler triggers. *Service satisfies it.
type Runner interface {
	AnalyzePending(ctx context.Context, trigger string) (leave.AnalysisRun, error)
}

// Scheduler triggers batch analysis on an interval.
type Scheduler struct {
	Runner   Runner
	Interval time.Duration
	Enabled  bool
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates an enabled scheduler. A non-positive interval falls
// back to one hour.
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Runner:   runner,
		Interval: interval,
		Enabled:  true,
		logger:   logger,
	}
}

// Start launches the background loop. Calling Start on a running scheduler
// is a no-op.
func (sc *Scheduler) Start() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.Enabled {
		sc.logger.Info("analysis scheduler disabled")
		return
	}
	if sc.ticker != nil {
		return
	}

	sc.ticker = time.NewTicker(sc.Interval)
	sc.stop = make(chan struct{})
	sc.wg.Add(1)
	go sc.run(sc.ticker, sc.stop)

	sc.logger.Info("analysis scheduler started", "interval", sc.Interval)
}

// Stop halts the loop and waits for an in-progress run to finish.
func (sc *Scheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.ticker == nil {
		return
	}
	sc.ticker.Stop()
	close(sc.stop)
	sc.wg.Wait()
	sc.ticker = nil
	sc.logger.Info("analysis scheduler stopped")
}

// Running reports whether the loop is active.
func (sc *Scheduler) Running() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.ticker != nil
}

// NextRunTime estimates when the next scheduled run will occur.
func (sc *Scheduler) NextRunTime() time.Time {
	return time.Now().Add(sc.Interval)
}

func (sc *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer sc.wg.Done()

	sc.RunNow()

	for {
		select {
		case <-ticker.C:
			sc.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one scheduled run synchronously.
func (sc *Scheduler) RunNow() {
	ctx := context.Background()
	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	run, err := sc.Runner.AnalyzePending(ctx, TriggerScheduled)
	if err != nil {
		sc.logger.Error("scheduled analysis failed", "run_id", run.ID, "err", err)
		return
	}
	if run.Evaluated > 0 {
		sc.logger.Info("scheduled analysis decided requests",
			"run_id", run.ID,
			"applied", run.Applied,
		)
	}
}
