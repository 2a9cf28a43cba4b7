package scheduler

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobhub/backend/internal/config"
	"github.com/jobhub/backend/internal/services"
)

const jobTimeout = 5 * time.Minute

// TransferRetrier re-attempts queued payouts.
type TransferRetrier interface {
	RetryFailedTransfers(ctx context.Context) (services.RetryReport, error)
}

// ClearingReleaser activates orders whose clearing period has ended.
type ClearingReleaser interface {
	ReleaseClearedOrders(ctx context.Context) (int64, error)
}

// Jobs holds the periodic background work.
type Jobs struct {
	payouts  TransferRetrier
	clearing ClearingReleaser
}

func NewJobs(payouts TransferRetrier, clearing ClearingReleaser) *Jobs {
	return &Jobs{payouts: payouts, clearing: clearing}
}

// RetryFailedTransfers drains one batch of the failed transfer queue.
func (j *Jobs) RetryFailedTransfers() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := j.payouts.RetryFailedTransfers(ctx)
	if err != nil {
		log.Printf("[SCHEDULER] Failed transfer retry job failed: %v", err)
		return
	}
	if report.Attempted > 0 {
		log.Printf("[SCHEDULER] Failed transfer retry: attempted=%d succeeded=%d failed=%d exhausted=%d",
			report.Attempted, report.Succeeded, report.Failed, report.Exhausted)
	}
}

// ReleaseClearedOrders moves orders out of clearing.
func (j *Jobs) ReleaseClearedOrders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	released, err := j.clearing.ReleaseClearedOrders(ctx)
	if err != nil {
		log.Printf("[SCHEDULER] Clearing release job failed: %v", err)
		return
	}
	if released > 0 {
		log.Printf("[SCHEDULER] Released %d orders from clearing", released)
	}
}

// Scheduler runs Jobs on their cron schedules.
type Scheduler struct {
	cron *cron.Cron
	jobs *Jobs
	cfg  *config.Config
}

func NewScheduler(jobs *Jobs, cfg *config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(log.New(os.Stdout, "[SCHEDULER] ", log.LstdFlags))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &Scheduler{cron: c, jobs: jobs, cfg: cfg}
}

// Start registers the jobs and starts the cron scheduler. A job with an
// invalid schedule is logged and left out.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.cfg.RetryJobSchedule, s.jobs.RetryFailedTransfers); err != nil {
		log.Printf("[SCHEDULER] Failed to schedule transfer retry job: %v", err)
	} else {
		log.Printf("[SCHEDULER] Scheduled transfer retry job (%s)", s.cfg.RetryJobSchedule)
	}

	if _, err := s.cron.AddFunc(s.cfg.ClearingJobSchedule, s.jobs.ReleaseClearedOrders); err != nil {
		log.Printf("[SCHEDULER] Failed to schedule clearing release job: %v", err)
	} else {
		log.Printf("[SCHEDULER] Scheduled clearing release job (%s)", s.cfg.ClearingJobSchedule)
	}

	s.cron.Start()
}

// Stop halts scheduling. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
