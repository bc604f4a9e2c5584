package sweeper

import (
	"context"
	"time"

	"github.com/riverqueue/river"
)

// SweepExpiredArgs carries no payload; every run scans the whole table.
type SweepExpiredArgs struct{}

func (SweepExpiredArgs) Kind() string { return "sweep_expired_jobs" }

func (SweepExpiredArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5}
}

type Worker struct {
	river.WorkerDefaults[SweepExpiredArgs]
	sweeper *Sweeper
}

func NewWorker(s *Sweeper) *Worker {
	return &Worker{sweeper: s}
}

// Work returns the joined per-job failures so River retries the sweep.
func (w *Worker) Work(ctx context.Context, _ *river.Job[SweepExpiredArgs]) error {
	_, err := w.sweeper.Sweep(ctx)
	return err
}

func (w *Worker) Timeout(*river.Job[SweepExpiredArgs]) time.Duration {
	return 10 * time.Minute
}

// PeriodicJob schedules a sweep on every tick of schedule and once at startup.
// Any cron.Schedule satisfies river.PeriodicSchedule.
func PeriodicJob(schedule river.PeriodicSchedule) *river.PeriodicJob {
	return river.NewPeriodicJob(
		schedule,
		func() (river.JobArgs, *river.InsertOpts) {
			return SweepExpiredArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
