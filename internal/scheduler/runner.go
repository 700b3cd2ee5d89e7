package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/redislock"
)

// JobFunc runs one tick and reports an outcome label for the run log.
type JobFunc func(ctx context.Context) (string, error)

// Job is a recurring background tick.
type Job struct {
	Name     string
	Schedule string
	Run      JobFunc
}

// Runner fires jobs on their cron schedules. A job never overlaps itself:
// cron's SkipIfStillRunning and a running set guard this process, and a
// Redis lock named after the job guards every other instance.
type Runner struct {
	cron    *cron.Cron
	locker  *redislock.Locker
	lockTTL time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	running map[string]bool
	ctx     context.Context
}

func NewRunner(locker *redislock.Locker, lockTTL time.Duration, log *logger.Logger) *Runner {
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	cl := logger.NewCronLogger(log)
	return &Runner{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		lockTTL: lockTTL,
		log:     log,
		running: make(map[string]bool),
		ctx:     context.Background(),
	}
}

// Register adds job to the schedule.
func (r *Runner) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("invalid job definition")
	}
	_, err := r.cron.AddFunc(job.Schedule, func() {
		r.mu.Lock()
		ctx := r.ctx
		r.mu.Unlock()
		_, _ = r.RunOnce(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Schedule, err)
	}
	r.log.Info("job registered", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// Run starts the schedule and blocks until ctx is done and running ticks finished.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	return nil
}

// RunOnce executes one tick of job unless it is already running here or on
// another instance. ran is false when the tick was skipped.
func (r *Runner) RunOnce(ctx context.Context, job Job) (ran bool, err error) {
	if !r.markRunning(job.Name) {
		r.log.Debug("job tick skipped: already running", "job", job.Name)
		return false, nil
	}
	defer r.clearRunning(job.Name)

	var lock *redislock.Lock
	if r.locker != nil {
		lock, err = r.locker.TryAcquire(ctx, job.Name, r.lockTTL)
		if err != nil {
			r.log.JobRun(job.Name, "lock_error", 0, err)
			return false, err
		}
		if lock == nil {
			r.log.Debug("job tick skipped: locked by another instance", "job", job.Name)
			return false, nil
		}
		defer func() {
			if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
				r.log.Warn("job lock release failed", "job", job.Name, "error", relErr)
			}
		}()
	}

	tickCtx, cancel := context.WithTimeout(ctx, r.lockTTL)
	defer cancel()

	start := time.Now()
	outcome, err := r.invoke(tickCtx, job)
	r.log.JobRun(job.Name, outcome, time.Since(start), err)
	return true, err
}

func (r *Runner) invoke(ctx context.Context, job Job) (outcome string, err error) {
	defer func() {
		if p := recover(); p != nil {
			outcome, err = "panic", fmt.Errorf("job %s panicked: %v", job.Name, p)
		}
	}()
	outcome, err = job.Run(ctx)
	if err != nil && outcome == "" {
		outcome = "failed"
	}
	return outcome, err
}

func (r *Runner) markRunning(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[name] {
		return false
	}
	r.running[name] = true
	return true
}

func (r *Runner) clearRunning(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, name)
}

// DefaultSchedules are used when a job row carries no schedule.
var DefaultSchedules = map[string]string{
	domain.JobDispatch:           "@every 30s",
	domain.JobCallReconciliation: "@every 20s",
	domain.JobFollowUp:           "@every 5m",
}

// ScheduleFor picks the configured schedule for name, falling back to the default.
func ScheduleFor(jobs []domain.JobConfig, name string) string {
	for _, j := range jobs {
		if j.Name == name && j.Schedule != "" {
			return j.Schedule
		}
	}
	return DefaultSchedules[name]
}
