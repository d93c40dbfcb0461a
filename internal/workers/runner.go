package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tourly/pkg/cache"
	"tourly/pkg/logger"
)

// TickFunc runs one sweep over the store and returns how many rows it
// processed. The three background workers are all instances of this shape:
// tick, query, batch-transact, log.
type TickFunc func(ctx context.Context) (int, error)

// Job describes one periodic batch worker
type Job struct {
	Name     string
	Interval time.Duration
	Tick     TickFunc
}

// RunSnapshot records the outcome of a worker's most recent tick
type RunSnapshot struct {
	Worker    string    `json:"worker"`
	Interval  string    `json:"interval"`
	LastRunAt time.Time `json:"last_run_at"`
	Processed int       `json:"processed"`
	Duration  string    `json:"duration"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

const snapshotTTL = 7 * 24 * time.Hour

// Runner owns the timer loops of the background workers. Each job runs on
// its own goroutine with its own ticker; no two ticks of the same job
// overlap because the next ticker fire is only consumed after the previous
// tick returned.
type Runner struct {
	jobs  []Job
	cache cache.Service
	log   *logger.Logger
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewRunner creates a runner. The cache is optional; when present, run
// snapshots are published for the ops endpoint.
func NewRunner(cacheService cache.Service, appLogger *logger.Logger) *Runner {
	if appLogger == nil {
		appLogger = logger.GetDefault()
	}
	return &Runner{
		cache: cacheService,
		log:   appLogger,
		done:  make(chan struct{}),
	}
}

// Register adds a job. Must be called before Start.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Start launches all registered jobs
func (r *Runner) Start(ctx context.Context) {
	log.Printf("Starting %d background workers...", len(r.jobs))

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.runJob(ctx, job)
	}

	log.Println("Background workers started")
}

// Stop signals all jobs to finish and waits for them
func (r *Runner) Stop() {
	log.Println("Stopping background workers...")
	close(r.done)
	r.wg.Wait()
	log.Println("Background workers stopped")
}

func (r *Runner) runJob(ctx context.Context, job Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	log.Printf("Started %s worker with %v interval", job.Name, job.Interval)

	for {
		select {
		case <-ticker.C:
			r.runTick(ctx, job)
		case <-r.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runTick executes one tick. A panic or error inside the tick is contained
// here: the worker logs it and proceeds to its next scheduled tick instead
// of crashing the process.
func (r *Runner) runTick(ctx context.Context, job Job) {
	start := time.Now().UTC()

	processed, err := func() (n int, tickErr error) {
		defer func() {
			if rec := recover(); rec != nil {
				tickErr = fmt.Errorf("worker panic: %v", rec)
			}
		}()
		return job.Tick(ctx)
	}()

	duration := time.Since(start)

	if err != nil {
		r.log.LogWorkerError(ctx, job.Name, err)
	} else if processed > 0 {
		r.log.LogWorkerTick(ctx, job.Name, processed, duration)
	}

	r.publishSnapshot(ctx, job, start, processed, duration, err)
}

func (r *Runner) publishSnapshot(ctx context.Context, job Job, ranAt time.Time, processed int, duration time.Duration, tickErr error) {
	if r.cache == nil {
		return
	}

	snapshot := RunSnapshot{
		Worker:    job.Name,
		Interval:  job.Interval.String(),
		LastRunAt: ranAt,
		Processed: processed,
		Duration:  duration.String(),
		Success:   tickErr == nil,
	}
	if tickErr != nil {
		snapshot.Error = tickErr.Error()
	}

	if err := r.cache.Set(ctx, snapshotKey(job.Name), snapshot, snapshotTTL); err != nil {
		r.log.WithWorker(job.Name).WithError(err).ErrorContext(ctx, "failed to publish worker snapshot")
	}
}

// GetJobStatus returns the latest snapshot per registered job
func (r *Runner) GetJobStatus(ctx context.Context) []RunSnapshot {
	statuses := make([]RunSnapshot, 0, len(r.jobs))
	for _, job := range r.jobs {
		snapshot := RunSnapshot{
			Worker:   job.Name,
			Interval: job.Interval.String(),
		}
		if r.cache != nil {
			var cached RunSnapshot
			if err := r.cache.Get(ctx, snapshotKey(job.Name), &cached); err == nil {
				snapshot = cached
			}
		}
		statuses = append(statuses, snapshot)
	}
	return statuses
}

func snapshotKey(name string) string {
	return "workers:" + name + ":last_run"
}
