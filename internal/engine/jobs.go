package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/lock"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/observability"
	"github.com/Veraticus/spice-insights/internal/service"
)

// ErrRunnerClosed is returned by Submit after Shutdown.
var ErrRunnerClosed = errors.New("job runner is shut down")

// JobRunnerOptions configures the worker pool.
type JobRunnerOptions struct {
	Batch     BatchOptions
	Workers   int
	QueueSize int
	LockTTL   time.Duration
}

// DefaultJobRunnerOptions returns sensible defaults.
func DefaultJobRunnerOptions() JobRunnerOptions {
	return JobRunnerOptions{
		Batch:     DefaultBatchOptions(),
		Workers:   2,
		QueueSize: 64,
		LockTTL:   30 * time.Minute,
	}
}

// JobRunner persists classification jobs and runs them on a worker pool.
type JobRunner struct {
	jobs   service.JobStorage
	engine *BatchEngine
	locker service.Locker
	queue  chan *model.ClassificationJob
	now    func() time.Time
	logger *slog.Logger
	opts   JobRunnerOptions
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewJobRunner creates a runner. Call Start before Submit.
func NewJobRunner(jobs service.JobStorage, engine *BatchEngine, locker service.Locker, opts JobRunnerOptions) *JobRunner {
	defaults := DefaultJobRunnerOptions()
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaults.QueueSize
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaults.LockTTL
	}
	return &JobRunner{
		jobs:   jobs,
		engine: engine,
		locker: locker,
		queue:  make(chan *model.ClassificationJob, opts.QueueSize),
		now:    time.Now,
		logger: slog.Default(),
		opts:   opts,
	}
}

// Start launches the workers. They exit when ctx ends or after Shutdown.
func (r *JobRunner) Start(ctx context.Context) {
	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go func(workerID int) {
			defer r.wg.Done()
			r.worker(ctx, workerID)
		}(i)
	}
}

func (r *JobRunner) worker(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			r.abandon(ctx)
			return
		case job, ok := <-r.queue:
			if !ok {
				return
			}
			r.logger.Debug("Worker picked up job", "worker", workerID, "job_id", job.ID)
			if err := r.Run(ctx, job); err != nil {
				r.logger.Warn("Classification job failed", "job_id", job.ID, "error", err)
			}
		}
	}
}

// abandon stops intake after the worker context ends and fails every job
// still queued, so none is left QUEUED.
func (r *JobRunner) abandon(ctx context.Context) {
	r.drain(ctx)
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.drain(ctx)
}

func (r *JobRunner) drain(ctx context.Context) {
	cause := fmt.Errorf("%w: %w", ErrRunnerClosed, context.Cause(ctx))
	for {
		select {
		case job, ok := <-r.queue:
			if !ok {
				return
			}
			r.fail(context.WithoutCancel(ctx), job, cause)
		default:
			return
		}
	}
}

// NewJob creates and persists a QUEUED job without scheduling it.
func (r *JobRunner) NewJob(ctx context.Context, userID string, fileID int64) (*model.ClassificationJob, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", common.ErrValidation)
	}
	job := &model.ClassificationJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		FileID:    fileID,
		Status:    model.JobQueued,
		CreatedAt: r.now(),
	}
	if err := r.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// Submit persists a QUEUED job and hands it to the workers. It returns as
// soon as the job is queued.
func (r *JobRunner) Submit(ctx context.Context, userID string, fileID int64) (*model.ClassificationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRunnerClosed
	}

	job, err := r.NewJob(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	snapshot := *job
	select {
	case r.queue <- job:
		return &snapshot, nil
	case <-ctx.Done():
		r.fail(context.WithoutCancel(ctx), job, ctx.Err())
		return nil, ctx.Err()
	}
}

// Run executes job synchronously: lock, classify, record the outcome.
func (r *JobRunner) Run(ctx context.Context, job *model.ClassificationJob) error {
	return r.RunWithProgress(ctx, job, nil)
}

// RunWithProgress is Run with a progress callback chained after the
// configured one.
func (r *JobRunner) RunWithProgress(ctx context.Context, job *model.ClassificationJob, progress ProgressFunc) error {
	unlock, err := r.locker.TryLock(ctx, lock.Key(job.UserID, job.FileID), r.opts.LockTTL)
	if err != nil {
		r.fail(context.WithoutCancel(ctx), job, err)
		return err
	}
	defer func() {
		if err := unlock.Unlock(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("Failed to release job lock", "job_id", job.ID, "error", err)
		}
	}()

	started := r.now()
	job.Status = model.JobRunning
	job.StartedAt = &started
	if err := r.jobs.UpdateJob(ctx, job); err != nil {
		err = fmt.Errorf("failed to mark job running: %w", err)
		r.fail(context.WithoutCancel(ctx), job, err)
		return err
	}

	opts := r.opts.Batch
	configured := opts.Progress
	opts.Progress = func(done, total int) {
		job.Processed = done
		if configured != nil {
			configured(done, total)
		}
		if progress != nil {
			progress(done, total)
		}
	}

	summary, err := r.engine.ClassifyFile(ctx, job.UserID, job.FileID, opts)
	if summary != nil {
		job.Classified = summary.Classified
		job.Failed = summary.Failed
	}
	if err != nil {
		r.fail(context.WithoutCancel(ctx), job, err)
		return err
	}

	finished := r.now()
	job.Status = model.JobDone
	job.Processed = summary.Descriptions
	job.FinishedAt = &finished
	if err := r.jobs.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}
	observability.ObserveJob(string(model.JobDone))
	r.logger.Info("Classification job done",
		"job_id", job.ID,
		"classified", job.Classified,
		"failed", job.Failed)
	return nil
}

func (r *JobRunner) fail(ctx context.Context, job *model.ClassificationJob, cause error) {
	finished := r.now()
	job.Status = model.JobFailed
	job.Error = cause.Error()
	job.FinishedAt = &finished
	if err := r.jobs.UpdateJob(ctx, job); err != nil {
		common.LogError(ctx, err, "Failed to record job failure", common.Fields{"job_id": job.ID})
	}
	observability.ObserveJob(string(model.JobFailed))
}

// Get returns a job by id.
func (r *JobRunner) Get(ctx context.Context, id string) (*model.ClassificationJob, error) {
	return r.jobs.GetJob(ctx, id)
}

// Shutdown stops accepting jobs, lets queued jobs drain and waits for the
// workers or ctx, whichever comes first.
func (r *JobRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns the user's most recent jobs.
func (r *JobRunner) List(ctx context.Context, userID string, limit int) ([]model.ClassificationJob, error) {
	return r.jobs.ListJobs(ctx, userID, limit)
}
