package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"flipbook/internal/config"
	"flipbook/internal/model"
	"flipbook/internal/repository"
	"flipbook/internal/storage"
)

// Processor runs one conversion for a claimed task. Satisfied by
// pipeline.Pipeline.
type Processor interface {
	Run(ctx context.Context, taskID, localFilePath, mimeType string) error
}

// Job is one queued conversion: a task id plus the local source file the
// upload handler staged for it.
type Job struct {
	TaskID    string
	LocalPath string
	MIMEType  string
}

// Runner executes conversion jobs on a bounded worker pool. Submission is
// non-blocking: when the queue is full the caller gets an error instead of
// an unbounded goroutine. The runner also recovers tasks left behind by a
// crash and fails tasks stuck in processing past the configured age.
type Runner struct {
	cfg        config.WorkerConfig
	processor  Processor
	repo       repository.TaskRepository
	store      storage.Storage
	logger     *slog.Logger
	jobs       chan Job
	ctx        context.Context
	cancelFunc context.CancelFunc
	workerWg   sync.WaitGroup
	monitorWg  sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewRunner creates a Runner. Start must be called before Submit.
func NewRunner(cfg config.WorkerConfig, processor Processor, repo repository.TaskRepository, store storage.Storage, logger *slog.Logger) *Runner {
	if cfg.Count <= 0 {
		cfg.Count = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.StaleCheckInterval <= 0 {
		cfg.StaleCheckInterval = 5 * time.Minute
	}
	if cfg.StaleTaskAge <= 0 {
		cfg.StaleTaskAge = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:        cfg,
		processor:  processor,
		repo:       repo,
		store:      store,
		logger:     logger,
		jobs:       make(chan Job, cfg.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Submit enqueues a conversion job without blocking. After Stop it returns
// an error instead of accepting work that would never run.
func (r *Runner) Submit(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return fmt.Errorf("conversion runner is stopped")
	}

	select {
	case r.jobs <- job:
		return nil
	default:
		return fmt.Errorf("conversion queue is full, try again later")
	}
}

// Start recovers interrupted tasks, then launches the worker pool and the
// stale-task monitor.
func (r *Runner) Start() error {
	if err := r.recover(); err != nil {
		return fmt.Errorf("recover interrupted tasks: %w", err)
	}

	for i := 0; i < r.cfg.Count; i++ {
		r.workerWg.Add(1)
		go r.worker(i)
	}

	r.monitorWg.Add(1)
	go r.staleTaskMonitor()

	return nil
}

// Stop refuses further submissions, waits for every queued and in-flight job
// to finish, then shuts the stale-task monitor down. The worker context stays
// live until the queue is drained so accepted jobs complete normally.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.jobs)
	r.mu.Unlock()

	r.workerWg.Wait()
	r.cancelFunc()
	r.monitorWg.Wait()
}

// recover re-enqueues tasks that were acknowledged but never claimed before
// a previous process died. The staged source file is gone with the old
// process, so it is re-fetched from the artifact store by file key.
func (r *Runner) recover() error {
	ctx := r.ctx

	tasks, err := r.repo.FindInStatus(ctx, model.StatusUploaded)
	if err != nil {
		return fmt.Errorf("list uploaded tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	r.logger.Info("recovering unstarted tasks", "count", len(tasks))

	for _, task := range tasks {
		localPath := filepath.Join(os.TempDir(), "flipbook-recover-"+task.ID+filepath.Ext(task.OriginalName))
		if err := r.store.Download(ctx, task.FileKey, localPath); err != nil {
			r.logger.Error("failed to re-fetch source for recovery",
				"task_id", task.ID, "file_key", task.FileKey, "error", err)
			continue
		}

		if err := r.Submit(Job{TaskID: task.ID, LocalPath: localPath, MIMEType: task.FileType}); err != nil {
			r.logger.Error("failed to requeue recovered task, queue is full", "task_id", task.ID)
			os.Remove(localPath)
		}
	}

	return nil
}

// worker drains the job queue until Stop closes it.
func (r *Runner) worker(id int) {
	defer r.workerWg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for job := range r.jobs {
		r.process(job, id)
	}

	r.logger.Debug("stopping worker", "worker_id", id)
}

func (r *Runner) process(job Job, workerID int) {
	defer os.Remove(job.LocalPath)

	logger := r.logger.With("task_id", job.TaskID, "worker_id", workerID)
	logger.Info("processing conversion job")

	if err := r.processor.Run(r.ctx, job.TaskID, job.LocalPath, job.MIMEType); err != nil {
		// The pipeline already drove the task to failed; this is for operators.
		logger.Error("conversion job failed", "error", err)
		return
	}
	logger.Info("conversion job finished")
}

// staleTaskMonitor fails tasks that sat in processing past the configured
// age. Without it a crash mid-conversion would leave tasks processing
// forever, since page rendering cannot be resumed.
func (r *Runner) staleTaskMonitor() {
	defer r.monitorWg.Done()

	ticker := time.NewTicker(r.cfg.StaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.reapStaleTasks()
		}
	}
}

func (r *Runner) reapStaleTasks() {
	ctx := r.ctx

	stale, err := r.repo.FindStaleProcessing(ctx, r.cfg.StaleTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stale tasks", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	r.logger.Info("found stale processing tasks", "count", len(stale))

	for _, task := range stale {
		if !task.Status.CanTransition(model.StatusFailed) {
			r.logger.Warn("rejected stale-task transition to failed",
				"task_id", task.ID, "status", task.Status)
			continue
		}

		err := r.repo.UpdateStatus(ctx, task.ID, model.StatusFailed, task.Progress,
			fmt.Sprintf("conversion timed out after %s", r.cfg.StaleTaskAge))
		if errors.Is(err, repository.ErrNoTransition) {
			// The task finished between the stale query and the update.
			r.logger.Info("stale task already reached a terminal state", "task_id", task.ID)
			continue
		}
		if err != nil {
			r.logger.Error("failed to reap stale task", "task_id", task.ID, "error", err)
			continue
		}
		r.logger.Info("reaped stale task", "task_id", task.ID)
	}
}
