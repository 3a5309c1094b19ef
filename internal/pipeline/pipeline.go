package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"flipbook/internal/convert"
	"flipbook/internal/model"
	"flipbook/internal/repository"
	"flipbook/internal/storage"
)

// Progress checkpoints reported while a task is processing. On failure the
// task keeps the last checkpoint it reached.
const (
	progressClaimed   = 10
	progressConverted = 50
	progressUploaded  = 90
)

// Pipeline orchestrates one document conversion: claim the task, dispatch to
// the matching converter, optimize and upload every rendered page, persist
// the page batch and drive the task to a terminal status. It holds no
// durable state of its own; everything lives in the task store.
type Pipeline struct {
	repo              repository.TaskRepository
	store             storage.Storage
	registry          *convert.Registry
	optimizer         *convert.Optimizer
	uploadConcurrency int
	logger            *slog.Logger
	metrics           *Metrics
}

// New constructs a Pipeline. metrics may be nil.
func New(
	repo repository.TaskRepository,
	store storage.Storage,
	registry *convert.Registry,
	optimizer *convert.Optimizer,
	uploadConcurrency int,
	logger *slog.Logger,
	metrics *Metrics,
) *Pipeline {
	if uploadConcurrency <= 0 {
		uploadConcurrency = 1
	}
	return &Pipeline{
		repo:              repo,
		store:             store,
		registry:          registry,
		optimizer:         optimizer,
		uploadConcurrency: uploadConcurrency,
		logger:            logger,
		metrics:           metrics,
	}
}

// Run converts the local source file for the given task. It is safe to call
// more than once for the same task id: only the invocation that wins the
// uploaded -> processing claim does any work, every other call is a no-op.
// Any unrecoverable error is translated here, and only here, into a terminal
// failed status carrying the captured message.
func (p *Pipeline) Run(ctx context.Context, taskID, localFilePath, mimeType string) error {
	started := time.Now()
	logger := p.logger.With("task_id", taskID, "file_type", mimeType)

	claimed, err := p.repo.MarkProcessing(ctx, taskID)
	if err != nil {
		return fmt.Errorf("claim task %s: %w", taskID, err)
	}
	if !claimed {
		logger.Info("task not in uploaded state, skipping duplicate trigger")
		p.metrics.observe(mimeType, "skipped", started)
		return nil
	}

	logger.Info("conversion started")

	conv, err := p.registry.Lookup(mimeType)
	if err != nil {
		p.metrics.observe(mimeType, "failed", started)
		return p.fail(ctx, logger, taskID, progressClaimed, err)
	}

	workDir, err := os.MkdirTemp("", "flipbook-convert-*")
	if err != nil {
		p.metrics.observe(mimeType, "failed", started)
		return p.fail(ctx, logger, taskID, progressClaimed, fmt.Errorf("create work dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	pages, err := conv.Convert(ctx, localFilePath, workDir)
	if err != nil {
		p.metrics.observe(mimeType, "failed", started)
		return p.fail(ctx, logger, taskID, progressClaimed, err)
	}
	if len(pages) == 0 {
		p.metrics.observe(mimeType, "failed", started)
		return p.fail(ctx, logger, taskID, progressClaimed, convert.ErrNoPages)
	}
	p.checkpoint(ctx, logger, taskID, progressConverted)

	records, err := p.uploadPages(ctx, taskID, pages)
	if err != nil {
		p.metrics.observe(mimeType, "failed", started)
		return p.fail(ctx, logger, taskID, progressConverted, err)
	}
	p.checkpoint(ctx, logger, taskID, progressUploaded)

	if err := p.repo.AppendPages(ctx, taskID, records); err != nil {
		p.metrics.observe(mimeType, "failed", started)
		return p.fail(ctx, logger, taskID, progressUploaded, fmt.Errorf("persist pages: %w", err))
	}

	if err := p.repo.UpdateStatus(ctx, taskID, model.StatusCompleted, 100, ""); err != nil {
		logger.Error("failed to mark task completed", "error", err)
		p.metrics.observe(mimeType, "failed", started)
		return fmt.Errorf("mark task %s completed: %w", taskID, err)
	}

	logger.Info("conversion completed",
		"total_pages", len(records),
		"duration_ms", time.Since(started).Milliseconds())
	p.metrics.observe(mimeType, "completed", started)
	return nil
}

// uploadPages optimizes and uploads every rendered page concurrently, then
// reassembles the results in strict page-number order.
func (p *Pipeline) uploadPages(ctx context.Context, taskID string, pages []convert.Page) ([]model.Page, error) {
	records := make([]model.Page, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.uploadConcurrency)

	for i, page := range pages {
		g.Go(func() error {
			opt := p.optimizer.Optimize(page.Path)

			key := fmt.Sprintf("flipbooks/%s/page_%d.png", taskID, page.Number)
			url, err := p.store.Upload(gctx, opt.Path, key, "image/png")
			if err != nil {
				return fmt.Errorf("upload page %d: %w", page.Number, err)
			}

			records[i] = model.Page{
				TaskID:     taskID,
				PageNumber: page.Number,
				ImageURL:   url,
				Width:      opt.Width,
				Height:     opt.Height,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// checkpoint records intermediate progress. Checkpoints are advisory; a
// store hiccup here must not abort a conversion that can still finish.
func (p *Pipeline) checkpoint(ctx context.Context, logger *slog.Logger, taskID string, progress int) {
	if err := p.repo.UpdateStatus(ctx, taskID, model.StatusProcessing, progress, ""); err != nil {
		logger.Warn("failed to record progress checkpoint", "progress", progress, "error", err)
	}
}

// fail drives the task to the failed terminal state with the captured error
// message and the progress of the last successful checkpoint.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, taskID string, progress int, cause error) error {
	logger.Error("conversion failed", "error", cause)

	if err := p.repo.UpdateStatus(ctx, taskID, model.StatusFailed, progress, cause.Error()); err != nil {
		if errors.Is(err, repository.ErrNoTransition) {
			logger.Error("rejected status transition to failed", "error", err)
		} else {
			// Store unreachable: the task stays in processing until the
			// stale-task monitor picks it up.
			logger.Error("failed to record task failure", "error", err)
		}
	}
	return cause
}
