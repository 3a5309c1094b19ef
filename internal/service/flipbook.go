package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"flipbook/internal/convert"
	"flipbook/internal/model"
	"flipbook/internal/repository"
	"flipbook/internal/storage"
	"flipbook/internal/worker"
)

var (
	ErrIDRequired      = errors.New("task id is required")
	ErrNotFound        = errors.New("task not found")
	ErrNotReady        = errors.New("flipbook not ready")
	ErrReaderNil       = errors.New("reader is nil")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = convert.ErrUnsupportedType
)

// UploadResult is the immediate acknowledgment returned to the uploader.
type UploadResult struct {
	TaskID  string           `json:"taskId"`
	Status  model.TaskStatus `json:"status"`
	Message string           `json:"message"`
}

// TaskStatusResult is the polling response for a task. FlipbookURL is set
// only for completed tasks; Error only for failed ones.
type TaskStatusResult struct {
	TaskID      string           `json:"taskId"`
	Status      model.TaskStatus `json:"status"`
	Progress    int              `json:"progress"`
	FlipbookURL string           `json:"flipbookUrl,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// TaskListResult is the service-level DTO for paginated task statuses.
type TaskListResult struct {
	Items []TaskStatusResult `json:"data"`
	Total int                `json:"total"`
}

// FlipbookPage is one page of an assembled flipbook.
type FlipbookPage struct {
	PageNumber   int    `json:"pageNumber"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Flipbook is the ordered page set of a completed task as presented to
// consumers.
type Flipbook struct {
	TaskID     string         `json:"taskId"`
	Title      string         `json:"title"`
	TotalPages int            `json:"totalPages"`
	Pages      []FlipbookPage `json:"pages"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Dispatcher hands conversion jobs to the background pool. Satisfied by
// worker.Runner.
type Dispatcher interface {
	Submit(job worker.Job) error
}

// FlipbookService defines the use cases around conversion tasks.
type FlipbookService interface {
	// Upload stages the source, persists the task record, enqueues the
	// conversion and returns immediately with the task id.
	Upload(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64) (*UploadResult, error)

	// Status returns the current persisted task state for polling.
	Status(ctx context.Context, id string) (*TaskStatusResult, error)

	// Flipbook assembles the ordered page list of a completed task.
	// Non-completed tasks read as ErrNotReady.
	Flipbook(ctx context.Context, id string) (*Flipbook, error)

	// List returns recent task statuses using limit/offset.
	List(ctx context.Context, limit, offset int) (*TaskListResult, error)
}

// flipbookService is a concrete implementation of FlipbookService.
type flipbookService struct {
	store       storage.Storage
	repo        repository.TaskRepository
	dispatcher  Dispatcher
	supported   func(mimeType string) bool
	maxFileSize int64
}

// NewFlipbookService constructs a new FlipbookService. supported is the
// converter registry's membership check; maxFileSize bounds accepted uploads.
func NewFlipbookService(store storage.Storage, repo repository.TaskRepository, dispatcher Dispatcher, supported func(string) bool, maxFileSize int64) FlipbookService {
	return &flipbookService{
		store:       store,
		repo:        repo,
		dispatcher:  dispatcher,
		supported:   supported,
		maxFileSize: maxFileSize,
	}
}

func (s *flipbookService) Upload(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64) (*UploadResult, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if !s.supported(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}

	taskID := uuid.New().String()

	// Stage the source locally; the worker owns (and removes) this file.
	tmp, err := os.CreateTemp("", "flipbook-upload-*"+filepath.Ext(originalFilename))
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	// Keep a durable copy of the source so an interrupted task can be
	// recovered after a crash.
	fileKey := fmt.Sprintf("uploads/%s/%s", taskID, filepath.Base(originalFilename))
	if _, err := s.store.Upload(ctx, tmp.Name(), fileKey, contentType); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("upload source to storage: %w", err)
	}

	task := &model.Task{
		ID:           taskID,
		OriginalName: originalFilename,
		FileKey:      fileKey,
		FileType:     contentType,
		FileSize:     size,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.repo.Create(ctx, task); err != nil {
		// Rollback: delete the staged object from storage
		os.Remove(tmp.Name())
		if delErr := s.store.Delete(ctx, fileKey); delErr != nil {
			return nil, fmt.Errorf("create task failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("create task failed: %w", err)
	}

	if err := s.dispatcher.Submit(worker.Job{TaskID: taskID, LocalPath: tmp.Name(), MIMEType: contentType}); err != nil {
		// The task stays in uploaded; runner recovery re-enqueues it from
		// the stored source on the next start.
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("enqueue conversion: %w", err)
	}

	return &UploadResult{
		TaskID:  taskID,
		Status:  model.StatusUploaded,
		Message: "File uploaded successfully, conversion started",
	}, nil
}

func (s *flipbookService) Status(ctx context.Context, id string) (*TaskStatusResult, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return statusOf(task), nil
}

func (s *flipbookService) Flipbook(ctx context.Context, id string) (*Flipbook, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if task.Status != model.StatusCompleted {
		return nil, ErrNotReady
	}

	pages, err := s.repo.ListPages(ctx, id)
	if err != nil {
		return nil, err
	}

	fb := &Flipbook{
		TaskID:     task.ID,
		Title:      task.OriginalName,
		TotalPages: task.TotalPages,
		Pages:      make([]FlipbookPage, 0, len(pages)),
		CreatedAt:  task.CreatedAt,
	}
	for _, p := range pages {
		fb.Pages = append(fb.Pages, FlipbookPage{
			PageNumber:   p.PageNumber,
			URL:          p.ImageURL,
			ThumbnailURL: p.ThumbnailURL,
		})
	}
	return fb, nil
}

func (s *flipbookService) List(ctx context.Context, limit, offset int) (*TaskListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	items := make([]TaskStatusResult, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, *statusOf(&res.Items[i]))
	}
	return &TaskListResult{Items: items, Total: res.Total}, nil
}

func statusOf(task *model.Task) *TaskStatusResult {
	st := &TaskStatusResult{
		TaskID:   task.ID,
		Status:   task.Status,
		Progress: task.Progress,
	}
	if task.Status == model.StatusCompleted {
		st.FlipbookURL = "/flipbook/" + task.ID
	}
	if task.Status == model.StatusFailed {
		st.Error = task.ErrorMessage
	}
	return st
}
