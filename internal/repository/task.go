package repository

import (
	"context"
	"errors"
	"time"

	"flipbook/internal/model"
)

// ErrNoTransition is returned when a status update matches no row, either
// because the task does not exist or because it already reached a terminal
// state. Terminal states never regress; callers treat this as a no-op signal.
var ErrNoTransition = errors.New("task missing or already in a terminal state")

// TaskRepository defines data access for tasks and their pages using SQL
// queries only. No business logic here, strictly persistence operations.
type TaskRepository interface {
	// Create inserts a new task record with status=uploaded and progress=0.
	// Returns the stored task (may include values set by the DB).
	Create(ctx context.Context, task *model.Task) (*model.Task, error)

	// FindByID returns a task by its ID.
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// List returns a paginated list of tasks, most recent first, plus total count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Task], error)

	// MarkProcessing performs the check-and-set claim uploaded -> processing
	// with progress=10. It reports false when the task was not in uploaded,
	// making duplicate pipeline triggers safe no-ops.
	MarkProcessing(ctx context.Context, id string) (bool, error)

	// UpdateStatus moves a non-terminal task to the given status/progress.
	// A completed status also sets completed_at; errMsg is recorded only when
	// non-empty. Returns ErrNoTransition when no row was updated.
	UpdateStatus(ctx context.Context, id string, status model.TaskStatus, progress int, errMsg string) error

	// AppendPages inserts the ordered page batch and sets the task's
	// total_pages in one transaction. All-or-nothing per call.
	AppendPages(ctx context.Context, id string, pages []model.Page) error

	// ListPages returns a task's pages ordered by page number.
	ListPages(ctx context.Context, id string) ([]model.Page, error)

	// FindInStatus returns tasks currently in the given status, oldest first.
	FindInStatus(ctx context.Context, status model.TaskStatus) ([]model.Task, error)

	// FindStaleProcessing returns tasks stuck in processing for longer than
	// olderThan, oldest first.
	FindStaleProcessing(ctx context.Context, olderThan time.Duration) ([]model.Task, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
