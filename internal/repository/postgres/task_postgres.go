package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"flipbook/internal/model"
	"flipbook/internal/repository"
)

// TaskPostgres is a PostgreSQL implementation of repository.TaskRepository.
// It uses database/sql with parameterized queries and contains no business logic;
// the only lifecycle knowledge baked into SQL is the terminal-state guard.
type TaskPostgres struct {
	db *sql.DB
}

// NewTaskPostgres creates a new TaskPostgres repository.
func NewTaskPostgres(db *sql.DB) *TaskPostgres {
	return &TaskPostgres{db: db}
}

var _ repository.TaskRepository = (*TaskPostgres)(nil)

const taskColumns = `id, original_name, file_key, file_type, file_size, status, progress,
		total_pages, created_at, updated_at, completed_at, error_message`

func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var completedAt sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(
		&t.ID,
		&t.OriginalName,
		&t.FileKey,
		&t.FileType,
		&t.FileSize,
		&t.Status,
		&t.Progress,
		&t.TotalPages,
		&t.CreatedAt,
		&t.UpdatedAt,
		&completedAt,
		&errMsg,
	); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		t.ErrorMessage = errMsg.String
	}
	return &t, nil
}

// Create inserts a new task row and returns the stored record.
func (r *TaskPostgres) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	const q = `
		INSERT INTO tasks (id, original_name, file_key, file_type, file_size, status, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + taskColumns
	row := r.db.QueryRowContext(ctx, q,
		task.ID,
		task.OriginalName,
		task.FileKey,
		task.FileType,
		task.FileSize,
		model.StatusUploaded,
		0,
		task.CreatedAt,
	)
	return scanTask(row)
}

// FindByID fetches a single task by its ID.
func (r *TaskPostgres) FindByID(ctx context.Context, id string) (*model.Task, error) {
	const q = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1
	`
	return scanTask(r.db.QueryRowContext(ctx, q, id))
}

// List returns tasks using LIMIT/OFFSET pagination and a total count.
func (r *TaskPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Task], error) {
	const qCount = `SELECT COUNT(*) FROM tasks`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + taskColumns + `
		FROM tasks
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Task]{
		Items: items,
		Total: total,
	}, nil
}

// MarkProcessing claims the task for conversion. The WHERE clause is the
// idempotency guard: only an uploaded task can be claimed, exactly once.
func (r *TaskPostgres) MarkProcessing(ctx context.Context, id string) (bool, error) {
	const q = `
		UPDATE tasks
		SET status = $2, progress = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, q, id, model.StatusProcessing, 10, model.StatusUploaded)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateStatus applies a status/progress update guarded against terminal states.
func (r *TaskPostgres) UpdateStatus(ctx context.Context, id string, status model.TaskStatus, progress int, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("unknown task status %q", status)
	}

	const q = `
		UPDATE tasks
		SET status = $2,
		    progress = $3,
		    error_message = NULLIF($4, ''),
		    completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
		    updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`
	res, err := r.db.ExecContext(ctx, q, id, status, progress, errMsg)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update status of task %s to %s: %w", id, status, repository.ErrNoTransition)
	}
	return nil
}

// AppendPages inserts one row per page and records total_pages, all inside a
// single transaction so a failed task never keeps a partial page set.
func (r *TaskPostgres) AppendPages(ctx context.Context, id string, pages []model.Page) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const qInsert = `
		INSERT INTO pages (task_id, page_number, image_url, thumbnail_url, width, height)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, 0), NULLIF($6, 0))
	`
	for _, p := range pages {
		if _, err := tx.ExecContext(ctx, qInsert, id, p.PageNumber, p.ImageURL, p.ThumbnailURL, p.Width, p.Height); err != nil {
			return fmt.Errorf("insert page %d: %w", p.PageNumber, err)
		}
	}

	const qTotal = `UPDATE tasks SET total_pages = $2, updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, qTotal, id, len(pages)); err != nil {
		return fmt.Errorf("update total pages: %w", err)
	}

	return tx.Commit()
}

// ListPages returns the pages of a task ordered by page number.
func (r *TaskPostgres) ListPages(ctx context.Context, id string) ([]model.Page, error) {
	const q = `
		SELECT task_id, page_number, image_url, COALESCE(thumbnail_url, ''), COALESCE(width, 0), COALESCE(height, 0)
		FROM pages
		WHERE task_id = $1
		ORDER BY page_number ASC
	`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := make([]model.Page, 0)
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(
			&p.TaskID,
			&p.PageNumber,
			&p.ImageURL,
			&p.ThumbnailURL,
			&p.Width,
			&p.Height,
		); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// FindInStatus returns all tasks currently in the given status, oldest first.
func (r *TaskPostgres) FindInStatus(ctx context.Context, status model.TaskStatus) ([]model.Task, error) {
	const q = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindStaleProcessing returns tasks that have been processing longer than olderThan.
func (r *TaskPostgres) FindStaleProcessing(ctx context.Context, olderThan time.Duration) ([]model.Task, error) {
	const q = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
	`
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := r.db.QueryContext(ctx, q, model.StatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}
