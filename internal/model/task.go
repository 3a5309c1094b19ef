package model

import "time"

// TaskStatus is the lifecycle state of a conversion task.
type TaskStatus string

const (
	StatusUploaded   TaskStatus = "uploaded"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a final state. Terminal states absorb:
// no transition out of completed or failed is ever allowed.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the state machine permits moving from s to
// next. uploaded may only begin processing; processing may only finish or
// fail. Everything else is a programming error at the call site.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case StatusUploaded:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// Task represents one user-submitted document conversion job and its tracked
// state. Pure domain model; no persistence tags beyond JSON.
type Task struct {
	ID           string     `json:"id"`
	OriginalName string     `json:"original_name"`
	FileKey      string     `json:"file_key"`
	FileType     string     `json:"file_type"`
	FileSize     int64      `json:"file_size"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	TotalPages   int        `json:"total_pages"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Page is one rendered image corresponding to one page/slide of the source
// document. Pages are append-only: created in one batch when conversion
// succeeds and never mutated afterwards.
type Page struct {
	TaskID       string `json:"task_id"`
	PageNumber   int    `json:"page_number"`
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}
